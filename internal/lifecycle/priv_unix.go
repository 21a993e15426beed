// priv_unix.go -- process credentials on unix platforms
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

//go:build !windows

package lifecycle

import (
	"golang.org/x/sys/unix"
)

// System returns the credentials of this process
func System() Credentials {
	return sysCreds{}
}

type sysCreds struct{}

func (sysCreds) Getuid() int                { return unix.Getuid() }
func (sysCreds) Setgroups(gids []int) error { return unix.Setgroups(gids) }
func (sysCreds) Setgid(gid int) error       { return unix.Setgid(gid) }
func (sysCreds) Setuid(uid int) error       { return unix.Setuid(uid) }
