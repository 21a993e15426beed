// priv_windows.go -- dummy credentials on non-unix platforms
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

//go:build windows

package lifecycle

import (
	"errors"
)

var errNoCreds = errors.New("can't change uid/gid on this platform")

// System returns the credentials of this process
func System() Credentials {
	return sysCreds{}
}

type sysCreds struct{}

// never root; DropPrivilege becomes a no-op
func (sysCreds) Getuid() int                { return -1 }
func (sysCreds) Setgroups(gids []int) error { return errNoCreds }
func (sysCreds) Setgid(gid int) error       { return errNoCreds }
func (sysCreds) Setuid(uid int) error       { return errNoCreds }
