// priv.go -- privilege dropping
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package lifecycle

import (
	"errors"
	"fmt"

	L "github.com/opencoff/go-logger"
)

// ErrStillRoot means root privileges could be regained after dropping them
var ErrStillRoot = errors.New("still have root privileges after dropping them")

// Credentials is the process identity
type Credentials interface {
	Getuid() int
	Setgroups(gids []int) error
	Setgid(gid int) error
	Setuid(uid int) error
}

// DropPrivilege switches to uid/gid when running as root and 'user' is
// set. After the switch, regaining uid 0 must fail.
func DropPrivilege(cr Credentials, user string, uid, gid int, log *L.Logger) error {
	if len(user) == 0 {
		return nil
	}

	if me := cr.Getuid(); me != 0 {
		log.Warn("Not running as 'root' (uid %d); can't change to user %s", me, user)
		return nil
	}

	if err := cr.Setgroups([]int{gid}); err != nil {
		return fmt.Errorf("can't set supplementary groups to %d: %w", gid, err)
	}

	if err := cr.Setgid(gid); err != nil {
		return fmt.Errorf("can't change Gid to %d: %w", gid, err)
	}

	if err := cr.Setuid(uid); err != nil {
		return fmt.Errorf("can't change Uid to %d: %w", uid, err)
	}

	if uid != 0 {
		if err := cr.Setuid(0); err == nil {
			return ErrStillRoot
		}
	}

	log.Info("Dropped privileges to %s (%d:%d)", user, uid, gid)
	return nil
}
