// daemon.go -- detach from the controlling terminal
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
	"os"
	"os/exec"
)

// ErrDetached is returned in the parent after the daemon child started;
// the parent should exit 0.
var ErrDetached = errors.New("detached to background")

// environment marker for the re-executed child
const envDaemon = "GOFRONT_DAEMONIZED"

// Daemonizer detaches the process. It returns nil in the process that
// should continue and ErrDetached in the one that should exit.
type Daemonizer interface {
	Daemonize() error
}

// ReExec daemonizes by starting a copy of this process in a new session
// with stdio on /dev/null.
type ReExec struct {
	// Args default to os.Args[1:]
	Args []string
}

// Daemonize implements Daemonizer
func (r *ReExec) Daemonize() error {
	if os.Getenv(envDaemon) == "1" {
		os.Unsetenv(envDaemon)
		if err := os.Chdir("/"); err != nil {
			return fmt.Errorf("chdir /: %w", err)
		}
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("can't find executable: %w", err)
	}

	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer null.Close()

	args := r.Args
	if args == nil {
		args = os.Args[1:]
	}

	cmd := child(exe, args, null)
	if err = cmd.Start(); err != nil {
		return fmt.Errorf("can't start daemon: %w", err)
	}

	cmd.Process.Release()
	return ErrDetached
}

// child command for the daemon. It runs in our working directory so that
// relative config and key paths resolve the same way; it moves to / only
// after they are loaded.
func child(exe string, args []string, null *os.File) *exec.Cmd {
	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), envDaemon+"=1")
	cmd.Stdin = null
	cmd.Stdout = null
	cmd.Stderr = null
	cmd.SysProcAttr = detached()
	return cmd
}
