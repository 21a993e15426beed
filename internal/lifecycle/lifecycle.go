// lifecycle.go -- ordering of privileged startup steps
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// Package lifecycle runs the privileged part of startup in a fixed
// order: key material, daemon, pid file, listeners, privilege drop and
// finally the workers.
package lifecycle

import (
	"fmt"
	"os"

	L "github.com/opencoff/go-logger"

	"github.com/opencoff/gofront/internal/config"
)

// Steps are the caller supplied actions the orchestrator sequences
type Steps interface {
	// LoadKeys reads key material while still privileged
	LoadKeys() error

	// Listen binds the frontend sockets
	Listen() error

	// StartWorkers runs after privileges are dropped
	StartWorkers() error
}

// Orchestrator runs Steps with the process level actions in between
type Orchestrator struct {
	Process *config.Process

	Creds  Credentials
	Daemon Daemonizer

	// Getpid defaults to os.Getpid
	Getpid func() int

	Log *L.Logger
}

// New makes an orchestrator with the system credentials and the
// re-exec daemonizer.
func New(p *config.Process, log *L.Logger) *Orchestrator {
	return &Orchestrator{
		Process: p,
		Creds:   System(),
		Daemon:  &ReExec{},
		Getpid:  os.Getpid,
		Log:     log,
	}
}

// Run executes every step in order and stops at the first error. In the
// parent of a daemon it returns ErrDetached right after the daemon step.
func (o *Orchestrator) Run(s Steps) error {
	p := o.Process

	if err := s.LoadKeys(); err != nil {
		return fmt.Errorf("keys: %w", err)
	}

	if p.Daemon {
		if err := o.Daemon.Daemonize(); err != nil {
			return fmt.Errorf("daemon: %w", err)
		}
	}

	if len(p.PidFile) > 0 {
		getpid := o.Getpid
		if getpid == nil {
			getpid = os.Getpid
		}

		pid := getpid()
		if err := WritePID(p.PidFile, pid); err != nil {
			return fmt.Errorf("pid-file: %w", err)
		}
		o.Log.Debug("wrote pid %d to %s", pid, p.PidFile)
	}

	if err := s.Listen(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	if err := DropPrivilege(o.Creds, p.User, p.Uid, p.Gid, o.Log); err != nil {
		return fmt.Errorf("privilege: %w", err)
	}

	if err := s.StartWorkers(); err != nil {
		return fmt.Errorf("workers: %w", err)
	}
	return nil
}
