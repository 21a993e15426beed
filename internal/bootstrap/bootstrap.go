// bootstrap.go -- startup sequence from configuration to event loop
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// Package bootstrap turns the configuration into bound listeners and a
// running event loop. Every step is fatal on error; the first failure is
// returned as an *Error naming the stage.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"

	L "github.com/opencoff/go-logger"

	"github.com/opencoff/gofront/internal/config"
	"github.com/opencoff/gofront/internal/engine"
	"github.com/opencoff/gofront/internal/lifecycle"
	"github.com/opencoff/gofront/internal/listener"
	"github.com/opencoff/gofront/internal/logging"
	"github.com/opencoff/gofront/internal/resolve"
	"github.com/opencoff/gofront/internal/throttle"
	"github.com/opencoff/gofront/internal/tlsctx"
)

// Stage names
const (
	StageConfig  = "config"
	StageLogging = "logging"
	StageResolve = "resolve"
	StageRate    = "ratelimit"
	StageStartup = "startup"
	StageLoop    = "event-loop"
)

// Error is a failure in one stage of the startup sequence
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(stage string, err error) error {
	return &Error{Stage: stage, Err: err}
}

// LoopFunc runs the event loop until ctx is done
type LoopFunc func(ctx context.Context, e *engine.Engine) error

// Sequencer runs the startup sequence. The optional hooks replace the
// system defaults.
type Sequencer struct {
	ConfPath string
	Entries  []config.Entry

	// Debug forces the DEBUG log level
	Debug bool

	// log output; defaults to os.Stderr
	Output io.Writer

	// optional hooks
	Lookup resolve.LookupFunc
	Bind   listener.BindFunc
	Creds  lifecycle.Credentials
	Daemon lifecycle.Daemonizer
	Loop   LoopFunc

	// Results; valid after the stage that produces them
	Config    *config.Config
	Log       *L.Logger
	Backend   resolve.Address
	Rate      *throttle.Descriptor
	Admission *throttle.Admission
	TLS       *tlsctx.Set
	Listeners []*listener.Listener
	Engine    *engine.Engine

	resolver *resolve.Resolver
}

// Run performs the whole sequence and returns when the event loop exits.
// In the parent of a daemon it returns an error wrapping
// lifecycle.ErrDetached.
func (s *Sequencer) Run(ctx context.Context) error {
	cfg, err := config.Load(s.ConfPath, s.Entries)
	if err != nil {
		return fail(StageConfig, err)
	}
	s.Config = cfg

	out := s.Output
	if out == nil {
		out = os.Stderr
	}

	p := &cfg.Process
	log, err := logging.New(logging.Options{
		Name:     "gofront",
		Level:    p.LogLevel,
		Debug:    s.Debug,
		Syslog:   p.Syslog,
		Facility: p.SyslogFacility,
		Output:   out,
	})
	if err != nil {
		return fail(StageLogging, err)
	}
	s.Log = log

	log.Info("gofront starting up (logging at %v): %s", log.Prio(), cfg)

	if s.Lookup != nil {
		s.resolver = resolve.NewWithLookup(s.Lookup, log)
	} else {
		s.resolver = resolve.New(log)
	}

	if err = s.resolveBackend(ctx); err != nil {
		return fail(StageResolve, err)
	}

	r := &cfg.Ratelimit
	s.Rate = throttle.New(r.ReadRate, r.ReadBurst, r.WriteRate, r.WriteBurst)
	if s.Admission, err = throttle.NewAdmission(r.AcceptRate, r.AcceptRatePerHost); err != nil {
		return fail(StageRate, err)
	}
	log.Debug("ratelimit: %s; accept %s", s.Rate, s.Admission)

	lifecycle.Init()
	defer lifecycle.Teardown()

	o := lifecycle.New(p, log)
	if s.Creds != nil {
		o.Creds = s.Creds
	}
	if s.Daemon != nil {
		o.Daemon = s.Daemon
	}

	defer func() {
		listener.Close(s.Listeners)
	}()

	if err = o.Run(&steps{s, ctx}); err != nil {
		return fail(StageStartup, err)
	}

	loop := s.Loop
	if loop == nil {
		loop = func(ctx context.Context, e *engine.Engine) error {
			return e.Run(ctx)
		}
	}

	// a no-op if the loop already stopped the engine
	err = loop(ctx, s.Engine)
	s.Engine.Stop()
	if err != nil {
		return fail(StageLoop, err)
	}
	return nil
}

// resolve the backend and, if configured, the proxy in front of it
func (s *Sequencer) resolveBackend(ctx context.Context) error {
	c := s.Config

	be, err := s.resolver.Resolve(ctx, c.Backend.Host, c.Backend.Port, c.BackendFamily())
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	s.Backend = be

	if px := c.BackendProxy; px != nil {
		if _, err := s.resolver.Resolve(ctx, px.Host, px.Port, resolve.Any); err != nil {
			return fmt.Errorf("backend http proxy: %w", err)
		}
	}
	return nil
}

// steps hands the privileged actions to the lifecycle orchestrator
type steps struct {
	*Sequencer
	ctx context.Context
}

func (s *steps) LoadKeys() error {
	set, err := tlsctx.Build(s.Config, s.Log)
	if err != nil {
		return err
	}
	s.TLS = set
	return nil
}

func (s *steps) Listen() error {
	c := s.Config
	b := &listener.Builder{
		Host:     c.Frontend.Host,
		Port:     c.Frontend.Port,
		Backlog:  c.Backlog,
		TLS:      s.TLS.Default,
		Quic:     c.FrontendQuic,
		Resolver: s.resolver,
		Bind:     s.Bind,
		Log:      s.Log,
	}

	lns, err := b.Build(s.ctx)
	if err != nil {
		return err
	}
	s.Listeners = lns
	return nil
}

func (s *steps) StartWorkers() error {
	c := s.Config
	e, err := engine.New(engine.Options{
		Config:    c,
		Listeners: s.Listeners,
		ServerTLS: s.TLS.Default,
		ClientTLS: s.TLS.Client,
		Backend:   s.Backend,
		Rate:      s.Rate,
		Admission: s.Admission,
		Log:       s.Log,
	})
	if err != nil {
		return err
	}
	s.Engine = e

	if n := c.Process.Workers; n > 1 {
		return e.StartWorkers(n)
	}

	if c.DownstreamHTTP2() {
		return e.OpenBackendSession()
	}
	return nil
}
