// engine.go -- default event loop: a byte relay from frontend to backend
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// Package engine accepts frontend connections on the bound listeners and
// relays bytes to the backend. It owns everything after accept.
package engine

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"

	L "github.com/opencoff/go-logger"

	"github.com/opencoff/gofront/internal/config"
	"github.com/opencoff/gofront/internal/listener"
	"github.com/opencoff/gofront/internal/resolve"
	"github.com/opencoff/gofront/internal/throttle"
)

// Network I/O buffer size
const BufSize = 65536

var errShutdown = errors.New("engine shutdown")

// Options is everything the engine needs; none of it is modified.
type Options struct {
	Config    *config.Config
	Listeners []*listener.Listener

	// ServerTLS is the frontend context; nil for plain text
	ServerTLS *tls.Config

	// ClientTLS is the backend context; nil for plain text
	ClientTLS *tls.Config

	// Backend is the resolved backend address
	Backend resolve.Address

	Rate      *throttle.Descriptor
	Admission *throttle.Admission

	Log *L.Logger
}

// Engine relays accepted connections to the backend
type Engine struct {
	Options

	dial *backendDialer

	// for seamless shutdown
	ctx    context.Context
	cancel context.CancelFunc

	pool *sync.Pool

	// pre-dialed backend connection
	idle *idleConn

	mu      sync.Mutex
	workers int

	wg   sync.WaitGroup
	stop sync.Once
}

// New makes an engine over the bound listeners
func New(o Options) (*Engine, error) {
	if len(o.Listeners) == 0 {
		return nil, listener.ErrNoListener
	}
	if o.Rate == nil {
		o.Rate = throttle.New(0, 0, 0, 0)
	}

	d, err := newBackendDialer(o.Config, o.Backend, o.ClientTLS, o.Log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		Options: o,
		dial:    d,
		ctx:     ctx,
		cancel:  cancel,
		pool: &sync.Pool{
			New: func() interface{} { return make([]byte, BufSize) },
		},
	}
	return e, nil
}

// StartWorkers starts 'n' accept workers on every listener
func (e *Engine) StartWorkers(n int) error {
	if n < 1 {
		return fmt.Errorf("workers: %d is not positive", n)
	}

	select {
	case <-e.ctx.Done():
		return errShutdown
	default:
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ln := range e.Listeners {
		for i := 0; i < n; i++ {
			e.wg.Add(1)
			go e.serveTCP(ln, e.workers+i)
		}

		// one QUIC acceptor per listener; streams fan out to goroutines
		if ln.Quic != nil && e.workers == 0 {
			e.wg.Add(1)
			go e.serveQuic(ln)
		}
	}

	e.workers += n
	e.Log.Info("Started %d accept workers on %d listeners; ratelimit %s, accept %s",
		n, len(e.Listeners), e.Rate, e.Admission)
	return nil
}

// Workers returns the number of accept workers per listener
func (e *Engine) Workers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workers
}

// OpenBackendSession pre-dials one backend connection for the shared
// downstream session. A dial failure is logged; relays dial on demand.
func (e *Engine) OpenBackendSession() error {
	select {
	case <-e.ctx.Done():
		return errShutdown
	default:
	}

	idle := newIdleConn(e.Config.Timeout.BackendKeepAlive)

	e.mu.Lock()
	e.idle = idle
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		c, err := e.dial.Dial(e.ctx)
		if err != nil {
			e.Log.Warn("backend session to %s: %s", e.Backend, err)
			return
		}
		idle.put(c)
		e.Log.Info("backend session to %s established", e.Backend)
	}()
	return nil
}

// Run accepts and relays until ctx is done; then it closes the listeners
// and waits for every relay to finish.
func (e *Engine) Run(ctx context.Context) error {
	if e.Workers() == 0 {
		if err := e.StartWorkers(1); err != nil {
			return err
		}
	}

	<-ctx.Done()
	e.Log.Info("shutting down ..")
	e.Stop()
	return nil
}

// Stop closes the listeners and waits for every relay to finish. Only the
// first call does the work; later calls wait for it to complete.
func (e *Engine) Stop() {
	e.stop.Do(e.shutdown)
}

func (e *Engine) shutdown() {
	e.cancel()
	listener.Close(e.Listeners)

	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()
	if idle != nil {
		idle.close()
	}

	e.wg.Wait()
	e.Log.Info("engine shutdown complete")
}

func (e *Engine) getBuf() []byte {
	b := e.pool.Get()
	return b.([]byte)
}

func (e *Engine) putBuf(b []byte) {
	e.pool.Put(b)
}
