// dial.go -- backend dialer: direct or via an HTTP proxy, plain or TLS
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package engine

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	L "github.com/opencoff/go-logger"
	"golang.org/x/net/proxy"

	"github.com/opencoff/gofront/internal/config"
	"github.com/opencoff/gofront/internal/resolve"
)

type backendDialer struct {
	addr string
	fwd  proxy.ContextDialer
	tls  *tls.Config

	timeout time.Duration
	log     *L.Logger
}

func newBackendDialer(c *config.Config, be resolve.Address, tcfg *tls.Config, log *L.Logger) (*backendDialer, error) {
	t := &c.Timeout
	nd := &net.Dialer{
		Timeout:   t.BackendWrite,
		KeepAlive: t.BackendKeepAlive,
	}

	d := &backendDialer{
		addr:    be.String(),
		fwd:     nd,
		tls:     tcfg,
		timeout: t.BackendWrite,
		log:     log.New("backend", 0),
	}

	// the proxy sees the backend's host name, not our resolution of it
	if p := c.BackendProxy; p != nil {
		u, err := url.Parse(p.URI)
		if err != nil {
			return nil, fmt.Errorf("proxy %s: %w", p.URI, err)
		}

		pd, err := proxy.FromURL(u, nd)
		if err != nil {
			return nil, fmt.Errorf("proxy %s: %w", p.HostPort, err)
		}

		cd, ok := pd.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("proxy %s: dialer can't be cancelled", p.HostPort)
		}
		d.fwd = cd
		d.addr = c.Backend.String()
		log.Info("backend connections tunnel through http proxy %s", p.HostPort)
	}
	return d, nil
}

// Dial connects to the backend and completes the TLS handshake if needed
func (d *backendDialer) Dial(ctx context.Context) (net.Conn, error) {
	peer, err := d.fwd.DialContext(ctx, "tcp", d.addr)
	if err != nil {
		return nil, fmt.Errorf("can't dial %s: %w", d.addr, err)
	}

	d.log.Debug("%s connected to %s", peer.LocalAddr(), d.addr)
	if d.tls == nil {
		return peer, nil
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	econn := tls.Client(peer, d.tls)
	if err := econn.HandshakeContext(ctx); err != nil {
		peer.Close()
		return nil, fmt.Errorf("tls-client %s: %w", d.addr, err)
	}

	st := econn.ConnectionState()
	d.log.Debug("tls client handshake with %s complete; Version %#x, Cipher %#x, ALPN %q", d.addr,
		st.Version, st.CipherSuite, st.NegotiatedProtocol)
	return econn, nil
}

// a pre-dialed backend conn that expires after the keep-alive timeout
type idleConn struct {
	sync.Mutex
	c      net.Conn
	expiry time.Time
	ttl    time.Duration
	closed bool
}

func newIdleConn(ttl time.Duration) *idleConn {
	return &idleConn{ttl: ttl}
}

func (i *idleConn) put(c net.Conn) {
	i.Lock()
	defer i.Unlock()

	if i.closed || i.c != nil {
		c.Close()
		return
	}
	i.c = c
	i.expiry = time.Now().Add(i.ttl)
}

// take the conn if it is still fresh
func (i *idleConn) take() net.Conn {
	i.Lock()
	defer i.Unlock()

	c := i.c
	i.c = nil
	if c != nil && i.ttl > 0 && time.Now().After(i.expiry) {
		c.Close()
		return nil
	}
	return c
}

func (i *idleConn) close() {
	i.Lock()
	defer i.Unlock()

	i.closed = true
	if i.c != nil {
		i.c.Close()
		i.c = nil
	}
}

func (e *Engine) takeIdle() net.Conn {
	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()

	if idle == nil {
		return nil
	}
	return idle.take()
}
