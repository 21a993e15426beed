// listener.go -- dual stack frontend listeners
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// Package listener binds the frontend listening sockets: one per address
// family, each with an optional QUIC listener on the same port.
package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/lucas-clemente/quic-go"
	L "github.com/opencoff/go-logger"

	"github.com/opencoff/gofront/internal/resolve"
)

// ErrNoListener is returned when neither address family could be bound
var ErrNoListener = errors.New("no frontend listener could be bound")

// BindFunc makes a listening stream socket bound to 'a' with the given
// accept backlog.
type BindFunc func(ctx context.Context, a resolve.Address, backlog int) (net.Listener, error)

// Listener is a bound, listening socket for one address family
type Listener struct {
	net.Listener

	Family  resolve.Family
	Address resolve.Address

	// Quic is non-nil if a QUIC listener shares the port
	Quic quic.Listener
	udp  net.PacketConn

	log  *L.Logger
	once sync.Once
}

// OnError reports a non-fatal accept error; the caller keeps accepting.
func (l *Listener) OnError(err error) {
	l.log.Warn("accept: %s", err)
}

// Close closes the stream and QUIC listeners; it is idempotent.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		err = l.Listener.Close()
		if l.Quic != nil {
			l.Quic.Close()
			l.udp.Close()
		}
		l.log.Debug("closed")
	})
	return err
}

func (l *Listener) String() string {
	s := fmt.Sprintf("%s %s", l.Family, l.Addr())
	if l.Quic != nil {
		s += " (+quic)"
	}
	return s
}

// Builder binds the frontend listeners
type Builder struct {
	Host    string
	Port    uint16
	Backlog int

	// TLS is the server context for QUIC; Quic requests a QUIC listener
	TLS  *tls.Config
	Quic bool

	Resolver *resolve.Resolver

	// Bind defaults to the platform socket binder
	Bind BindFunc

	Log *L.Logger
}

// Build binds IPv6 then IPv4. A family that can't be bound is logged and
// skipped; ErrNoListener is returned if both are absent.
func (b *Builder) Build(ctx context.Context) ([]*Listener, error) {
	var lns []*Listener

	for _, fam := range []resolve.Family{resolve.IPv6, resolve.IPv4} {
		ln, err := b.Attempt(ctx, fam)
		if err != nil {
			b.Log.Warn("Listening %s on %s failed: %s", fam, resolve.HostPort(b.Host, b.Port), err)
			continue
		}
		lns = append(lns, ln)
	}

	if len(lns) == 0 {
		return nil, ErrNoListener
	}
	return lns, nil
}

// Attempt binds one listener for family 'fam'; the first candidate
// address that binds wins.
func (b *Builder) Attempt(ctx context.Context, fam resolve.Family) (*Listener, error) {
	addrs, err := b.Resolver.ResolvePassive(ctx, b.Host, b.Port, fam)
	if err != nil {
		return nil, err
	}

	bind := b.Bind
	if bind == nil {
		bind = Bind
	}

	var last error
	for _, a := range addrs {
		nl, err := bind(ctx, a, b.Backlog)
		if err != nil {
			b.Log.Debug("bind %s: %s", a, err)
			last = err
			continue
		}

		ln := &Listener{
			Listener: nl,
			Family:   fam,
			Address:  a,
			log:      b.Log.New(nl.Addr().String(), 0),
		}

		if b.Quic {
			b.quic(ln)
		}

		b.Log.Info("Listening on %s", ln)
		return ln, nil
	}
	return nil, fmt.Errorf("%s: no candidate could be bound: %w", fam, last)
}

// QUIC on the same port as the stream listener; failures are logged and
// the stream listener is kept.
func (b *Builder) quic(ln *Listener) {
	if b.TLS == nil {
		b.Log.Warn("%s: quic needs a TLS context; skipping", ln.Address)
		return
	}

	ta, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		b.Log.Warn("%s: can't find port for quic", ln.Address)
		return
	}

	network := "udp4"
	if ln.Family == resolve.IPv6 {
		network = "udp6"
	}

	pc, err := net.ListenUDP(network, &net.UDPAddr{IP: ta.IP, Port: ta.Port})
	if err != nil {
		b.Log.Warn("%s: can't listen for quic: %s", ln.Address, err)
		return
	}

	q, err := quic.Listen(pc, b.TLS, &quic.Config{})
	if err != nil {
		pc.Close()
		b.Log.Warn("%s: can't start quic listener: %s", ln.Address, err)
		return
	}
	ln.Quic = q
	ln.udp = pc
}

// Close closes every listener in 'lns'
func Close(lns []*Listener) {
	for _, ln := range lns {
		ln.Close()
	}
}
