// accept.go -- accept loops for stream and QUIC listeners
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
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lucas-clemente/quic-go"
	L "github.com/opencoff/go-logger"

	"github.com/opencoff/gofront/internal/listener"
)

// pause after a failed accept so a persistent error doesn't spin
const acceptPause = 100 * time.Millisecond

func (e *Engine) done() bool {
	select {
	case <-e.ctx.Done():
		return true
	default:
		return false
	}
}

func (e *Engine) serveTCP(ln *listener.Listener, id int) {
	defer e.wg.Done()

	log := e.Log.New(fmt.Sprintf("%s.%d", ln.Addr(), id), 0)
	log.Debug("accept worker started")

	for {
		conn, err := ln.Accept()
		if e.done() {
			if err == nil {
				conn.Close()
			}
			return
		}

		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			ln.OnError(err)
			time.Sleep(acceptPause)
			continue
		}

		if err := e.Admission.Allow(conn.RemoteAddr()); err != nil {
			log.Debug("%s", err)
			conn.Close()
			continue
		}

		e.wg.Add(1)
		go e.handleTCP(conn)
	}
}

func (e *Engine) handleTCP(conn net.Conn) {
	if e.ServerTLS != nil {
		lhs := conn.RemoteAddr().String()

		conn.SetDeadline(time.Now().Add(e.Config.Timeout.FrontendRead))
		econn := tls.Server(conn, e.ServerTLS)
		if err := econn.HandshakeContext(e.ctx); err != nil {
			e.Log.Warn("can't establish TLS with %s: %s", lhs, err)
			conn.Close()
			e.wg.Done()
			return
		}
		conn.SetDeadline(time.Time{})

		st := econn.ConnectionState()
		e.Log.Debug("tls server handshake with %s complete; Version %#x, Cipher %#x, ALPN %q, SNI %q",
			lhs, st.Version, st.CipherSuite, st.NegotiatedProtocol, st.ServerName)
		conn = econn
	}

	e.handleConn(conn)
}

func (e *Engine) serveQuic(ln *listener.Listener) {
	defer e.wg.Done()

	log := e.Log.New(fmt.Sprintf("quic:%s", ln.Quic.Addr()), 0)
	log.Info("Starting Quic server ..")

	for {
		sess, err := ln.Quic.Accept(e.ctx)
		if e.done() {
			return
		}

		if err != nil {
			ln.OnError(err)
			time.Sleep(acceptPause)
			continue
		}

		if err := e.Admission.Allow(sess.RemoteAddr()); err != nil {
			log.Debug("%s", err)
			sess.CloseWithError(0, "ratelimited")
			continue
		}

		e.wg.Add(1)
		go e.serveStreams(sess, log)
	}
}

// every stream of a QUIC connection is relayed to its own backend conn
func (e *Engine) serveStreams(sess quic.Connection, log *L.Logger) {
	defer e.wg.Done()

	for {
		st, err := sess.AcceptStream(e.ctx)
		if err != nil {
			if !e.done() {
				log.Debug("%s: %s", sess.RemoteAddr(), err)
			}
			return
		}

		qc := &qConn{
			Stream: st,
			s:      sess,
		}

		e.wg.Add(1)
		go e.handleConn(qc)
	}
}

// Wraps a quic Stream as a net.Conn
type qConn struct {
	quic.Stream

	// Link back to quic connection for this stream
	s quic.Connection
}

// Address abstraction that tacks on the stream-id
type qAddr struct {
	a  net.Addr
	id quic.StreamID
}

func (a *qAddr) Network() string {
	return a.a.Network()
}

func (a *qAddr) String() string {
	return fmt.Sprintf("%s.%#x", a.a.String(), a.id)
}

// implement net.Conn interfaces too
func (c *qConn) LocalAddr() net.Addr {
	return &qAddr{
		a:  c.s.LocalAddr(),
		id: c.StreamID(),
	}
}

func (c *qConn) RemoteAddr() net.Addr {
	return &qAddr{
		a:  c.s.RemoteAddr(),
		id: c.StreamID(),
	}
}

var _ net.Conn = &qConn{}
