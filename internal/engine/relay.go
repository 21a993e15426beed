// relay.go -- copy bytes between a frontend and backend connection
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	L "github.com/opencoff/go-logger"
)

// handle the relay from 'conn' to the backend and back.
// this sets up the backend connection before the relay
func (e *Engine) handleConn(conn net.Conn) {
	defer func() {
		e.wg.Done()
		conn.Close()
	}()

	start := time.Now()
	log := e.Log.New(conn.RemoteAddr().String(), 0)

	peer := e.takeIdle()
	if peer == nil {
		var err error
		peer, err = e.dial.Dial(e.ctx)
		if err != nil {
			log.Warn("can't connect to %s: %s", e.Backend, err)
			return
		}
	}
	defer peer.Close()

	// we grab the printable info before the socket is closed
	lhs := conn.RemoteAddr().String()
	rhs := peer.RemoteAddr().String()

	log.Debug("LHS %s-%s, RHS %s-%s", lhs, conn.LocalAddr(), peer.LocalAddr(), rhs)

	front := e.Rate.Conn(e.ctx, conn)
	t := &e.Config.Timeout

	var wg sync.WaitGroup

	b0 := e.getBuf()
	b1 := e.getBuf()

	wg.Add(2)
	ch := make(chan bool)
	go func() {
		wg.Wait()
		close(ch)
	}()

	var r0, r1, w0, w1 int
	go func() {
		defer wg.Done()
		r0, w0 = e.cancellableCopy(peer, front, b0, t.FrontendRead, t.BackendWrite, log)
	}()

	go func() {
		defer wg.Done()
		r1, w1 = e.cancellableCopy(front, peer, b1, t.BackendRead, t.FrontendWrite, log)
	}()

	select {
	case <-e.ctx.Done():
		<-ch

	case <-ch:
	}

	e.putBuf(b0)
	e.putBuf(b1)

	if e.Config.Process.AccessLog {
		log.Info("%s: rd %d, wr %d; %s: rd %d, wr %d; %s", lhs, r0, w1, rhs, r1, w0, format(time.Since(start)))
	} else {
		log.Debug("%s: rd %d, wr %d; %s: rd %d, wr %d", lhs, r0, w1, rhs, r1, w0)
	}
}

// interruptible copy from 's' to 'd'
func (e *Engine) cancellableCopy(d, s net.Conn, buf []byte, rto, wto time.Duration, log *L.Logger) (r, w int) {
	ch := make(chan bool)
	go func() {
		r, w = copyBuf(d, s, buf, rto, wto, log)

		// tell the other side we're done writing
		if cw, ok := d.(interface{ CloseWrite() error }); ok {
			cw.CloseWrite()
		}
		close(ch)
	}()

	select {
	case <-ch:

	case <-e.ctx.Done():
		// This forces both copy go-routines to end the for{} loops.
		log.Debug("SHUTDOWN: Force closing %s and %s", d.RemoteAddr(), s.LocalAddr())
		d.Close()
		s.Close()
		<-ch
	}
	return
}

// copy from 's' to 'd' using 'buf'; a zero timeout disables the deadline
func copyBuf(d, s net.Conn, buf []byte, rto, wto time.Duration, log *L.Logger) (x, y int) {
	for {
		if rto > 0 {
			s.SetReadDeadline(time.Now().Add(rto))
		}
		nr, err := s.Read(buf)
		if err != nil && err != io.EOF && !errors.Is(err, context.Canceled) && !isReset(err) {
			log.Debug("%s: nr %d, read err %s", s.LocalAddr(), nr, err)
			return
		}

		if nr > 0 {
			if wto > 0 {
				d.SetWriteDeadline(time.Now().Add(wto))
			}
			x += nr
			nw, err := d.Write(buf[:nr])
			if err != nil {
				log.Debug("%s: Write Err %s", d.RemoteAddr(), err)
				return
			}
			if nw != nr {
				return
			}
			y += nw
		}
		if err != nil {
			log.Debug("%s: read error: %s", s.RemoteAddr(), err)
			return
		}
		if nr == 0 {
			log.Debug("%s: EOF", s.RemoteAddr())
			return
		}
	}
}

// Return true if the err represents a TCP PIPE or RESET error
func isReset(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}

// Format a time duration
func format(t time.Duration) string {
	u0 := t.Nanoseconds() / 1000
	ma, mf := u0/1000, u0%1000

	if ma == 0 {
		return fmt.Sprintf("%3.3d us", mf)
	}

	return fmt.Sprintf("%d.%3.3d ms", ma, mf)
}
