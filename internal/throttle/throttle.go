// throttle.go -- per-connection read/write token buckets
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// Package throttle builds the rate limits applied to proxied connections:
// byte rate token buckets on each connection and connection admission at
// accept time.
package throttle

import (
	"context"
	"fmt"
	"math"
	"net"

	"golang.org/x/time/rate"
)

// Unlimited is the largest rate or burst a bucket can hold. A configured
// value of 0 means Unlimited.
const Unlimited int64 = math.MaxInt32

// Descriptor is the immutable set of byte limits shared by every
// connection. Each connection gets its own buckets from it.
type Descriptor struct {
	ReadRate   int64
	ReadBurst  int64
	WriteRate  int64
	WriteBurst int64
}

// New makes a descriptor from configured limits in bytes/sec and bytes.
// Zero (or less) means Unlimited; every other value is kept as is.
func New(readRate, readBurst, writeRate, writeBurst int64) *Descriptor {
	return &Descriptor{
		ReadRate:   limit(readRate),
		ReadBurst:  limit(readBurst),
		WriteRate:  limit(writeRate),
		WriteBurst: limit(writeBurst),
	}
}

func limit(v int64) int64 {
	if v <= 0 {
		return Unlimited
	}
	return v
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("read %s/%s, write %s/%s",
		human(d.ReadRate), human(d.ReadBurst), human(d.WriteRate), human(d.WriteBurst))
}

func human(v int64) string {
	if v == Unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", v)
}

// Bucket returns a token bucket for rate 'r' and burst 'b'; it returns
// nil when both are unlimited.
func Bucket(r, b int64) *rate.Limiter {
	if r == Unlimited && b == Unlimited {
		return nil
	}

	lim := rate.Limit(r)
	if r == Unlimited {
		lim = rate.Inf
	}
	return rate.NewLimiter(lim, int(b))
}

// ReadBucket returns a new bucket for the read side of one connection
func (d *Descriptor) ReadBucket() *rate.Limiter {
	return Bucket(d.ReadRate, d.ReadBurst)
}

// WriteBucket returns a new bucket for the write side of one connection
func (d *Descriptor) WriteBucket() *rate.Limiter {
	return Bucket(d.WriteRate, d.WriteBurst)
}

// Conn wraps 'c' so that reads and writes are paced by fresh buckets
// from 'd'. Waits are abandoned when ctx is cancelled.
func (d *Descriptor) Conn(ctx context.Context, c net.Conn) net.Conn {
	rd := d.ReadBucket()
	wr := d.WriteBucket()
	if rd == nil && wr == nil {
		return c
	}

	return &Conn{
		Conn: c,
		ctx:  ctx,
		rd:   rd,
		wr:   wr,
	}
}

// Conn is a rate limited net.Conn
type Conn struct {
	net.Conn

	ctx context.Context
	rd  *rate.Limiter
	wr  *rate.Limiter
}

var _ net.Conn = &Conn{}

// Read reads from the underlying conn and then waits for the bytes to be
// paid for; the caller's buffer is capped at the read burst.
func (c *Conn) Read(b []byte) (int, error) {
	if c.rd != nil && len(b) > c.rd.Burst() {
		b = b[:c.rd.Burst()]
	}

	n, err := c.Conn.Read(b)
	if n > 0 && c.rd != nil {
		if werr := c.rd.WaitN(c.ctx, n); werr != nil && err == nil {
			err = werr
		}
	}
	return n, err
}

// Write pays for each burst sized chunk before writing it
func (c *Conn) Write(b []byte) (int, error) {
	if c.wr == nil {
		return c.Conn.Write(b)
	}

	var z int
	max := c.wr.Burst()
	for len(b) > 0 {
		n := len(b)
		if n > max {
			n = max
		}

		if err := c.wr.WaitN(c.ctx, n); err != nil {
			return z, err
		}

		m, err := c.Conn.Write(b[:n])
		z += m
		if err != nil {
			return z, err
		}
		b = b[n:]
	}
	return z, nil
}

// CloseWrite half-closes the underlying conn if it supports it
func (c *Conn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}
