// admission.go -- accept time connection admission
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package throttle

import (
	"fmt"
	"net"

	"github.com/opencoff/go-ratelimit"
)

// number of remote hosts tracked by the per-host limiter
const hostCache = 10000

// Admission decides whether a freshly accepted connection may proceed.
// A nil *Admission admits everything.
type Admission struct {
	global  int
	perHost int

	rl *ratelimit.Limiter
}

// NewAdmission makes an admission check for 'global' conns/sec in total
// and 'perHost' conns/sec from each remote host. global == 0 disables the
// check; perHost == 0 leaves only the global limit.
func NewAdmission(global, perHost int) (*Admission, error) {
	if global <= 0 {
		return nil, nil
	}

	if perHost <= 0 || perHost > global {
		perHost = global
	}

	rl, err := ratelimit.New(global, perHost, hostCache)
	if err != nil {
		return nil, fmt.Errorf("can't create ratelimiter: %w", err)
	}

	a := &Admission{
		global:  global,
		perHost: perHost,
		rl:      rl,
	}
	return a, nil
}

// Allow returns nil if 'peer' may connect now and an error naming the
// limit that was hit otherwise.
func (a *Admission) Allow(peer net.Addr) error {
	if a == nil {
		return nil
	}

	// First enforce a global ratelimit
	if !a.rl.Allow() {
		return fmt.Errorf("%s: global ratelimit %d/s reached", peer, a.global)
	}

	// Then a per-host ratelimit
	if !a.rl.AllowHost(peer) {
		return fmt.Errorf("%s: per-host ratelimit %d/s reached", peer, a.perHost)
	}
	return nil
}

func (a *Admission) String() string {
	if a == nil {
		return "unlimited"
	}
	return fmt.Sprintf("%d/s global, %d/s per-host", a.global, a.perHost)
}
