// resolve.go -- hostname to socket address resolution
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// Package resolve turns host/port pairs into concrete socket addresses
// restricted to an address family.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	L "github.com/opencoff/go-logger"
)

// Family selects the address family used for resolution. The zero value
// means "any family".
type Family int

const (
	Any Family = iota
	IPv4
	IPv6
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "any"
	}
}

// Network returns the name used by the system resolver: "ip", "ip4" or "ip6"
func (f Family) Network() string {
	switch f {
	case IPv4:
		return "ip4"
	case IPv6:
		return "ip6"
	default:
		return "ip"
	}
}

// Address is a resolved socket address. It is never modified after
// creation.
type Address struct {
	Family Family
	netip.AddrPort
}

// Network returns the stream network name for this address
func (a Address) Network() string {
	if a.Family == IPv6 {
		return "tcp6"
	}
	return "tcp4"
}

// TCPAddr returns the address in the form the net package wants
func (a Address) TCPAddr() *net.TCPAddr {
	return net.TCPAddrFromAddrPort(a.AddrPort)
}

// Valid returns true if this address was produced by a resolver
func (a Address) Valid() bool {
	return a.AddrPort.IsValid()
}

// LookupFunc is the system lookup primitive; network is one of "ip", "ip4"
// or "ip6".
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// Resolver resolves names via the system resolver.
type Resolver struct {
	lookup LookupFunc
	log    *L.Logger
}

var (
	ErrNoAddress = errors.New("no address of the requested family")
)

// New makes a resolver backed by the system resolver
func New(log *L.Logger) *Resolver {
	return NewWithLookup(net.DefaultResolver.LookupNetIP, log)
}

// NewWithLookup makes a resolver that uses 'fp' for name lookups
func NewWithLookup(fp LookupFunc, log *L.Logger) *Resolver {
	return &Resolver{
		lookup: fp,
		log:    log,
	}
}

// Resolve resolves host:port to exactly one address of family 'fam'. The
// first result of the lookup wins.
func (r *Resolver) Resolve(ctx context.Context, host string, port uint16, fam Family) (Address, error) {
	addrs, err := r.candidates(ctx, host, port, fam)
	if err != nil {
		return Address{}, err
	}

	a := addrs[0]
	r.log.Info("Address resolution for %s succeeded: %s", host, a.Addr())
	return a, nil
}

// ResolvePassive returns every candidate address suitable for a listening
// socket of family 'fam'. Wildcard hosts map to the family's unspecified
// address.
func (r *Resolver) ResolvePassive(ctx context.Context, host string, port uint16, fam Family) ([]Address, error) {
	if isWildcard(host) {
		var ip netip.Addr
		switch fam {
		case IPv4:
			ip = netip.IPv4Unspecified()
		case IPv6:
			ip = netip.IPv6Unspecified()
		default:
			return nil, fmt.Errorf("%s: passive lookup needs an address family", host)
		}
		return []Address{{Family: fam, AddrPort: netip.AddrPortFrom(ip, port)}}, nil
	}
	return r.candidates(ctx, host, port, fam)
}

func (r *Resolver) candidates(ctx context.Context, host string, port uint16, fam Family) ([]Address, error) {
	ips, err := r.lookup(ctx, fam.Network(), host)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve %s for %s: %w", fam.Network(), host, err)
	}

	var addrs []Address
	for _, ip := range ips {
		ip = ip.Unmap()
		f := IPv4
		if ip.Is6() {
			f = IPv6
		}
		if fam != Any && f != fam {
			continue
		}
		addrs = append(addrs, Address{
			Family:   f,
			AddrPort: netip.AddrPortFrom(ip, port),
		})
	}

	if len(addrs) == 0 {
		return nil, fmt.Errorf("%s: %w (%s)", host, ErrNoAddress, fam)
	}
	return addrs, nil
}

func isWildcard(host string) bool {
	switch host {
	case "", "*", "0.0.0.0", "::":
		return true
	}
	return false
}

// HostPort formats host and port, bracketing numeric IPv6 hosts
func HostPort(host string, port uint16) string {
	return net.JoinHostPort(host, fmt.Sprintf("%d", port))
}
