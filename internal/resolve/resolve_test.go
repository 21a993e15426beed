// resolve_test.go -- tests for address resolution
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package resolve

import (
	"context"
	"errors"
	"net/netip"
	"testing"
)

type fakeDNS map[string][]netip.Addr

func (f fakeDNS) lookup(_ context.Context, network, host string) ([]netip.Addr, error) {
	v, ok := f[network+"/"+host]
	if !ok {
		return nil, errors.New("no such host")
	}
	return v, nil
}

func mustAddrs(s ...string) []netip.Addr {
	var v []netip.Addr
	for _, a := range s {
		v = append(v, netip.MustParseAddr(a))
	}
	return v
}

func TestResolveFirst(t *testing.T) {
	assert := newAsserter(t)

	dns := fakeDNS{
		"ip/backend.example":  mustAddrs("10.0.0.1", "2001:db8::1"),
		"ip6/backend.example": mustAddrs("2001:db8::1", "2001:db8::2"),
		"ip4/backend.example": mustAddrs("10.0.0.1"),
	}
	r := NewWithLookup(dns.lookup, newLogger(t))
	ctx := context.Background()

	a, err := r.Resolve(ctx, "backend.example", 80, Any)
	assert(err == nil, "resolve any: %s", err)
	assert(a.Family == IPv4, "any: exp IPv4, saw %s", a.Family)
	assert(a.String() == "10.0.0.1:80", "any: saw %s", a)
	assert(a.Network() == "tcp4", "network: saw %s", a.Network())

	a, err = r.Resolve(ctx, "backend.example", 443, IPv6)
	assert(err == nil, "resolve v6: %s", err)
	assert(a.Family == IPv6, "v6: saw %s", a.Family)
	assert(a.String() == "[2001:db8::1]:443", "v6: saw %s", a)
	assert(a.Network() == "tcp6", "network: saw %s", a.Network())
	assert(a.Valid(), "v6 address not valid")
}

func TestResolveFailure(t *testing.T) {
	assert := newAsserter(t)

	dns := fakeDNS{
		"ip4/v6only.example": mustAddrs("::ffff:10.1.1.1"),
		"ip6/v4only.example": mustAddrs("10.1.1.1"),
	}
	r := NewWithLookup(dns.lookup, newLogger(t))
	ctx := context.Background()

	_, err := r.Resolve(ctx, "missing.example", 80, Any)
	assert(err != nil, "unknown host resolved")

	// a mapped v4 address is still v4
	a, err := r.Resolve(ctx, "v6only.example", 80, IPv4)
	assert(err == nil, "mapped v4: %s", err)
	assert(a.Addr().Is4(), "mapped v4 not unmapped: %s", a)

	_, err = r.Resolve(ctx, "v4only.example", 80, IPv6)
	assert(errors.Is(err, ErrNoAddress), "family filter: exp ErrNoAddress, saw %v", err)
}

func TestResolvePassive(t *testing.T) {
	assert := newAsserter(t)

	dns := fakeDNS{
		"ip6/localhost": mustAddrs("::1"),
		"ip4/localhost": mustAddrs("127.0.0.1", "127.0.0.2"),
	}
	r := NewWithLookup(dns.lookup, newLogger(t))
	ctx := context.Background()

	for _, h := range []string{"", "*", "0.0.0.0", "::"} {
		v6, err := r.ResolvePassive(ctx, h, 3000, IPv6)
		assert(err == nil, "%q v6: %s", h, err)
		assert(len(v6) == 1 && v6[0].String() == "[::]:3000", "%q v6: saw %v", h, v6)

		v4, err := r.ResolvePassive(ctx, h, 3000, IPv4)
		assert(err == nil, "%q v4: %s", h, err)
		assert(len(v4) == 1 && v4[0].String() == "0.0.0.0:3000", "%q v4: saw %v", h, v4)
	}

	v4, err := r.ResolvePassive(ctx, "localhost", 8443, IPv4)
	assert(err == nil, "localhost v4: %s", err)
	assert(len(v4) == 2, "localhost v4: exp 2 candidates, saw %d", len(v4))

	_, err = r.ResolvePassive(ctx, "*", 8443, Any)
	assert(err != nil, "wildcard without family accepted")
}

func TestHostPort(t *testing.T) {
	assert := newAsserter(t)

	assert(HostPort("::1", 443) == "[::1]:443", "v6: %s", HostPort("::1", 443))
	assert(HostPort("example.com", 80) == "example.com:80", "name: %s", HostPort("example.com", 80))
}
