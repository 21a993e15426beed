// lookup.go -- SNI hostname to TLS context selection
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package tlsctx

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Lookup maps SNI host names to server contexts. Names are matched
// without regard to case; a "*.example.com" entry matches exactly one
// leading label. The first context inserted for a name keeps it.
type Lookup struct {
	exact map[string]*tls.Config

	// keyed by the suffix after "*."
	wild map[string]*tls.Config
}

// NewLookup makes an empty lookup
func NewLookup() *Lookup {
	return &Lookup{
		exact: make(map[string]*tls.Config),
		wild:  make(map[string]*tls.Config),
	}
}

// Hostnames returns the names a certificate is valid for: its DNS SANs or,
// failing that, the subject common name.
func Hostnames(c *x509.Certificate) []string {
	if len(c.DNSNames) > 0 {
		return c.DNSNames
	}
	if cn := c.Subject.CommonName; len(cn) > 0 {
		return []string{cn}
	}
	return nil
}

// Insert adds 'ctx' under every host name in its leaf certificate and
// returns the names that were added.
func (l *Lookup) Insert(ctx *tls.Config) ([]string, error) {
	if len(ctx.Certificates) == 0 || ctx.Certificates[0].Leaf == nil {
		return nil, errors.New("sni: context has no parsed certificate")
	}

	leaf := ctx.Certificates[0].Leaf
	names := Hostnames(leaf)
	if len(names) == 0 {
		return nil, fmt.Errorf("sni: certificate %q has no host names", leaf.Subject)
	}

	var added []string
	for _, nm := range names {
		nm = strings.ToLower(strings.TrimSuffix(nm, "."))
		if len(nm) == 0 {
			continue
		}

		m := l.exact
		key := nm
		if strings.HasPrefix(nm, "*.") {
			m = l.wild
			key = nm[2:]
		}

		if _, ok := m[key]; ok {
			continue
		}
		m[key] = ctx
		added = append(added, nm)
	}
	return added, nil
}

// Select returns the context for 'host' or nil if none matches
func (l *Lookup) Select(host string) *tls.Config {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if len(host) == 0 {
		return nil
	}

	if ctx, ok := l.exact[host]; ok {
		return ctx
	}

	if i := strings.IndexByte(host, '.'); i > 0 {
		if ctx, ok := l.wild[host[i+1:]]; ok {
			return ctx
		}
	}
	return nil
}

// Names returns every inserted name in sorted order
func (l *Lookup) Names() []string {
	var v []string
	for k := range l.exact {
		v = append(v, k)
	}
	for k := range l.wild {
		v = append(v, "*."+k)
	}
	sort.Strings(v)
	return v
}

// Len returns the number of inserted names
func (l *Lookup) Len() int {
	return len(l.exact) + len(l.wild)
}
