// tlsctx.go -- build the TLS contexts for the frontend and backend
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// Package tlsctx builds TLS server contexts from the configured key and
// certificate pairs and selects among them by SNI host name. It also
// builds the client context used towards the backend.
package tlsctx

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strings"

	L "github.com/opencoff/go-logger"

	"github.com/opencoff/gofront/internal/config"
)

// Set is the collection of server contexts. It is built once before
// privileges are dropped and only read afterwards.
type Set struct {
	// Default is the primary context; it is nil when the frontend
	// doesn't speak TLS.
	Default *tls.Config

	// One context per subcert in configured order
	Subs []*tls.Config

	// non-nil only when subcerts are configured
	Lookup *Lookup

	// Client is the backend client context or nil
	Client *tls.Config
}

// Len returns the number of server contexts
func (s *Set) Len() int {
	n := len(s.Subs)
	if s.Default != nil {
		n++
	}
	return n
}

// Build makes every server context described by 'c' and the backend
// client context. Any failure is fatal to the caller.
func Build(c *config.Config, log *L.Logger) (*Set, error) {
	s := &Set{}

	cl, err := BuildClient(c, log)
	if err != nil {
		return nil, err
	}
	s.Client = cl

	t := &c.TLS
	if !c.FrontendTLS() {
		if len(t.Subcerts) > 0 {
			log.Warn("frontend TLS is off; ignoring %d subcerts", len(t.Subcerts))
		}
		return s, nil
	}

	base, err := serverBase(c, log)
	if err != nil {
		return nil, err
	}

	passwd := ""
	if len(t.PrivateKeyPasswd) > 0 {
		if passwd, err = ReadPassword(t.PrivateKeyPasswd); err != nil {
			return nil, fmt.Errorf("private key password: %w", err)
		}
	}

	if len(t.Subcerts) > 0 {
		s.Lookup = NewLookup()
	}

	for _, kc := range t.Subcerts {
		ctx, err := newServer(base, kc.Cert, kc.Key, passwd)
		if err != nil {
			return nil, err
		}

		names, err := s.Lookup.Insert(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kc.Cert, err)
		}

		log.Info("subcert %s serves %s", kc.Cert, strings.Join(names, ", "))
		s.Subs = append(s.Subs, ctx)
	}

	def, err := newServer(base, t.Cert, t.PrivateKey, passwd)
	if err != nil {
		return nil, err
	}

	if s.Lookup != nil {
		names, err := s.Lookup.Insert(def)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Cert, err)
		}
		log.Info("cert %s serves %s", t.Cert, strings.Join(names, ", "))

		lk := s.Lookup
		def.GetConfigForClient = func(hi *tls.ClientHelloInfo) (*tls.Config, error) {
			ctx := lk.Select(hi.ServerName)
			if ctx == nil || ctx == def {
				return nil, nil
			}
			return ctx, nil
		}
	}

	s.Default = def
	return s, nil
}

// clone 'base' with the given key pair
func newServer(base *tls.Config, certFile, keyFile, passwd string) (*tls.Config, error) {
	cert, err := LoadKeyPair(certFile, keyFile, passwd)
	if err != nil {
		return nil, err
	}

	ctx := base.Clone()
	ctx.Certificates = []tls.Certificate{cert}
	return ctx, nil
}

// server policy shared by every context
func serverBase(c *config.Config, log *L.Logger) (*tls.Config, error) {
	t := &c.TLS

	ciphers, err := ParseCiphers(t.Ciphers)
	if err != nil {
		return nil, err
	}

	if len(t.DHParamFile) > 0 {
		if err := checkReadable(t.DHParamFile); err != nil {
			return nil, fmt.Errorf("dh-param-file: %w", err)
		}
		log.Warn("dh-param-file %s: finite field DHE is not supported; using ECDHE only", t.DHParamFile)
	}

	base := &tls.Config{
		MinVersion:               tls.VersionTLS12,
		CipherSuites:             ciphers,
		PreferServerCipherSuites: t.HonorCipherOrder,
		NextProtos:               t.NPN,
	}

	if t.VerifyClient {
		pool, err := certPool(t.VerifyClientCA)
		if err != nil {
			return nil, fmt.Errorf("verify-client-cacert: %w", err)
		}
		base.ClientCAs = pool
		base.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return base, nil
}

// BuildClient makes the context for TLS connections to the backend. It
// returns nil when backend connections are plain text.
func BuildClient(c *config.Config, log *L.Logger) (*tls.Config, error) {
	if !c.BackendTLS() {
		return nil, nil
	}

	t := &c.TLS
	ctx := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: t.Insecure,
		ServerName:         t.BackendSNI,
	}

	if len(ctx.ServerName) == 0 && net.ParseIP(c.Backend.Host) == nil {
		ctx.ServerName = c.Backend.Host
	}

	if c.DownstreamHTTP2() {
		ctx.NextProtos = []string{"h2"}
	} else {
		ctx.NextProtos = []string{"http/1.1"}
	}

	if len(t.CACert) > 0 {
		pool, err := certPool(t.CACert)
		if err != nil {
			return nil, fmt.Errorf("cacert: %w", err)
		}
		ctx.RootCAs = pool
	}

	if len(t.ClientCert) > 0 {
		cert, err := LoadKeyPair(t.ClientCert, t.ClientKey, "")
		if err != nil {
			return nil, fmt.Errorf("backend client cert: %w", err)
		}
		ctx.Certificates = []tls.Certificate{cert}
	}

	if t.Insecure {
		log.Warn("backend TLS certificate verification is disabled")
	}
	return ctx, nil
}

// read a CA bundle; an empty name means the system roots
func certPool(fn string) (*x509.CertPool, error) {
	if len(fn) == 0 {
		return x509.SystemCertPool()
	}

	pem, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%s: no certificates found", fn)
	}
	return pool, nil
}

// ParseCiphers turns a ':' or ',' separated list of IANA cipher suite
// names into suite ids. An empty list selects the library defaults.
func ParseCiphers(s string) ([]uint16, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return nil, nil
	}

	known := make(map[string]uint16)
	for _, cs := range tls.CipherSuites() {
		known[cs.Name] = cs.ID
	}
	for _, cs := range tls.InsecureCipherSuites() {
		known[cs.Name] = cs.ID
	}

	var ids []uint16
	for _, nm := range strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == ',' }) {
		id, ok := known[strings.ToUpper(strings.TrimSpace(nm))]
		if !ok {
			return nil, fmt.Errorf("unknown cipher suite %q", nm)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
