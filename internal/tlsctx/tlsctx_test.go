// tlsctx_test.go -- tests for TLS context construction and SNI lookup
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package tlsctx

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencoff/gofront/internal/config"
)

func tlsConfig(t *testing.T, kv ...string) *config.Config {
	c := config.Defaults()
	for i := 0; i+1 < len(kv); i += 2 {
		if err := c.Set(kv[i], kv[i+1]); err != nil {
			t.Fatalf("set %s: %s", kv[i], err)
		}
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %s", err)
	}
	return c
}

func TestSubcertLookup(t *testing.T) {
	assert := newAsserter(t)
	log := newLogger(t)
	p := newPKI(t)

	c1, k1 := p.Issue(t, "a.example.com", []string{"a.example.com", "*.a.example.com"}, "")
	c2, k2 := p.Issue(t, "b.example.com", []string{"b.example.com"}, "")
	c0, k0 := p.Issue(t, "default.example.com", nil, "")

	c := tlsConfig(t,
		config.OptPrivateKeyFile, k0,
		config.OptCertificateFile, c0,
		config.OptSubcert, k1+":"+c1,
		config.OptSubcert, k2+":"+c2)

	s, err := Build(c, log)
	assert(err == nil, "build: %s", err)
	assert(s.Len() == 3, "exp 3 contexts, saw %d", s.Len())
	assert(s.Lookup != nil, "lookup missing")

	names := strings.Join(s.Lookup.Names(), ",")
	exp := "*.a.example.com,a.example.com,b.example.com,default.example.com"
	assert(names == exp, "names: exp %s, saw %s", exp, names)

	assert(s.Lookup.Select("B.Example.COM") == s.Subs[1], "b selects sub 1")
	assert(s.Lookup.Select("x.a.example.com") == s.Subs[0], "wildcard selects sub 0")
	assert(s.Lookup.Select("y.x.a.example.com") == nil, "wildcard spans one label")
	assert(s.Lookup.Select("default.example.com") == s.Default, "primary participates")
	assert(s.Lookup.Select("") == nil, "empty name")

	gc := s.Default.GetConfigForClient
	assert(gc != nil, "default must select by SNI")
	x, err := gc(&tls.ClientHelloInfo{ServerName: "b.example.com"})
	assert(err == nil && x == s.Subs[1], "hello b: %v", err)
	x, err = gc(&tls.ClientHelloInfo{ServerName: "nosuch.example.com"})
	assert(err == nil && x == nil, "unknown name falls back to default")

	assert(strings.Join(s.Default.NextProtos, ",") == "h2,http/1.1", "npn %v", s.Default.NextProtos)
	assert(s.Client == nil, "default mode has no backend TLS")
}

func TestPrimaryOnly(t *testing.T) {
	assert := newAsserter(t)
	p := newPKI(t)

	cf, kf := p.Issue(t, "only.example.com", []string{"only.example.com"}, "")
	c := tlsConfig(t, config.OptPrivateKeyFile, kf, config.OptCertificateFile, cf)

	s, err := Build(c, newLogger(t))
	assert(err == nil, "build: %s", err)
	assert(s.Len() == 1, "exp 1 context, saw %d", s.Len())
	assert(s.Lookup == nil, "no lookup without subcerts")
	assert(s.Default.GetConfigForClient == nil, "no SNI selection")
	assert(s.Default.Certificates[0].Leaf != nil, "leaf not kept")

	// no frontend TLS: nothing to build
	c = tlsConfig(t, config.OptFrontendNoTLS, "yes")
	s, err = Build(c, newLogger(t))
	assert(err == nil && s.Len() == 0, "no-tls: %d %v", s.Len(), err)
}

func TestEncryptedKey(t *testing.T) {
	assert := newAsserter(t)
	p := newPKI(t)

	cf, kf := p.Issue(t, "enc.example.com", nil, "s3cret")
	pw := filepath.Join(t.TempDir(), "pw")
	assert(os.WriteFile(pw, []byte("s3cret\n"), 0600) == nil, "write pw")

	c := tlsConfig(t,
		config.OptPrivateKeyFile, kf,
		config.OptCertificateFile, cf,
		config.OptPrivateKeyPasswdFile, pw)

	s, err := Build(c, newLogger(t))
	assert(err == nil, "build: %s", err)
	assert(s.Len() == 1, "contexts %d", s.Len())

	_, err = LoadKeyPair(cf, kf, "")
	assert(err != nil, "encrypted key loaded without password")

	_, err = LoadKeyPair(cf, kf, "wrong")
	assert(err != nil, "encrypted key loaded with wrong password")
}

func TestBuildFailures(t *testing.T) {
	assert := newAsserter(t)
	p := newPKI(t)

	cf, kf := p.Issue(t, "x.example.com", nil, "")
	c2, k2 := p.Issue(t, "y.example.com", nil, "")

	// mismatched key
	_, err := LoadKeyPair(cf, k2, "")
	assert(err != nil, "mismatched pair loaded")

	// group readable key
	assert(os.Chmod(kf, 0640) == nil, "chmod")
	_, err = LoadKeyPair(cf, kf, "")
	assert(err != nil && strings.Contains(err.Error(), "insecure"), "insecure key: %v", err)
	assert(os.Chmod(kf, 0600) == nil, "chmod")

	// missing subcert file is fatal
	c := tlsConfig(t,
		config.OptPrivateKeyFile, kf,
		config.OptCertificateFile, cf,
		config.OptSubcert, k2+":"+c2+".missing")
	_, err = Build(c, newLogger(t))
	assert(err != nil, "missing subcert accepted")

	// unknown cipher
	c = tlsConfig(t,
		config.OptPrivateKeyFile, kf,
		config.OptCertificateFile, cf,
		config.OptCiphers, "TLS_NOPE")
	_, err = Build(c, newLogger(t))
	assert(err != nil, "bad cipher accepted")

	// unreadable dh params
	c = tlsConfig(t,
		config.OptPrivateKeyFile, kf,
		config.OptCertificateFile, cf,
		config.OptDHParamFile, filepath.Join(t.TempDir(), "dh.pem"))
	_, err = Build(c, newLogger(t))
	assert(err != nil, "missing dh params accepted")
}

func TestCiphers(t *testing.T) {
	assert := newAsserter(t)

	ids, err := ParseCiphers("")
	assert(err == nil && ids == nil, "empty list")

	ids, err = ParseCiphers("TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256:tls_ecdhe_rsa_with_aes_256_gcm_sha384")
	assert(err == nil, "parse: %s", err)
	assert(len(ids) == 2, "ids %d", len(ids))
	assert(ids[0] == tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256, "id 0 %x", ids[0])
	assert(ids[1] == tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384, "id 1 %x", ids[1])
}

func TestClientContext(t *testing.T) {
	assert := newAsserter(t)
	p := newPKI(t)

	ca := p.CAFile(t)
	cf, kf := p.Issue(t, "client.example.com", nil, "")

	c := tlsConfig(t,
		config.OptClient, "yes",
		config.OptBackend, "origin.example.com,443",
		config.OptCACert, ca,
		config.OptClientCertFile, cf,
		config.OptClientPrivateKeyFile, kf)

	s, err := Build(c, newLogger(t))
	assert(err == nil, "build: %s", err)
	assert(s.Default == nil, "client mode has no server context")

	cl := s.Client
	assert(cl != nil, "client context missing")
	assert(cl.ServerName == "origin.example.com", "sni %s", cl.ServerName)
	assert(cl.RootCAs != nil, "root CAs")
	assert(len(cl.Certificates) == 1, "client cert")
	assert(cl.NextProtos[0] == "h2", "alpn %v", cl.NextProtos)

	c = tlsConfig(t,
		config.OptClient, "yes",
		config.OptBackend, "10.1.1.1,443",
		config.OptBackendTLSSNIField, "sni.example.com",
		config.OptInsecure, "yes")
	cl, err = BuildClient(c, newLogger(t))
	assert(err == nil, "build client: %s", err)
	assert(cl.ServerName == "sni.example.com", "sni %s", cl.ServerName)
	assert(cl.InsecureSkipVerify, "insecure")

	c = tlsConfig(t, config.OptClient, "yes", config.OptBackendNoTLS, "yes")
	cl, err = BuildClient(c, newLogger(t))
	assert(err == nil && cl == nil, "backend-no-tls: %v", err)
}
