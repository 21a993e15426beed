// pki_test.go -- mock PKI for tests
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package tlsctx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type pki struct {
	ca     *x509.Certificate
	cakey  *ecdsa.PrivateKey
	serial *big.Int
	dir    string
}

func newPKI(t *testing.T) *pki {
	eckey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ca: can't generate ECC P256 key: %s", err)
	}

	pubkey := eckey.Public().(*ecdsa.PublicKey)
	akid := cksum(pubkey)
	now := time.Now().UTC()

	template := x509.Certificate{
		SignatureAlgorithm: x509.ECDSAWithSHA256,
		PublicKeyAlgorithm: x509.ECDSA,
		SerialNumber:       big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"mock CA"},
			CommonName:   "Mock CA",
		},
		NotBefore:             now.Add(-1 * time.Minute),
		NotAfter:              now.Add(5 * time.Minute),
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,

		SubjectKeyId:   akid,
		AuthorityKeyId: akid,

		KeyUsage: x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, pubkey, eckey)
	if err != nil {
		t.Fatalf("ca: can't create root cert: %s", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ca: %s", err)
	}

	return &pki{
		ca:     cert,
		cakey:  eckey,
		serial: big.NewInt(1),
		dir:    t.TempDir(),
	}
}

// CAFile writes the CA cert and returns its path
func (p *pki) CAFile(t *testing.T) string {
	fn := filepath.Join(p.dir, "ca.pem")
	writePEM(t, fn, "CERTIFICATE", p.ca.Raw, 0644)
	return fn
}

// Issue makes a cert with the given common name and DNS names. It writes
// the cert and key to files and returns their paths. A non-empty passwd
// encrypts the key.
func (p *pki) Issue(t *testing.T, cn string, dns []string, passwd string) (certFile, keyFile string) {
	eckey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("can't generate ECC P256 key: %s", err)
	}

	p.serial = big.NewInt(0).Add(p.serial, big.NewInt(1))
	pubkey := eckey.Public().(*ecdsa.PublicKey)
	now := time.Now().UTC()

	csr := &x509.Certificate{
		SignatureAlgorithm:    x509.ECDSAWithSHA256,
		PublicKeyAlgorithm:    x509.ECDSA,
		NotBefore:             now.Add(-1 * time.Minute),
		NotAfter:              now.Add(5 * time.Minute),
		SerialNumber:          p.serial,
		Issuer:                p.ca.Subject,
		Subject:               pkix.Name{Organization: []string{"mock cert"}, CommonName: cn},
		BasicConstraintsValid: true,
		SubjectKeyId:          cksum(pubkey),
		DNSNames:              dns,

		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyAgreement,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, csr, p.ca, pubkey, p.cakey)
	if err != nil {
		t.Fatalf("cert '%s' can't be created: %s", cn, err)
	}

	kder, err := x509.MarshalECPrivateKey(eckey)
	if err != nil {
		t.Fatalf("can't marshal key: %s", err)
	}

	nm := fmt.Sprintf("%s-%s", cn, p.serial)
	certFile = filepath.Join(p.dir, nm+".crt")
	keyFile = filepath.Join(p.dir, nm+".key")

	writePEM(t, certFile, "CERTIFICATE", der, 0644)
	if len(passwd) == 0 {
		writePEM(t, keyFile, "EC PRIVATE KEY", kder, 0600)
		return
	}

	blk, err := x509.EncryptPEMBlock(rand.Reader, "EC PRIVATE KEY", kder, []byte(passwd), x509.PEMCipherAES256)
	if err != nil {
		t.Fatalf("can't encrypt key: %s", err)
	}
	if err = os.WriteFile(keyFile, pem.EncodeToMemory(blk), 0600); err != nil {
		t.Fatalf("%s", err)
	}
	return
}

func writePEM(t *testing.T, fn, typ string, der []byte, perm os.FileMode) {
	b := pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der})
	if err := os.WriteFile(fn, b, perm); err != nil {
		t.Fatalf("can't write %s: %s", fn, err)
	}
}

// hash publickey; we use it as SubjectKeyId
func cksum(pk *ecdsa.PublicKey) []byte {
	pm := elliptic.Marshal(pk.Curve, pk.X, pk.Y)
	h := sha256.Sum256(pm)
	return h[:]
}
