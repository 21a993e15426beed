// keypair.go -- load certs and password protected keys; this is largely a
// copy of crypto/tls.go
//
// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//
// Changes made by Sudhi Herle:
//   * add password support for loading private keys
//   * keep the parsed leaf; SNI lookup needs its names
//   * accept ed25519 keys
//
// Only this file is licensed under different terms as above.

package tlsctx

import (
	"bufio"
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// LoadKeyPair reads and parses a public/private key pair from a pair
// of files. If 'passwd' is non-empty, it is used to decrypt the keyfile.
// The files must contain PEM encoded data. The certificate file may
// contain intermediate certificates following the leaf certificate to
// form a certificate chain. On success Certificate.Leaf is set.
func LoadKeyPair(certFile, keyFile, passwd string) (tls.Certificate, error) {
	if err := checkKeyFile(keyFile); err != nil {
		return tls.Certificate{}, err
	}

	certBytes, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyBytes, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	cert, err := KeyPair(certBytes, keyBytes, passwd)
	if err != nil {
		return cert, fmt.Errorf("%s, %s: %w", certFile, keyFile, err)
	}
	return cert, nil
}

// KeyPair parses a public/private key pair from a pair of PEM encoded
// blobs.
func KeyPair(certBytes, keyBytes []byte, passwd string) (tls.Certificate, error) {
	fail := func(err error) (tls.Certificate, error) { return tls.Certificate{}, err }

	var cert tls.Certificate
	var skipped []string
	for {
		var certPem *pem.Block
		certPem, certBytes = pem.Decode(certBytes)
		if certPem == nil {
			break
		}
		if certPem.Type == "CERTIFICATE" {
			cert.Certificate = append(cert.Certificate, certPem.Bytes)
		} else {
			skipped = append(skipped, certPem.Type)
		}
	}

	if len(cert.Certificate) == 0 {
		if len(skipped) == 0 {
			return fail(errors.New("tls: failed to find any PEM data in certificate input"))
		}
		if len(skipped) == 1 && strings.HasSuffix(skipped[0], "PRIVATE KEY") {
			return fail(errors.New("tls: failed to find certificate PEM data in certificate input, but did find a private key; PEM inputs may have been switched"))
		}
		return fail(fmt.Errorf("tls: failed to find \"CERTIFICATE\" PEM block in certificate input after skipping PEM blocks of the following types: %v", skipped))
	}

	skipped = skipped[:0]
	var keyPem *pem.Block
	for {
		keyPem, keyBytes = pem.Decode(keyBytes)
		if keyPem == nil {
			if len(skipped) == 0 {
				return fail(errors.New("tls: failed to find any PEM data in key input"))
			}
			if len(skipped) == 1 && skipped[0] == "CERTIFICATE" {
				return fail(errors.New("tls: found a certificate rather than a key in the PEM for the private key"))
			}
			return fail(fmt.Errorf("tls: failed to find PEM block with type ending in \"PRIVATE KEY\" in key input after skipping PEM blocks of the following types: %v", skipped))
		}
		if keyPem.Type == "PRIVATE KEY" || strings.HasSuffix(keyPem.Type, " PRIVATE KEY") {
			break
		}
		skipped = append(skipped, keyPem.Type)
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fail(err)
	}

	rawkey := keyPem.Bytes

	if x509.IsEncryptedPEMBlock(keyPem) {
		if len(passwd) == 0 {
			return fail(errors.New("tls: private key is encrypted and no password was given"))
		}

		rawkey, err = x509.DecryptPEMBlock(keyPem, []byte(passwd))
		if err != nil {
			return fail(err)
		}
	}

	cert.PrivateKey, err = parsePrivateKey(rawkey)
	if err != nil {
		return fail(err)
	}

	if err = matchKey(leaf, cert.PrivateKey); err != nil {
		return fail(err)
	}

	cert.Leaf = leaf
	return cert, nil
}

// verify that the private key belongs to the leaf cert
func matchKey(leaf *x509.Certificate, pk crypto.PrivateKey) error {
	mismatch := errors.New("tls: private key does not match public key")
	badtype := errors.New("tls: private key type does not match public key type")

	switch pub := leaf.PublicKey.(type) {
	case *rsa.PublicKey:
		priv, ok := pk.(*rsa.PrivateKey)
		if !ok {
			return badtype
		}
		if pub.N.Cmp(priv.N) != 0 {
			return mismatch
		}
	case *ecdsa.PublicKey:
		priv, ok := pk.(*ecdsa.PrivateKey)
		if !ok {
			return badtype
		}
		if pub.X.Cmp(priv.X) != 0 || pub.Y.Cmp(priv.Y) != 0 {
			return mismatch
		}
	case ed25519.PublicKey:
		priv, ok := pk.(ed25519.PrivateKey)
		if !ok {
			return badtype
		}
		if !bytes.Equal(priv.Public().(ed25519.PublicKey), pub) {
			return mismatch
		}
	default:
		return errors.New("tls: unknown public key algorithm")
	}
	return nil
}

// Attempt to parse the given private key DER block. OpenSSL 0.9.8 generates
// PKCS#1 private keys by default, while OpenSSL 1.0.0 generates PKCS#8 keys.
// OpenSSL ecparam generates SEC1 EC private keys for ECDSA. We try all three.
func parsePrivateKey(der []byte) (crypto.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		switch key := key.(type) {
		case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
			return key, nil
		default:
			return nil, errors.New("tls: found unknown private key type in PKCS#8 wrapping")
		}
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}

	return nil, errors.New("tls: failed to parse private key")
}

// ReadPassword returns the first line of 'fn'
func ReadPassword(fn string) (string, error) {
	if err := checkKeyFile(fn); err != nil {
		return "", err
	}

	fd, err := os.Open(fn)
	if err != nil {
		return "", err
	}
	defer fd.Close()

	s := bufio.NewScanner(fd)
	if !s.Scan() {
		if err = s.Err(); err != nil {
			return "", fmt.Errorf("%s: %w", fn, err)
		}
		return "", fmt.Errorf("%s: empty password file", fn)
	}
	return strings.TrimRight(s.Text(), "\r"), nil
}
