// load.go -- merge defaults, config file and command line into a Config
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	yaml "gopkg.in/yaml.v2"
)

// Source name for command line entries
const CmdLine = "cmdline"

var (
	ErrModeConflict   = errors.New("--http2-proxy, --http2-bridge, --client-proxy and --client cannot be used at the same time")
	ErrFamilyConflict = errors.New("--backend-ipv4 and --backend-ipv6 cannot be used at the same time")
	ErrMissingTLS     = errors.New("private key and certificate are required unless --client, --client-proxy or --frontend-no-tls is used")
)

// Load builds the configuration: defaults first, then the config file at
// 'fn' (if it exists), then 'cli' in order. The result is validated and
// must not be modified by the caller.
func Load(fn string, cli []Entry) (*Config, error) {
	c := Defaults()

	if len(fn) > 0 && Exists(fn) {
		ents, err := ReadFile(fn)
		if err != nil {
			return nil, err
		}
		if err = c.Apply(ents); err != nil {
			return nil, err
		}
	}

	if err := c.Apply(cli); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply sets each entry in order and stops at the first failure
func (c *Config) Apply(ents []Entry) error {
	for _, e := range ents {
		if err := c.Set(e.Key, e.Value); err != nil {
			src := e.Source
			if len(src) == 0 {
				src = CmdLine
			}
			return &ParseError{Source: src, Line: e.Line, Err: err}
		}
	}
	return nil
}

// Exists returns true if 'fn' names a regular file or a symbolic link.
// A dangling link "exists" and fails later when read.
func Exists(fn string) bool {
	fi, err := os.Lstat(fn)
	if err != nil {
		return false
	}

	m := fi.Mode()
	return m.IsRegular() || m&os.ModeSymlink != 0
}

// ReadFile reads a config file and returns its entries in file order.
// The format is chosen by extension: .yml/.yaml, .toml or key=value.
func ReadFile(fn string) ([]Entry, error) {
	buf, err := os.ReadFile(fn)
	if err != nil {
		return nil, fmt.Errorf("can't read config file %s: %w", fn, err)
	}

	switch strings.ToLower(filepath.Ext(fn)) {
	case ".yml", ".yaml":
		return parseYAML(fn, buf)
	case ".toml":
		return parseTOML(fn, buf)
	}

	s := NewScanner(bytes.NewReader(buf), fn)
	return s.All()
}

func parseYAML(fn string, buf []byte) ([]Entry, error) {
	var ms yaml.MapSlice

	if err := yaml.Unmarshal(buf, &ms); err != nil {
		return nil, &ParseError{Source: fn, Err: err}
	}

	var ents []Entry
	for _, it := range ms {
		key, ok := it.Key.(string)
		if !ok {
			return nil, &ParseError{Source: fn, Message: fmt.Sprintf("key %v is not a string", it.Key)}
		}

		v, err := flatten(fn, key, it.Value)
		if err != nil {
			return nil, err
		}
		ents = append(ents, v...)
	}
	return ents, nil
}

func parseTOML(fn string, buf []byte) ([]Entry, error) {
	var m map[string]interface{}

	md, err := toml.Decode(string(buf), &m)
	if err != nil {
		return nil, &ParseError{Source: fn, Err: err}
	}

	var ents []Entry
	for _, k := range md.Keys() {
		// nested keys are rejected when their parent table is flattened
		if len(k) != 1 {
			continue
		}

		key := k[0]
		v, err := flatten(fn, key, m[key])
		if err != nil {
			return nil, err
		}
		ents = append(ents, v...)
	}
	return ents, nil
}

// turn a decoded scalar or list into one or more entries for 'key'
func flatten(fn, key string, val interface{}) ([]Entry, error) {
	mk := func(s string) Entry {
		return Entry{Key: key, Value: s, Source: fn}
	}

	switch v := val.(type) {
	case nil:
		return nil, &ParseError{Source: fn, Message: fmt.Sprintf("%s: missing value", key)}
	case bool:
		if v {
			return []Entry{mk("yes")}, nil
		}
		return []Entry{mk("no")}, nil
	case string:
		return []Entry{mk(v)}, nil
	case int, int64, uint64:
		return []Entry{mk(fmt.Sprintf("%d", v))}, nil
	case []interface{}:
		var ents []Entry
		for _, x := range v {
			e, err := flatten(fn, key, x)
			if err != nil {
				return nil, err
			}
			ents = append(ents, e...)
		}
		return ents, nil
	}
	return nil, &ParseError{Source: fn, Message: fmt.Sprintf("%s: unsupported value %v", key, val)}
}

// Validate performs the cross-field checks that can only run once every
// setting is known.
func (c *Config) Validate() error {
	m := &c.Mode
	n := 0
	for _, b := range []bool{m.HTTP2Proxy, m.HTTP2Bridge, m.ClientProxy, m.Client} {
		if b {
			n++
		}
	}
	if n > 1 {
		return ErrModeConflict
	}

	if c.BackendIPv4 && c.BackendIPv6 {
		return ErrFamilyConflict
	}

	t := &c.TLS
	if c.FrontendTLS() {
		if len(t.PrivateKey) == 0 || len(t.Cert) == 0 {
			return ErrMissingTLS
		}
	} else if t.VerifyClient {
		return errors.New("--verify-client needs TLS on the frontend")
	}

	if (len(t.ClientKey) > 0) != (len(t.ClientCert) > 0) {
		return errors.New("--client-private-key-file and --client-cert-file must be used together")
	}

	if c.FrontendQuic && !c.FrontendTLS() {
		return errors.New("--frontend-quic needs TLS on the frontend")
	}

	if len(t.NPN) == 0 {
		t.NPN = []string{"h2", "http/1.1"}
	}
	return nil
}
