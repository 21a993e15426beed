// config.go -- resolved runtime configuration
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// Package config holds the process configuration and the pipeline that
// builds it from compiled-in defaults, a config file and command line
// overrides.
//
// A *Config returned by Load is never written again; every other package
// treats it as read-only and shares it by reference.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/opencoff/gofront/internal/resolve"
)

// DefaultPath is where the config file is looked up if none is given
const DefaultPath = "/etc/gofront/gofront.conf"

// HostPort is a host name or numeric address and a port
type HostPort struct {
	Host string
	Port uint16
}

func (h HostPort) String() string {
	return resolve.HostPort(h.Host, h.Port)
}

// List of various timeouts
type Timeouts struct {
	FrontendHTTP2Read time.Duration
	FrontendRead      time.Duration
	FrontendWrite     time.Duration
	BackendRead       time.Duration
	BackendWrite      time.Duration
	BackendKeepAlive  time.Duration
}

// KeyCert is a private key file and its certificate file
type KeyCert struct {
	Key  string
	Cert string
}

// TLS material and policy for both sides of the proxy
type TLS struct {
	PrivateKey       string
	PrivateKeyPasswd string // path to a file holding the key password
	Cert             string

	// additional certs selected via SNI
	Subcerts []KeyCert

	Ciphers          string
	HonorCipherOrder bool
	DHParamFile      string
	NPN              []string

	VerifyClient   bool
	VerifyClientCA string

	// backend client auth and verification
	ClientKey  string
	ClientCert string
	CACert     string
	Insecure   bool
	BackendSNI string

	FrontendNoTLS bool
	BackendNoTLS  bool
}

// HTTP2 tuning knobs; only range checked here.
type HTTP2 struct {
	MaxConcurrentStreams int
	FrontendWindowBits   int
	BackendWindowBits    int
	AddXForwardedFor     bool
	NoVia                bool
}

// RateLimit holds the per-connection token bucket settings in bytes/sec and
// bytes. 0 means unlimited.
type RateLimit struct {
	ReadRate   int64
	ReadBurst  int64
	WriteRate  int64
	WriteBurst int64

	// accept-time admission in conns/sec; 0 disables the check
	AcceptRate        int
	AcceptRatePerHost int
}

// Process level settings
type Process struct {
	Daemon  bool
	User    string
	Uid     int
	Gid     int
	PidFile string
	Workers int

	LogLevel       string
	Syslog         bool
	SyslogFacility string
	AccessLog      bool
}

// Mode flags; at most one may be set
type Mode struct {
	HTTP2Proxy  bool
	HTTP2Bridge bool
	ClientProxy bool
	Client      bool
}

// HTTPProxy is the optional proxy used to tunnel backend connections
type HTTPProxy struct {
	URI      string
	UserInfo string
	HostPort
}

// Config is the fully merged configuration
type Config struct {
	Frontend     HostPort
	Backlog      int
	FrontendQuic bool

	Backend      HostPort
	BackendIPv4  bool
	BackendIPv6  bool
	BackendProxy *HTTPProxy

	Timeout   Timeouts
	TLS       TLS
	HTTP2     HTTP2
	Ratelimit RateLimit
	Process   Process
	Mode      Mode
}

// Defaults returns a new config with the compiled-in defaults
func Defaults() *Config {
	return &Config{
		Frontend: HostPort{"0.0.0.0", 3000},
		Backlog:  256,
		Backend:  HostPort{"127.0.0.1", 80},

		Timeout: Timeouts{
			FrontendHTTP2Read: 180 * time.Second,
			FrontendRead:      180 * time.Second,
			FrontendWrite:     60 * time.Second,
			BackendRead:       900 * time.Second,
			BackendWrite:      60 * time.Second,
			BackendKeepAlive:  60 * time.Second,
		},

		HTTP2: HTTP2{
			MaxConcurrentStreams: 100,
			FrontendWindowBits:   16,
			BackendWindowBits:    16,
		},

		Ratelimit: RateLimit{
			ReadRate:   1024 * 1024,
			ReadBurst:  4 * 1024 * 1024,
			AcceptRate: 1000,
		},

		Process: Process{
			Workers:        1,
			LogLevel:       "WARNING",
			SyslogFacility: "daemon",
		},
	}
}

// ClientMode is true if the frontend speaks plain text and the backend
// is reached as a client (--client or --client-proxy)
func (c *Config) ClientMode() bool {
	return c.Mode.Client || c.Mode.ClientProxy
}

// DownstreamHTTP2 is true when the backend protocol is HTTP/2
func (c *Config) DownstreamHTTP2() bool {
	return c.ClientMode() || c.Mode.HTTP2Bridge
}

// FrontendTLS is true when the frontend terminates TLS
func (c *Config) FrontendTLS() bool {
	return !c.ClientMode() && !c.TLS.FrontendNoTLS
}

// BackendTLS is true when backend connections are wrapped in TLS
func (c *Config) BackendTLS() bool {
	return (c.ClientMode() || c.Mode.HTTP2Bridge) && !c.TLS.BackendNoTLS
}

// BackendFamily returns the address family for backend resolution
func (c *Config) BackendFamily() resolve.Family {
	switch {
	case c.BackendIPv4:
		return resolve.IPv4
	case c.BackendIPv6:
		return resolve.IPv6
	}
	return resolve.Any
}

// ModeName is a short human readable name of the operating mode
func (c *Config) ModeName() string {
	m := &c.Mode
	switch {
	case m.HTTP2Proxy:
		return "http2-proxy"
	case m.HTTP2Bridge:
		return "http2-bridge"
	case m.ClientProxy:
		return "client-proxy"
	case m.Client:
		return "client"
	}
	return "default"
}

// Print config in human readable format
func (c *Config) Dump(w io.Writer) {
	fmt.Fprintf(w, "mode %s: listen on %s (backlog %d)", c.ModeName(), c.Frontend, c.Backlog)
	if c.FrontendTLS() {
		t := &c.TLS
		fmt.Fprintf(w, " with tls using cert %s, key %s", t.Cert, t.PrivateKey)
		if n := len(t.Subcerts); n > 0 {
			fmt.Fprintf(w, " and %d sni certs", n)
		}
		if t.VerifyClient {
			fmt.Fprintf(w, " requiring client auth")
		}
	}
	if c.FrontendQuic {
		fmt.Fprintf(w, " and quic")
	}

	fmt.Fprintf(w, "\n\tconnect to %s (%s)", c.Backend, c.BackendFamily())
	if p := c.BackendProxy; p != nil {
		fmt.Fprintf(w, " via http proxy %s", p.HostPort)
	}
	if c.BackendTLS() {
		fmt.Fprintf(w, " using tls")
		if len(c.TLS.ClientCert) > 0 {
			fmt.Fprintf(w, " cert %s, key %s", c.TLS.ClientCert, c.TLS.ClientKey)
		}
	}

	r := &c.Ratelimit
	fmt.Fprintf(w, "\n\tratelimit: read %d/%d, write %d/%d, accept %d/%d per-host",
		r.ReadRate, r.ReadBurst, r.WriteRate, r.WriteBurst, r.AcceptRate, r.AcceptRatePerHost)

	p := &c.Process
	fmt.Fprintf(w, "\n\tworkers %d, log-level %s", p.Workers, p.LogLevel)
	if p.Daemon {
		fmt.Fprintf(w, ", daemon")
	}
	if len(p.PidFile) > 0 {
		fmt.Fprintf(w, ", pid-file %s", p.PidFile)
	}
	if len(p.User) > 0 {
		fmt.Fprintf(w, ", user %s (%d:%d)", p.User, p.Uid, p.Gid)
	}
	if p.Syslog {
		fmt.Fprintf(w, ", syslog %s", p.SyslogFacility)
	}
	fmt.Fprintf(w, "\n")
}

// String is a one-line summary suitable for logging
func (c *Config) String() string {
	var b strings.Builder
	c.Dump(&b)
	return strings.ReplaceAll(strings.TrimSpace(b.String()), "\n\t", "; ")
}
