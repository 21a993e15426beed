// options.go -- named settings and their validation
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	u "os/user"
	"strconv"
	"strings"
	"time"

	"github.com/opencoff/gofront/internal/logging"
)

// Names of every setting. The same names are used in the config file and
// as long command line flags.
const (
	OptFrontend     = "frontend"
	OptBackend      = "backend"
	OptBacklog      = "backlog"
	OptBackendIPv4  = "backend-ipv4"
	OptBackendIPv6  = "backend-ipv6"
	OptFrontendQuic = "frontend-quic"

	OptWorkers           = "workers"
	OptReadRate          = "read-rate"
	OptReadBurst         = "read-burst"
	OptWriteRate         = "write-rate"
	OptWriteBurst        = "write-burst"
	OptAcceptRate        = "accept-rate"
	OptAcceptRatePerHost = "accept-rate-per-host"

	OptFrontendHTTP2ReadTimeout = "frontend-http2-read-timeout"
	OptFrontendReadTimeout      = "frontend-read-timeout"
	OptFrontendWriteTimeout     = "frontend-write-timeout"
	OptBackendReadTimeout       = "backend-read-timeout"
	OptBackendWriteTimeout      = "backend-write-timeout"
	OptBackendKeepAliveTimeout  = "backend-keep-alive-timeout"
	OptBackendHTTPProxyURI      = "backend-http-proxy-uri"

	OptPrivateKeyFile       = "private-key-file"
	OptPrivateKeyPasswdFile = "private-key-passwd-file"
	OptCertificateFile      = "certificate-file"
	OptSubcert              = "subcert"
	OptCiphers              = "ciphers"
	OptHonorCipherOrder     = "honor-cipher-order"
	OptDHParamFile          = "dh-param-file"
	OptNPNList              = "npn-list"
	OptVerifyClient         = "verify-client"
	OptVerifyClientCACert   = "verify-client-cacert"
	OptClientPrivateKeyFile = "client-private-key-file"
	OptClientCertFile       = "client-cert-file"
	OptCACert               = "cacert"
	OptInsecure             = "insecure"
	OptBackendTLSSNIField   = "backend-tls-sni-field"
	OptFrontendNoTLS        = "frontend-no-tls"
	OptBackendNoTLS         = "backend-no-tls"

	OptHTTP2MaxConcurrentStreams = "http2-max-concurrent-streams"
	OptFrontendHTTP2WindowBits   = "frontend-http2-window-bits"
	OptBackendHTTP2WindowBits    = "backend-http2-window-bits"
	OptAddXForwardedFor          = "add-x-forwarded-for"
	OptNoVia                     = "no-via"

	OptHTTP2Proxy  = "http2-proxy"
	OptHTTP2Bridge = "http2-bridge"
	OptClientProxy = "client-proxy"
	OptClient      = "client"

	OptLogLevel       = "log-level"
	OptAccessLog      = "accesslog"
	OptSyslog         = "syslog"
	OptSyslogFacility = "syslog-facility"
	OptDaemon         = "daemon"
	OptPidFile        = "pid-file"
	OptUser           = "user"
)

var (
	ErrUnknownOption = errors.New("unknown option")
	ErrBadValue      = errors.New("invalid value")
)

// setter validates 'v' and stores it in 'c'
type setter func(c *Config, v string) error

var options = map[string]setter{
	OptFrontend: func(c *Config, v string) error {
		return parseHostPort(v, &c.Frontend)
	},
	OptBackend: func(c *Config, v string) error {
		return parseHostPort(v, &c.Backend)
	},
	OptBacklog:      intVar(func(c *Config) *int { return &c.Backlog }, 0),
	OptBackendIPv4:  boolVar(func(c *Config) *bool { return &c.BackendIPv4 }),
	OptBackendIPv6:  boolVar(func(c *Config) *bool { return &c.BackendIPv6 }),
	OptFrontendQuic: boolVar(func(c *Config) *bool { return &c.FrontendQuic }),

	OptWorkers:           intVar(func(c *Config) *int { return &c.Process.Workers }, 1),
	OptReadRate:          rateVar(func(c *Config) *int64 { return &c.Ratelimit.ReadRate }),
	OptReadBurst:         rateVar(func(c *Config) *int64 { return &c.Ratelimit.ReadBurst }),
	OptWriteRate:         rateVar(func(c *Config) *int64 { return &c.Ratelimit.WriteRate }),
	OptWriteBurst:        rateVar(func(c *Config) *int64 { return &c.Ratelimit.WriteBurst }),
	OptAcceptRate:        intVar(func(c *Config) *int { return &c.Ratelimit.AcceptRate }, 0),
	OptAcceptRatePerHost: intVar(func(c *Config) *int { return &c.Ratelimit.AcceptRatePerHost }, 0),

	OptFrontendHTTP2ReadTimeout: timeoutVar(func(c *Config) *time.Duration { return &c.Timeout.FrontendHTTP2Read }),
	OptFrontendReadTimeout:      timeoutVar(func(c *Config) *time.Duration { return &c.Timeout.FrontendRead }),
	OptFrontendWriteTimeout:     timeoutVar(func(c *Config) *time.Duration { return &c.Timeout.FrontendWrite }),
	OptBackendReadTimeout:       timeoutVar(func(c *Config) *time.Duration { return &c.Timeout.BackendRead }),
	OptBackendWriteTimeout:      timeoutVar(func(c *Config) *time.Duration { return &c.Timeout.BackendWrite }),
	OptBackendKeepAliveTimeout:  timeoutVar(func(c *Config) *time.Duration { return &c.Timeout.BackendKeepAlive }),
	OptBackendHTTPProxyURI:      parseProxyURI,

	OptPrivateKeyFile:       strVar(func(c *Config) *string { return &c.TLS.PrivateKey }),
	OptPrivateKeyPasswdFile: strVar(func(c *Config) *string { return &c.TLS.PrivateKeyPasswd }),
	OptCertificateFile:      strVar(func(c *Config) *string { return &c.TLS.Cert }),
	OptSubcert:              parseSubcert,
	OptCiphers:              strVar(func(c *Config) *string { return &c.TLS.Ciphers }),
	OptHonorCipherOrder:     boolVar(func(c *Config) *bool { return &c.TLS.HonorCipherOrder }),
	OptDHParamFile:          strVar(func(c *Config) *string { return &c.TLS.DHParamFile }),
	OptNPNList:              parseNPN,
	OptVerifyClient:         boolVar(func(c *Config) *bool { return &c.TLS.VerifyClient }),
	OptVerifyClientCACert:   strVar(func(c *Config) *string { return &c.TLS.VerifyClientCA }),
	OptClientPrivateKeyFile: strVar(func(c *Config) *string { return &c.TLS.ClientKey }),
	OptClientCertFile:       strVar(func(c *Config) *string { return &c.TLS.ClientCert }),
	OptCACert:               strVar(func(c *Config) *string { return &c.TLS.CACert }),
	OptInsecure:             boolVar(func(c *Config) *bool { return &c.TLS.Insecure }),
	OptBackendTLSSNIField:   strVar(func(c *Config) *string { return &c.TLS.BackendSNI }),
	OptFrontendNoTLS:        boolVar(func(c *Config) *bool { return &c.TLS.FrontendNoTLS }),
	OptBackendNoTLS:         boolVar(func(c *Config) *bool { return &c.TLS.BackendNoTLS }),

	OptHTTP2MaxConcurrentStreams: intVar(func(c *Config) *int { return &c.HTTP2.MaxConcurrentStreams }, 1),
	OptFrontendHTTP2WindowBits:   windowBitsVar(func(c *Config) *int { return &c.HTTP2.FrontendWindowBits }),
	OptBackendHTTP2WindowBits:    windowBitsVar(func(c *Config) *int { return &c.HTTP2.BackendWindowBits }),
	OptAddXForwardedFor:          boolVar(func(c *Config) *bool { return &c.HTTP2.AddXForwardedFor }),
	OptNoVia:                     boolVar(func(c *Config) *bool { return &c.HTTP2.NoVia }),

	OptHTTP2Proxy:  boolVar(func(c *Config) *bool { return &c.Mode.HTTP2Proxy }),
	OptHTTP2Bridge: boolVar(func(c *Config) *bool { return &c.Mode.HTTP2Bridge }),
	OptClientProxy: boolVar(func(c *Config) *bool { return &c.Mode.ClientProxy }),
	OptClient:      boolVar(func(c *Config) *bool { return &c.Mode.Client }),

	OptLogLevel:       parseLogLevel,
	OptAccessLog:      boolVar(func(c *Config) *bool { return &c.Process.AccessLog }),
	OptSyslog:         boolVar(func(c *Config) *bool { return &c.Process.Syslog }),
	OptSyslogFacility: parseFacility,
	OptDaemon:         boolVar(func(c *Config) *bool { return &c.Process.Daemon }),
	OptPidFile:        strVar(func(c *Config) *string { return &c.Process.PidFile }),
	OptUser:           parseUser,
}

// Known returns true if 'key' names a setting
func Known(key string) bool {
	_, ok := options[key]
	return ok
}

// Set validates and applies one setting. Applying a key twice overwrites
// the earlier value, except for subcert which accumulates.
func (c *Config) Set(key, val string) error {
	fp, ok := options[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrUnknownOption)
	}

	if err := fp(c, val); err != nil {
		return fmt.Errorf("%s=%q: %w", key, val, err)
	}
	return nil
}

func badValue(f string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadValue, fmt.Sprintf(f, v...))
}

func strVar(fp func(c *Config) *string) setter {
	return func(c *Config, v string) error {
		*fp(c) = v
		return nil
	}
}

func boolVar(fp func(c *Config) *bool) setter {
	return func(c *Config, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		*fp(c) = b
		return nil
	}
}

// intVar parses a non-negative int that must be at least 'least'
func intVar(fp func(c *Config) *int, least int) setter {
	return func(c *Config, v string) error {
		n, err := parseUint(v, 31)
		if err != nil {
			return err
		}
		if int(n) < least {
			return badValue("must be at least %d", least)
		}
		*fp(c) = int(n)
		return nil
	}
}

// rates and bursts take a k/M/G suffix and must fit the token bucket
// maximum of 2^31-1
func rateVar(fp func(c *Config) *int64) setter {
	return func(c *Config, v string) error {
		n, err := ParseSize(v, 31)
		if err != nil {
			return badValue("%q: %s", v, err)
		}
		*fp(c) = int64(n)
		return nil
	}
}

func timeoutVar(fp func(c *Config) *time.Duration) setter {
	return func(c *Config, v string) error {
		n, err := parseUint(v, 31)
		if err != nil {
			return err
		}
		*fp(c) = time.Duration(n) * time.Second
		return nil
	}
}

func windowBitsVar(fp func(c *Config) *int) setter {
	return func(c *Config, v string) error {
		n, err := parseUint(v, 31)
		if err != nil {
			return err
		}
		if n > 30 {
			return badValue("window bits must be in [0, 30]")
		}
		*fp(c) = int(n)
		return nil
	}
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "on", "1":
		return true, nil
	case "no", "false", "off", "0":
		return false, nil
	}
	return false, badValue("%q is not a boolean", v)
}

// parse a non-negative integer that fits in 'bits' bits
func parseUint(v string, bits int) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, bits)
	if err != nil {
		return 0, badValue("%q is not a non-negative integer", v)
	}
	return n, nil
}

// HOST,PORT; the last comma separates the port so that numeric IPv6
// hosts need no brackets.
func parseHostPort(v string, hp *HostPort) error {
	i := strings.LastIndexByte(v, ',')
	if i < 0 {
		return badValue("expected HOST,PORT")
	}

	host := strings.TrimSpace(v[:i])
	if len(host) == 0 {
		return badValue("empty host")
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")

	port, err := strconv.ParseUint(strings.TrimSpace(v[i+1:]), 10, 16)
	if err != nil {
		return badValue("port %q is not in [0, 65535]", v[i+1:])
	}

	hp.Host = host
	hp.Port = uint16(port)
	return nil
}

// KEYPATH:CERTPATH
func parseSubcert(c *Config, v string) error {
	i := strings.IndexByte(v, ':')
	if i <= 0 || i == len(v)-1 {
		return badValue("expected KEYPATH:CERTPATH")
	}

	c.TLS.Subcerts = append(c.TLS.Subcerts, KeyCert{Key: v[:i], Cert: v[i+1:]})
	return nil
}

// http://[USER:PASS@]HOST:PORT
func parseProxyURI(c *Config, v string) error {
	pu, err := url.Parse(v)
	if err != nil {
		return badValue("%s", err)
	}

	if pu.Scheme != "http" {
		return badValue("proxy scheme must be http, saw %q", pu.Scheme)
	}

	host := pu.Hostname()
	if len(host) == 0 {
		return badValue("proxy URI has no host")
	}

	var port uint64 = 80
	if ps := pu.Port(); len(ps) > 0 {
		port, err = strconv.ParseUint(ps, 10, 16)
		if err != nil {
			return badValue("proxy port %q is not in [0, 65535]", ps)
		}
	}

	p := &HTTPProxy{
		URI:      v,
		HostPort: HostPort{host, uint16(port)},
	}
	if pu.User != nil {
		p.UserInfo = pu.User.String()
	}

	c.BackendProxy = p
	return nil
}

func parseNPN(c *Config, v string) error {
	if len(v) == 0 {
		return badValue("empty protocol list")
	}

	var np []string
	for _, s := range strings.Split(v, ",") {
		if len(s) == 0 {
			return badValue("empty protocol name in %q", v)
		}
		np = append(np, s)
	}
	c.TLS.NPN = np
	return nil
}

func parseLogLevel(c *Config, v string) error {
	lvl := strings.ToUpper(strings.TrimSpace(v))
	switch lvl {
	case "WARN":
		lvl = "WARNING"
	case "DEBUG", "INFO", "WARNING", "ERROR", "FATAL":
	default:
		return badValue("unknown log level %q", v)
	}
	c.Process.LogLevel = lvl
	return nil
}

func parseFacility(c *Config, v string) error {
	nm := strings.ToLower(strings.TrimSpace(v))
	if _, err := logging.ParseFacility(nm); err != nil {
		return badValue("%s", err)
	}
	c.Process.SyslogFacility = nm
	return nil
}

// user lookups are swapped out in tests
var (
	lookupUser   = u.Lookup
	lookupUserId = u.LookupId
)

func parseUser(c *Config, v string) error {
	ui, err := lookupUser(v)
	if err != nil {
		ui, err = lookupUserId(v)
		if err != nil {
			return badValue("can't find user %q", v)
		}
	}

	uid, err := strconv.Atoi(ui.Uid)
	if err != nil || uid < 0 || uid > math.MaxInt32 {
		return badValue("can't parse uid %q of %s", ui.Uid, v)
	}
	gid, err := strconv.Atoi(ui.Gid)
	if err != nil || gid < 0 || gid > math.MaxInt32 {
		return badValue("can't parse gid %q of %s", ui.Gid, v)
	}

	c.Process.User = ui.Username
	c.Process.Uid = uid
	c.Process.Gid = gid
	return nil
}
