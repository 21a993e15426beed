// flags.go -- command line flags as ordered config entries
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package main

import (
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/opencoff/gofront/internal/config"
)

// option describes one config setting exposed as a long flag
type option struct {
	name   string
	short  string
	isBool bool
	arg    string
	help   string
}

var options = []option{
	// connections
	{config.OptFrontend, "f", false, "host,port", "Listen on `host,port`; '*' binds every address"},
	{config.OptBackend, "b", false, "host,port", "Relay to backend at `host,port`"},
	{config.OptBacklog, "", false, "N", "Set listen backlog to `N`"},
	{config.OptBackendIPv4, "", true, "", "Resolve the backend as IPv4 only"},
	{config.OptBackendIPv6, "", true, "", "Resolve the backend as IPv6 only"},
	{config.OptFrontendQuic, "", true, "", "Also accept QUIC on the frontend port"},

	// performance
	{config.OptWorkers, "n", false, "N", "Run `N` accept workers per listener"},
	{config.OptReadRate, "", false, "rate", "Per-connection read rate in bytes/sec; 0 is unlimited"},
	{config.OptReadBurst, "", false, "size", "Per-connection read burst in bytes; 0 is unlimited"},
	{config.OptWriteRate, "", false, "rate", "Per-connection write rate in bytes/sec; 0 is unlimited"},
	{config.OptWriteBurst, "", false, "size", "Per-connection write burst in bytes; 0 is unlimited"},
	{config.OptAcceptRate, "", false, "N", "Accept at most `N` connections/sec; 0 disables"},
	{config.OptAcceptRatePerHost, "", false, "N", "Accept at most `N` connections/sec per peer"},

	// timeouts
	{config.OptFrontendHTTP2ReadTimeout, "", false, "secs", "Frontend HTTP/2 read timeout"},
	{config.OptFrontendReadTimeout, "", false, "secs", "Frontend read timeout"},
	{config.OptFrontendWriteTimeout, "", false, "secs", "Frontend write timeout"},
	{config.OptBackendReadTimeout, "", false, "secs", "Backend read timeout"},
	{config.OptBackendWriteTimeout, "", false, "secs", "Backend write timeout"},
	{config.OptBackendKeepAliveTimeout, "", false, "secs", "Backend idle connection timeout"},
	{config.OptBackendHTTPProxyURI, "", false, "uri", "Tunnel backend connections through HTTP proxy `uri`"},

	// TLS
	{config.OptPrivateKeyFile, "", false, "file", "Frontend private key `file`"},
	{config.OptPrivateKeyPasswdFile, "", false, "file", "Read the private key password from `file`"},
	{config.OptCertificateFile, "", false, "file", "Frontend certificate `file`"},
	{config.OptSubcert, "", false, "key:cert", "Additional `key:cert` pair selected by SNI; may be repeated"},
	{config.OptCiphers, "", false, "list", "Allowed cipher suites"},
	{config.OptHonorCipherOrder, "", true, "", "Prefer the server's cipher order"},
	{config.OptDHParamFile, "", false, "file", "DH parameters `file`"},
	{config.OptNPNList, "", false, "list", "Comma separated ALPN protocol list"},
	{config.OptVerifyClient, "", true, "", "Require and verify client certificates"},
	{config.OptVerifyClientCACert, "", false, "file", "CA certificates for client verification"},
	{config.OptClientPrivateKeyFile, "", false, "file", "Private key for backend client auth"},
	{config.OptClientCertFile, "", false, "file", "Certificate for backend client auth"},
	{config.OptCACert, "", false, "file", "CA certificates to verify the backend"},
	{config.OptInsecure, "k", true, "", "Don't verify the backend certificate"},
	{config.OptBackendTLSSNIField, "", false, "host", "SNI `host` sent to the backend"},
	{config.OptFrontendNoTLS, "", true, "", "Frontend speaks plain text"},
	{config.OptBackendNoTLS, "", true, "", "Backend speaks plain text"},

	// HTTP/2
	{config.OptHTTP2MaxConcurrentStreams, "c", false, "N", "Max concurrent streams per session"},
	{config.OptFrontendHTTP2WindowBits, "", false, "N", "Frontend HTTP/2 window size is 2^N-1"},
	{config.OptBackendHTTP2WindowBits, "", false, "N", "Backend HTTP/2 window size is 2^N-1"},
	{config.OptAddXForwardedFor, "", true, "", "Append X-Forwarded-For"},
	{config.OptNoVia, "", true, "", "Don't append Via"},

	// mode
	{config.OptHTTP2Proxy, "s", true, "", "Run as a secure proxy"},
	{config.OptHTTP2Bridge, "", true, "", "Talk HTTP/2 to the backend"},
	{config.OptClientProxy, "p", true, "", "Run as a client proxy"},
	{config.OptClient, "", true, "", "Run as a plain text client"},

	// logging and process
	{config.OptLogLevel, "L", false, "level", "Log at `level`: DEBUG, INFO, WARNING, ERROR or FATAL"},
	{config.OptAccessLog, "", true, "", "Log every connection"},
	{config.OptSyslog, "", true, "", "Also send logs to syslog"},
	{config.OptSyslogFacility, "", false, "name", "Syslog facility `name`"},
	{config.OptDaemon, "D", true, "", "Run in the background"},
	{config.OptPidFile, "", false, "file", "Write the process id to `file`"},
	{config.OptUser, "", false, "user", "Run as `user` after binding"},
}

// entry is a pflag.Value that appends every occurrence to a shared list
// so that command line order is kept across different flags.
type entry struct {
	key    string
	isBool bool
	list   *[]config.Entry
}

var _ flag.Value = &entry{}

func (e *entry) Set(v string) error {
	*e.list = append(*e.list, config.Entry{Key: e.key, Value: v, Source: config.CmdLine})
	return nil
}

func (e *entry) String() string {
	return ""
}

func (e *entry) Type() string {
	if e.isBool {
		return "bool"
	}
	return "string"
}

// Cmdline is the parsed command line
type Cmdline struct {
	Conf    string
	Debug   bool
	Help    bool
	Version bool
	Entries []config.Entry
}

// newFlags makes the flag set; parsed results land in 'c'
func newFlags(c *Cmdline) *flag.FlagSet {
	fs := flag.NewFlagSet(Name, flag.ContinueOnError)

	fs.StringVarP(&c.Conf, "conf", "", config.DefaultPath, "Read settings from config `file`")
	fs.BoolVarP(&c.Debug, "debug", "d", false, "Log at DEBUG level")
	fs.BoolVarP(&c.Help, "help", "h", false, "Show this help and exit")
	fs.BoolVarP(&c.Version, "version", "v", false, "Show version info and exit")

	for i := range options {
		o := &options[i]
		e := &entry{key: o.name, isBool: o.isBool, list: &c.Entries}

		help := o.help
		if !o.isBool && len(o.arg) > 0 && !strings.Contains(help, "`") {
			help = fmt.Sprintf("%s (`%s`)", help, o.arg)
		}

		f := fs.VarPF(e, o.name, o.short, help)
		if o.isBool {
			f.NoOptDefVal = "yes"
		}
	}
	return fs
}

// parseArgs parses 'args' (without the program name). The optional
// positional key and cert are appended after every flag.
func parseArgs(args []string) (*Cmdline, *flag.FlagSet, error) {
	c := &Cmdline{}
	fs := newFlags(c)

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}

	rest := fs.Args()
	switch len(rest) {
	case 0:
	case 2:
		c.Entries = append(c.Entries,
			config.Entry{Key: config.OptPrivateKeyFile, Value: rest[0], Source: config.CmdLine},
			config.Entry{Key: config.OptCertificateFile, Value: rest[1], Source: config.CmdLine})
	default:
		return nil, fs, fmt.Errorf("expected <private-key> <certificate>, saw %d arguments", len(rest))
	}
	return c, fs, nil
}
