// logging.go -- process logger setup
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

// Package logging builds the process logger from the configured level and
// optional syslog facility.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	L "github.com/opencoff/go-logger"
)

// We want microsecond timestamps and debug logs to have short
// filenames
const Flags int = L.Ldate | L.Ltime | L.Lshortfile | L.Lmicroseconds

// Options describe where and how much to log
type Options struct {
	// Name prefixed to every log line
	Name string

	// One of DEBUG, INFO, WARNING, ERROR, FATAL
	Level string

	// Debug forces the DEBUG level
	Debug bool

	// When Syslog is set, records are also written to the system log
	// under Facility.
	Syslog   bool
	Facility string

	// Output defaults to os.Stderr
	Output io.Writer
}

var levels = map[string]L.Priority{
	"DEBUG":   L.LOG_DEBUG,
	"INFO":    L.LOG_INFO,
	"WARNING": L.LOG_WARNING,
	"WARN":    L.LOG_WARNING,
	"ERROR":   L.LOG_ERR,
	"FATAL":   L.LOG_CRIT,
}

// Priority maps a configured level name to a logger priority
func Priority(lvl string) (L.Priority, error) {
	p, ok := levels[strings.ToUpper(lvl)]
	if !ok {
		return p, fmt.Errorf("unknown log level %q", lvl)
	}
	return p, nil
}

// New makes a logger per 'o'. The caller owns the returned logger and
// must Close() it.
func New(o Options) (*L.Logger, error) {
	prio, err := Priority(o.Level)
	if err != nil {
		return nil, err
	}

	if o.Debug {
		prio = L.LOG_DEBUG
	}

	w := o.Output
	if w == nil {
		w = os.Stderr
	}

	if o.Syslog {
		f, err := ParseFacility(o.Facility)
		if err != nil {
			return nil, err
		}

		sw, err := openSyslog(f, o.Name)
		if err != nil {
			return nil, fmt.Errorf("can't open syslog: %w", err)
		}
		w = io.MultiWriter(w, sw)
	}

	log, err := L.New(w, prio, o.Name, Flags)
	if err != nil {
		return nil, fmt.Errorf("can't create logger: %w", err)
	}
	return log, nil
}
