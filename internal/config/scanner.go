// scanner.go -- lexical scanner for the key=value config file
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package config

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Entry is one (key, value) setting and where it came from. Entries are
// applied in order; later entries override earlier ones.
type Entry struct {
	Key   string
	Value string

	Source string // file name or "cmdline"
	Line   int    // 0 for the command line
}

func (e Entry) String() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s=%s", e.Source, e.Line, e.Key, e.Value)
	}
	return fmt.Sprintf("%s: %s=%s", e.Source, e.Key, e.Value)
}

// ParseError describes a malformed line or setting
type ParseError struct {
	Source  string
	Line    int
	Message string
	Err     error
}

// error interface
func (pe *ParseError) Error() string {
	s := pe.Message
	if pe.Err != nil {
		s = pe.Err.Error()
	}
	if pe.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", pe.Source, pe.Line, s)
	}
	return fmt.Sprintf("%s: %s", pe.Source, s)
}

func (pe *ParseError) Unwrap() error {
	return pe.Err
}

const eof rune = rune(0)

// Scanner holds the lexical scanner's state.
//
// The file is a sequence of logical lines. Each non-blank line that does
// not begin with '#' is KEY=VALUE; whitespace around KEY is ignored and
// VALUE extends to the end of line.
type Scanner struct {
	r    *bufio.Reader
	name string

	ch   rune
	line int
	err  error
}

// NewScanner returns a new instance of the scanner that reads from 'r'
func NewScanner(r io.Reader, name string) *Scanner {
	s := &Scanner{
		r:    bufio.NewReader(r),
		name: name,
		line: 1,
	}

	ch := s.read()
	if ch == '\uFEFF' {
		ch = s.read()
	}
	s.ch = ch
	return s
}

// Next returns the next entry and true; it returns false at EOF or on the
// first malformed line. Err() tells the two apart.
func (s *Scanner) Next() (Entry, bool) {
	for s.err == nil {
		if s.ch == eof {
			return Entry{}, false
		}

		n := s.line
		l := strings.TrimSpace(s.scanLine())
		if len(l) == 0 || l[0] == '#' {
			continue
		}

		i := strings.IndexByte(l, '=')
		if i < 0 {
			s.errorf(n, "expected KEY=VALUE, saw %q", l)
			break
		}

		key := strings.TrimSpace(l[:i])
		if len(key) == 0 {
			s.errorf(n, "missing key before '='")
			break
		}

		e := Entry{
			Key:    key,
			Value:  l[i+1:],
			Source: s.name,
			Line:   n,
		}
		return e, true
	}
	return Entry{}, false
}

// Err returns the first error seen by the scanner
func (s *Scanner) Err() error {
	return s.err
}

// All scans the remaining input and returns every entry
func (s *Scanner) All() ([]Entry, error) {
	var v []Entry
	for e, ok := s.Next(); ok; e, ok = s.Next() {
		v = append(v, e)
	}
	return v, s.err
}

// scan until end of line and return the text without the newline
func (s *Scanner) scanLine() string {
	var b strings.Builder

	for ch := s.next(); ch != eof; ch = s.next() {
		if ch == '\n' {
			break
		}
		if ch != '\r' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// return current rune and advance; track line numbers
func (s *Scanner) next() rune {
	ch := s.ch
	if ch == eof {
		return eof
	}

	s.ch = s.read()
	if ch == '\n' {
		s.line++
	}
	return ch
}

// Read next unicode character from the input buffer.
// Return special EOF rune at end of file
func (s *Scanner) read() rune {
	ch, _, err := s.r.ReadRune()
	if err != nil {
		if err != io.EOF {
			s.err = &ParseError{Source: s.name, Line: s.line, Err: err}
		}
		return eof
	}
	return ch
}

func (s *Scanner) errorf(line int, f string, a ...interface{}) {
	s.err = &ParseError{
		Source:  s.name,
		Line:    line,
		Message: fmt.Sprintf(f, a...),
	}
}
