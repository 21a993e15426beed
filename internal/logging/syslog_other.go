// syslog_other.go -- no system log on this platform
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

//go:build windows || plan9

package logging

import (
	"errors"
	"io"
)

func openSyslog(f Facility, tag string) (io.Writer, error) {
	return nil, errors.New("syslog is not supported on this platform")
}
