// syslog_unix.go -- system log writer
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

//go:build !windows && !plan9

package logging

import (
	"io"
	"log/syslog"
)

func openSyslog(f Facility, tag string) (io.Writer, error) {
	return syslog.New(syslog.Priority(f)|syslog.LOG_INFO, tag)
}
