// process.go -- process wide signal setup
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package lifecycle

import (
	"os/signal"
	"syscall"
)

// Init prepares process wide state: writes to closed sockets must fail
// with EPIPE rather than kill the process.
func Init() {
	signal.Ignore(syscall.SIGPIPE)
}

// Teardown undoes Init
func Teardown() {
	signal.Reset(syscall.SIGPIPE)
}
