// pidfile.go -- record the daemon pid
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package lifecycle

import (
	"fmt"
	"os"
)

// WritePID writes "<pid>\n" to 'fn', replacing any earlier content
func WritePID(fn string, pid int) error {
	fd, err := os.OpenFile(fn, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err = fmt.Fprintf(fd, "%d\n", pid); err != nil {
		fd.Close()
		return fmt.Errorf("%s: %w", fn, err)
	}
	return fd.Close()
}
