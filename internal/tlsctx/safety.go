// safety.go -- permission checks on key material
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package tlsctx

import (
	"fmt"
	"os"
)

// checkKeyFile rejects secrets that are not regular files or are
// readable or writable by group/world.
func checkKeyFile(fn string) error {
	fi, err := os.Stat(fn)
	if err != nil {
		return err
	}

	m := fi.Mode()
	if !m.IsRegular() {
		return fmt.Errorf("%s: not a regular file", fn)
	}

	if (m & 0066) != 0 {
		return fmt.Errorf("insecure perms on %s (group/world read/write)", fn)
	}
	return nil
}

// checkReadable makes sure 'fn' is a regular file we can open
func checkReadable(fn string) error {
	fd, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer fd.Close()

	fi, err := fd.Stat()
	if err != nil {
		return err
	}

	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file", fn)
	}
	return nil
}
