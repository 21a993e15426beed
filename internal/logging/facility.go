// facility.go -- syslog facility names
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package logging

import (
	"fmt"
	"strings"
)

// Facility is a syslog facility code, already shifted into place
type Facility int

var facilities = map[string]Facility{
	"auth":     4 << 3,
	"authpriv": 10 << 3,
	"cron":     9 << 3,
	"daemon":   3 << 3,
	"ftp":      11 << 3,
	"kern":     0 << 3,
	"local0":   16 << 3,
	"local1":   17 << 3,
	"local2":   18 << 3,
	"local3":   19 << 3,
	"local4":   20 << 3,
	"local5":   21 << 3,
	"local6":   22 << 3,
	"local7":   23 << 3,
	"lpr":      6 << 3,
	"mail":     2 << 3,
	"news":     7 << 3,
	"syslog":   5 << 3,
	"user":     1 << 3,
	"uucp":     8 << 3,
}

// ParseFacility returns the facility named 'nm'
func ParseFacility(nm string) (Facility, error) {
	f, ok := facilities[strings.ToLower(nm)]
	if !ok {
		return 0, fmt.Errorf("unknown syslog facility %q", nm)
	}
	return f, nil
}

func (f Facility) String() string {
	for k, v := range facilities {
		if v == f {
			return k
		}
	}
	return fmt.Sprintf("facility(%d)", int(f))
}
