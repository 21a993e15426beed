// size.go -- parse rate and burst values with a size suffix
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package config

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	_kB uint64 = 1 << 10
	_MB uint64 = 1 << 20
	_GB uint64 = 1 << 30
)

var multmap = map[string]uint64{
	"k": _kB,
	"K": _kB,
	"m": _MB,
	"M": _MB,
	"g": _GB,
	"G": _GB,
}

// ParseSize parses a byte count with an optional k, M or G suffix; the
// suffix denotes multiples of 1024. e.g., "32k", "2M". The result must
// fit in 'bits' bits.
func ParseSize(in string, bits int) (uint64, error) {
	var m uint64 = 1

	s := strings.TrimSpace(in)
	if len(s) == 0 {
		return 0, fmt.Errorf("empty size")
	}

	if x, ok := multmap[s[len(s)-1:]]; ok {
		m = x
		s = s[:len(s)-1]
	}

	u, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, err
	}

	v := u * m
	if u != 0 && (v/u != m || v>>bits != 0) {
		return 0, fmt.Errorf("size %s overflows %d bits", in, bits)
	}
	return v, nil
}
