// sock_linux.go -- raw listening sockets with an explicit backlog
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

//go:build linux

package listener

import (
	"context"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/opencoff/gofront/internal/resolve"
)

// Bind creates a non-blocking stream socket with SO_REUSEADDR (and
// IPV6_V6ONLY for IPv6), binds it to 'a' and listens with 'backlog'.
func Bind(ctx context.Context, a resolve.Address, backlog int) (net.Listener, error) {
	domain := unix.AF_INET
	if a.Family == resolve.IPv6 {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	fail := func(call string, err error) (net.Listener, error) {
		unix.Close(fd)
		return nil, os.NewSyscallError(call, err)
	}

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt", err)
	}

	var sa unix.Sockaddr
	ip := a.Addr()
	if a.Family == resolve.IPv6 {
		if err = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1); err != nil {
			return fail("setsockopt", err)
		}
		sa6 := &unix.SockaddrInet6{Port: int(a.Port()), Addr: ip.As16()}
		if z := ip.Zone(); len(z) > 0 {
			if ifc, err := net.InterfaceByName(z); err == nil {
				sa6.ZoneId = uint32(ifc.Index)
			}
		}
		sa = sa6
	} else {
		sa = &unix.SockaddrInet4{Port: int(a.Port()), Addr: ip.As4()}
	}

	if err = unix.Bind(fd, sa); err != nil {
		return fail("bind", err)
	}

	if err = unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}

	// net.FileListener dups the descriptor
	f := os.NewFile(uintptr(fd), fmt.Sprintf("%s:%s", a.Network(), a))
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a, err)
	}
	return ln, nil
}
