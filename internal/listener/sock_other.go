// sock_other.go -- portable listening sockets
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

//go:build !linux

package listener

import (
	"context"
	"net"

	"github.com/opencoff/gofront/internal/resolve"
)

// Bind listens on 'a'; the backlog is left to the OS default.
func Bind(ctx context.Context, a resolve.Address, backlog int) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, a.Network(), a.String())
}
