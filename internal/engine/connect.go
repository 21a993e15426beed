// connect.go -- HTTP CONNECT tunnel dialer for golang.org/x/net/proxy
//
// Author: Sudhi Herle <sudhi@herle.net>
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package engine

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

func init() {
	proxy.RegisterDialerType("http", newConnectDialer)
}

// connectDialer opens a tunnel through an HTTP proxy with CONNECT
type connectDialer struct {
	proxy string
	auth  string
	fwd   proxy.Dialer
}

func newConnectDialer(u *url.URL, fwd proxy.Dialer) (proxy.Dialer, error) {
	port := u.Port()
	if len(port) == 0 {
		port = "80"
	}

	d := &connectDialer{
		proxy: net.JoinHostPort(u.Hostname(), port),
		fwd:   fwd,
	}

	if u.User != nil {
		pw, _ := u.User.Password()
		cred := u.User.Username() + ":" + pw
		d.auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(cred))
	}
	return d, nil
}

// Dial implements proxy.Dialer
func (d *connectDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

// DialContext implements proxy.ContextDialer
func (d *connectDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var c net.Conn
	var err error

	if cd, ok := d.fwd.(proxy.ContextDialer); ok {
		c, err = cd.DialContext(ctx, network, d.proxy)
	} else {
		c, err = d.fwd.Dial(network, d.proxy)
	}
	if err != nil {
		return nil, fmt.Errorf("http proxy %s: %w", d.proxy, err)
	}

	if dl, ok := ctx.Deadline(); ok {
		c.SetDeadline(dl)
		defer c.SetDeadline(time.Time{})
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if len(d.auth) > 0 {
		req.Header.Set("Proxy-Authorization", d.auth)
	}

	if err = req.Write(c); err != nil {
		c.Close()
		return nil, fmt.Errorf("http proxy %s: CONNECT %s: %w", d.proxy, addr, err)
	}

	br := bufio.NewReader(c)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("http proxy %s: CONNECT %s: %w", d.proxy, addr, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.Close()
		return nil, fmt.Errorf("http proxy %s: CONNECT %s: %s", d.proxy, addr, resp.Status)
	}

	// bytes the proxy sent after its response belong to the tunnel
	if br.Buffered() > 0 {
		return &bufConn{Conn: c, r: br}, nil
	}
	return c, nil
}

type bufConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufConn) Read(p []byte) (int, error) {
	return b.r.Read(p)
}
