package transport

import (
	"context"
	"net"
	"time"
)

// TCPDialer establishes plain TCP connections to the web server.
type TCPDialer struct {
	Timeout   time.Duration // connect timeout, 0 = none beyond ctx
	KeepAlive time.Duration // 0 = Go default, negative disables
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	dialer := net.Dialer{
		Timeout:   d.Timeout,
		KeepAlive: d.KeepAlive,
	}
	return dialer.DialContext(ctx, network, address)
}
