// Package transport provides the outbound connection layer the
// forwarder's HTTP client dials through.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.  The method signature
// matches http.Transport.DialContext so a Dialer plugs straight in.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)
}
