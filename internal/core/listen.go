package core

import (
	"context"
	"net"

	relayerrors "gpsrelay/internal/errors"
	"gpsrelay/internal/handler"
	"gpsrelay/internal/metrics"
	"gpsrelay/internal/retry"
	"gpsrelay/util"
)

// ListenMode accepts tracker connections and starts a handler for each
// one without waiting for it to finish.
type ListenMode struct {
	Address string // "host:port"
	Handler *handler.Handler
	Metrics *metrics.Collector
	Logger  *util.Logger

	// Ready, when set, is called with the bound address before the
	// first accept.
	Ready func(net.Addr)
}

// Run binds the listener and accepts until ctx is cancelled.  A bind
// failure is returned; accept failures are logged and retried after a
// short, growing delay.  Cancelling ctx closes the listener and Run
// returns nil without waiting for in-flight handlers.
func (m *ListenMode) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.Address)
	if err != nil {
		return relayerrors.Wrap("listen", m.Address, err)
	}
	defer ln.Close()

	m.Logger.Info("Listening on %s", ln.Addr())
	if m.Ready != nil {
		m.Ready(ln.Addr())
	}
	return m.serve(ctx, ln)
}

// serve runs the accept loop on ln until ctx is cancelled or ln is
// closed from elsewhere.
func (m *ListenMode) serve(ctx context.Context, ln net.Listener) error {
	addr := ln.Addr()

	// Shut the listener down when the context expires.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	backoff := retry.AcceptBackoff()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				m.Logger.Info("Listener on %s stopped", addr)
				return nil
			}
			if relayerrors.Is(err, net.ErrClosed) {
				return relayerrors.Wrap("accept", addr.String(), err)
			}

			m.Metrics.AcceptError()
			werr := relayerrors.Wrap("accept", addr.String(), err)
			if relayerrors.IsRetryable(werr) {
				m.Logger.Warn("%v", werr)
			} else {
				m.Logger.Error("%v", werr)
			}
			if backoff.Wait(ctx) != nil {
				m.Logger.Info("Listener on %s stopped", addr)
				return nil
			}
			continue
		}
		backoff.Reset()

		m.Logger.Debug("accepted %s", conn.RemoteAddr())
		// Setup failures are logged by the handler and affect only
		// this connection.
		m.Handler.Start(ctx, conn) //nolint:errcheck
	}
}
