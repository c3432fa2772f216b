package core

import (
	"gpsrelay/config"
	relayerrors "gpsrelay/internal/errors"
	"gpsrelay/internal/forward"
	"gpsrelay/internal/handler"
	"gpsrelay/internal/metrics"
	"gpsrelay/internal/transport"
	"gpsrelay/util"
)

// Build assembles the listener, handler and forwarder from cfg.  The
// config is copied into each component; nothing here keeps a pointer
// to it.  A nil collector disables metrics.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (*ListenMode, error) {
	if cfg == nil {
		return nil, relayerrors.ErrNoConfig
	}
	if cfg.URL == "" {
		return nil, relayerrors.ErrEmptyURL
	}
	if logger == nil {
		logger = util.NewLogger(-1)
	}

	fwd := forward.New(forward.Options{
		Timeout: cfg.ForwardTimeout,
		Dialer:  buildDialer(cfg),
	})

	h := handler.New(handler.Options{
		URL:             cfg.URL,
		BufferSize:      cfg.BufferSize,
		ReadTimeout:     cfg.ReadTimeout,
		MaxMessageBytes: cfg.MaxMessageBytes,
		Forwarder:       fwd,
		Metrics:         m,
		Logger:          logger,
	})

	return &ListenMode{
		Address: cfg.ListenAddress(),
		Handler: h,
		Metrics: m,
		Logger:  logger,
	}, nil
}

// buildDialer creates the dialer used for upstream connections.
func buildDialer(cfg *config.Config) transport.Dialer {
	return &transport.TCPDialer{Timeout: cfg.ForwardTimeout}
}
