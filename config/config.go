// Package config defines the runtime configuration for gpsrelay and
// loads it from a properties file, the environment and CLI flags.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	relayerrors "gpsrelay/internal/errors"
	"gpsrelay/util"
)

// Config holds every tuneable for one gpsrelay process.  It is built
// once at startup and passed by value/pointer into the listener and
// handlers; nothing mutates it afterwards.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────
	Host        string        // bind host, empty = all interfaces
	Port        int           // server.port
	BufferSize  int           // socket send/receive buffer, 0 = OS default
	ReadTimeout time.Duration // 0 = wait for the tracker indefinitely

	// ── Handler ──────────────────────────────────────────────────────
	URL             string // handler.url
	ForwardTimeout  time.Duration
	MaxMessageBytes int64

	// ── Output ───────────────────────────────────────────────────────
	LogLevel string
	Verbose  int // extra -v flags on top of LogLevel

	// ── Admin ────────────────────────────────────────────────────────
	AdminAddr string // empty disables /health and /metrics

	// Source names where the properties were read from.
	Source string
}

// ListenAddress returns the host:port the listener binds to.
func (c *Config) ListenAddress() string {
	return util.FormatAddr(c.Host, c.Port)
}

// Verbosity combines log.level with -v flags for [util.NewLogger].
func (c *Config) Verbosity() int {
	v, err := util.ParseVerbosity(c.LogLevel)
	if err != nil {
		v = int(util.LogNormal)
	}
	return v + c.Verbose
}

// Properties lists the effective settings in property-file order, for
// the startup banner.
func (c *Config) Properties() [][2]string {
	return [][2]string{
		{KeyServerHost, c.Host},
		{KeyServerPort, strconv.Itoa(c.Port)},
		{KeyBufferSize, strconv.Itoa(c.BufferSize)},
		{KeyReadTimeout, c.ReadTimeout.String()},
		{KeyHandlerURL, c.URL},
		{KeyForwardTimeout, c.ForwardTimeout.String()},
		{KeyMaxMessageBytes, strconv.FormatInt(c.MaxMessageBytes, 10)},
		{KeyLogLevel, c.LogLevel},
		{KeyAdminAddr, c.AdminAddr},
	}
}

// ParsePort accepts a decimal port number in 1-65535.
func ParsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &relayerrors.ConfigError{
			Field:   KeyServerPort,
			Message: "is required",
			Hint:    "set server.port in config.properties or pass -p <port>",
		}
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, &relayerrors.ConfigError{
			Field:   KeyServerPort,
			Value:   s,
			Message: "is not a number",
		}
	}
	if port < 1 || port > 65535 {
		return 0, &relayerrors.ConfigError{
			Field:   KeyServerPort,
			Value:   port,
			Message: "out of range 1-65535",
		}
	}
	return port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &relayerrors.ConfigError{
			Field:   KeyServerPort,
			Value:   c.Port,
			Message: "out of range 1-65535",
			Hint:    "set server.port in config.properties or pass -p <port>",
		}
	}

	if c.URL == "" {
		return &relayerrors.ConfigError{
			Field:   KeyHandlerURL,
			Message: "is required",
			Hint:    "set handler.url to the web server endpoint, e.g. http://host/gps",
		}
	}
	u, err := url.Parse(c.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return &relayerrors.ConfigError{
			Field:   KeyHandlerURL,
			Value:   c.URL,
			Message: "must be an absolute URL",
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &relayerrors.ConfigError{
			Field:   KeyHandlerURL,
			Value:   c.URL,
			Message: fmt.Sprintf("unsupported scheme %q", u.Scheme),
			Hint:    "use an http:// or https:// URL",
		}
	}

	if c.MaxMessageBytes <= 0 || c.MaxMessageBytes > MaxMessageBytesLimit {
		return &relayerrors.ConfigError{
			Field:   KeyMaxMessageBytes,
			Value:   c.MaxMessageBytes,
			Message: fmt.Sprintf("out of range 1-%d", MaxMessageBytesLimit),
			Hint:    "the default of 1048576 (1 MiB) suits any tracker",
		}
	}
	if c.BufferSize < 0 {
		return &relayerrors.ConfigError{
			Field:   KeyBufferSize,
			Value:   c.BufferSize,
			Message: "must not be negative",
			Hint:    "use 0 to keep the OS default",
		}
	}
	if c.ForwardTimeout < 0 {
		return &relayerrors.ConfigError{Field: KeyForwardTimeout, Value: c.ForwardTimeout, Message: "must not be negative"}
	}
	if c.ReadTimeout < 0 {
		return &relayerrors.ConfigError{Field: KeyReadTimeout, Value: c.ReadTimeout, Message: "must not be negative"}
	}
	if _, err := util.ParseVerbosity(c.LogLevel); err != nil {
		return &relayerrors.ConfigError{
			Field:   KeyLogLevel,
			Value:   c.LogLevel,
			Message: err.Error(),
			Hint:    "use error, warn, info, debug or trace",
		}
	}

	return nil
}
