package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, the properties file and environment variables.

const (
	// DefaultConfigFile is looked up in the working directory.
	DefaultConfigFile = "config.properties"

	// DefaultEnvFile is an optional dotenv file in the working directory.
	DefaultEnvFile = ".env"

	// EnvPrefix prefixes every environment override, e.g.
	// GPSRELAY_SERVER_PORT or GPSRELAY_HANDLER_URL.
	EnvPrefix = "GPSRELAY"

	// DefaultForwardTimeout bounds one POST to the web server.
	DefaultForwardTimeout = 30 * time.Second

	// DefaultMaxMessageBytes caps what a single connection may send.
	DefaultMaxMessageBytes = 1 << 20

	// MaxMessageBytesLimit is the largest accepted handler.max_message_bytes.
	MaxMessageBytesLimit = 1 << 30

	// DefaultBufferSize of 0 leaves socket buffers at the OS default.
	DefaultBufferSize = 0

	// DefaultLogLevel is used when log.level is unset.
	DefaultLogLevel = "info"
)

// Property keys, as they appear in config.properties.
const (
	KeyServerHost      = "server.host"
	KeyServerPort      = "server.port"
	KeyBufferSize      = "server.buffer_size"
	KeyReadTimeout     = "server.read_timeout"
	KeyHandlerURL      = "handler.url"
	KeyForwardTimeout  = "handler.timeout"
	KeyMaxMessageBytes = "handler.max_message_bytes"
	KeyLogLevel        = "log.level"
	KeyAdminAddr       = "admin.addr"
)
