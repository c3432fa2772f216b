package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relayerrors "gpsrelay/internal/errors"
	"gpsrelay/util"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testLoader(t *testing.T, path string) *Loader {
	t.Helper()
	l := NewLoader(path, util.NewLogger(-1))
	l.EnvFile = ""
	return l
}

func TestLoad_UserFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.properties", `
# tracker relay
server.port=6001
handler.url=http://web.internal/track
handler.timeout=5s
handler.max_message_bytes=2048
server.buffer_size=8192
server.read_timeout=1m
log.level=debug
admin.addr=127.0.0.1:9100
`)

	cfg, err := testLoader(t, path).Load()
	require.NoError(t, err)

	assert.Equal(t, 6001, cfg.Port)
	assert.Equal(t, "http://web.internal/track", cfg.URL)
	assert.Equal(t, 5*time.Second, cfg.ForwardTimeout)
	assert.Equal(t, int64(2048), cfg.MaxMessageBytes)
	assert.Equal(t, 8192, cfg.BufferSize)
	assert.Equal(t, time.Minute, cfg.ReadTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9100", cfg.AdminAddr)
	assert.Equal(t, path, cfg.Source)
}

func TestLoad_DefaultsForOptionalKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.properties",
		"server.port=6002\nhandler.url=http://web.internal/track\n")

	cfg, err := testLoader(t, path).Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultForwardTimeout, cfg.ForwardTimeout)
	assert.Equal(t, int64(DefaultMaxMessageBytes), cfg.MaxMessageBytes)
	assert.Equal(t, DefaultBufferSize, cfg.BufferSize)
	assert.Zero(t, cfg.ReadTimeout)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestLoad_FallsBackToBundled(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.properties")

	cfg, err := testLoader(t, missing).Load()
	require.NoError(t, err)

	assert.Equal(t, "bundled default", cfg.Source)
	assert.Equal(t, 5055, cfg.Port)
	assert.NotEmpty(t, cfg.URL)
}

func TestLoad_NoSource(t *testing.T) {
	l := testLoader(t, filepath.Join(t.TempDir(), "nope.properties"))
	l.Bundled = nil

	_, err := l.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, relayerrors.ErrNoConfig)
}

func TestLoad_UnparsablePort(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.properties",
		"server.port=gps\nhandler.url=http://web.internal/track\n")

	_, err := testLoader(t, path).Load()
	require.Error(t, err)

	var ce *relayerrors.ConfigError
	require.True(t, relayerrors.As(err, &ce))
	assert.Equal(t, KeyServerPort, ce.Field)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.properties",
		"server.port=6003\nhandler.url=http://web.internal/track\n")
	t.Setenv("GPSRELAY_HANDLER_URL", "http://override.internal/track")
	t.Setenv("GPSRELAY_SERVER_PORT", "6004")

	cfg, err := testLoader(t, path).Load()
	require.NoError(t, err)

	assert.Equal(t, "http://override.internal/track", cfg.URL)
	assert.Equal(t, 6004, cfg.Port)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.properties",
		"server.port=6005\nhandler.url=http://web.internal/track\n")
	envFile := writeFile(t, dir, ".env", "GPSRELAY_HANDLER_TIMEOUT=7s\n")
	t.Cleanup(func() { os.Unsetenv("GPSRELAY_HANDLER_TIMEOUT") })

	l := testLoader(t, path)
	l.EnvFile = envFile

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, cfg.ForwardTimeout)
}

func TestLoad_FlagsWin(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.properties",
		"server.port=6006\nhandler.url=http://web.internal/track\n")
	t.Setenv("GPSRELAY_SERVER_PORT", "6007")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringP("port", "p", "", "")
	fs.StringP("url", "u", "", "")
	require.NoError(t, fs.Parse([]string{"-p", "6008"}))

	l := testLoader(t, path)
	require.NoError(t, l.BindFlags(fs))

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 6008, cfg.Port)
	// --url was not set, so the file value survives.
	assert.Equal(t, "http://web.internal/track", cfg.URL)
}
