package config

// loader.go - configuration loading.
//
// Precedence order (highest wins):
//   1. CLI flags bound with BindFlags (cmd/root.go)
//   2. Environment variables, GPSRELAY_ prefix (.env is loaded first)
//   3. config.properties in the working directory or --config
//   4. The bundled config.properties compiled into the binary
//   5. Defaults (defaults.go)

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	relayerrors "gpsrelay/internal/errors"
	"gpsrelay/util"
)

//go:embed config.properties
var bundled []byte

// flagKeys maps CLI flag names onto property keys.
var flagKeys = map[string]string{ //nolint:gochecknoglobals
	"host":      KeyServerHost,
	"port":      KeyServerPort,
	"url":       KeyHandlerURL,
	"log-level": KeyLogLevel,
	"admin":     KeyAdminAddr,
}

// Loader reads a Config from its layered sources.
type Loader struct {
	// Path of the user properties file (default: DefaultConfigFile).
	Path string
	// EnvFile is a dotenv file loaded into the environment before
	// environment overrides are applied (default: DefaultEnvFile).
	EnvFile string
	// Bundled overrides the compiled-in fallback; tests use it.
	Bundled []byte
	Logger  *util.Logger

	v *viper.Viper
}

// NewLoader returns a Loader for the given properties path.
func NewLoader(path string, logger *util.Logger) *Loader {
	if path == "" {
		path = DefaultConfigFile
	}
	if logger == nil {
		logger = util.NewLogger(-1)
	}
	return &Loader{
		Path:    path,
		EnvFile: DefaultEnvFile,
		Bundled: bundled,
		Logger:  logger,
		v:       newViper(),
	}
}

// BindFlags lets flags that were set explicitly override every other
// source.  Unknown flag names are skipped.
func (l *Loader) BindFlags(fs *flag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := l.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads the user properties file, falling back to the bundled
// default when it is missing or unreadable, then applies environment
// and flag overrides.  It fails when neither file can be read or the
// resulting values are invalid.
func (l *Loader) Load() (*Config, error) {
	if l.EnvFile != "" {
		if err := godotenv.Load(l.EnvFile); err != nil && !os.IsNotExist(err) {
			l.Logger.Warn("loading %s: %v", l.EnvFile, err)
		}
	}

	source, err := l.readProperties()
	if err != nil {
		return nil, err
	}

	port, err := ParsePort(l.v.GetString(KeyServerPort))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Host:            strings.TrimSpace(l.v.GetString(KeyServerHost)),
		Port:            port,
		BufferSize:      l.v.GetInt(KeyBufferSize),
		ReadTimeout:     l.v.GetDuration(KeyReadTimeout),
		URL:             strings.TrimSpace(l.v.GetString(KeyHandlerURL)),
		ForwardTimeout:  l.v.GetDuration(KeyForwardTimeout),
		MaxMessageBytes: l.v.GetInt64(KeyMaxMessageBytes),
		LogLevel:        l.v.GetString(KeyLogLevel),
		AdminAddr:       strings.TrimSpace(l.v.GetString(KeyAdminAddr)),
		Source:          source,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readProperties loads the user file, else the bundled one, and
// returns a description of which one was used.
func (l *Loader) readProperties() (string, error) {
	l.Logger.Verbose("loading user config %s", l.Path)

	data, err := os.ReadFile(l.Path)
	if err == nil {
		err = l.v.ReadConfig(bytes.NewReader(data))
	}
	if err == nil {
		return l.Path, nil
	}
	l.Logger.Warn("user config %s: %v", l.Path, err)

	if len(l.Bundled) == 0 {
		return "", fmt.Errorf("%w: %s unreadable and no bundled default", relayerrors.ErrNoConfig, l.Path)
	}
	l.Logger.Verbose("loading default config")
	if err := l.v.ReadConfig(bytes.NewReader(l.Bundled)); err != nil {
		return "", fmt.Errorf("%w: bundled default: %v", relayerrors.ErrNoConfig, err)
	}
	return "bundled default", nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("properties")

	v.SetDefault(KeyBufferSize, DefaultBufferSize)
	v.SetDefault(KeyForwardTimeout, DefaultForwardTimeout)
	v.SetDefault(KeyMaxMessageBytes, DefaultMaxMessageBytes)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
