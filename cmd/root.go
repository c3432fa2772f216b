// Package cmd wires up the CLI flags, loads the configuration and runs
// the relay.
package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"gpsrelay/config"
	"gpsrelay/internal/admin"
	"gpsrelay/internal/core"
	"gpsrelay/internal/metrics"
	"gpsrelay/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X gpsrelay/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// adminShutdownTimeout bounds the admin server's graceful stop.
const adminShutdownTimeout = 5 * time.Second

// Execute parses args, loads the configuration and runs the relay
// until ctx is cancelled.
func Execute(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gpsrelay", flag.ContinueOnError)

	// ── configuration sources ────────────────────────────────────
	configPath := fs.StringP("config", "c", config.DefaultConfigFile, "Properties file")
	envFile := fs.String("env-file", config.DefaultEnvFile, "Dotenv file loaded before environment overrides")

	// ── overrides ────────────────────────────────────────────────
	// Bound to property keys by config.Loader.BindFlags; only flags
	// given on the command line take effect.
	fs.String("host", "", "Bind host (server.host)")
	fs.StringP("port", "p", "", "Listen port (server.port)")
	fs.StringP("url", "u", "", "Forwarding URL (handler.url)")
	fs.String("log-level", "", "error, warn, info, debug or trace (log.level)")
	fs.String("admin", "", "Address for /health, /ready and /metrics (admin.addr)")

	// ── output ───────────────────────────────────────────────────
	var verbose int
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var dryRun, showVersion, showHelp bool
	fs.BoolVar(&dryRun, "dry-run", false, "Load and validate the configuration, then exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("gpsrelay %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v (use --help for usage)", fs.Args())
	}

	// ── load ─────────────────────────────────────────────────────
	boot := util.NewLogger(int(util.LogNormal) + verbose)

	loader := config.NewLoader(*configPath, boot)
	loader.EnvFile = *envFile
	if err := loader.BindFlags(fs); err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	cfg.Verbose = verbose

	logger := util.NewLogger(cfg.Verbosity())
	logConfig(logger, cfg)

	if dryRun {
		logger.Info("Configuration OK")
		return nil
	}
	return run(ctx, cfg, logger)
}

// run starts the optional admin server and blocks in the listener.
func run(ctx context.Context, cfg *config.Config, logger *util.Logger) error {
	m := metrics.New()

	mode, err := core.Build(cfg, logger, m)
	if err != nil {
		return err
	}

	if cfg.AdminAddr != "" {
		adm := admin.New(cfg.AdminAddr, m, logger)
		if err := adm.Start(); err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
			defer cancel()
			if err := adm.Stop(sctx); err != nil {
				logger.Warn("admin shutdown: %v", err)
			}
		}()
		mode.Ready = func(net.Addr) { adm.SetReady(true) }
	}

	var runner core.Mode = mode
	return runner.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

func logConfig(logger *util.Logger, cfg *config.Config) {
	logger.Info("Configuration loaded from %s", cfg.Source)
	for _, kv := range cfg.Properties() {
		logger.Verbose("  %s=%s", kv[0], kv[1])
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `gpsrelay – GPS tracker TCP to HTTP relay v%s

Accepts TCP connections from GPS trackers, reads each message until the
tracker closes the connection and forwards it to a web server as a
form-encoded POST (field "message").

Usage:
  gpsrelay [options]

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Configuration is read from config.properties in the working directory,
falling back to the bundled default. Every key can be overridden with a
GPSRELAY_ environment variable, e.g. GPSRELAY_HANDLER_URL.

Examples:
  gpsrelay                                    Use config.properties
  gpsrelay -p 5055 -u http://web/gps/receive  Override port and URL
  gpsrelay --admin :9090 -v                   Expose /metrics, verbose
  gpsrelay --dry-run -vv                      Print effective settings
`)
}
