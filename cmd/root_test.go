package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gpsrelay/util"
)

// writeConfig creates a properties file in a temp dir.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.properties")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// noEnv names a dotenv file that does not exist.
func noEnv(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	if err := Execute(context.Background(), []string{"--version"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_Help verifies --help returns without error.
func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"-h"}} {
		t.Run(args[0], func(t *testing.T) {
			if err := Execute(context.Background(), args); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// TestExecute_DryRun verifies --dry-run validates and exits cleanly.
func TestExecute_DryRun(t *testing.T) {
	cfg := writeConfig(t, "server.port=5055\nhandler.url=http://localhost:8080/gps/receive\n")
	err := Execute(context.Background(), []string{
		"--config", cfg, "--env-file", noEnv(t), "--dry-run", "-vv",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_DryRunBundled verifies the bundled default is used when
// the properties file is missing.
func TestExecute_DryRunBundled(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.properties")
	err := Execute(context.Background(), []string{
		"--config", missing, "--env-file", noEnv(t), "--dry-run",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestExecute_DryRunInvalid verifies --dry-run still catches bad configs.
func TestExecute_DryRunInvalid(t *testing.T) {
	cfg := writeConfig(t, "server.port=5055\nhandler.url=http://localhost/gps\n")
	tests := []struct {
		name string
		args []string
	}{
		{"bad port", []string{"-p", "http"}},
		{"port out of range", []string{"-p", "70000"}},
		{"bad scheme", []string{"-u", "ftp://localhost/gps"}},
		{"bad log level", []string{"--log-level", "chatty"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", cfg, "--env-file", noEnv(t), "--dry-run"}, tt.args...)
			if err := Execute(context.Background(), args); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

// TestExecute_InvalidFlags verifies unknown flags produce an error.
func TestExecute_InvalidFlags(t *testing.T) {
	if err := Execute(context.Background(), []string{"--nonexistent-flag"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

// TestExecute_Positional verifies stray arguments are rejected.
func TestExecute_Positional(t *testing.T) {
	if err := Execute(context.Background(), []string{"localhost", "5055"}); err == nil {
		t.Fatal("expected error for positional arguments")
	}
}

// TestExecute_RunUntilCancelled starts the relay and stops it through
// the context.
func TestExecute_RunUntilCancelled(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	cfg := writeConfig(t, fmt.Sprintf(
		"server.host=127.0.0.1\nserver.port=%d\nhandler.url=http://127.0.0.1:1/gps\nadmin.addr=127.0.0.1:0\n", port))

	args := []string{"--config", cfg, "--env-file", noEnv(t), "--log-level", "error"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Execute(ctx, args) }()

	// Wait until the relay accepts connections.
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 200*time.Millisecond)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("relay never accepted: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}

// TestExecute_BindFailure verifies a taken port is fatal.
func TestExecute_BindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer taken.Close()
	port := taken.Addr().(*net.TCPAddr).Port

	cfg := writeConfig(t, fmt.Sprintf(
		"server.host=127.0.0.1\nserver.port=%d\nhandler.url=http://127.0.0.1:1/gps\n", port))

	err = Execute(context.Background(), []string{"--config", cfg, "--env-file", noEnv(t), "--log-level", "error"})
	if err == nil {
		t.Fatal("expected bind error")
	}
}
