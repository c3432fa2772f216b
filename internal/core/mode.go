// Package core is the orchestration layer.  It wires the forwarder,
// the connection handler and the listener into a runnable mode and
// provides a builder that assembles it from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  forward  →  session  →  handler  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode of gpsrelay.  It owns its full
// lifecycle from binding to shutdown.
type Mode interface {
	Run(ctx context.Context) error
}
