// gpsrelay relays GPS tracker messages from TCP to an HTTP web server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gpsrelay/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "gpsrelay: %v\n", err)
		os.Exit(1)
	}
}
