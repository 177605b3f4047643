// Command cadbridge runs the operation bridge daemon and administers it.
//
// The daemon (cadbridge serve) owns the engine state and serves JSON-RPC on
// port 9875. The other subcommands edit the settings file, mint admin tokens
// and talk to a running daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Stamped by the release build with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// versionLine is what `cadbridge --version` prints after the program name.
func versionLine() string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

func main() {
	err := newRootCommand().ExecuteContext(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		os.Exit(130)
	default:
		fmt.Fprintf(os.Stderr, "cadbridge: %v\n", err)
		os.Exit(1)
	}
}
