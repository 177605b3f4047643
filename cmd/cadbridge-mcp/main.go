// Command cadbridge-mcp exposes a running cadbridge daemon to MCP clients
// over stdio. Every tool is forwarded to the daemon's JSON-RPC endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cadbridge/internal/infrastructure/config"
	"github.com/nerrad567/cadbridge/internal/infrastructure/logging"
	"github.com/nerrad567/cadbridge/internal/mcpserver"
	"github.com/nerrad567/cadbridge/internal/rpcclient"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

type options struct {
	url      string
	textOnly bool
	logLevel string
	logFile  string
}

func newRootCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "cadbridge-mcp",
		Short:         "MCP server for a running cadbridge daemon",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", rpcclient.DefaultURL, "Base URL of the cadbridge daemon")
	cmd.Flags().BoolVar(&opts.textOnly, "only-text-feedback", false, "Never attach screenshots to tool results")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "Append logs to this file instead of stderr")
	return cmd
}

func newServer(opts options, log *logging.Logger) (*mcpserver.Server, error) {
	return mcpserver.New(rpcclient.New(opts.url), mcpserver.Options{
		TextOnly: opts.textOnly,
		Version:  version,
		Logger:   log,
	})
}

// run serves MCP on stdio until the client disconnects or ctx ends.
// Logs go to stderr or --log-file because stdout carries the protocol.
func run(ctx context.Context, opts options) error {
	output := "stderr"
	if opts.logFile != "" {
		output = opts.logFile
	}
	log := logging.New(config.LoggingConfig{Level: opts.logLevel, Format: "text", Output: output}, version)
	defer log.Close() //nolint:errcheck // exiting
	log.Info("starting cadbridge-mcp", "bridge_url", opts.url, "text_only", opts.textOnly)

	server, err := newServer(opts, log)
	if err != nil {
		return err
	}
	return server.RunStdio(ctx)
}
