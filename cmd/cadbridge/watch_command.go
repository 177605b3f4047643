package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cadbridge/internal/infrastructure/mqtt"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow task and document events from the MQTT broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.MQTT.Enabled {
				return errors.New("mqtt is disabled in the configuration; enable mqtt.enabled to publish events")
			}

			client, err := mqtt.ConnectWatcher(cfg.MQTT)
			if err != nil {
				return err
			}
			defer client.Close() //nolint:errcheck // listen-only session

			out := cmd.OutOrStdout()
			events := make(chan mqtt.Event, eventBuffer)
			if err := client.Watch(byte(cfg.MQTT.QoS), func(ev mqtt.Event) { //nolint:gosec // qos validated 0-2
				select {
				case events <- ev:
				default:
				}
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s (Ctrl-C to stop)\n", client.Topics().All())

			sigCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			for {
				select {
				case ev := <-events:
					printEvent(out, ev)
				case <-sigCtx.Done():
					return nil
				}
			}
		},
	}
}

// printEvent writes one event as a single line.
func printEvent(w io.Writer, ev mqtt.Event) {
	switch {
	case ev.Task != nil:
		status := "ok"
		if !ev.Task.Succeeded {
			status = "failed: " + ev.Task.Message
		}
		if ev.Task.Abandoned {
			status += " (caller gone)"
		}
		fmt.Fprintf(w, "%s task   %-22s %6dµs %s\n",
			ev.Task.FinishedAt.Local().Format("15:04:05.000"), ev.Task.Method, ev.Task.DurationUS, status)
	case ev.Document != nil:
		fmt.Fprintf(w, "%s doc    %-22s %s\n",
			ev.Document.Timestamp.Local().Format("15:04:05.000"), ev.Document.Document, ev.Document.Method)
	}
}
