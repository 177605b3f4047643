package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cadbridge/internal/infrastructure/database"
	"github.com/nerrad567/cadbridge/internal/journal"
	"github.com/nerrad567/cadbridge/internal/rpcclient"
)

// offlineAnnotations marks commands that only talk to a running daemon.
var offlineAnnotations = map[string]string{"skipConfigLoad": "true"}

func newPingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "ping",
		Short:       "Check that a daemon answers",
		Annotations: offlineAnnotations,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			if err := ctx.client().Ping(cmd.Context()); err != nil {
				return wrapClientError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pong (%s)\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

type bridgeStatus struct {
	QueueDepth     int      `json:"queue_depth"`
	Documents      []string `json:"documents"`
	ActiveDocument *string  `json:"active_document"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "status",
		Short:       "Show queue depth and open documents",
		Annotations: offlineAnnotations,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := ctx.client().CallEnvelope(cmd.Context(), "get_bridge_status")
			if err != nil {
				return wrapClientError(err)
			}
			if !env.Success {
				return errors.New(env.Message())
			}
			var st bridgeStatus
			if err := remarshal(env.Data, &st); err != nil {
				return err
			}
			active := "-"
			if st.ActiveDocument != nil {
				active = *st.ActiveDocument
			}
			rows := [][]string{
				{"Queue depth", strconv.Itoa(st.QueueDepth)},
				{"Open documents", strconv.Itoa(len(st.Documents))},
				{"Active document", active},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit int
		admin bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently executed tasks, or admin changes with --admin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if admin {
				return showAdminEvents(cmd, ctx, limit)
			}
			env, err := ctx.client().CallEnvelope(cmd.Context(), "get_task_history", limit)
			if err != nil {
				return wrapClientError(err)
			}
			if !env.Success {
				return errors.New(env.Message())
			}
			var entries []journal.Entry
			if err := remarshal(env.Data, &entries); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Finished", "Method", "Result", "Duration", "Message"},
				historyRows(entries),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&admin, "admin", false, "Show admin changes from the local journal database")
	return cmd
}

func historyRows(entries []journal.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		result := "ok"
		switch {
		case !e.Succeeded:
			result = "failed"
		case e.Abandoned:
			result = "ok (abandoned)"
		}
		rows = append(rows, []string{
			e.FinishedAt.Local().Format("2006-01-02 15:04:05"),
			e.Method,
			result,
			(time.Duration(e.DurationUS) * time.Microsecond).String(),
			e.Message,
		})
	}
	return rows
}

func showAdminEvents(cmd *cobra.Command, ctx *commandContext, limit int) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled {
		return errors.New("the journal database is disabled")
	}
	db, err := database.Open(cmd.Context(), database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // best effort close
	if err := db.Migrate(cmd.Context()); err != nil {
		return err
	}

	events, err := journal.NewSQLiteAdminRepository(db.DB).Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		details := ""
		if len(ev.Details) > 0 {
			b, _ := json.Marshal(ev.Details) //nolint:errcheck // decoded from JSON
			details = string(b)
		}
		rows = append(rows, []string{ev.CreatedAt.Local().Format("2006-01-02 15:04:05"), ev.Action, ev.Source, ev.Actor, details})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"When", "Action", "Source", "Actor", "Details"}, rows, nil))
	return nil
}

// remarshal converts decoded envelope data into a typed value.
func remarshal(data any, v any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func wrapClientError(err error) error {
	var rpcErr *rpcclient.Error
	switch {
	case errors.As(err, &rpcErr):
		return err
	case errors.Is(err, rpcclient.ErrNoResponse):
		return fmt.Errorf("connect to daemon: connection closed without a response; check the allow-list")
	default:
		return fmt.Errorf("connect to daemon: %w; start it with `cadbridge serve`", err)
	}
}
