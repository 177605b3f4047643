package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cadbridge/internal/access"
	"github.com/nerrad567/cadbridge/internal/infrastructure/config"
	"github.com/nerrad567/cadbridge/internal/infrastructure/database"
	"github.com/nerrad567/cadbridge/internal/journal"
	"github.com/nerrad567/cadbridge/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect the persisted bridge settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show every setting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := settings.Load(cfg.Settings.Path)
			if err != nil {
				return err
			}
			rows := [][]string{
				{"remote_enabled", yesNo(st.RemoteEnabled)},
				{"allowed_ips", st.AllowedIPs},
				{"auto_start_server", yesNo(st.AutoStartServer)},
				{"startup_remote_enabled", yesNo(st.StartupRemoteEnabled)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows, nil))
			fmt.Fprintf(cmd.OutOrStdout(), "File: %s\n", cfg.Settings.Path)
			return nil
		},
	})
	return cmd
}

func newAllowListCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowlist",
		Short: "Show or replace the address allow-list",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "List the allowed addresses and networks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := settings.Load(cfg.Settings.Path)
			if err != nil {
				return err
			}
			list, warnings := access.Parse(st.AllowedIPs)
			rows := make([][]string, 0, list.Len())
			for _, entry := range list.Entries() {
				kind := "address"
				if strings.Contains(entry, "/") {
					kind = "network"
				}
				rows = append(rows, []string{entry, kind})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Entry", "Kind"}, rows, nil))
			for _, w := range warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "ignored: %s\n", w)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <entries>",
		Short: "Replace the allow-list with comma-separated addresses and CIDR networks",
		Long: "Replace the allow-list. A running daemon keeps its current list until restarted;\n" +
			"use PUT /api/v1/admin/allowlist to change it live.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var dropped []string
			st, err := settings.Update(cfg.Settings.Path, func(s *settings.Settings) error {
				var setErr error
				dropped, setErr = s.SetAllowList(args[0])
				return setErr
			})
			if err != nil {
				return fmt.Errorf("invalid allow-list: %w", err)
			}
			for _, d := range dropped {
				fmt.Fprintf(cmd.ErrOrStderr(), "ignored: %s\n", d)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Allow-list set to %s\n", st.AllowedIPs)
			recordCLIEvent(cmd, cfg, journal.ActionAllowListSet, map[string]any{"allowed_ips": st.AllowedIPs})
			return nil
		},
	})
	return cmd
}

func newRemoteCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Turn remote access on or off",
		Long: "Remote access makes the daemon listen on every interface instead of loopback.\n" +
			"The setting is applied when the daemon starts.",
	}
	toggle := func(enable bool) *cobra.Command {
		use, action := "disable", journal.ActionRemoteDisable
		if enable {
			use, action = "enable", journal.ActionRemoteEnable
		}
		return &cobra.Command{
			Use:   use,
			Short: use + " remote access",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				if _, err := settings.Update(cfg.Settings.Path, func(s *settings.Settings) error {
					s.RemoteEnabled = enable
					s.StartupRemoteEnabled = enable
					return nil
				}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Remote access %sd; restart the daemon to apply\n", use)
				recordCLIEvent(cmd, cfg, action, nil)
				return nil
			},
		}
	}
	cmd.AddCommand(toggle(true), toggle(false))
	return cmd
}

// recordCLIEvent appends an admin event to the journal database. Failures are
// reported but never fail the command.
func recordCLIEvent(cmd *cobra.Command, cfg *config.Config, action string, details map[string]any) {
	if !cfg.Database.Enabled {
		return
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	err := func() error {
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck // read-mostly handle
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		return journal.NewSQLiteAdminRepository(db.DB).Create(ctx, &journal.AdminEvent{
			Action:  action,
			Actor:   os.Getenv("USER"),
			Source:  "cli",
			Details: details,
		})
	}()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: admin event not recorded: %v\n", err)
	}
}
