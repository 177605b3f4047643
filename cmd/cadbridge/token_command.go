package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cadbridge/internal/auth"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the admin API",
		Long: "Mint a bearer token signed with security.jwt.secret (or CADBRIDGE_JWT_SECRET).\n" +
			"Viewers may read status and history; admins may also change the allow-list.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			secret := cfg.Security.JWT.Secret
			if secret == "" {
				return errors.New("no admin secret configured: set security.jwt.secret or CADBRIDGE_JWT_SECRET")
			}
			r := auth.Role(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %q (want viewer or admin)", role)
			}
			if ttl <= 0 {
				ttl = time.Duration(cfg.Security.JWT.TokenTTL) * time.Minute
			}
			signer, err := auth.NewSigner(secret)
			if err != nil {
				return err
			}
			token, err := signer.Issue(subject, r, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "Name recorded as the actor of admin changes")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleAdmin), "Token role: viewer or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default security.jwt.token_ttl minutes)")
	return cmd
}
