package main

import (
	"fmt"
	"time"

	"courtmaster/internal/auth"
	"courtmaster/internal/config"
	"courtmaster/internal/database"
	"courtmaster/internal/domain"
	"courtmaster/internal/repo"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// tokenCmd mints a bearer token for local testing; real logins happen upstream.
func tokenCmd() *cobra.Command {
	var (
		name  string
		phone string
		role  string
	)
	cmd := &cobra.Command{
		Use:   "token <email>",
		Short: "Create or update a user and print a bearer token for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := domain.Role(role)
			switch r {
			case domain.RoleCustomer, domain.RoleStaff, domain.RoleOwner:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.NewPostgres(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := repo.NewUserRepo(db).UpsertByEmail(ctx, &domain.User{
				ID:        uuid.New(),
				Email:     args[0],
				FullName:  name,
				Phone:     phone,
				Role:      r,
				CreatedAt: time.Now(),
			})
			if err != nil {
				return err
			}

			tok, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Mint(user, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user:  %s (%s)\ntoken: %s\n", user.ID, user.Role, tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleCustomer), "customer, staff or owner")
	return cmd
}
