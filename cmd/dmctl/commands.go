package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CypherNinjaa/social-media-sub000/internal/domain/profile"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/config"
	mongodb "github.com/CypherNinjaa/social-media-sub000/internal/infra/db/mongo"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/db/postgres"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/jobs"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/obs"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/security"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dmctl",
		Short:         "Operational tasks for the messaging service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().String("env-file", ".env", "dotenv file read before the environment")
	cmd.AddCommand(
		newMigrateCmd(),
		newSweepCmd(),
		newIssueTokenCmd(),
		newPutProfileCmd(),
	)
	return cmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	file, _ := cmd.Flags().GetString("env-file")
	return config.Load(file)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			db, err := postgres.Open(cmd.Context(), cfg.DatabaseURL, obs.NewLogger(cfg.Env))
			if err != nil {
				return err
			}
			defer postgres.Close(db)
			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep-orphans",
		Short: "Remove conversations that lost a participant",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			grace, _ := cmd.Flags().GetDuration("grace")
			logger := obs.NewLogger(cfg.Env)
			db, err := postgres.Open(cmd.Context(), cfg.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer postgres.Close(db)

			janitor := &jobs.Janitor{UoWFactory: postgres.Factory{DB: db}, Grace: grace, Logger: logger}
			removed, err := janitor.SweepOrphans(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d conversations\n", removed)
			return nil
		},
	}
	cmd.Flags().Duration("grace", 10*time.Minute, "skip conversations younger than this")
	return cmd
}

func newIssueTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue-token <user-id>",
		Short: "Mint an access token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("AUTH_JWT_SECRET is required")
			}
			username, _ := cmd.Flags().GetString("username")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			issuer := security.TokenIssuer{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer, TTL: ttl}
			token, err := issuer.Issue(args[0], username, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("username", "", "username claim")
	cmd.Flags().Duration("ttl", 2*time.Hour, "token lifetime")
	return cmd
}

func newPutProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put-profile <user-id>",
		Short: "Create or replace a public profile in MongoDB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.MongoURI == "" {
				return errors.New("MONGO_URI is required")
			}
			p := profile.Profile{UserID: args[0]}
			p.Username, _ = cmd.Flags().GetString("username")
			p.AvatarURL, _ = cmd.Flags().GetString("avatar-url")
			p.AvatarKey, _ = cmd.Flags().GetString("avatar-key")

			client, err := mongodb.New(cmd.Context(), cfg.MongoURI, cfg.MongoDB)
			if err != nil {
				return err
			}
			defer client.Close(cmd.Context())
			if err := mongodb.NewProfileDirectory(client.DB).Upsert(cmd.Context(), p); err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(p)
		},
	}
	cmd.Flags().String("username", "", "display username")
	cmd.Flags().String("avatar-url", "", "public avatar URL")
	cmd.Flags().String("avatar-key", "", "object key in the avatar bucket")
	return cmd
}
