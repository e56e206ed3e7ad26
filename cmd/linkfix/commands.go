package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/memohai/linkfix/internal/auth"
	"github.com/memohai/linkfix/internal/db"
	"github.com/memohai/linkfix/internal/linkfix"
	"github.com/memohai/linkfix/internal/logger"
	"github.com/memohai/linkfix/internal/policy"
	"github.com/memohai/linkfix/internal/provider"
	"github.com/memohai/linkfix/internal/render"
)

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err := db.MigrateUp(logger.L, cfg.Postgres.DSN()); err != nil {
		return err
	}
	return printVersion(cmd, cfg.Postgres.DSN())
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	steps, err := parseSteps(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err := db.MigrateDown(logger.L, cfg.Postgres.DSN(), steps); err != nil {
		return err
	}
	return printVersion(cmd, cfg.Postgres.DSN())
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return printVersion(cmd, cfg.Postgres.DSN())
}

func printVersion(cmd *cobra.Command, dsn string) error {
	version, dirty, err := db.MigrationVersion(logger.L, dsn)
	if err != nil {
		return err
	}
	suffix := ""
	if dirty {
		suffix = " (dirty)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d%s\n", version, suffix)
	return nil
}

func runProviders(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := provider.LoadRegistry(cfg.LinkFix.ProvidersFile)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tFIX DOMAIN\tSTRATEGY\tENABLED")
	for _, p := range reg.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", p.ID, p.Name, p.FixDomain, p.Strategy, p.DefaultEnabled)
	}
	return w.Flush()
}

// runCheck previews a message against the catalog with default guild
// settings. Verified providers are not contacted.
func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	reg, err := provider.LoadRegistry(cfg.LinkFix.ProvidersFile)
	if err != nil {
		return err
	}
	log := logger.L
	svc := linkfix.NewService(log, reg,
		policy.NewFilter(log, policy.NewMemoryStore(), reg),
		render.NewRenderer(log, nil, render.Options{}),
		nil, nil, nil, nil,
		linkfix.Options{},
	)
	preview, err := svc.Preview(context.Background(), "cli", strings.Join(args, " "))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(preview.Links) == 0 {
		fmt.Fprintln(out, "no fixable links")
		return nil
	}
	for _, l := range preview.Links {
		fmt.Fprintf(out, "%s\t%s\n\t%s\n", l.ProviderID, l.OriginalURL, l.Text)
	}
	log.Debug("check done", slog.Int("links", len(preview.Links)))
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	token, expiresAt, err := auth.GenerateToken(args[0], cfg.Auth.JWTSecret, cfg.Auth.ExpiresIn())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
