package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"dispatch/internal/app"
	"dispatch/internal/config"
	"dispatch/internal/repository/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	db, err := app.NewDatabase(ctx, cfg.Database, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	log.Info().Str("database", cfg.Database.DBName).Msg("schema applied")
	return nil
}
