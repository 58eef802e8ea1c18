package main

import (
	"github.com/prudhvinik1/notesync/internal/database"
	"github.com/spf13/cobra"
)

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	pool, err := database.NewPostgresPool(cmd.Context(), cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.RunMigrations(cmd.Context(), pool, log); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}
