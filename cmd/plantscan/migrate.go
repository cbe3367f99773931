package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/plantscan/internal/config"
	"github.com/bryanwahyu/plantscan/internal/infra/db"
	"github.com/bryanwahyu/plantscan/internal/infra/db/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		ctx, cancel := signalContext()
		defer cancel()

		conn, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
		}
		defer conn.Close()

		if err := migrations.MigrateUp(conn, cfg.Database.Driver); err != nil {
			return err
		}
		v, dirty, err := migrations.Version(conn, cfg.Database.Driver)
		if err != nil {
			return err
		}
		fmt.Printf("Schema version %d (dirty=%v)\n", v, dirty)
		return nil
	},
}
