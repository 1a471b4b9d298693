package main

import (
	"github.com/spf13/cobra"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/config"
	orderpg "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/infrastructure/postgres"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/pkg/logging"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel)
			if err := orderpg.RunMigrations(cfg.PGURL); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
