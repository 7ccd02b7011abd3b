package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/noah-isme/substitution-api/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.logger.Sync() //nolint:errcheck

		db, err := e.openDB(context.Background())
		if err != nil {
			return err
		}
		defer db.Close()
		return database.RunMigrations(db.DB, e.logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
