package main

import (
	"fmt"

	"github.com/spf13/cobra"

	sqlitestorage "macroBot/internal/infrastructure/persistence/sqlite"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database migrations and print the schema version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := sqlitestorage.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := sqlitestorage.RunMigrations(db); err != nil {
			return err
		}
		version, err := sqlitestorage.SchemaVersion(db)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s is at schema version %d\n", cfg.DatabasePath, version)
		return nil
	},
}
