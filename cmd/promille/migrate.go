package main

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/hperssn/promille/internal/config"
	"github.com/hperssn/promille/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations to the configured stores",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		targets := []struct {
			name    string
			driver  string
			dsn     string
			dialect goose.Dialect
		}{
			{"sqlite", "sqlite3", cfg.Storage.SQLitePath, goose.DialectSQLite3},
			{"postgres", "postgres", cfg.Storage.PostgresDSN, goose.DialectPostgres},
		}

		for _, t := range targets {
			if t.dsn == "" {
				continue
			}
			db, err := sql.Open(t.driver, t.dsn)
			if err != nil {
				return fmt.Errorf("%s: %w", t.name, err)
			}
			applied, err := storage.Migrate(cmd.Context(), db, t.dialect)
			db.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", t.name, err)
			}

			if len(applied) == 0 {
				fmt.Printf("%s: schema up to date\n", t.name)
			} else {
				fmt.Printf("%s: applied %v\n", t.name, applied)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
