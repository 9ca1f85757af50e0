// AngelaMos | 2026
// migrate.go

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/carterperez-dev/templates/account-service/internal/config"
	"github.com/carterperez-dev/templates/account-service/internal/core"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, or inspect the embedded PostgreSQL migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m *core.Migrator) error {
				if err := m.Up(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("direction", "up").Wrap(err)
				}
				cmd.Println("Migrations applied")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m *core.Migrator) error {
				if err := m.Down(); err != nil {
					return oops.Code("MIGRATION_FAILED").With("direction", "down").Wrap(err)
				}
				cmd.Println("Migrations rolled back")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(func(m *core.Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return oops.Code("MIGRATION_FAILED").With("operation", "version").Wrap(err)
				}
				cmd.Println(formatVersion(v, dirty))
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(fn func(m *core.Migrator) error) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	m, err := core.NewMigrator(cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	//nolint:errcheck // best-effort close after the command finished
	defer m.Close()

	return fn(m)
}

func migrateUp(databaseURL string) error {
	m, err := core.NewMigrator(databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	//nolint:errcheck // best-effort close after migrating
	defer m.Close()

	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("direction", "up").Wrap(err)
	}
	return nil
}

func formatVersion(v uint, dirty bool) string {
	if v == 0 {
		return "no migrations applied"
	}
	if dirty {
		return fmt.Sprintf("version %d (dirty)", v)
	}
	return fmt.Sprintf("version %d", v)
}
