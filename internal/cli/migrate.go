package cli

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq" // драйвер "postgres" для database/sql
	"github.com/spf13/cobra"

	"github.com/yourusername/microlearn-api/internal/config"
	"github.com/yourusername/microlearn-api/pkg/database"
)

// NewMigrateCmd управляет схемой базы данных
func NewMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrationDB(*configPath, func(db *sql.DB, path string) error {
				return database.MigrateUp(db, path)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Force schema version and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil || version < 0 {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return withMigrationDB(*configPath, func(db *sql.DB, path string) error {
				return database.ForceMigrationVersion(db, path, version)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrationDB(*configPath, func(db *sql.DB, path string) error {
				version, dirty, err := database.MigrationVersion(db, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
				return nil
			})
		},
	})

	return cmd
}

func withMigrationDB(configPath string, fn func(db *sql.DB, path string) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", cfg.Database.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return fn(db, cfg.Database.MigrationsPath)
}
