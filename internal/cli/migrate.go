package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"jaterm_gateway/internal/storage"
)

func newMigrateCommand() *cobra.Command {
	var (
		driver string
		dsn    string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the gateway schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return fmt.Errorf("database URL is required: pass --database-url or set DATABASE_URL")
			}

			cfg := storage.DefaultDBConfig()
			cfg.Driver = driver
			cfg.DSN = dsn
			cfg.SkipMigrations = true

			db, err := storage.NewDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s)\n", db.Dialect())
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", envOr("DATABASE_DRIVER", storage.DriverPostgres), "Database driver: postgres or sqlite")
	cmd.Flags().StringVar(&dsn, "database-url", envOr("DATABASE_URL", ""), "Database URL or sqlite path")
	return cmd
}
