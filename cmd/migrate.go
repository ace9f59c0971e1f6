package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/db"
	"github.com/quarryhq/quarry/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the embedded database migrations, provisioning the pgvector
extension and the default vector table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Postgres.Validate(); err != nil {
			return err
		}
		if err := db.Migrate(cfg.Postgres.URL); err != nil {
			return err
		}
		fmt.Println("Migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
