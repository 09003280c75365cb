package cli

import (
	"fmt"

	"github.com/monorkin/flow-index-monitor/internal/database"
	"github.com/monorkin/flow-index-monitor/internal/globals"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations and print the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Opening the database applies pending migrations.
		db, err := globals.Database()
		if err != nil {
			return err
		}
		defer database.Close(db)

		version, err := database.CurrentSchemaVersion(db)
		if err != nil {
			return err
		}

		fmt.Printf("Schema version: %d\n", version)
		return nil
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := globals.Database()
		if err != nil {
			return err
		}
		defer database.Close(db)

		version, err := database.Rollback(db)
		if err != nil {
			return err
		}

		fmt.Printf("Rolled back migration %d\n", version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbRollbackCmd)
}
