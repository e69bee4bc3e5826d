package commands

import (
	"log"

	"github.com/spf13/cobra"

	"farmdirect/db"
)

// migrateCmd creates or updates the schema and exits
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if err := db.Migrate(conn); err != nil {
			return err
		}
		log.Println("Database migrations completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
