package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"farmdirect/config"
)

var (
	// Global flags
	dbDriver string
	dbURL    string

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "farmdirect",
	Short: "FarmDirect - farmer-to-consumer marketplace server",
	Long: `FarmDirect serves the marketplace API: direct orders, timed auctions,
ratings between the two parties of a completed order, and a websocket
change stream.

Configuration is read from .env and the environment (PORT, HOST,
DB_DRIVER, DATABASE_URL, JWT_SECRET, CORS_ALLOW_ORIGINS). Flags override it.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.LoadConfig()
		if dbDriver != "" {
			cfg.DBDriver = dbDriver
		}
		if dbURL != "" {
			cfg.DatabaseURL = dbURL
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", "", "Database driver: sqlite, mysql or postgres")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Database URL or sqlite file path")
}
