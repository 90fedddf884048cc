// Package cli defines the cobra command tree for house-deals.
package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/house-deals/internal/client"
	"github.com/evcraddock/house-deals/internal/config"
	"github.com/evcraddock/house-deals/internal/db"
)

var (
	flagFormat string
	flagDB     string
	flagConfig string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hd",
		Short:         "Negotiate property deals",
		Long:          "A tool to negotiate property purchases. List properties, book visits, and trade offers and counter-offers until a deal closes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (default: ~/.house-deals/deals.db)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "server config file (YAML)")

	root.AddCommand(
		newPropertyCmd(),
		newVisitCmd(),
		newOfferCmd(),
		newDealCmd(),
		newServeCmd(),
		newSweepCmd(),
		newTokenCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// loadServerConfig loads the server configuration from --config and the
// environment. --db takes precedence over the configured database path.
func loadServerConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DatabasePath = flagDB
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openDB opens the SQLite database at the configured path.
func openDB(cfg *config.Config) (*sql.DB, error) {
	return db.Open(cfg.DatabasePath)
}

// newAPIClient creates an HTTP client for the house-deals API.
func newAPIClient() *client.Client {
	return client.New(getServerURL(), getToken())
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}

// closeDB closes the database, logging any error to stderr.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}
