// Package cli defines the cobra command tree for johap.
package cli

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evcraddock/johap/internal/client"
	"github.com/evcraddock/johap/internal/db"
)

var (
	flagFormat string
	flagDB     string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jh",
		Short:         "Run and administer a housing-union service",
		Long:          "johap serves the housing-union API and administers unions, guest tokens and ownership conflicts from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (default: ~/.config/johap/johap.db)")

	root.AddCommand(
		newServeCmd(),
		newUnionCmd(),
		newTokenCmd(),
		newConflictCmd(),
		newMemberCmd(),
		newKeyCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// dbPath returns the --db flag, the fallback, or the default path.
func dbPath(fallback string) (string, error) {
	if flagDB != "" {
		return flagDB, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return db.DefaultPath()
}

// openDB opens the SQLite database for commands that work on the local
// store.
func openDB() (*sql.DB, error) {
	path, err := dbPath(os.Getenv("JOHAP_DB_PATH"))
	if err != nil {
		return nil, err
	}
	return db.Open(path)
}

// newAPIClient creates an HTTP client for the johap API.
func newAPIClient() *client.Client {
	s := resolveSettings()
	return client.New(s.ServerURL, s.APIKey)
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
