package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/bizpulse/mailsync/internal/api/middleware"
	"github.com/bizpulse/mailsync/internal/config"
)

var (
	db            *gorm.DB
	cfg           *config.Config
	apiKeyManager *middleware.APIKeyManager
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mailsync",
	Short: "mailsync mailbox synchronization service",
	Long: `mailsync pulls messages from configured mailboxes into the local
store, deduplicating attachments by content hash.

Examples:
  mailsync sync --user 1              incremental sync for user 1
  mailsync sync --user 1 --days 30    sync the last 30 days
  mailsync accounts list --user 1     list a user's accounts
  mailsync blobs stats                attachment store totals
  mailsync key show                   show the current API key`,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, configuration *config.Config) {
	db = database
	cfg = configuration

	var err error
	apiKeyManager, err = middleware.NewAPIKeyManager(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize API key manager: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(blobsCmd)
	rootCmd.AddCommand(keyCmd)
}
