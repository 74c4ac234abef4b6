package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bizpulse/mailsync/internal/blobstore"
	"github.com/bizpulse/mailsync/internal/services"
)

var accountsUserID uint

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage email accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's email accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if accountsUserID == 0 {
			return fmt.Errorf("--user is required")
		}

		accountService := services.NewAccountService(db, cfg.GetEncryptionKey())
		accounts, err := accountService.GetAccountsByUserID(accountsUserID)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tPROVIDER\tENABLED\tLAST SYNC")
		for _, a := range accounts {
			lastSync := "never"
			if !a.LastSyncAt.IsZero() {
				lastSync = a.LastSyncAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n", a.ID, a.Email, a.Provider, a.Enabled, lastSync)
		}
		return w.Flush()
	},
}

var blobsCmd = &cobra.Command{
	Use:   "blobs",
	Short: "Inspect the attachment blob store",
}

var blobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show blob store totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		blobs, err := blobstore.New(cfg.GetBlobsDir())
		if err != nil {
			return err
		}
		fmt.Printf("blobs: %d\n", blobs.Count())
		fmt.Printf("total size: %d bytes\n", blobs.TotalSize())
		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the API key",
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current API key",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(apiKeyManager.GetCurrentKey())
	},
}

var keyResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Generate a new API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := apiKeyManager.ResetKey()
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

func init() {
	accountsListCmd.Flags().UintVar(&accountsUserID, "user", 0, "user id")
	accountsCmd.AddCommand(accountsListCmd)
	blobsCmd.AddCommand(blobsStatsCmd)
	keyCmd.AddCommand(keyShowCmd, keyResetCmd)
}
