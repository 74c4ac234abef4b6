package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bizpulse/mailsync/internal/blobstore"
	"github.com/bizpulse/mailsync/internal/mailbox"
	"github.com/bizpulse/mailsync/internal/services"
)

var (
	syncUserID uint
	syncDays   int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize all enabled accounts of a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncUserID == 0 {
			return fmt.Errorf("--user is required")
		}

		blobs, err := blobstore.New(cfg.GetBlobsDir())
		if err != nil {
			return err
		}

		logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
		accountService := services.NewAccountService(db, cfg.GetEncryptionKey())
		dialer := mailbox.NewDialer(accountService)
		syncService := services.NewSyncService(db, accountService, dialer, blobs, logService, cfg.SyncRetries)

		// Ctrl-C 取消，等待在途写入完成
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result := syncService.SyncUser(ctx, syncUserID, services.SyncOptions{
			Days: syncDays,
			Progress: func(accounts, synced int) {
				fmt.Printf("\raccounts: %d  synced: %d", accounts, synced)
			},
		})
		fmt.Println()

		fmt.Printf("status: %s\n", result.Status)
		fmt.Printf("emails synced: %d\n", result.EmailsSynced)
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "error: %s\n", e)
		}

		if result.Status == services.SyncFailed {
			return fmt.Errorf("sync failed")
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().UintVar(&syncUserID, "user", 0, "user id to sync")
	syncCmd.Flags().IntVar(&syncDays, "days", 0, "days to sync: -1 all, 0 incremental, >0 fixed window")
}
