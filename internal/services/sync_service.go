package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/bizpulse/mailsync/internal/blobstore"
	"github.com/bizpulse/mailsync/internal/database/models"
	"github.com/bizpulse/mailsync/internal/mailbox"
	"github.com/bizpulse/mailsync/internal/resilience"
)

// SyncStatus is the outcome classification of one sync run
type SyncStatus string

const (
	// SyncCompleted means the run finished; per-account errors may still be recorded
	SyncCompleted SyncStatus = "completed"
	// SyncFailed means account enumeration itself failed
	SyncFailed SyncStatus = "failed"
	// SyncNoAccounts means the user has no enabled accounts
	SyncNoAccounts SyncStatus = "no_accounts_configured"
)

// SyncResult aggregates one orchestration run
type SyncResult struct {
	Status       SyncStatus `json:"status"`
	EmailsSynced int        `json:"emails_synced"`
	Errors       []string   `json:"errors,omitempty"`
}

// ProgressFunc receives running counts from within the orchestration loop.
// It must not block.
type ProgressFunc func(accountsProcessed, emailsSynced int)

// SyncOptions controls one sync run
type SyncOptions struct {
	// Days limits the historical window: -1 all, 0 incremental since the
	// account's last sync, >0 a fixed number of days back.
	Days     int
	Progress ProgressFunc
}

// AccountProgress is the per-account view of a running or finished sync
type AccountProgress struct {
	AccountID uint   `json:"account_id"`
	Status    string `json:"status"` // "idle", "running", "completed", "failed"
	Fetched   int    `json:"fetched"`
	Saved     int    `json:"saved"`
	Skipped   int    `json:"skipped"`
	Error     string `json:"error,omitempty"`
}

// SyncService drives mailbox synchronization: it enumerates a user's
// accounts, runs connect and fetch through the mail-connectivity retry
// profile, skips messages already persisted, and stores new ones together
// with their deduplicated attachments.
type SyncService struct {
	db             *gorm.DB
	accountService *AccountService
	opener         mailbox.SessionOpener
	blobs          *blobstore.Store
	logService     *LogService

	maxRetries int
	retryBase  time.Duration

	progressMu sync.RWMutex
	progress   map[uint]*AccountProgress
}

// NewSyncService creates a new SyncService instance
func NewSyncService(db *gorm.DB, accountService *AccountService, opener mailbox.SessionOpener, blobs *blobstore.Store, logService *LogService, maxRetries int) *SyncService {
	return &SyncService{
		db:             db,
		accountService: accountService,
		opener:         opener,
		blobs:          blobs,
		logService:     logService,
		maxRetries:     maxRetries,
		retryBase:      time.Second,
		progress:       make(map[uint]*AccountProgress),
	}
}

// SetRetryBase overrides the retry backoff unit. Tests use a tiny delay.
func (s *SyncService) SetRetryBase(d time.Duration) {
	s.retryBase = d
}

// GetProgress returns the progress of the latest sync for an account
func (s *SyncService) GetProgress(accountID uint) AccountProgress {
	s.progressMu.RLock()
	defer s.progressMu.RUnlock()
	if p, ok := s.progress[accountID]; ok {
		return *p
	}
	return AccountProgress{AccountID: accountID, Status: "idle"}
}

func (s *SyncService) setProgress(accountID uint, update func(*AccountProgress)) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	p, ok := s.progress[accountID]
	if !ok {
		p = &AccountProgress{AccountID: accountID}
		s.progress[accountID] = p
	}
	update(p)
}

// SyncUser synchronizes every enabled account of a user. Configuration
// errors, unsupported providers, exhausted connect retries and per-message
// storage faults are recorded in the result's error list without failing
// the run; only a failure to enumerate accounts yields SyncFailed. A run
// cancelled before any account was processed reports SyncCompleted with
// zero synced messages.
func (s *SyncService) SyncUser(ctx context.Context, userID uint, opts SyncOptions) SyncResult {
	accounts, err := s.accountService.GetEnabledAccountsByUserID(userID)
	if err != nil {
		return SyncResult{Status: SyncFailed, Errors: []string{err.Error()}}
	}
	if len(accounts) == 0 {
		return SyncResult{Status: SyncNoAccounts}
	}

	result := SyncResult{Status: SyncCompleted}
	accountsProcessed := 0

	for i := range accounts {
		// 账户之间检查取消信号
		if ctx.Err() != nil {
			break
		}

		account := &accounts[i]
		saved, err := s.syncAccount(ctx, account, opts)
		result.EmailsSynced += saved
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("account %s: %v", account.Email, err))
			s.setProgress(account.ID, func(p *AccountProgress) {
				p.Status = "failed"
				p.Error = err.Error()
			})
		}

		accountsProcessed++
		if opts.Progress != nil {
			opts.Progress(accountsProcessed, result.EmailsSynced)
		}
	}

	s.logService.LogInfo(userID, models.LogModuleSync, "sync", "Sync run finished", map[string]interface{}{
		"accounts_processed": accountsProcessed,
		"emails_synced":      result.EmailsSynced,
		"errors":             len(result.Errors),
	})

	return result
}

// syncAccount synchronizes one account and returns how many messages were
// persisted. All returned errors are per-account: the caller records them
// and moves on.
func (s *SyncService) syncAccount(ctx context.Context, account *models.EmailAccount, opts SyncOptions) (int, error) {
	settings, err := mailbox.ResolveConnection(account)
	if err != nil {
		// Configuration and unsupported-provider errors are fatal for the
		// account and never retried.
		return 0, err
	}

	s.setProgress(account.ID, func(p *AccountProgress) {
		*p = AccountProgress{AccountID: account.ID, Status: "running"}
	})

	policy, err := resilience.Build(
		NewRetryLogger(s.logService, account.UserID, models.LogModuleSync),
		fmt.Sprintf("sync %s", account.Email),
		s.maxRetries,
		resilience.MailConnectivity,
	)
	if err != nil {
		return 0, err
	}
	policy.WithBaseDelay(s.retryBase)

	syncStartedAt := time.Now()
	since := sinceFor(account, opts.Days)

	// Connect and fetch as one retryable unit: a transient fault mid-fetch
	// usually means the session is gone, so each attempt reopens it.
	var fetched []mailbox.FetchedEmail
	err = policy.Execute(ctx, func(ctx context.Context) error {
		session, openErr := s.opener.Open(ctx, settings, account)
		if openErr != nil {
			return openErr
		}
		defer session.Close()

		msgs, fetchErr := session.Fetch(ctx, since, func(messageID string) bool {
			return s.messageExists(s.db, account.ID, messageID)
		})
		if fetchErr != nil {
			return fetchErr
		}
		fetched = msgs
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.setProgress(account.ID, func(p *AccountProgress) { p.Fetched = len(fetched) })

	saved, skipped, saveErrs := s.saveMessages(ctx, account, fetched)

	if err := s.accountService.UpdateLastSync(account.ID, syncStartedAt); err != nil {
		s.logService.LogWarn(account.UserID, models.LogModuleSync, "last_sync", "Failed to record last sync time", map[string]interface{}{
			"account_id": account.ID,
			"error":      err.Error(),
		})
	}

	s.setProgress(account.ID, func(p *AccountProgress) {
		p.Status = "completed"
		p.Saved = saved
		p.Skipped = skipped
	})

	s.logService.LogInfo(account.UserID, models.LogModuleSync, "sync_account", "Account sync completed", map[string]interface{}{
		"account_id":    account.ID,
		"fetched_count": len(fetched),
		"saved_count":   saved,
		"skipped_count": skipped,
		"days":          opts.Days,
	})

	if len(saveErrs) > 0 {
		return saved, errors.Join(saveErrs...)
	}
	return saved, nil
}

// saveMessages persists the new messages of one account inside a single
// transaction (the account's commit boundary). A storage fault on one
// message skips that message only; cancellation stops the loop at the next
// message boundary, committing what was already inserted.
func (s *SyncService) saveMessages(ctx context.Context, account *models.EmailAccount, fetched []mailbox.FetchedEmail) (saved, skipped int, errs []error) {
	if len(fetched) == 0 {
		return 0, 0, nil
	}

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		for i := range fetched {
			if ctx.Err() != nil {
				break
			}

			msg := &fetched[i]

			// Idempotency guard: re-checked here because the session's
			// exists filter ran before any writes.
			if s.messageExists(tx, account.ID, msg.MessageID) {
				skipped++
				continue
			}

			email := mailbox.MapMessage(msg, account, models.FolderInbox)

			attachments, err := s.storeAttachments(msg)
			if err != nil {
				errs = append(errs, fmt.Errorf("message %s: %w", msg.MessageID, err))
				continue
			}

			if err := tx.Create(email).Error; err != nil {
				errs = append(errs, fmt.Errorf("message %s: %w", msg.MessageID, err))
				continue
			}

			for _, att := range attachments {
				att.EmailID = email.ID
				if err := tx.Create(att).Error; err != nil {
					errs = append(errs, fmt.Errorf("message %s attachment %s: %w", msg.MessageID, att.Filename, err))
				}
			}

			saved++
		}
		return nil
	})
	if txErr != nil {
		errs = append(errs, txErr)
		saved = 0
	}

	return saved, skipped, errs
}

// storeAttachments writes a message's attachments into the blob store and
// returns the relational records to insert once the email row exists.
func (s *SyncService) storeAttachments(msg *mailbox.FetchedEmail) ([]*models.Attachment, error) {
	var records []*models.Attachment
	for _, att := range msg.Attachments {
		res, err := s.blobs.Put(att.Filename, att.ContentType, att.Content)
		if err != nil {
			return nil, err
		}
		records = append(records, &models.Attachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			ContentHash: res.Hash,
			StoragePath: res.Path,
			Size:        res.Size,
		})
	}
	return records, nil
}

// messageExists reports whether a message-id is already persisted for an
// account.
func (s *SyncService) messageExists(db *gorm.DB, accountID uint, messageID string) bool {
	var count int64
	db.Model(&models.Email{}).
		Where("account_id = ? AND message_id = ?", accountID, messageID).
		Count(&count)
	return count > 0
}

// sinceFor computes the lower bound of the fetch window
func sinceFor(account *models.EmailAccount, days int) time.Time {
	switch {
	case days > 0:
		return time.Now().AddDate(0, 0, -days)
	case days == 0:
		if account.LastSyncAt.IsZero() {
			// 首次同步默认取最近 30 天
			return time.Now().AddDate(0, 0, -30)
		}
		// overlap one day so boundary messages are not missed
		return account.LastSyncAt.AddDate(0, 0, -1)
	default:
		return time.Time{}
	}
}
