package services

import (
	"context"
	"log"
	"sync"
	"time"
)

// SyncScheduler runs automatic background synchronization for every user
// with enabled accounts.
type SyncScheduler struct {
	accountService *AccountService
	syncService    *SyncService
	interval       time.Duration
	stopChan       chan struct{}
	running        bool
	mu             sync.Mutex
	syncing        sync.Mutex // 防止同步周期重叠
	userLocks      sync.Map   // 每个用户独立锁，防止并发同步同一用户
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(accountService *AccountService, syncService *SyncService, interval time.Duration) *SyncScheduler {
	return &SyncScheduler{
		accountService: accountService,
		syncService:    syncService,
		interval:       interval,
		stopChan:       make(chan struct{}),
	}
}

// Start begins the automatic sync process
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("[SyncScheduler] Starting with interval: %v", s.interval)

	go func() {
		// 启动后等待 10 秒再执行第一次同步，让服务完全就绪
		select {
		case <-time.After(10 * time.Second):
			s.syncAllUsers()
		case <-s.stopChan:
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.syncAllUsers()
			case <-s.stopChan:
				log.Println("[SyncScheduler] Stopping")
				return
			}
		}
	}()
}

// Stop stops the automatic sync process
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopChan)
	s.running = false
}

// TryLockUser marks a user as syncing (also used by manual sync triggers
// to avoid racing the scheduler). Returns false if already syncing.
func (s *SyncScheduler) TryLockUser(userID uint) bool {
	_, loaded := s.userLocks.LoadOrStore(userID, true)
	return !loaded
}

// UnlockUser releases a user's sync lock
func (s *SyncScheduler) UnlockUser(userID uint) {
	s.userLocks.Delete(userID)
}

// syncAllUsers runs one sync cycle over all users with enabled accounts
func (s *SyncScheduler) syncAllUsers() {
	// 如果上一轮还没结束，跳过本轮
	if !s.syncing.TryLock() {
		log.Println("[SyncScheduler] Previous sync still running, skipping this cycle")
		return
	}
	defer s.syncing.Unlock()

	userIDs, err := s.accountService.ListSyncUserIDs()
	if err != nil {
		log.Printf("[SyncScheduler] Failed to list users: %v", err)
		return
	}
	if len(userIDs) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	for _, userID := range userIDs {
		if !s.TryLockUser(userID) {
			log.Printf("[SyncScheduler] User %d is already syncing, skipping", userID)
			continue
		}

		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			defer s.UnlockUser(userID)

			result := s.syncService.SyncUser(ctx, userID, SyncOptions{Days: 0})
			if result.EmailsSynced > 0 || len(result.Errors) > 0 {
				log.Printf("[SyncScheduler] User %d: status=%s synced=%d errors=%d",
					userID, result.Status, result.EmailsSynced, len(result.Errors))
			}
		}(userID)
	}
	wg.Wait()
}
