package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bizpulse/mailsync/internal/services"
)

// SyncHandler exposes sync orchestration over HTTP
type SyncHandler struct {
	syncService *services.SyncService
	scheduler   *services.SyncScheduler
}

// NewSyncHandler creates a new SyncHandler instance
func NewSyncHandler(syncService *services.SyncService, scheduler *services.SyncScheduler) *SyncHandler {
	return &SyncHandler{syncService: syncService, scheduler: scheduler}
}

// TriggerSync starts a sync run for a user
// POST /api/sync/:userID?days=N
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userID"), 10, 32)
	if err != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	days := 0
	if v := c.Query("days"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days < -1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
	}

	if !h.scheduler.TryLockUser(uint(userID)) {
		c.JSON(http.StatusConflict, gin.H{"error": "sync already running for this user"})
		return
	}
	defer h.scheduler.UnlockUser(uint(userID))

	result := h.syncService.SyncUser(c.Request.Context(), uint(userID), services.SyncOptions{Days: days})

	status := http.StatusOK
	if result.Status == services.SyncFailed {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

// GetProgress returns the latest sync progress for an account
// GET /api/sync/progress/:accountID
func (h *SyncHandler) GetProgress(c *gin.Context) {
	accountID, err := strconv.ParseUint(c.Param("accountID"), 10, 32)
	if err != nil || accountID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	c.JSON(http.StatusOK, h.syncService.GetProgress(uint(accountID)))
}
