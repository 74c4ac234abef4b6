package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bizpulse/mailsync/internal/api/handlers"
	"github.com/bizpulse/mailsync/internal/api/middleware"
	"github.com/bizpulse/mailsync/internal/blobstore"
	"github.com/bizpulse/mailsync/internal/config"
	"github.com/bizpulse/mailsync/internal/mailbox"
	"github.com/bizpulse/mailsync/internal/services"
)

// SetupRouter initializes the Gin router with all routes configured and
// starts the background sync scheduler.
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *middleware.APIKeyManager, error) {
	router := gin.Default()

	// 配置 CORS - 允许跨域请求
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.CORSOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", middleware.APIKeyHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	apiKeyManager, err := middleware.NewAPIKeyManager(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	blobs, err := blobstore.New(cfg.GetBlobsDir())
	if err != nil {
		return nil, nil, err
	}

	logService := services.NewLogServiceWithLevel(db, cfg.LogLevel)
	accountService := services.NewAccountService(db, cfg.GetEncryptionKey())
	dialer := mailbox.NewDialer(accountService)
	syncService := services.NewSyncService(db, accountService, dialer, blobs, logService, cfg.SyncRetries)

	scheduler := services.NewSyncScheduler(accountService, syncService, cfg.GetSyncInterval())
	scheduler.Start()

	syncHandler := handlers.NewSyncHandler(syncService, scheduler)
	attachmentHandler := handlers.NewAttachmentHandler(db, blobs)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.Use(middleware.APIKeyMiddleware(apiKeyManager))

		api.POST("/sync/:userID", syncHandler.TriggerSync)
		api.GET("/sync/progress/:accountID", syncHandler.GetProgress)

		api.GET("/attachments/stats", attachmentHandler.Stats)
		api.GET("/attachments/:id", attachmentHandler.Download)
	}

	return router, apiKeyManager, nil
}
