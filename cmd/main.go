package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/bizpulse/mailsync/internal/api"
	"github.com/bizpulse/mailsync/internal/cli"
	"github.com/bizpulse/mailsync/internal/config"
	"github.com/bizpulse/mailsync/internal/database"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := ensureDirs(cfg); err != nil {
		log.Fatalf("Failed to create data directories: %v", err)
	}

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Check if running CLI command
	if len(os.Args) > 1 {
		cli.Execute(db, cfg)
		return
	}

	router, apiKeyManager, err := api.SetupRouter(db, cfg)
	if err != nil {
		log.Fatalf("Failed to setup router: %v", err)
	}

	log.Printf("Starting mailsync server on port %s", cfg.APIPort)
	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Blobs directory: %s", cfg.GetBlobsDir())
	log.Printf("Database path: %s", cfg.DatabasePath)
	log.Printf("API Key: %s", apiKeyManager.GetCurrentKey())
	if err := router.Run(":" + cfg.APIPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureDirs creates the data and blob directories if they don't exist
func ensureDirs(cfg *config.Config) error {
	for _, dir := range []string{cfg.DataDir, cfg.GetBlobsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
