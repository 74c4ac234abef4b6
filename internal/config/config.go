package config

import (
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabasePath  string `json:"database_path"`
	APIPort       string `json:"api_port"`
	LogLevel      string `json:"log_level"`
	DataDir       string `json:"data_dir"`
	BlobsDir      string `json:"blobs_dir"`      // 附件存储目录（独立于数据目录）
	EncryptionKey string `json:"encryption_key"` // 用于加密邮箱密码
	CORSOrigins   string `json:"cors_origins"`
	SyncInterval  string `json:"sync_interval"` // e.g. "2m"
	SyncRetries   int    `json:"sync_retries"`  // additional connect attempts per account
}

// Default configuration values
const (
	DefaultDatabasePath  = "data/mailsync.db"
	DefaultAPIPort       = "8080"
	DefaultLogLevel      = "INFO"
	DefaultDataDir       = "data"
	DefaultBlobsDir      = "" // 空表示使用 DataDir/blobs
	DefaultEncryptionKey = "mailsync-default-key-change-in-production"
	DefaultCORSOrigins   = "*"
	DefaultSyncInterval  = "2m"
	DefaultSyncRetries   = 2
)

// Load loads configuration from environment variables and config file
// Priority: Environment variables > Config file > Default values
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:  DefaultDatabasePath,
		APIPort:       DefaultAPIPort,
		LogLevel:      DefaultLogLevel,
		DataDir:       DefaultDataDir,
		BlobsDir:      DefaultBlobsDir,
		EncryptionKey: DefaultEncryptionKey,
		CORSOrigins:   DefaultCORSOrigins,
		SyncInterval:  DefaultSyncInterval,
		SyncRetries:   DefaultSyncRetries,
	}

	// Config file is optional
	_ = cfg.loadFromFile()

	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from config.json file
func (c *Config) loadFromFile() error {
	configPaths := []string{
		"config.json",
		filepath.Join(c.DataDir, "config.json"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return json.Unmarshal(data, c)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if val := os.Getenv("MAILSYNC_DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("MAILSYNC_API_PORT"); val != "" {
		c.APIPort = val
	}
	if val := os.Getenv("MAILSYNC_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("MAILSYNC_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("MAILSYNC_BLOBS_DIR"); val != "" {
		c.BlobsDir = val
	}
	if val := os.Getenv("MAILSYNC_ENCRYPTION_KEY"); val != "" {
		c.EncryptionKey = val
	}
	if val := os.Getenv("MAILSYNC_CORS_ORIGINS"); val != "" {
		c.CORSOrigins = val
	}
	if val := os.Getenv("MAILSYNC_SYNC_INTERVAL"); val != "" {
		c.SyncInterval = val
	}
	if val := os.Getenv("MAILSYNC_SYNC_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			c.SyncRetries = n
		}
	}
}

// GetBlobsDir returns the directory for attachment blob storage
// If BlobsDir is set, use it; otherwise use DataDir/blobs
func (c *Config) GetBlobsDir() string {
	if c.BlobsDir != "" {
		return c.BlobsDir
	}
	return filepath.Join(c.DataDir, "blobs")
}

// GetEncryptionKey returns the 32-byte key for credential encryption
func (c *Config) GetEncryptionKey() []byte {
	// 使用 SHA-256 确保密钥长度为 32 字节
	hash := sha256.Sum256([]byte(c.EncryptionKey))
	return hash[:]
}

// GetSyncInterval parses the scheduler interval, falling back to the default
func (c *Config) GetSyncInterval() time.Duration {
	d, err := time.ParseDuration(c.SyncInterval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultSyncInterval)
	}
	return d
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
