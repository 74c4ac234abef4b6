package models

import (
	"time"
)

// Attachment links an email to a blob in the content-addressable store.
// Several attachments may point at the same blob: identical content hashes
// to the same storage path, and the blob store writes it only once.
type Attachment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EmailID     uint      `gorm:"index;not null" json:"email_id"`
	Filename    string    `gorm:"size:255;not null" json:"filename"`
	ContentType string    `gorm:"size:100" json:"content_type"`
	ContentHash string    `gorm:"size:64;index;not null" json:"content_hash"`
	StoragePath string    `gorm:"size:500;not null" json:"storage_path"`
	Size        int64     `gorm:"not null" json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}
