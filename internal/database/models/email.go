package models

import (
	"time"
)

// Mail folders
const (
	FolderInbox   = "inbox"
	FolderSent    = "sent"
	FolderArchive = "archive"
)

// Email represents a synchronized email message.
// MessageID is unique per account, not globally: the sync pipeline checks
// (account_id, message_id) existence before insert so re-running a sync
// never duplicates a message.
type Email struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AccountID      uint      `gorm:"not null;uniqueIndex:idx_account_message" json:"account_id"`
	UserID         uint      `gorm:"index;not null" json:"user_id"`
	MessageID      string    `gorm:"size:255;not null;uniqueIndex:idx_account_message" json:"message_id"`
	Subject        string    `gorm:"size:500" json:"subject"`
	FromAddr       string    `gorm:"size:255" json:"from"`
	ToAddrs        string    `gorm:"type:text" json:"to"` // JSON array stored as string
	Date           time.Time `gorm:"index" json:"date"`
	Body           string    `gorm:"type:text" json:"body"`
	HTMLBody       string    `gorm:"type:text" json:"html_body"`
	HasAttachments bool      `gorm:"default:false" json:"has_attachments"`
	IsRead         bool      `gorm:"default:false" json:"is_read"`
	Folder         string    `gorm:"size:50;default:inbox;index" json:"folder"`
	CreatedAt      time.Time `json:"created_at"`

	// Relations
	Attachments []Attachment `gorm:"foreignKey:EmailID" json:"attachments,omitempty"`
}
