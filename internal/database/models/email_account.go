package models

import (
	"time"
)

// Provider identifies the mail provider an account belongs to. Well-known
// providers carry fixed connection settings; generic IMAP accounts are
// configured field by field.
type Provider string

const (
	ProviderGmail    Provider = "gmail"
	ProviderOutlook  Provider = "outlook"
	ProviderIMAP     Provider = "imap"
	ProviderExchange Provider = "exchange"
)

// Authentication types for email accounts
const (
	AuthTypePassword = "password"
	AuthTypeOAuth2   = "oauth2"
)

// EmailAccount represents a mailbox configured by a user
type EmailAccount struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	UserID            uint      `gorm:"index;not null" json:"user_id"`
	Email             string    `gorm:"size:255;not null" json:"email"`
	DisplayName       string    `gorm:"size:100" json:"display_name"`
	Provider          Provider  `gorm:"size:32;default:imap" json:"provider"`
	IMAPHost          string    `gorm:"size:255" json:"imap_host"`
	IMAPPort          int       `json:"imap_port"`
	Username          string    `gorm:"size:255;not null" json:"username"`
	PasswordEncrypted string    `gorm:"size:500" json:"-"`
	AuthType          string    `gorm:"size:20;default:password" json:"auth_type"`
	OAuthProvider     string    `gorm:"size:50" json:"oauth_provider,omitempty"`
	OAuthAccessToken  string    `gorm:"type:text" json:"-"`
	OAuthRefreshToken string    `gorm:"type:text" json:"-"`
	OAuthTokenExpiry  time.Time `json:"oauth_token_expiry,omitempty"`
	UseSSL            bool      `gorm:"default:true" json:"use_ssl"`
	Enabled           bool      `gorm:"default:true" json:"enabled"`
	IsPrimary         bool      `gorm:"default:false" json:"is_primary"`
	SyncDays          int       `gorm:"default:-1" json:"sync_days"` // Days to sync: -1=all, 0=incremental, >0=specific days
	LastSyncAt        time.Time `json:"last_sync_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Relations
	Emails []Email `gorm:"foreignKey:AccountID" json:"emails,omitempty"`
}
