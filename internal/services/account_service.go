package services

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/bizpulse/mailsync/internal/database/models"
)

var (
	// ErrAccountNotFound indicates the email account was not found
	ErrAccountNotFound = errors.New("email account not found")
	// ErrAccountAlreadyExists indicates the email account already exists for this user
	ErrAccountAlreadyExists = errors.New("email account already exists for this user")
	// ErrInvalidAccountData indicates invalid account data
	ErrInvalidAccountData = errors.New("invalid account data")
	// ErrEncryptionFailed indicates credential encryption failed
	ErrEncryptionFailed = errors.New("credential encryption failed")
	// ErrDecryptionFailed indicates credential decryption failed
	ErrDecryptionFailed = errors.New("credential decryption failed")
	// ErrNoRefreshToken indicates the account has no OAuth refresh token
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// AccountService handles email account business logic and doubles as the
// credential source for the mailbox dialer.
type AccountService struct {
	db            *gorm.DB
	encryptionKey []byte // 32 bytes for AES-256
	logService    *LogService
	oauthClientID string
	oauthSecret   string
}

// NewAccountService creates a new AccountService instance
func NewAccountService(db *gorm.DB, encryptionKey []byte) *AccountService {
	// Ensure key is 32 bytes for AES-256
	key := make([]byte, 32)
	copy(key, encryptionKey)
	return &AccountService{
		db:            db,
		encryptionKey: key,
		logService:    NewLogService(db),
	}
}

// SetOAuthClient configures the client credentials used for token refresh
func (s *AccountService) SetOAuthClient(clientID, clientSecret string) {
	s.oauthClientID = clientID
	s.oauthSecret = clientSecret
}

// encryptSecret encrypts a credential using AES-256-GCM
func (s *AccountService) encryptSecret(secret string) (string, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", ErrEncryptionFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrEncryptionFailed
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrEncryptionFailed
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(secret), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decryptSecret decrypts a credential using AES-256-GCM
func (s *AccountService) decryptSecret(encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", ErrDecryptionFailed
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// CreateAccountInput represents the input for creating an email account
type CreateAccountInput struct {
	UserID      uint
	Email       string
	DisplayName string
	Provider    models.Provider
	IMAPHost    string
	IMAPPort    int
	Username    string
	Password    string
	UseSSL      bool
	SyncDays    int
}

// CreateAccount creates a new email account for a user. Well-known
// providers need no host; generic IMAP accounts must carry one.
func (s *AccountService) CreateAccount(input CreateAccountInput) (*models.EmailAccount, error) {
	if input.Email == "" || input.Username == "" || input.Password == "" {
		return nil, ErrInvalidAccountData
	}

	provider := input.Provider
	if provider == "" {
		provider = models.ProviderIMAP
	}
	if provider == models.ProviderIMAP && input.IMAPHost == "" {
		return nil, ErrInvalidAccountData
	}

	var existingAccount models.EmailAccount
	if err := s.db.Where("user_id = ? AND email = ?", input.UserID, input.Email).First(&existingAccount).Error; err == nil {
		return nil, ErrAccountAlreadyExists
	}

	encryptedPassword, err := s.encryptSecret(input.Password)
	if err != nil {
		return nil, err
	}

	account := &models.EmailAccount{
		UserID:            input.UserID,
		Email:             input.Email,
		DisplayName:       input.DisplayName,
		Provider:          provider,
		IMAPHost:          input.IMAPHost,
		IMAPPort:          input.IMAPPort,
		Username:          input.Username,
		PasswordEncrypted: encryptedPassword,
		AuthType:          models.AuthTypePassword,
		UseSSL:            input.UseSSL,
		SyncDays:          input.SyncDays,
		Enabled:           true,
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, err
	}

	s.logService.LogInfo(input.UserID, models.LogModuleAccount, "create", "Email account created", map[string]interface{}{
		"account_id": account.ID,
		"email":      account.Email,
		"provider":   account.Provider,
	})

	return account, nil
}

// GetAccountByIDAndUserID retrieves an email account by ID and user ID (for authorization)
func (s *AccountService) GetAccountByIDAndUserID(id, userID uint) (*models.EmailAccount, error) {
	var account models.EmailAccount
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountsByUserID retrieves all email accounts for a user
func (s *AccountService) GetAccountsByUserID(userID uint) ([]models.EmailAccount, error) {
	var accounts []models.EmailAccount
	if err := s.db.Where("user_id = ?", userID).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetEnabledAccountsByUserID retrieves all enabled email accounts for a user
func (s *AccountService) GetEnabledAccountsByUserID(userID uint) ([]models.EmailAccount, error) {
	var accounts []models.EmailAccount
	if err := s.db.Where("user_id = ? AND enabled = ?", userID, true).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// ListSyncUserIDs returns the distinct user ids that have enabled accounts
func (s *AccountService) ListSyncUserIDs() ([]uint, error) {
	var userIDs []uint
	if err := s.db.Model(&models.EmailAccount{}).
		Where("enabled = ?", true).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, err
	}
	return userIDs, nil
}

// SetAccountEnabled sets the enabled status of an account
func (s *AccountService) SetAccountEnabled(id, userID uint, enabled bool) (*models.EmailAccount, error) {
	account, err := s.GetAccountByIDAndUserID(id, userID)
	if err != nil {
		return nil, err
	}

	account.Enabled = enabled

	if err := s.db.Save(account).Error; err != nil {
		return nil, err
	}

	s.logService.LogInfo(userID, models.LogModuleAccount, "status", "Account status changed", map[string]interface{}{
		"account_id": account.ID,
		"enabled":    enabled,
	})

	return account, nil
}

// UpdateLastSync records when an account was last synchronized
func (s *AccountService) UpdateLastSync(accountID uint, at time.Time) error {
	return s.db.Model(&models.EmailAccount{}).Where("id = ?", accountID).Update("last_sync_at", at).Error
}

// Password returns the decrypted password for a password-auth account.
// Implements mailbox.CredentialSource.
func (s *AccountService) Password(account *models.EmailAccount) (string, error) {
	return s.decryptSecret(account.PasswordEncrypted)
}

// AccessToken returns a valid OAuth access token for the account,
// refreshing through the token endpoint when the stored one has expired.
// Implements mailbox.CredentialSource.
func (s *AccountService) AccessToken(ctx context.Context, account *models.EmailAccount) (string, error) {
	accessToken := ""
	if account.OAuthAccessToken != "" {
		token, err := s.decryptSecret(account.OAuthAccessToken)
		if err != nil {
			return "", err
		}
		accessToken = token
	}

	if accessToken != "" && account.OAuthTokenExpiry.After(time.Now()) {
		return accessToken, nil
	}

	return s.refreshAccessToken(ctx, account)
}

// refreshAccessToken exchanges the refresh token for a new access token
func (s *AccountService) refreshAccessToken(ctx context.Context, account *models.EmailAccount) (string, error) {
	if account.OAuthRefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	refreshToken, err := s.decryptSecret(account.OAuthRefreshToken)
	if err != nil {
		return "", err
	}

	conf := &oauth2.Config{
		ClientID:     s.oauthClientID,
		ClientSecret: s.oauthSecret,
		Endpoint:     google.Endpoint,
	}

	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", err
	}

	encryptedAccess, err := s.encryptSecret(token.AccessToken)
	if err != nil {
		return "", err
	}

	updates := map[string]interface{}{
		"oauth_access_token": encryptedAccess,
		"oauth_token_expiry": token.Expiry,
	}
	if err := s.db.Model(&models.EmailAccount{}).Where("id = ?", account.ID).Updates(updates).Error; err != nil {
		return "", err
	}

	return token.AccessToken, nil
}
