package services

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bizpulse/mailsync/internal/database/models"
)

func setupAccountTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "account_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&models.EmailAccount{}, &models.Log{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// Property: credentials survive an encrypt/decrypt roundtrip, and the
// ciphertext never leaks the plaintext.
func TestProperty_CredentialEncryptionRoundtrip(t *testing.T) {
	db := setupAccountTestDB(t)
	service := NewAccountService(db, []byte("roundtrip-test-key"))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("decrypt_inverts_encrypt", prop.ForAll(
		func(secret string) bool {
			if secret == "" {
				return true
			}

			encrypted, err := service.encryptSecret(secret)
			if err != nil {
				return false
			}
			if encrypted == secret {
				return false
			}

			decrypted, err := service.decryptSecret(encrypted)
			if err != nil {
				return false
			}
			return decrypted == secret
		},
		gen.AnyString(),
	))

	properties.Property("nonce_makes_ciphertexts_distinct", prop.ForAll(
		func(secret string) bool {
			if secret == "" {
				return true
			}
			a, errA := service.encryptSecret(secret)
			b, errB := service.encryptSecret(secret)
			return errA == nil && errB == nil && a != b
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestDecryptWithWrongKey(t *testing.T) {
	db := setupAccountTestDB(t)
	service := NewAccountService(db, []byte("key-one"))
	other := NewAccountService(db, []byte("key-two"))

	encrypted, err := service.encryptSecret("app password")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	if _, err := other.decryptSecret(encrypted); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("decrypt with wrong key = %v, want ErrDecryptionFailed", err)
	}
	if _, err := service.decryptSecret("not base64 at all!"); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("decrypt garbage = %v, want ErrDecryptionFailed", err)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	db := setupAccountTestDB(t)
	service := NewAccountService(db, []byte("test-key"))

	tests := []struct {
		name    string
		input   CreateAccountInput
		wantErr error
	}{
		{
			name:    "missing email",
			input:   CreateAccountInput{UserID: 1, Username: "u", Password: "p"},
			wantErr: ErrInvalidAccountData,
		},
		{
			name:    "missing password",
			input:   CreateAccountInput{UserID: 1, Email: "a@b.c", Username: "u"},
			wantErr: ErrInvalidAccountData,
		},
		{
			name:    "generic imap without host",
			input:   CreateAccountInput{UserID: 1, Email: "a@b.c", Username: "u", Password: "p", Provider: models.ProviderIMAP},
			wantErr: ErrInvalidAccountData,
		},
		{
			name:  "gmail needs no host",
			input: CreateAccountInput{UserID: 1, Email: "a@gmail.com", Username: "a@gmail.com", Password: "p", Provider: models.ProviderGmail},
		},
		{
			name:  "generic imap with host",
			input: CreateAccountInput{UserID: 1, Email: "a@corp.example", Username: "a", Password: "p", Provider: models.ProviderIMAP, IMAPHost: "mail.corp.example"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, err := service.CreateAccount(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateAccount() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if account == nil {
					t.Fatal("CreateAccount() returned nil account")
				}
				if account.PasswordEncrypted == tt.input.Password {
					t.Error("password stored in cleartext")
				}
				if !account.Enabled {
					t.Error("new account not enabled")
				}
			}
		})
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	db := setupAccountTestDB(t)
	service := NewAccountService(db, []byte("test-key"))

	input := CreateAccountInput{
		UserID:   1,
		Email:    "dup@gmail.com",
		Username: "dup@gmail.com",
		Password: "p",
		Provider: models.ProviderGmail,
	}

	if _, err := service.CreateAccount(input); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := service.CreateAccount(input); !errors.Is(err, ErrAccountAlreadyExists) {
		t.Errorf("second create = %v, want ErrAccountAlreadyExists", err)
	}

	// Same address under a different user is a different account
	input.UserID = 2
	if _, err := service.CreateAccount(input); err != nil {
		t.Errorf("create for other user failed: %v", err)
	}
}

func TestPasswordCredentialSource(t *testing.T) {
	db := setupAccountTestDB(t)
	service := NewAccountService(db, []byte("test-key"))

	account, err := service.CreateAccount(CreateAccountInput{
		UserID:   1,
		Email:    "a@gmail.com",
		Username: "a@gmail.com",
		Password: "app-specific-password",
		Provider: models.ProviderGmail,
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	password, err := service.Password(account)
	if err != nil {
		t.Fatalf("Password failed: %v", err)
	}
	if password != "app-specific-password" {
		t.Errorf("Password = %q, want the original", password)
	}
}

func TestListSyncUserIDs(t *testing.T) {
	db := setupAccountTestDB(t)
	service := NewAccountService(db, []byte("test-key"))

	mk := func(userID uint, email string) *models.EmailAccount {
		account, err := service.CreateAccount(CreateAccountInput{
			UserID:   userID,
			Email:    email,
			Username: email,
			Password: "p",
			Provider: models.ProviderGmail,
		})
		if err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
		return account
	}

	mk(1, "a@gmail.com")
	mk(1, "b@gmail.com") // second account, same user: still one id
	mk(2, "c@gmail.com")
	disabled := mk(3, "d@gmail.com")
	if _, err := service.SetAccountEnabled(disabled.ID, 3, false); err != nil {
		t.Fatalf("SetAccountEnabled failed: %v", err)
	}

	userIDs, err := service.ListSyncUserIDs()
	if err != nil {
		t.Fatalf("ListSyncUserIDs failed: %v", err)
	}

	seen := make(map[uint]bool)
	for _, id := range userIDs {
		seen[id] = true
	}
	if len(userIDs) != 2 || !seen[1] || !seen[2] {
		t.Errorf("ListSyncUserIDs = %v, want exactly users 1 and 2", userIDs)
	}
}

func TestGetAccountAuthorization(t *testing.T) {
	db := setupAccountTestDB(t)
	service := NewAccountService(db, []byte("test-key"))

	account, err := service.CreateAccount(CreateAccountInput{
		UserID:   1,
		Email:    "a@gmail.com",
		Username: "a@gmail.com",
		Password: "p",
		Provider: models.ProviderGmail,
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	if _, err := service.GetAccountByIDAndUserID(account.ID, 1); err != nil {
		t.Errorf("owner lookup failed: %v", err)
	}
	if _, err := service.GetAccountByIDAndUserID(account.ID, 99); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("foreign lookup = %v, want ErrAccountNotFound", err)
	}
}
