package mailbox

import (
	"errors"
	"testing"

	"github.com/bizpulse/mailsync/internal/database/models"
)

func TestResolveConnectionWellKnownProviders(t *testing.T) {
	// Whatever connection fields the account carries, well-known providers
	// mandate their own endpoint and TLS.
	account := &models.EmailAccount{
		Email:    "user@gmail.com",
		Provider: models.ProviderGmail,
		IMAPHost: "attacker.example.com",
		IMAPPort: 1234,
		UseSSL:   false,
	}

	settings, err := ResolveConnection(account)
	if err != nil {
		t.Fatalf("ResolveConnection failed: %v", err)
	}
	if settings.Host != "imap.gmail.com" || settings.Port != 993 {
		t.Errorf("gmail settings = %s, want imap.gmail.com:993", settings.Addr())
	}
	if settings.Security != SecurityTLSOnConnect {
		t.Error("gmail must connect over TLS")
	}

	account.Provider = models.ProviderOutlook
	settings, err = ResolveConnection(account)
	if err != nil {
		t.Fatalf("ResolveConnection failed: %v", err)
	}
	if settings.Host != "outlook.office365.com" || settings.Port != 993 {
		t.Errorf("outlook settings = %s, want outlook.office365.com:993", settings.Addr())
	}
}

func TestResolveConnectionGenericIMAP(t *testing.T) {
	tests := []struct {
		name     string
		account  models.EmailAccount
		wantAddr string
		wantSec  TransportSecurity
		wantErr  error
	}{
		{
			name:     "explicit host and port",
			account:  models.EmailAccount{Provider: models.ProviderIMAP, IMAPHost: "mail.corp.example", IMAPPort: 143},
			wantAddr: "mail.corp.example:143",
			wantSec:  SecurityNone,
		},
		{
			name:     "zero port defaults to imaps",
			account:  models.EmailAccount{Provider: models.ProviderIMAP, IMAPHost: "mail.corp.example", UseSSL: true},
			wantAddr: "mail.corp.example:993",
			wantSec:  SecurityTLSOnConnect,
		},
		{
			name:    "empty host is a configuration error",
			account: models.EmailAccount{Provider: models.ProviderIMAP, Email: "a@b.c"},
			wantErr: ErrMissingServer,
		},
		{
			name:     "unknown provider tag treated as generic",
			account:  models.EmailAccount{Provider: models.Provider("carrier-pigeon"), IMAPHost: "coop.example", IMAPPort: 993, UseSSL: true},
			wantAddr: "coop.example:993",
			wantSec:  SecurityTLSOnConnect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings, err := ResolveConnection(&tt.account)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ResolveConnection() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveConnection failed: %v", err)
			}
			if settings.Addr() != tt.wantAddr {
				t.Errorf("Addr() = %s, want %s", settings.Addr(), tt.wantAddr)
			}
			if settings.Security != tt.wantSec {
				t.Errorf("Security = %v, want %v", settings.Security, tt.wantSec)
			}
		})
	}
}

func TestResolveConnectionExchange(t *testing.T) {
	account := &models.EmailAccount{
		Provider: models.ProviderExchange,
		IMAPHost: "exchange.corp.example", // a configured host does not help
	}

	_, err := ResolveConnection(account)
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("ResolveConnection(exchange) = %v, want ErrUnsupportedProvider", err)
	}
	if errors.Is(err, ErrMissingServer) {
		t.Error("unsupported provider must not masquerade as a configuration error")
	}
}

func TestResolveSecurity(t *testing.T) {
	tests := []struct {
		name    string
		account models.EmailAccount
		want    TransportSecurity
	}{
		{"gmail always tls", models.EmailAccount{Provider: models.ProviderGmail, UseSSL: false}, SecurityTLSOnConnect},
		{"outlook always tls", models.EmailAccount{Provider: models.ProviderOutlook, UseSSL: false}, SecurityTLSOnConnect},
		{"generic with ssl", models.EmailAccount{Provider: models.ProviderIMAP, UseSSL: true}, SecurityTLSOnConnect},
		{"generic without ssl", models.EmailAccount{Provider: models.ProviderIMAP, UseSSL: false}, SecurityNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveSecurity(&tt.account); got != tt.want {
				t.Errorf("ResolveSecurity() = %v, want %v", got, tt.want)
			}
		})
	}
}
