package mailbox

import (
	"errors"
	"fmt"

	"github.com/bizpulse/mailsync/internal/database/models"
)

var (
	// ErrMissingServer indicates a generic IMAP account without a configured host.
	// This is a configuration error: fatal for the account, never retried.
	ErrMissingServer = errors.New("mailbox: account has no IMAP server configured")
	// ErrUnsupportedProvider indicates a provider this pipeline cannot talk to.
	// Distinct from configuration errors; never retried.
	ErrUnsupportedProvider = errors.New("mailbox: provider not supported")
)

// TransportSecurity is how the session negotiates encryption.
type TransportSecurity int

const (
	// SecurityNone uses a plain TCP connection
	SecurityNone TransportSecurity = iota
	// SecurityTLSOnConnect negotiates TLS immediately on connect
	SecurityTLSOnConnect
)

func (t TransportSecurity) String() string {
	if t == SecurityTLSOnConnect {
		return "tls"
	}
	return "none"
}

// ConnectionSettings is everything needed to reach a mailbox.
type ConnectionSettings struct {
	Host     string
	Port     int
	Security TransportSecurity
}

// Addr returns the host:port dial address.
func (s ConnectionSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

const defaultIMAPSPort = 993

// resolver produces connection settings for one provider family.
type resolver func(account *models.EmailAccount) (ConnectionSettings, error)

// providerTable maps each provider tag to its resolution strategy: fixed
// settings for well-known providers, field-derived for generic IMAP, and
// an explicit unsupported marker. Keeps per-provider branching out of the
// sync orchestrator.
var providerTable = map[models.Provider]resolver{
	models.ProviderGmail:    fixedSettings("imap.gmail.com", defaultIMAPSPort),
	models.ProviderOutlook:  fixedSettings("outlook.office365.com", defaultIMAPSPort),
	models.ProviderIMAP:     accountSettings,
	models.ProviderExchange: unsupported("exchange requires EWS/Graph access"),
}

// fixedSettings ignores account connection fields entirely; well-known
// providers mandate both endpoint and transport security.
func fixedSettings(host string, port int) resolver {
	return func(*models.EmailAccount) (ConnectionSettings, error) {
		return ConnectionSettings{Host: host, Port: port, Security: SecurityTLSOnConnect}, nil
	}
}

// accountSettings reads host and port from the account. An empty host is a
// configuration error; a zero port defaults to the conventional secure port.
func accountSettings(account *models.EmailAccount) (ConnectionSettings, error) {
	if account.IMAPHost == "" {
		return ConnectionSettings{}, fmt.Errorf("%w (account %s)", ErrMissingServer, account.Email)
	}
	port := account.IMAPPort
	if port == 0 {
		port = defaultIMAPSPort
	}
	return ConnectionSettings{Host: account.IMAPHost, Port: port, Security: ResolveSecurity(account)}, nil
}

func unsupported(reason string) resolver {
	return func(account *models.EmailAccount) (ConnectionSettings, error) {
		return ConnectionSettings{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, reason)
	}
}

// ResolveConnection resolves host, port and transport security for an
// account. Accounts with no provider tag are treated as generic IMAP.
func ResolveConnection(account *models.EmailAccount) (ConnectionSettings, error) {
	resolve, ok := providerTable[account.Provider]
	if !ok {
		resolve = accountSettings
	}
	return resolve(account)
}

// ResolveSecurity maps account state to a transport security mode. Pure:
// no I/O, cannot fail. Well-known providers always connect over TLS.
func ResolveSecurity(account *models.EmailAccount) TransportSecurity {
	switch account.Provider {
	case models.ProviderGmail, models.ProviderOutlook:
		return SecurityTLSOnConnect
	}
	if account.UseSSL {
		return SecurityTLSOnConnect
	}
	return SecurityNone
}
