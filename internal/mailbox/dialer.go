package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
	id "github.com/emersion/go-imap-id"

	"github.com/bizpulse/mailsync/internal/database/models"
	"github.com/bizpulse/mailsync/internal/resilience"
)

var (
	// ErrConnectionFailed indicates the IMAP connection could not be established
	ErrConnectionFailed = errors.New("mailbox: IMAP connection failed")
	// ErrAuthFailed indicates the server rejected the credentials
	ErrAuthFailed = errors.New("mailbox: authentication failed")
	// ErrFetchFailed indicates a message fetch failed
	ErrFetchFailed = errors.New("mailbox: fetch failed")
)

const (
	dialTimeout    = 10 * time.Second
	commandTimeout = 5 * time.Minute
	fetchBatchSize = 10
)

// CredentialSource supplies connection secrets. The account service
// implements it; OAuth token acquisition itself lives outside this core.
type CredentialSource interface {
	// Password returns the decrypted password for a password-auth account.
	Password(account *models.EmailAccount) (string, error)
	// AccessToken returns a valid OAuth access token, refreshing if expired.
	AccessToken(ctx context.Context, account *models.EmailAccount) (string, error)
}

// ExistsFunc reports whether a message-id is already persisted for the
// account being synchronized. Sessions use it to skip body fetches for
// messages the store already has.
type ExistsFunc func(messageID string) bool

// Session is an authenticated connection to a remote mailbox.
type Session interface {
	// Fetch enumerates messages received since the given time (zero means
	// all), skipping ones the exists check already knows, and returns the
	// new messages fully parsed.
	Fetch(ctx context.Context, since time.Time, exists ExistsFunc) ([]FetchedEmail, error)
	Close() error
}

// SessionOpener opens sessions. The sync orchestrator wraps Open calls in
// the mail-connectivity resilience profile; implementations never retry.
type SessionOpener interface {
	Open(ctx context.Context, settings ConnectionSettings, account *models.EmailAccount) (Session, error)
}

// Dialer opens IMAP sessions over tcp or tls.
type Dialer struct {
	creds CredentialSource
}

// NewDialer creates a Dialer backed by the given credential source.
func NewDialer(creds CredentialSource) *Dialer {
	return &Dialer{creds: creds}
}

// Open dials the server, identifies the client and authenticates. Network
// failures are wrapped as resilience faults so the retry layer can tell
// them from the fatal authentication and credential errors.
func (d *Dialer) Open(ctx context.Context, settings ConnectionSettings, account *models.EmailAccount) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	var conn net.Conn
	var err error

	if settings.Security == SecurityTLSOnConnect {
		tlsConfig := &tls.Config{ServerName: settings.Host}
		conn, err = tls.DialWithDialer(dialer, "tcp", settings.Addr(), tlsConfig)
	} else {
		conn, err = dialer.Dial("tcp", settings.Addr())
	}
	if err != nil {
		return nil, wrapDialError(err)
	}

	c, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, wrapDialError(err)
	}

	// 全量同步需要更长时间
	c.Timeout = commandTimeout

	// Some servers require client identification before login (e.g. 163.com)
	if ok, _ := c.Support("ID"); ok {
		idClient := id.NewClient(c)
		_, _ = idClient.ID(id.ID{
			id.FieldName:    "mailsync",
			id.FieldVersion: "1.0.0",
		})
	}

	if err := d.authenticate(ctx, c, account); err != nil {
		c.Logout()
		return nil, err
	}

	return &imapSession{client: c, account: account}, nil
}

// authenticate logs in with XOAUTH2 or a plain password depending on the
// account's auth type. Rejected credentials are fatal, not retryable.
func (d *Dialer) authenticate(ctx context.Context, c *client.Client, account *models.EmailAccount) error {
	if account.AuthType == models.AuthTypeOAuth2 {
		token, err := d.creds.AccessToken(ctx, account)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		if err := c.Authenticate(NewXOAuth2Client(account.Username, token)); err != nil {
			return fmt.Errorf("%w: XOAUTH2: %v", ErrAuthFailed, err)
		}
		return nil
	}

	password, err := d.creds.Password(account)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if err := c.Login(account.Username, password); err != nil {
		return fmt.Errorf("%w: login: %v", ErrAuthFailed, err)
	}
	return nil
}

// wrapDialError translates a network error into a resilience fault so the
// policy layer never inspects protocol types.
func wrapDialError(err error) error {
	kind := resilience.FaultTransientIO
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		kind = resilience.FaultTimeout
	}
	return resilience.NewFault(kind, fmt.Errorf("%w: %v", ErrConnectionFailed, err))
}

// XOAuth2Client implements the SASL XOAUTH2 mechanism
type XOAuth2Client struct {
	Username    string
	AccessToken string
}

// NewXOAuth2Client creates a new XOAUTH2 SASL client
func NewXOAuth2Client(username, accessToken string) *XOAuth2Client {
	return &XOAuth2Client{Username: username, AccessToken: accessToken}
}

// Start begins the XOAUTH2 authentication
func (c *XOAuth2Client) Start() (mech string, ir []byte, err error) {
	ir = []byte(fmt.Sprintf("user=%s\x01auth=Bearer %s\x01\x01", c.Username, c.AccessToken))
	return "XOAUTH2", ir, nil
}

// Next handles server challenges (XOAUTH2 doesn't have additional challenges)
func (c *XOAuth2Client) Next(challenge []byte) (response []byte, err error) {
	return nil, nil
}
