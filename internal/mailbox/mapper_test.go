package mailbox

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/bizpulse/mailsync/internal/database/models"
)

func TestMapMessageDefaulting(t *testing.T) {
	account := &models.EmailAccount{
		Email:  "owner@example.com",
		UserID: 7,
	}
	account.ID = 3

	t.Run("empty message-id falls back to uid", func(t *testing.T) {
		email := MapMessage(&FetchedEmail{UID: 42}, account, models.FolderInbox)
		if email.MessageID != "uid:42" {
			t.Errorf("MessageID = %q, want uid:42", email.MessageID)
		}
	})

	t.Run("no message-id and no uid generates one", func(t *testing.T) {
		a := MapMessage(&FetchedEmail{}, account, models.FolderInbox)
		b := MapMessage(&FetchedEmail{}, account, models.FolderInbox)
		if !strings.HasPrefix(a.MessageID, "gen:") {
			t.Errorf("MessageID = %q, want gen: prefix", a.MessageID)
		}
		if a.MessageID == b.MessageID {
			t.Error("generated message-ids collide")
		}
	})

	t.Run("empty sender falls back to account address", func(t *testing.T) {
		email := MapMessage(&FetchedEmail{MessageID: "<m@x>"}, account, models.FolderInbox)
		if email.FromAddr != "owner@example.com" {
			t.Errorf("FromAddr = %q, want owner@example.com", email.FromAddr)
		}
	})

	t.Run("missing subject is the empty string", func(t *testing.T) {
		email := MapMessage(&FetchedEmail{MessageID: "<m@x>"}, account, models.FolderInbox)
		if email.Subject != "" {
			t.Errorf("Subject = %q, want empty", email.Subject)
		}
	})
}

// Property: mapping is lossless for the fields that survive conversion, and
// the resulting entity always carries the owning account's keys.
func TestProperty_MapMessagePreservesFields(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	account := &models.EmailAccount{Email: "owner@example.com", UserID: 11}
	account.ID = 5

	properties.Property("mapped_entity_is_complete", prop.ForAll(
		func(messageID, subject, from, body string, to []string) bool {
			fetched := &FetchedEmail{
				UID:       1,
				MessageID: messageID,
				Subject:   subject,
				From:      from,
				To:        to,
				Date:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
				Body:      body,
			}

			email := MapMessage(fetched, account, models.FolderInbox)

			if email.AccountID != account.ID || email.UserID != account.UserID {
				return false
			}
			if email.MessageID == "" {
				return false
			}
			if messageID != "" && email.MessageID != messageID {
				return false
			}
			if email.Subject != subject || email.Body != body {
				return false
			}
			if from != "" && email.FromAddr != from {
				return false
			}
			if email.Folder != models.FolderInbox || email.IsRead {
				return false
			}

			var gotTo []string
			if err := json.Unmarshal([]byte(email.ToAddrs), &gotTo); err != nil {
				return false
			}
			if len(gotTo) != len(to) {
				return false
			}
			for i := range to {
				if gotTo[i] != to[i] {
					return false
				}
			}
			return true
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
