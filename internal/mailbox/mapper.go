package mailbox

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/bizpulse/mailsync/internal/database/models"
)

// MapMessage converts a fetched message into the internal email entity,
// applying the defaulting rules: a missing subject becomes the empty
// string, a missing sender falls back to the owning account's address, and
// an empty message-id gets a generated, account-unique one. Pure: touches
// neither storage nor the network.
func MapMessage(fetched *FetchedEmail, account *models.EmailAccount, folder string) *models.Email {
	messageID := fetched.MessageID
	if messageID == "" {
		if fetched.UID != 0 {
			messageID = fmt.Sprintf("uid:%d", fetched.UID)
		} else {
			messageID = "gen:" + uuid.NewString()
		}
	}

	from := fetched.From
	if from == "" {
		from = account.Email
	}

	toAddrs, _ := json.Marshal(fetched.To)

	return &models.Email{
		AccountID:      account.ID,
		UserID:         account.UserID,
		MessageID:      messageID,
		Subject:        fetched.Subject,
		FromAddr:       from,
		ToAddrs:        string(toAddrs),
		Date:           fetched.Date,
		Body:           fetched.Body,
		HTMLBody:       fetched.HTMLBody,
		HasAttachments: fetched.HasAttachments,
		IsRead:         false,
		Folder:         folder,
	}
}
