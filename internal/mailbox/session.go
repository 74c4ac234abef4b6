package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/mail"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"

	"github.com/bizpulse/mailsync/internal/database/models"
	"github.com/bizpulse/mailsync/internal/resilience"
)

// imapSession is the go-imap backed Session. Fetching is two-phase: a fast
// envelope pass to learn UIDs and message-ids, then body fetches only for
// messages the exists check did not recognize.
type imapSession struct {
	client  *client.Client
	account *models.EmailAccount
}

type msgMeta struct {
	uid      uint32
	id       string
	envelope *imap.Envelope
}

func (s *imapSession) Fetch(ctx context.Context, since time.Time, exists ExistsFunc) ([]FetchedEmail, error) {
	mbox, err := s.client.Select("INBOX", false)
	if err != nil {
		return nil, resilience.NewFault(resilience.FaultTransientIO,
			fmt.Errorf("%w: select INBOX: %v", ErrFetchFailed, err))
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	if !since.IsZero() {
		criteria.Since = time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, time.UTC)
	}

	seqNums, err := s.client.Search(criteria)
	if err != nil || len(seqNums) == 0 {
		// 搜索失败时退回全量枚举
		seqNums = make([]uint32, mbox.Messages)
		for i := uint32(1); i <= mbox.Messages; i++ {
			seqNums[i-1] = i
		}
	}

	metas, err := s.fetchEnvelopes(ctx, seqNums)
	if err != nil {
		return nil, err
	}

	var newMetas []msgMeta
	for _, meta := range metas {
		if exists != nil && exists(meta.id) {
			continue
		}
		newMetas = append(newMetas, meta)
	}
	if len(newMetas) == 0 {
		return nil, nil
	}

	return s.fetchBodies(ctx, newMetas)
}

// fetchEnvelopes pulls UID and envelope for each sequence number in batches.
func (s *imapSession) fetchEnvelopes(ctx context.Context, seqNums []uint32) ([]msgMeta, error) {
	var metas []msgMeta

	for i := 0; i < len(seqNums); i += fetchBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := i + fetchBatchSize
		if end > len(seqNums) {
			end = len(seqNums)
		}

		seqSet := new(imap.SeqSet)
		seqSet.AddNum(seqNums[i:end]...)

		items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope}
		messages := make(chan *imap.Message, fetchBatchSize)
		done := make(chan error, 1)

		go func() {
			done <- s.client.Fetch(seqSet, items, messages)
		}()

		for msg := range messages {
			if msg == nil || msg.Envelope == nil {
				continue
			}
			messageID := msg.Envelope.MessageId
			if messageID == "" {
				messageID = fmt.Sprintf("uid:%d", msg.Uid)
			}
			metas = append(metas, msgMeta{uid: msg.Uid, id: messageID, envelope: msg.Envelope})
		}

		if err := <-done; err != nil {
			return nil, resilience.NewFault(resilience.FaultTransientIO,
				fmt.Errorf("%w: envelopes: %v", ErrFetchFailed, err))
		}
	}

	return metas, nil
}

// fetchBodies pulls full bodies by UID for the new messages and parses them.
func (s *imapSession) fetchBodies(ctx context.Context, metas []msgMeta) ([]FetchedEmail, error) {
	uidToMeta := make(map[uint32]msgMeta, len(metas))
	uids := make([]uint32, 0, len(metas))
	for _, meta := range metas {
		uids = append(uids, meta.uid)
		uidToMeta[meta.uid] = meta
	}

	section := &imap.BodySectionName{Peek: true}
	uidToBody := make(map[uint32][]byte)

	for i := 0; i < len(uids); i += fetchBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := i + fetchBatchSize
		if end > len(uids) {
			end = len(uids)
		}

		uidSet := new(imap.SeqSet)
		uidSet.AddNum(uids[i:end]...)

		items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}
		messages := make(chan *imap.Message, fetchBatchSize)
		done := make(chan error, 1)

		go func() {
			done <- s.client.UidFetch(uidSet, items, messages)
		}()

		for msg := range messages {
			if msg == nil {
				continue
			}
			for _, literal := range msg.Body {
				content, err := io.ReadAll(literal)
				if err == nil && len(content) > 0 {
					uidToBody[msg.Uid] = content
				}
			}
		}

		// 个别批次失败不致命，剩余邮件下个周期再取
		if err := <-done; err != nil {
			log.Printf("[Mailbox] body fetch batch %d-%d failed, remaining messages deferred: %v", i, end, err)
		}
	}

	emails := make([]FetchedEmail, 0, len(metas))
	for _, meta := range metas {
		email := FetchedEmail{
			UID:       meta.uid,
			MessageID: meta.id,
			Subject:   meta.envelope.Subject,
			Date:      meta.envelope.Date,
		}
		if len(meta.envelope.From) > 0 {
			email.From = formatAddress(meta.envelope.From[0])
		}
		for _, addr := range meta.envelope.To {
			email.To = append(email.To, formatAddress(addr))
		}

		if body, ok := uidToBody[meta.uid]; ok {
			parseBody(body, &email)
		}

		emails = append(emails, email)
	}

	return emails, nil
}

// parseBody parses a raw RFC 822 body into the fetched email, falling back
// to net/mail when the MIME parser rejects the message.
func parseBody(raw []byte, email *FetchedEmail) {
	r := bytes.NewReader(raw)
	entity, err := message.Read(r)
	if err != nil {
		r.Seek(0, io.SeekStart)
		m, err := mail.ReadMessage(r)
		if err == nil {
			b, _ := io.ReadAll(m.Body)
			email.Body = string(b)
		}
		return
	}
	parseEntity(entity, email)
}

func (s *imapSession) Close() error {
	return s.client.Logout()
}
