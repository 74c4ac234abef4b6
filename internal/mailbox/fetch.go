package mailbox

import (
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// FetchedEmail is the protocol-level representation of one message pulled
// from the remote mailbox. Ephemeral: it lives for one fetch-and-convert
// cycle and is never persisted directly.
type FetchedEmail struct {
	UID            uint32
	MessageID      string
	Subject        string
	From           string
	To             []string
	Date           time.Time
	Body           string
	HTMLBody       string
	HasAttachments bool
	Attachments    []FetchedAttachment
}

// FetchedAttachment is a binary part of a fetched message.
type FetchedAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// parseEntity recursively walks a message entity, filling body text and
// collecting attachments.
func parseEntity(entity *message.Entity, email *FetchedEmail) {
	mediaType, params, _ := entity.Header.ContentType()

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := entity.MultipartReader()
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			parseEntity(part, email)
		}
	} else if mediaType == "text/plain" && email.Body == "" {
		body, _ := io.ReadAll(entity.Body)
		email.Body = string(body)
	} else if mediaType == "text/html" && email.HTMLBody == "" {
		body, _ := io.ReadAll(entity.Body)
		email.HTMLBody = string(body)
	} else {
		disposition := entity.Header.Get("Content-Disposition")
		isAttachment := false
		var filename string

		if disposition != "" {
			dispType, dispParams, err := mime.ParseMediaType(disposition)
			if err == nil {
				// attachment 或 inline 带文件名都视为附件
				if dispType == "attachment" || (dispType == "inline" && dispParams["filename"] != "") {
					isAttachment = true
					filename = dispParams["filename"]
				}
			}
		}

		if params["name"] != "" {
			isAttachment = true
			if filename == "" {
				filename = params["name"]
			}
		}

		// 解码 MIME 编码的文件名 (如 =?utf-8?B?...?=)
		if filename != "" {
			dec := new(mime.WordDecoder)
			if decoded, err := dec.DecodeHeader(filename); err == nil {
				filename = decoded
			}
		}

		if !isAttachment && !strings.HasPrefix(mediaType, "text/") && mediaType != "" {
			isAttachment = true
		}

		if isAttachment {
			content, _ := io.ReadAll(entity.Body)
			if len(content) > 0 {
				if filename == "" {
					ext := ".bin"
					if strings.HasPrefix(mediaType, "image/") {
						ext = "." + strings.TrimPrefix(mediaType, "image/")
					} else if mediaType == "application/pdf" {
						ext = ".pdf"
					}
					filename = "attachment" + ext
				}

				email.Attachments = append(email.Attachments, FetchedAttachment{
					Filename:    filename,
					ContentType: mediaType,
					Content:     content,
				})
				email.HasAttachments = true
			}
		}
	}
}

// formatAddress formats an IMAP address to a string
func formatAddress(addr *imap.Address) string {
	if addr.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", addr.PersonalName, addr.MailboxName, addr.HostName)
	}
	return fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName)
}
