// Package email delivers transactional mail such as donation receipts.
package email

import "context"

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a plain-text email with optional attachments.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
