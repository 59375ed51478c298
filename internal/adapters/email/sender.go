// Package email delivers operator notifications.
package email

import (
	"context"
	"time"
)

// Message is one outgoing email.
type Message struct {
	To      []string
	From    string // overrides the sender default when set
	Subject string
	HTML    string
	Text    string // plain-text alternative
}

// Receipt identifies a message accepted by the provider.
type Receipt struct {
	MessageID string
	SentAt    time.Time
}

// Sender delivers email through an external provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}
