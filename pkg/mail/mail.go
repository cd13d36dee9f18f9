// Package mail renders and delivers transactional e-mail.
package mail

import (
	"context"
	"net/mail"
)

// Message is one outgoing e-mail.
type Message struct {
	To      []mail.Address
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
