package mail

import (
	"context"
	"time"
)

// Message is a parsed inbound message as exposed by the mailbox provider.
type Message struct {
	MessageID  string
	InReplyTo  string
	References []string
	Subject    string
	From       string
	Date       time.Time
	Body       string
}

// MailboxSession is one open connection to an account's mailbox.
type MailboxSession interface {
	// Search returns the ids of messages received since the given time.
	Search(ctx context.Context, since time.Time) ([]string, error)
	Fetch(ctx context.Context, ids []string) ([]Message, error)
	Close() error
}

// MailboxReader opens sessions per account. Connection errors for one
// account must not stop polling of the others.
type MailboxReader interface {
	Connect(ctx context.Context, accountID int) (MailboxSession, error)
}
