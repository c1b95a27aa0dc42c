package mail

import (
	"context"
	"sync"
	"time"
)

// InMemoryMailbox is a MailboxReader for development and tests: messages are
// added per account and served back through the session interface.
type InMemoryMailbox struct {
	mu       sync.Mutex
	messages map[int][]Message
}

func NewInMemoryMailbox() *InMemoryMailbox {
	return &InMemoryMailbox{messages: make(map[int][]Message)}
}

// Deliver places a message in an account's mailbox.
func (m *InMemoryMailbox) Deliver(accountID int, msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[accountID] = append(m.messages[accountID], msg)
}

func (m *InMemoryMailbox) Connect(ctx context.Context, accountID int) (MailboxSession, error) {
	return &inMemorySession{box: m, accountID: accountID}, nil
}

type inMemorySession struct {
	box       *InMemoryMailbox
	accountID int
}

func (s *inMemorySession) Search(ctx context.Context, since time.Time) ([]string, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	var ids []string
	for _, msg := range s.box.messages[s.accountID] {
		if msg.Date.After(since) {
			ids = append(ids, msg.MessageID)
		}
	}
	return ids, nil
}

func (s *inMemorySession) Fetch(ctx context.Context, ids []string) ([]Message, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	var out []Message
	for _, msg := range s.box.messages[s.accountID] {
		if wanted[msg.MessageID] {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *inMemorySession) Close() error { return nil }

var _ MailboxReader = (*InMemoryMailbox)(nil)
