package mail

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// MockSender simulates a transport for local development: 90% of sends
// succeed and get a synthetic provider message id.
type MockSender struct {
	// FailureRate overrides the default 0.1 when non-zero.
	FailureRate float64
}

func (m *MockSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	rate := m.FailureRate
	if rate == 0 {
		rate = 0.1
	}
	if rand.Float64() < rate {
		return SendResult{}, fmt.Errorf("mock sending failed")
	}
	return SendResult{MessageID: "<" + uuid.NewString() + "@mock.local>"}, nil
}

func (m *MockSender) VerifyCredentials(ctx context.Context, accountID int) (Verification, error) {
	return Verification{Valid: true}, nil
}

var _ Sender = (*MockSender)(nil)
