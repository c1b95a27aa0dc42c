// Package mail holds the narrow interfaces to the external mail
// collaborators: the transport that delivers outbound messages and the
// mailbox reader the reply detector polls. Concrete providers live behind
// these interfaces; the rest of the system never talks to a provider SDK
// directly.
package mail

import "context"

// SendRequest is the transport call shape.
type SendRequest struct {
	AccountID int
	From      string
	To        string
	Subject   string
	HTML      string
	Headers   map[string]string
}

// SendResult carries the provider-assigned message id, which later serves as
// the reply correlation key.
type SendResult struct {
	MessageID string
}

// Verification distinguishes an auth failure (permanent) from a transient
// one: Valid=false with Err set means bad credentials, a returned error means
// the check itself could not run.
type Verification struct {
	Valid bool
	Err   string
}

type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
	VerifyCredentials(ctx context.Context, accountID int) (Verification, error)
}
