// internal/errors/errors.go
//
// Error handling for the outreach backend, layered on
// github.com/cockroachdb/errors for wrapping and stack traces. Sentinel types
// distinguish the cases callers branch on: a missing row, an illegal
// lifecycle transition (zero-row conditional update on an existing row), and
// permanent failures that must never be retried.
package appErrors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Re-exported helpers so callers import one errors package.
var (
	New    = crdb.New
	Newf   = crdb.Newf
	Wrap   = crdb.Wrap
	Wrapf  = crdb.Wrapf
	Is     = crdb.Is
	As     = crdb.As
	Unwrap = crdb.Unwrap
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// NewCampaignNotFound is the helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrIllegalTransition signals a lifecycle update whose conditional WHERE
// matched no row even though the campaign exists. Distinct from not-found.
type ErrIllegalTransition struct {
	CampaignID int
	From       string
	To         string
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("campaign %d: illegal transition %s -> %s", e.CampaignID, e.From, e.To)
}

func NewIllegalTransition(id int, from, to string) error {
	return &ErrIllegalTransition{CampaignID: id, From: from, To: to}
}

// ErrPermanent wraps failures that must not be retried, e.g. credential or
// decryption errors.
type ErrPermanent struct {
	Reason string
	Cause  error
}

func (e *ErrPermanent) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("permanent failure (%s): %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("permanent failure (%s)", e.Reason)
}

func (e *ErrPermanent) Unwrap() error { return e.Cause }

func NewPermanent(reason string, cause error) error {
	return &ErrPermanent{Reason: reason, Cause: cause}
}

// IsPermanent reports whether err carries an ErrPermanent anywhere in its chain.
func IsPermanent(err error) bool {
	var p *ErrPermanent
	return crdb.As(err, &p)
}
