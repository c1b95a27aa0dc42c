// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/mail"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/repository"

	"go.uber.org/zap"
)

// QueueCampaignSends is the queue the sequencer worker consumes.
const QueueCampaignSends = "campaign_sends"

// Validation reason codes. Validate returns a list of these, never a bare
// boolean, so the caller can show every problem at once.
const (
	ReasonNoRecipients        = "no_recipients"
	ReasonNoSendingAccount    = "no_sending_account"
	ReasonAccountInactive     = "account_inactive"
	ReasonAccountUnverified   = "account_unverified"
	ReasonNoSequenceOrContent = "no_sequence_or_template"
)

// SendJob is the payload of one job on the campaign_sends queue.
type SendJob struct {
	CampaignID  int `json:"campaign_id"`
	ContactID   int `json:"contact_id"`
	EmailNumber int `json:"email_number"`
}

// IdempotencyKey is the unique key for a (campaign, contact, ordinal) job: a
// crash-and-retry of launch or of the worker can never duplicate a send job.
func (j SendJob) IdempotencyKey() string {
	return fmt.Sprintf("%d:%d:%d", j.CampaignID, j.ContactID, j.EmailNumber)
}

// CampaignService owns the campaign lifecycle. It is the only component that
// enqueues the first job per recipient; every transition is a conditional
// update on the campaign row, so an HTTP caller and the async worker can
// never disagree about state.
type CampaignService struct {
	Campaigns  repository.CampaignRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
	Sequences  repository.SequenceRepositoryInterface
	Deliveries repository.DeliveryRepositoryInterface
	Accounts   repository.AccountRepositoryInterface
	Queue      queue.Queue
	Sender     mail.Sender
	Logger     *zap.Logger
}

// Validate checks launch preconditions and returns the violated reason codes.
// An empty slice means the campaign is launchable.
func (s *CampaignService) Validate(ctx context.Context, ownerID, campaignID int) ([]string, error) {
	campaign, err := s.Campaigns.GetByID(ownerID, campaignID)
	if err != nil {
		return nil, err
	}

	reasons := []string{}

	count, err := s.Recipients.CountByCampaign(campaignID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		reasons = append(reasons, ReasonNoRecipients)
	}

	if campaign.SendingAccountID == nil {
		reasons = append(reasons, ReasonNoSendingAccount)
	} else {
		account, err := s.Accounts.GetByID(ownerID, *campaign.SendingAccountID)
		if err != nil {
			return nil, err
		}
		switch {
		case account == nil:
			reasons = append(reasons, ReasonNoSendingAccount)
		case account.Status != model.AccountActive:
			reasons = append(reasons, ReasonAccountInactive)
		default:
			// Live credential check; a transient verification failure is an
			// infrastructure error, not a validation reason.
			v, err := s.Sender.VerifyCredentials(ctx, account.ID)
			if err != nil {
				return nil, appErrors.Wrap(err, "verify sending account credentials")
			}
			if !v.Valid {
				reasons = append(reasons, ReasonAccountUnverified)
			}
		}
	}

	withoutSequence, err := s.Sequences.CountRecipientsWithoutSequence(campaignID)
	if err != nil {
		return nil, err
	}
	if withoutSequence > 0 && campaign.Body == "" {
		reasons = append(reasons, ReasonNoSequenceOrContent)
	}

	return reasons, nil
}

// Launch re-validates, transitions draft|ready -> running, then seeds each
// pending recipient's sequence progress and enqueues exactly its first send
// job. A non-empty reasons slice means the launch was rejected and the
// campaign status was not touched.
func (s *CampaignService) Launch(ctx context.Context, ownerID, campaignID int) (*model.Campaign, []string, error) {
	reasons, err := s.Validate(ctx, ownerID, campaignID)
	if err != nil {
		return nil, nil, err
	}
	if len(reasons) > 0 {
		return nil, reasons, nil
	}

	ok, err := s.Campaigns.TransitionStatus(ownerID, campaignID, model.CampaignRunning,
		model.CampaignDraft, model.CampaignReady)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, appErrors.NewIllegalTransition(campaignID, "", model.CampaignRunning)
	}

	pending, err := s.Recipients.ListPending(campaignID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	for _, rec := range pending {
		// One recipient failing to seed must not abort the rest.
		if err := s.seedRecipient(campaignID, rec.ContactID, now); err != nil {
			s.Logger.Error("seed recipient at launch failed",
				zap.Int("campaign_id", campaignID),
				zap.Int("contact_id", rec.ContactID),
				zap.Error(err))
		}
	}

	campaign, err := s.Campaigns.GetByID(ownerID, campaignID)
	return campaign, nil, err
}

func (s *CampaignService) seedRecipient(campaignID, contactID int, now time.Time) error {
	total, err := s.Sequences.CountForContact(campaignID, contactID)
	if err != nil {
		return err
	}
	if total == 0 {
		// Shared-template fallback: a single send.
		total = 1
	}
	if err := s.Recipients.SeedProgress(campaignID, contactID, total, now); err != nil {
		return err
	}

	job := SendJob{CampaignID: campaignID, ContactID: contactID, EmailNumber: 1}
	return s.Queue.Enqueue(QueueCampaignSends, job, queue.Options{
		RunAt:          now,
		IdempotencyKey: job.IdempotencyKey(),
	})
}

// Pause stops the worker from making progress on the campaign. In-flight
// jobs are not force-stopped; the worker defers them when it sees the status.
func (s *CampaignService) Pause(ownerID, campaignID int) (*model.Campaign, error) {
	return s.transition(ownerID, campaignID, model.CampaignPaused, model.CampaignRunning)
}

func (s *CampaignService) Resume(ownerID, campaignID int) (*model.Campaign, error) {
	return s.transition(ownerID, campaignID, model.CampaignRunning, model.CampaignPaused)
}

// Cancel is reachable from any non-terminal state.
func (s *CampaignService) Cancel(ownerID, campaignID int) (*model.Campaign, error) {
	return s.transition(ownerID, campaignID, model.CampaignCancelled,
		model.CampaignDraft, model.CampaignReady, model.CampaignRunning, model.CampaignPaused)
}

func (s *CampaignService) Complete(ownerID, campaignID int) (*model.Campaign, error) {
	return s.transition(ownerID, campaignID, model.CampaignCompleted, model.CampaignRunning)
}

func (s *CampaignService) transition(ownerID, campaignID int, to string, from ...string) (*model.Campaign, error) {
	ok, err := s.Campaigns.TransitionStatus(ownerID, campaignID, to, from...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.NewIllegalTransition(campaignID, "", to)
	}
	s.Logger.Info("campaign transitioned",
		zap.Int("campaign_id", campaignID),
		zap.String("to", to))
	return s.Campaigns.GetByID(ownerID, campaignID)
}

// Delete removes a campaign and everything hanging off it. Only permitted
// from draft, paused or completed; returns false otherwise.
func (s *CampaignService) Delete(ownerID, campaignID int) (bool, error) {
	campaign, err := s.Campaigns.GetByID(ownerID, campaignID)
	if err != nil {
		return false, err
	}
	switch campaign.Status {
	case model.CampaignDraft, model.CampaignPaused, model.CampaignCompleted:
	default:
		return false, nil
	}
	if err := s.Campaigns.DeleteCascade(campaignID); err != nil {
		return false, err
	}
	s.Logger.Info("campaign deleted", zap.Int("campaign_id", campaignID))
	return true, nil
}
