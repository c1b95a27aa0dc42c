// internal/service/sequencer.go
//
// The sequencer is the long-running consumer of the campaign_sends queue.
// One job = one (campaign, contact, ordinal) send. The loop claims a job,
// checks campaign and recipient state, sends via the transport, records the
// delivery, advances the recipient's cursor and enqueues the next ordinal
// with its run time derived from the immutable sequence anchor.
package service

import (
	"context"
	"encoding/json"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/events"
	"github.com/unclebandit/outreach-backend/internal/mail"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultIdleWait is how long the loop sleeps when no job is due.
	DefaultIdleWait = 5 * time.Second

	// DefaultPauseRetry is how far out a job is deferred when its campaign is
	// paused.
	DefaultPauseRetry = time.Hour

	// retryBackoffBase seeds the per-job exponential backoff handed to the
	// queue on failure.
	retryBackoffBase = 30 * time.Second
	retryBackoffCap  = time.Hour
)

type Sequencer struct {
	Queue      queue.Queue
	Campaigns  repository.CampaignRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
	Sequences  repository.SequenceRepositoryInterface
	Deliveries repository.DeliveryRepositoryInterface
	Events     repository.EventRepositoryInterface
	Accounts   repository.AccountRepositoryInterface
	Contacts   repository.ContactRepositoryInterface
	Tokens     repository.TokenRepositoryInterface
	Sender     mail.Sender
	Publisher  events.Publisher
	Logger     *zap.Logger

	// Limiter spaces outbound sends globally; nil disables limiting.
	Limiter *rate.Limiter

	IdleWait   time.Duration
	PauseRetry time.Duration
	BaseURL    string
	TrackOpens bool

	// Now is swappable for tests.
	Now func() time.Time
}

// NewSendLimiter builds the global limiter for a max-sends-per-hour budget:
// at most one send per 3600/limit seconds.
func NewSendLimiter(sendsPerHour int) *rate.Limiter {
	if sendsPerHour <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(sendsPerHour)), 1)
}

func (s *Sequencer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Sequencer) idleWait() time.Duration {
	if s.IdleWait > 0 {
		return s.IdleWait
	}
	return DefaultIdleWait
}

func (s *Sequencer) pauseRetry() time.Duration {
	if s.PauseRetry > 0 {
		return s.PauseRetry
	}
	return DefaultPauseRetry
}

// Run consumes jobs until the context is cancelled. Store-level failures back
// off and retry indefinitely with throttled logging: stopping all campaigns
// silently would be worse than a noisy retry loop.
func (s *Sequencer) Run(ctx context.Context) error {
	consecutiveErrs := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := s.Queue.ClaimNext(QueueCampaignSends)
		if err != nil {
			consecutiveErrs++
			if consecutiveErrs == 1 || consecutiveErrs%10 == 0 {
				s.Logger.Error("claim failed, backing off",
					zap.Int("consecutive", consecutiveErrs), zap.Error(err))
			}
			if !sleepCtx(ctx, s.idleWait()) {
				return ctx.Err()
			}
			continue
		}
		consecutiveErrs = 0

		if job == nil {
			if !sleepCtx(ctx, s.idleWait()) {
				return ctx.Err()
			}
			continue
		}

		s.HandleJob(ctx, job)
	}
}

// sendsClosed reports statuses that permit no further sends, ever. A `failed`
// recipient is deliberately not in this set: the queue's own backoff retries
// the same ordinal, and a late success puts the recipient back in progress.
func sendsClosed(status string) bool {
	switch status {
	case model.RecipientReplied, model.RecipientUnsubscribed, model.RecipientCompleted, model.RecipientBounced:
		return true
	}
	return false
}

// outcome of processing a single claimed job.
type outcome int

const (
	outcomeDone      outcome = iota // job finished, mark completed
	outcomeDrop                     // job is moot (cancelled, stale, terminal recipient)
	outcomeDeferred                 // job already pushed back onto the queue
	outcomeRetry                    // transient failure, hand to queue backoff
	outcomePermanent                // will never succeed, fail outright
)

// HandleJob processes one claimed job end to end, including the queue-side
// completion/fail bookkeeping. A failure in one job never aborts the loop.
func (s *Sequencer) HandleJob(ctx context.Context, job *model.Job) {
	var payload SendJob
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		s.Logger.Error("malformed job payload", zap.Int64("job_id", job.ID), zap.Error(err))
		if err := s.Queue.FailPermanently(job.ID, "malformed payload: "+err.Error()); err != nil {
			s.Logger.Error("fail job", zap.Int64("job_id", job.ID), zap.Error(err))
		}
		return
	}

	result, procErr := s.process(ctx, job, payload)

	var err error
	switch result {
	case outcomeDone, outcomeDrop:
		err = s.Queue.Complete(job.ID)
	case outcomeDeferred:
		// Defer already moved the job; nothing left to do.
	case outcomeRetry:
		backoff := retryBackoffBase << job.Attempts
		if backoff > retryBackoffCap {
			backoff = retryBackoffCap
		}
		err = s.Queue.Fail(job.ID, backoff, procErr.Error())
	case outcomePermanent:
		err = s.Queue.FailPermanently(job.ID, procErr.Error())
	}
	if err != nil {
		s.Logger.Error("queue bookkeeping failed", zap.Int64("job_id", job.ID), zap.Error(err))
	}
	if procErr != nil {
		s.Logger.Warn("send job did not complete",
			zap.Int64("job_id", job.ID),
			zap.Int("campaign_id", payload.CampaignID),
			zap.Int("contact_id", payload.ContactID),
			zap.Int("email_number", payload.EmailNumber),
			zap.Error(procErr))
	}
}

func (s *Sequencer) process(ctx context.Context, job *model.Job, payload SendJob) (outcome, error) {
	campaign, err := s.Campaigns.GetByIDAny(payload.CampaignID)
	if err != nil {
		var notFound *appErrors.ErrCampaignNotFound
		if appErrors.As(err, &notFound) {
			return outcomeDrop, nil
		}
		return outcomeRetry, err
	}

	switch campaign.Status {
	case model.CampaignPaused:
		// Zero progress, and the same job stays the only one in flight.
		if err := s.Queue.Defer(job.ID, s.pauseRetry()); err != nil {
			return outcomeRetry, err
		}
		return outcomeDeferred, nil
	case model.CampaignCancelled, model.CampaignCompleted:
		return outcomeDrop, nil
	}

	rec, err := s.Recipients.Get(payload.CampaignID, payload.ContactID)
	if err != nil {
		return outcomeRetry, err
	}
	if rec == nil {
		return outcomeDrop, nil
	}
	if sendsClosed(rec.Status) {
		s.checkCampaignDone(payload.CampaignID)
		return outcomeDrop, nil
	}
	if payload.EmailNumber != rec.CurrentEmailNumber {
		// Stale duplicate from a crash-and-retry; the cursor has moved on.
		return outcomeDrop, nil
	}

	if campaign.SendingAccountID == nil {
		return outcomePermanent, appErrors.NewPermanent("campaign has no sending account", nil)
	}
	account, err := s.Accounts.GetByID(campaign.OwnerID, *campaign.SendingAccountID)
	if err != nil {
		return outcomeRetry, err
	}
	if account == nil || account.Status != model.AccountActive {
		return outcomePermanent, appErrors.NewPermanent("sending account missing or inactive", nil)
	}

	contact, err := s.Contacts.GetByID(campaign.OwnerID, payload.ContactID)
	if err != nil {
		return outcomeRetry, err
	}
	if contact == nil {
		if err := s.Recipients.MarkFailed(payload.CampaignID, payload.ContactID, "contact no longer exists"); err != nil {
			return outcomeRetry, err
		}
		s.checkCampaignDone(payload.CampaignID)
		return outcomeDrop, nil
	}

	subject, body, hasSequence, done, err := s.resolveMessage(campaign, rec, contact)
	if err != nil {
		return outcomeRetry, err
	}
	if done {
		// Sequence exhausted: nothing left at this ordinal.
		if err := s.Recipients.MarkCompleted(payload.CampaignID, payload.ContactID, nil); err != nil {
			return outcomeRetry, err
		}
		s.checkCampaignDone(payload.CampaignID)
		return outcomeDone, nil
	}

	token, err := s.Tokens.CreateUnsubscribeToken(payload.CampaignID, payload.ContactID)
	if err != nil {
		return outcomeRetry, err
	}
	body = AppendUnsubscribe(body, s.BaseURL, token)
	if s.TrackOpens {
		body = AppendOpenPixel(body, s.BaseURL, payload.CampaignID, payload.ContactID)
	}

	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return outcomeRetry, err
		}
	}

	res, sendErr := s.Sender.Send(ctx, mail.SendRequest{
		AccountID: account.ID,
		From:      account.Email,
		To:        contact.Email,
		Subject:   subject,
		HTML:      body,
	})
	if sendErr != nil {
		return s.recordFailure(payload, account.ID, sendErr)
	}

	return s.recordSuccess(payload, campaign, rec, account.ID, res.MessageID, hasSequence)
}

// resolveMessage picks what to send at the recipient's current ordinal:
// either the persisted sequence message or, when the recipient has no
// sequence, the campaign's shared template. done=true means the sequence has
// no message left at this ordinal.
func (s *Sequencer) resolveMessage(campaign *model.Campaign, rec *model.CampaignRecipient, contact *model.Contact) (subject, body string, hasSequence, done bool, err error) {
	msg, err := s.Sequences.GetByOrdinal(rec.CampaignID, rec.ContactID, rec.CurrentEmailNumber)
	if err != nil {
		return "", "", false, false, err
	}
	if msg != nil {
		ctx := ContactContext(contact)
		return RenderTemplate(msg.Subject, ctx), RenderTemplate(msg.Body, ctx), true, false, nil
	}

	count, err := s.Sequences.CountForContact(rec.CampaignID, rec.ContactID)
	if err != nil {
		return "", "", false, false, err
	}
	if count > 0 {
		// A sequence exists but the ordinal ran past its end.
		return "", "", true, true, nil
	}

	ctx := ContactContext(contact)
	return RenderTemplate(campaign.Subject, ctx), RenderTemplate(campaign.Body, ctx), false, false, nil
}

func (s *Sequencer) recordFailure(payload SendJob, accountID int, sendErr error) (outcome, error) {
	if err := s.Deliveries.Create(&model.DeliveryRecord{
		CampaignID:       payload.CampaignID,
		ContactID:        payload.ContactID,
		Direction:        model.DirectionOutbound,
		SendingAccountID: accountID,
		Status:           model.DeliveryFailed,
		Diagnostics:      sendErr.Error(),
	}); err != nil {
		s.Logger.Error("persist failed delivery record", zap.Error(err))
	}
	s.appendEvent(payload.CampaignID, payload.ContactID, model.EventBounced, sendErr.Error())

	if err := s.Recipients.MarkFailed(payload.CampaignID, payload.ContactID, sendErr.Error()); err != nil {
		s.Logger.Error("mark recipient failed", zap.Error(err))
	}
	s.checkCampaignDone(payload.CampaignID)

	if appErrors.IsPermanent(sendErr) {
		return outcomePermanent, sendErr
	}
	// Re-raise so the queue's retry/backoff applies to the job.
	return outcomeRetry, sendErr
}

func (s *Sequencer) recordSuccess(payload SendJob, campaign *model.Campaign, rec *model.CampaignRecipient, accountID int, providerMessageID string, hasSequence bool) (outcome, error) {
	sentAt := s.now()

	if err := s.Deliveries.Create(&model.DeliveryRecord{
		CampaignID:        payload.CampaignID,
		ContactID:         payload.ContactID,
		Direction:         model.DirectionOutbound,
		SendingAccountID:  accountID,
		ProviderMessageID: providerMessageID,
		Status:            model.DeliverySent,
	}); err != nil {
		// The send happened; losing the record is worse than double-logging,
		// so keep going but say so loudly.
		s.Logger.Error("persist delivery record after send", zap.Error(err))
	}
	s.appendEvent(payload.CampaignID, payload.ContactID, model.EventSent, providerMessageID)

	var next *model.SequenceMessage
	if hasSequence {
		var err error
		next, err = s.Sequences.GetByOrdinal(payload.CampaignID, payload.ContactID, rec.CurrentEmailNumber+1)
		if err != nil {
			return outcomeRetry, err
		}
	}

	if next == nil {
		if err := s.Recipients.MarkCompleted(payload.CampaignID, payload.ContactID, &sentAt); err != nil {
			return outcomeRetry, err
		}
		s.checkCampaignDone(payload.CampaignID)
		return outcomeDone, nil
	}

	// The reply detector may have flipped the recipient while this send was
	// in flight; schedule the next ordinal only if it is still in play.
	fresh, err := s.Recipients.Get(payload.CampaignID, payload.ContactID)
	if err != nil {
		return outcomeRetry, err
	}
	if fresh == nil || sendsClosed(fresh.Status) {
		s.checkCampaignDone(payload.CampaignID)
		return outcomeDone, nil
	}

	// Next send time comes from the immutable anchor plus the message's day
	// offset, never from now: a delayed send must not skew the ones after it.
	anchor := sentAt
	if rec.SequenceStartedAt != nil {
		anchor = *rec.SequenceStartedAt
	}
	nextAt := anchor.Add(time.Duration(next.OffsetDays) * 24 * time.Hour)

	if err := s.Recipients.AdvanceProgress(payload.CampaignID, payload.ContactID, next.Ordinal, nextAt, sentAt); err != nil {
		return outcomeRetry, err
	}

	nextJob := SendJob{CampaignID: payload.CampaignID, ContactID: payload.ContactID, EmailNumber: next.Ordinal}
	if err := s.Queue.Enqueue(QueueCampaignSends, nextJob, queue.Options{
		RunAt:          nextAt,
		IdempotencyKey: nextJob.IdempotencyKey(),
	}); err != nil {
		return outcomeRetry, err
	}

	s.Logger.Info("send completed",
		zap.Int("campaign_id", payload.CampaignID),
		zap.Int("contact_id", payload.ContactID),
		zap.Int("email_number", payload.EmailNumber),
		zap.Int("next_email_number", next.Ordinal),
		zap.Time("next_send_at", nextAt))
	return outcomeDone, nil
}

func (s *Sequencer) appendEvent(campaignID, contactID int, eventType, metadata string) {
	ev := &model.LifecycleEvent{
		CampaignID: campaignID,
		ContactID:  contactID,
		Type:       eventType,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}
	if err := s.Events.Append(ev); err != nil {
		s.Logger.Error("append lifecycle event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if s.Publisher != nil {
		s.Publisher.Publish(ev)
	}
}

// checkCampaignDone flips running -> completed once every recipient is
// terminal. The conditional update makes the flip idempotent under
// concurrent workers.
func (s *Sequencer) checkCampaignDone(campaignID int) {
	flipped, err := s.Campaigns.CompleteIfAllTerminal(campaignID)
	if err != nil {
		s.Logger.Error("campaign completion check", zap.Int("campaign_id", campaignID), zap.Error(err))
		return
	}
	if flipped {
		s.Logger.Info("campaign completed", zap.Int("campaign_id", campaignID))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
