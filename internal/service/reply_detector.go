// internal/service/reply_detector.go
//
// The reply detector polls every active mailbox-capable account, applies a
// reply heuristic to recent messages and correlates candidates back to the
// outbound delivery record that provoked them. Correlation is strictly
// (provider message id, sending account, direction=outbound); anything that
// does not match is persisted unmatched for manual review, never guessed.
package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/unclebandit/outreach-backend/internal/events"
	"github.com/unclebandit/outreach-backend/internal/mail"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"

	"go.uber.org/zap"
)

const (
	DefaultPollInterval = time.Minute
	DefaultLookback     = 24 * time.Hour
)

// messageIDPattern matches an RFC-style message id token embedded in a
// subject line, the fallback when reply headers were stripped.
var messageIDPattern = regexp.MustCompile(`<[^<>\s]+@[^<>\s]+>`)

var replySubjectPrefixes = []string{"re:", "aw:", "sv:", "antw:"}

type ReplyDetector struct {
	Accounts   repository.AccountRepositoryInterface
	Deliveries repository.DeliveryRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
	Campaigns  repository.CampaignRepositoryInterface
	Events     repository.EventRepositoryInterface
	Replies    repository.ReplyRepositoryInterface
	Mailbox    mail.MailboxReader
	Publisher  events.Publisher
	Logger     *zap.Logger

	PollInterval time.Duration
	Lookback     time.Duration
}

func (d *ReplyDetector) pollInterval() time.Duration {
	if d.PollInterval > 0 {
		return d.PollInterval
	}
	return DefaultPollInterval
}

func (d *ReplyDetector) lookback() time.Duration {
	if d.Lookback > 0 {
		return d.Lookback
	}
	return DefaultLookback
}

// Run polls until the context is cancelled. One account failing never stops
// the others, and a store outage just means the next tick tries again.
func (d *ReplyDetector) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.PollOnce(ctx)
		}
	}
}

// PollOnce scans every active mailbox account a single time.
func (d *ReplyDetector) PollOnce(ctx context.Context) {
	accounts, err := d.Accounts.ListActiveMailboxes()
	if err != nil {
		d.Logger.Error("list mailbox accounts", zap.Error(err))
		return
	}
	for _, account := range accounts {
		if err := d.pollAccount(ctx, account); err != nil {
			d.Logger.Warn("mailbox poll failed",
				zap.Int("account_id", account.ID),
				zap.String("email", account.Email),
				zap.Error(err))
		}
	}
}

func (d *ReplyDetector) pollAccount(ctx context.Context, account model.SendingAccount) error {
	session, err := d.Mailbox.Connect(ctx, account.ID)
	if err != nil {
		return err
	}
	defer session.Close()

	ids, err := session.Search(ctx, time.Now().Add(-d.lookback()))
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	messages, err := session.Fetch(ctx, ids)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		if !IsReply(msg) {
			continue
		}
		d.correlate(account, msg)
	}
	return nil
}

// IsReply applies the reply heuristic: threading headers when present,
// otherwise a reply-style subject prefix.
func IsReply(msg mail.Message) bool {
	if msg.InReplyTo != "" || len(msg.References) > 0 {
		return true
	}
	subject := strings.ToLower(strings.TrimSpace(msg.Subject))
	for _, prefix := range replySubjectPrefixes {
		if strings.HasPrefix(subject, prefix) {
			return true
		}
	}
	return false
}

// ExtractOriginalID pulls the candidate provoking-message id: In-Reply-To,
// then the last References entry, then a message-id token in the subject.
func ExtractOriginalID(msg mail.Message) string {
	if msg.InReplyTo != "" {
		return strings.TrimSpace(msg.InReplyTo)
	}
	if len(msg.References) > 0 {
		return strings.TrimSpace(msg.References[len(msg.References)-1])
	}
	return messageIDPattern.FindString(msg.Subject)
}

func (d *ReplyDetector) correlate(account model.SendingAccount, msg mail.Message) {
	candidate := ExtractOriginalID(msg)

	var record *model.DeliveryRecord
	if candidate != "" {
		var err error
		record, err = d.Deliveries.FindOutbound(candidate, account.ID)
		if err != nil {
			d.Logger.Error("correlate reply", zap.String("candidate", candidate), zap.Error(err))
			return
		}
	}

	reply := &model.DetectedReply{
		OriginalMessageID: candidate,
		ReplyMessageID:    msg.MessageID,
		Subject:           msg.Subject,
		Body:              msg.Body,
		SenderEmail:       msg.From,
		ReceivedAt:        msg.Date,
	}
	if record != nil {
		reply.CampaignID = &record.CampaignID
		reply.ContactID = &record.ContactID
		reply.Matched = true
	}

	inserted, err := d.Replies.Create(reply)
	if err != nil {
		d.Logger.Error("persist detected reply", zap.Error(err))
		return
	}
	if !inserted {
		// Already seen on an earlier poll of the lookback window.
		return
	}

	if record == nil {
		d.Logger.Info("unmatched reply stored for review",
			zap.Int("account_id", account.ID),
			zap.String("reply_message_id", msg.MessageID),
			zap.String("candidate", candidate))
		return
	}

	d.processMatch(record, reply)
}

// processMatch flips the recipient to replied and logs the event. Only a
// recipient still in play is flipped; later sequence sends check this status
// before scheduling anything further.
func (d *ReplyDetector) processMatch(record *model.DeliveryRecord, reply *model.DetectedReply) {
	flipped, err := d.Recipients.MarkReplied(record.CampaignID, record.ContactID)
	if err != nil {
		d.Logger.Error("mark recipient replied", zap.Error(err))
		return
	}
	if !flipped {
		return
	}

	ev := &model.LifecycleEvent{
		CampaignID: record.CampaignID,
		ContactID:  record.ContactID,
		Type:       model.EventReplied,
		Metadata:   reply.ReplyMessageID,
		OccurredAt: reply.ReceivedAt,
	}
	if err := d.Events.Append(ev); err != nil {
		d.Logger.Error("append replied event", zap.Error(err))
	} else if d.Publisher != nil {
		d.Publisher.Publish(ev)
	}

	// The reply may have been the campaign's last open recipient.
	if _, err := d.Campaigns.CompleteIfAllTerminal(record.CampaignID); err != nil {
		d.Logger.Error("campaign completion check after reply", zap.Error(err))
	}

	d.Logger.Info("reply correlated",
		zap.Int("campaign_id", record.CampaignID),
		zap.Int("contact_id", record.ContactID),
		zap.String("original_message_id", record.ProviderMessageID))
}
