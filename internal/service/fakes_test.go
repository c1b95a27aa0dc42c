package service_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/mail"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// ---- queue ----

type enqueuedJob struct {
	Queue   string
	Payload any
	Opts    queue.Options
}

type failedCall struct {
	ID      int64
	Backoff time.Duration
	Reason  string
}

type deferredCall struct {
	ID    int64
	Delay time.Duration
}

// fakeQueue mimics the durable queue including idempotency-key dedup.
type fakeQueue struct {
	enqueued   []enqueuedJob
	keys       map[string]bool
	completed  []int64
	failed     []failedCall
	permanent  []int64
	deferred   []deferredCall
	enqueueErr error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{keys: map[string]bool{}}
}

func (q *fakeQueue) Enqueue(name string, payload any, opts queue.Options) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	if opts.IdempotencyKey != "" {
		if q.keys[opts.IdempotencyKey] {
			return nil // silent no-op, like the real thing
		}
		q.keys[opts.IdempotencyKey] = true
	}
	q.enqueued = append(q.enqueued, enqueuedJob{Queue: name, Payload: payload, Opts: opts})
	return nil
}

func (q *fakeQueue) ClaimNext(string) (*model.Job, error) { return nil, nil }
func (q *fakeQueue) Complete(id int64) error {
	q.completed = append(q.completed, id)
	return nil
}
func (q *fakeQueue) Fail(id int64, backoff time.Duration, reason string) error {
	q.failed = append(q.failed, failedCall{ID: id, Backoff: backoff, Reason: reason})
	return nil
}
func (q *fakeQueue) FailPermanently(id int64, reason string) error {
	q.permanent = append(q.permanent, id)
	return nil
}
func (q *fakeQueue) Defer(id int64, delay time.Duration) error {
	q.deferred = append(q.deferred, deferredCall{ID: id, Delay: delay})
	return nil
}

var _ queue.Queue = (*fakeQueue)(nil)

// ---- repositories ----

type fakeCampaignRepo struct {
	campaigns  map[int]*model.Campaign
	recipients *fakeRecipientRepo
	deleted    []int
	nextID     int
}

func newFakeCampaignRepo(recipients *fakeRecipientRepo) *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: map[int]*model.Campaign{}, recipients: recipients, nextID: 1}
}

func (r *fakeCampaignRepo) Create(c *model.Campaign) error {
	c.ID = r.nextID
	r.nextID++
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	r.campaigns[c.ID] = c
	return nil
}

func (r *fakeCampaignRepo) GetByID(ownerID, id int) (*model.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok || c.OwnerID != ownerID {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) GetByIDAny(id int) (*model.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCampaignRepo) ListCampaigns(ownerID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	out := []*model.Campaign{}
	for _, c := range r.campaigns {
		if c.OwnerID == ownerID && (status == "" || c.Status == status) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (r *fakeCampaignRepo) TransitionStatus(ownerID, id int, to string, from ...string) (bool, error) {
	c, ok := r.campaigns[id]
	if !ok || c.OwnerID != ownerID {
		return false, appErrors.NewCampaignNotFound(id)
	}
	for _, f := range from {
		if c.Status == f {
			c.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCampaignRepo) CompleteIfAllTerminal(campaignID int) (bool, error) {
	c, ok := r.campaigns[campaignID]
	if !ok || c.Status != model.CampaignRunning {
		return false, nil
	}
	for _, rec := range r.recipients.byCampaign(campaignID) {
		if rec.Status == model.RecipientPending || rec.Status == model.RecipientInProgress {
			return false, nil
		}
	}
	c.Status = model.CampaignCompleted
	return true, nil
}

func (r *fakeCampaignRepo) DeleteCascade(id int) error {
	delete(r.campaigns, id)
	r.deleted = append(r.deleted, id)
	return nil
}

var _ repository.CampaignRepositoryInterface = (*fakeCampaignRepo)(nil)

type fakeRecipientRepo struct {
	recipients map[[2]int]*model.CampaignRecipient
}

func newFakeRecipientRepo() *fakeRecipientRepo {
	return &fakeRecipientRepo{recipients: map[[2]int]*model.CampaignRecipient{}}
}

func (r *fakeRecipientRepo) add(rec *model.CampaignRecipient) {
	r.recipients[[2]int{rec.CampaignID, rec.ContactID}] = rec
}

func (r *fakeRecipientRepo) byCampaign(campaignID int) []*model.CampaignRecipient {
	out := []*model.CampaignRecipient{}
	for _, rec := range r.recipients {
		if rec.CampaignID == campaignID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContactID < out[j].ContactID })
	return out
}

func (r *fakeRecipientRepo) Get(campaignID, contactID int) (*model.CampaignRecipient, error) {
	rec, ok := r.recipients[[2]int{campaignID, contactID}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRecipientRepo) ListPending(campaignID int) ([]*model.CampaignRecipient, error) {
	out := []*model.CampaignRecipient{}
	for _, rec := range r.byCampaign(campaignID) {
		if rec.Status == model.RecipientPending {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRecipientRepo) CountByCampaign(campaignID int) (int, error) {
	return len(r.byCampaign(campaignID)), nil
}

func (r *fakeRecipientRepo) SeedProgress(campaignID, contactID, totalEmails int, startedAt time.Time) error {
	rec := r.recipients[[2]int{campaignID, contactID}]
	rec.CurrentEmailNumber = 1
	rec.TotalEmails = totalEmails
	if rec.SequenceStartedAt == nil {
		t := startedAt
		rec.SequenceStartedAt = &t
	}
	t := startedAt
	rec.NextEmailSendAt = &t
	return nil
}

func (r *fakeRecipientRepo) AdvanceProgress(campaignID, contactID, nextEmailNumber int, nextSendAt, sentAt time.Time) error {
	rec := r.recipients[[2]int{campaignID, contactID}]
	rec.Status = model.RecipientInProgress
	rec.CurrentEmailNumber = nextEmailNumber
	n, s := nextSendAt, sentAt
	rec.NextEmailSendAt = &n
	rec.LastEmailSentAt = &s
	return nil
}

func (r *fakeRecipientRepo) MarkCompleted(campaignID, contactID int, sentAt *time.Time) error {
	rec := r.recipients[[2]int{campaignID, contactID}]
	rec.Status = model.RecipientCompleted
	rec.NextEmailSendAt = nil
	if sentAt != nil {
		rec.LastEmailSentAt = sentAt
	}
	return nil
}

func (r *fakeRecipientRepo) MarkFailed(campaignID, contactID int, reason string) error {
	rec := r.recipients[[2]int{campaignID, contactID}]
	rec.Status = model.RecipientFailed
	rec.LastError = reason
	return nil
}

func (r *fakeRecipientRepo) MarkReplied(campaignID, contactID int) (bool, error) {
	rec, ok := r.recipients[[2]int{campaignID, contactID}]
	if !ok {
		return false, nil
	}
	if rec.Status != model.RecipientPending && rec.Status != model.RecipientInProgress {
		return false, nil
	}
	rec.Status = model.RecipientReplied
	rec.NextEmailSendAt = nil
	return true, nil
}

var _ repository.RecipientRepositoryInterface = (*fakeRecipientRepo)(nil)

type fakeSequenceRepo struct {
	messages   map[[2]int][]model.SequenceMessage
	recipients *fakeRecipientRepo
}

func newFakeSequenceRepo(recipients *fakeRecipientRepo) *fakeSequenceRepo {
	return &fakeSequenceRepo{messages: map[[2]int][]model.SequenceMessage{}, recipients: recipients}
}

func (r *fakeSequenceRepo) add(m model.SequenceMessage) {
	key := [2]int{m.CampaignID, m.ContactID}
	r.messages[key] = append(r.messages[key], m)
}

func (r *fakeSequenceRepo) GetByOrdinal(campaignID, contactID, ordinal int) (*model.SequenceMessage, error) {
	for _, m := range r.messages[[2]int{campaignID, contactID}] {
		if m.Ordinal == ordinal {
			cp := m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeSequenceRepo) CountForContact(campaignID, contactID int) (int, error) {
	return len(r.messages[[2]int{campaignID, contactID}]), nil
}

func (r *fakeSequenceRepo) CountRecipientsWithoutSequence(campaignID int) (int, error) {
	n := 0
	for _, rec := range r.recipients.byCampaign(campaignID) {
		if len(r.messages[[2]int{campaignID, rec.ContactID}]) == 0 {
			n++
		}
	}
	return n, nil
}

var _ repository.SequenceRepositoryInterface = (*fakeSequenceRepo)(nil)

type fakeDeliveryRepo struct {
	records []model.DeliveryRecord
}

func (r *fakeDeliveryRepo) Create(rec *model.DeliveryRecord) error {
	rec.ID = len(r.records) + 1
	r.records = append(r.records, *rec)
	return nil
}

func (r *fakeDeliveryRepo) FindOutbound(providerMessageID string, sendingAccountID int) (*model.DeliveryRecord, error) {
	for _, rec := range r.records {
		if rec.ProviderMessageID == providerMessageID &&
			rec.SendingAccountID == sendingAccountID &&
			rec.Direction == model.DirectionOutbound {
			cp := rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeDeliveryRepo) StatsByCampaign(campaignID int) (map[string]int, error) {
	stats := map[string]int{"sent": 0, "failed": 0}
	for _, rec := range r.records {
		if rec.CampaignID == campaignID && rec.Direction == model.DirectionOutbound {
			stats[rec.Status]++
		}
	}
	return stats, nil
}

var _ repository.DeliveryRepositoryInterface = (*fakeDeliveryRepo)(nil)

type fakeEventRepo struct {
	events []model.LifecycleEvent
}

func (r *fakeEventRepo) Append(ev *model.LifecycleEvent) error {
	ev.ID = len(r.events) + 1
	r.events = append(r.events, *ev)
	return nil
}

func (r *fakeEventRepo) typesFor(campaignID, contactID int) []string {
	out := []string{}
	for _, ev := range r.events {
		if ev.CampaignID == campaignID && ev.ContactID == contactID {
			out = append(out, ev.Type)
		}
	}
	return out
}

var _ repository.EventRepositoryInterface = (*fakeEventRepo)(nil)

type fakeAccountRepo struct {
	accounts map[int]*model.SendingAccount
}

func (r *fakeAccountRepo) GetByID(ownerID, id int) (*model.SendingAccount, error) {
	a, ok := r.accounts[id]
	if !ok || a.OwnerID != ownerID {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAccountRepo) ListActiveMailboxes() ([]model.SendingAccount, error) {
	out := []model.SendingAccount{}
	for _, a := range r.accounts {
		if a.Status == model.AccountActive && a.IMAPCapable {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ repository.AccountRepositoryInterface = (*fakeAccountRepo)(nil)

type fakeContactRepo struct {
	contacts map[int]*model.Contact
}

func (r *fakeContactRepo) GetByID(ownerID, id int) (*model.Contact, error) {
	c, ok := r.contacts[id]
	if !ok || c.OwnerID != ownerID {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

var _ repository.ContactRepositoryInterface = (*fakeContactRepo)(nil)

type fakeTokenRepo struct {
	minted int
}

func (r *fakeTokenRepo) CreateUnsubscribeToken(campaignID, contactID int) (string, error) {
	r.minted++
	return fmt.Sprintf("tok-%d", r.minted), nil
}

var _ repository.TokenRepositoryInterface = (*fakeTokenRepo)(nil)

type fakeReplyRepo struct {
	replies []model.DetectedReply
	seen    map[string]bool
}

func newFakeReplyRepo() *fakeReplyRepo { return &fakeReplyRepo{seen: map[string]bool{}} }

func (r *fakeReplyRepo) Create(reply *model.DetectedReply) (bool, error) {
	if r.seen[reply.ReplyMessageID] {
		return false, nil
	}
	r.seen[reply.ReplyMessageID] = true
	reply.ID = len(r.replies) + 1
	r.replies = append(r.replies, *reply)
	return true, nil
}

var _ repository.ReplyRepositoryInterface = (*fakeReplyRepo)(nil)

// ---- collaborators ----

type fakeSender struct {
	requests  []mail.SendRequest
	nextID    int
	sendErr   error
	verifyOK  bool
	verifyErr error
}

func newFakeSender() *fakeSender { return &fakeSender{verifyOK: true} }

func (s *fakeSender) Send(ctx context.Context, req mail.SendRequest) (mail.SendResult, error) {
	s.requests = append(s.requests, req)
	if s.sendErr != nil {
		return mail.SendResult{}, s.sendErr
	}
	s.nextID++
	return mail.SendResult{MessageID: fmt.Sprintf("<msg-%d@provider.test>", s.nextID)}, nil
}

func (s *fakeSender) VerifyCredentials(ctx context.Context, accountID int) (mail.Verification, error) {
	if s.verifyErr != nil {
		return mail.Verification{}, s.verifyErr
	}
	return mail.Verification{Valid: s.verifyOK}, nil
}

var _ mail.Sender = (*fakeSender)(nil)

type fakePublisher struct {
	published []model.LifecycleEvent
}

func (p *fakePublisher) Publish(ev *model.LifecycleEvent) {
	p.published = append(p.published, *ev)
}
