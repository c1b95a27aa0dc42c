// cmd/worker/main.go
//
// The worker process runs three cooperative loops against the shared store:
// the sequencer consuming send jobs, the reply detector polling mailboxes,
// and the maintenance sweep recovering stale claimed jobs. Multiple worker
// processes may run side by side; the queue's atomic claim keeps them from
// stepping on each other.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/events"
	"github.com/unclebandit/outreach-backend/internal/mail"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on OS environment variables")
	}

	conn, err := db.Connect()
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer conn.Close()

	store := queue.NewStore(conn, logger)

	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}
	sequenceRepo := &repository.SequenceRepository{DB: conn}
	deliveryRepo := &repository.DeliveryRepository{DB: conn}
	eventRepo := &repository.EventRepository{DB: conn}
	accountRepo := &repository.AccountRepository{DB: conn}
	contactRepo := &repository.ContactRepository{DB: conn}
	tokenRepo := &repository.TokenRepository{DB: conn}
	replyRepo := &repository.ReplyRepository{DB: conn}

	var publisher events.Publisher = events.NopPublisher{}
	if url := os.Getenv("AMQP_URL"); url != "" {
		p, err := events.NewAMQPPublisher(url, logger)
		if err != nil {
			// Event fan-out is best effort; the events table still has it all.
			logger.Warn("event broker unavailable, continuing without fan-out", zap.Error(err))
		} else {
			publisher = p
		}
	}

	sequencer := &service.Sequencer{
		Queue:      store,
		Campaigns:  campaignRepo,
		Recipients: recipientRepo,
		Sequences:  sequenceRepo,
		Deliveries: deliveryRepo,
		Events:     eventRepo,
		Accounts:   accountRepo,
		Contacts:   contactRepo,
		Tokens:     tokenRepo,
		Sender:     &mail.MockSender{},
		Publisher:  publisher,
		Logger:     logger.Named("sequencer"),
		Limiter:    service.NewSendLimiter(envInt("SEND_RATE_PER_HOUR", 120)),
		IdleWait:   envDuration("QUEUE_IDLE_WAIT", service.DefaultIdleWait),
		BaseURL:    os.Getenv("PUBLIC_BASE_URL"),
		TrackOpens: os.Getenv("TRACK_OPENS") == "true",
	}

	detector := &service.ReplyDetector{
		Accounts:     accountRepo,
		Deliveries:   deliveryRepo,
		Recipients:   recipientRepo,
		Campaigns:    campaignRepo,
		Events:       eventRepo,
		Replies:      replyRepo,
		Mailbox:      mail.NewInMemoryMailbox(),
		Publisher:    publisher,
		Logger:       logger.Named("detector"),
		PollInterval: envDuration("POLL_INTERVAL", service.DefaultPollInterval),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sequencer.Run(ctx) })
	g.Go(func() error { return detector.Run(ctx) })
	g.Go(func() error { return runSweeper(ctx, store, logger) })

	logger.Info("worker running")
	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}

// runSweeper periodically returns jobs stuck `running` past the staleness
// window to `pending`, recovering from crashed workers.
func runSweeper(ctx context.Context, store *queue.Store, logger *zap.Logger) error {
	interval := envDuration("SWEEP_INTERVAL", time.Minute)
	staleAfter := envDuration("JOB_STALE_AFTER", queue.DefaultStaleAfter)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := store.SweepStale(staleAfter); err != nil {
				logger.Error("stale job sweep", zap.Error(err))
			}
		}
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
