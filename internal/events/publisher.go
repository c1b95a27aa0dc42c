// Package events fans lifecycle events out to RabbitMQ for downstream
// consumers (analytics, webhooks). Publishing is strictly best-effort: the
// durable lifecycle_events table is the record of truth, and a broker outage
// must never fail a send.
package events

import (
	"encoding/json"

	"github.com/unclebandit/outreach-backend/internal/model"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const eventQueue = "campaign_events"

type Publisher interface {
	Publish(ev *model.LifecycleEvent)
}

// AMQPPublisher publishes persisted lifecycle events to a durable queue.
type AMQPPublisher struct {
	ch     *amqp.Channel
	logger *zap.Logger
}

func NewAMQPPublisher(url string, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	_, err = ch.QueueDeclare(
		eventQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &AMQPPublisher{ch: ch, logger: logger.Named("events")}, nil
}

func (p *AMQPPublisher) Publish(ev *model.LifecycleEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("marshal lifecycle event", zap.Error(err))
		return
	}
	err = p.ch.Publish(
		"",
		eventQueue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		p.logger.Warn("publish lifecycle event failed",
			zap.String("type", ev.Type),
			zap.Int("campaign_id", ev.CampaignID),
			zap.Error(err))
	}
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(*model.LifecycleEvent) {}

var (
	_ Publisher = (*AMQPPublisher)(nil)
	_ Publisher = NopPublisher{}
)
