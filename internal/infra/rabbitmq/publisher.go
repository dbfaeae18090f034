package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	AnalysisRoutingKey = "footfall.analysis"
	StatusRoutingKey   = "footfall.status"
)

type Publisher struct {
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{channel: ch, exchange: exchange}, nil
}

func (p *Publisher) publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table) error {
	return p.channel.PublishWithContext(ctx,
		exchange,
		key,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
		},
	)
}

// DeclareTopology declares the queues on the publisher's channel so requests
// published before any worker starts are not dropped.
func (p *Publisher) DeclareTopology(cfg ConsumerConfig) error {
	return DeclareTopology(p.channel, cfg)
}

func (p *Publisher) Close() error {
	return p.channel.Close()
}

// AnalysisRequestPublisher enqueues analysis jobs for the worker.
type AnalysisRequestPublisher struct {
	pub *Publisher
}

func NewAnalysisRequestPublisher(pub *Publisher) *AnalysisRequestPublisher {
	return &AnalysisRequestPublisher{pub: pub}
}

func (ap *AnalysisRequestPublisher) PublishAnalysisRequest(ctx context.Context, msg []byte) error {
	return ap.pub.publish(ctx, ap.pub.exchange, AnalysisRoutingKey, msg, nil)
}

type StatusPublisher struct {
	pub        *Publisher
	routingKey string
}

func NewStatusPublisher(pub *Publisher) *StatusPublisher {
	return &StatusPublisher{pub: pub, routingKey: StatusRoutingKey}
}

func (sp *StatusPublisher) PublishStatus(ctx context.Context, msg []byte) error {
	return sp.pub.publish(ctx, sp.pub.exchange, sp.routingKey, msg, nil)
}

type DLQPublisher struct {
	pub   *Publisher
	queue string
}

func NewDLQPublisher(pub *Publisher, dlqQueue string) *DLQPublisher {
	return &DLQPublisher{pub: pub, queue: dlqQueue}
}

func (dp *DLQPublisher) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	return dp.pub.publish(ctx, "", dp.queue, msg, amqp.Table{
		"x-dlq-reason": reason,
	})
}
