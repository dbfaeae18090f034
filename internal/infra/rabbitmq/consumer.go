package rabbitmq

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/footfallfinder/footfall-analysis-service/internal/infra/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const maxBackoff = 60 * time.Second

type MessageHandler func(ctx context.Context, body []byte) error

type Consumer struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	queue       string
	workerCount int
	baseDelay   time.Duration
	handler     MessageHandler
	logger      *zap.Logger
	wg          sync.WaitGroup
}

type ConsumerConfig struct {
	URL         string
	Queue       string
	Exchange    string
	DLQ         string
	StatusQueue string
	Prefetch    int
	WorkerCount int
	BaseDelayMs int
}

func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := DeclareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return &Consumer{
		conn:        conn,
		channel:     ch,
		queue:       cfg.Queue,
		workerCount: cfg.WorkerCount,
		baseDelay:   time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		handler:     handler,
		logger:      logger,
	}, nil
}

// DeclareTopology declares the exchange, the analysis, status and dead-letter
// queues, and binds the first two to the exchange.
func DeclareTopology(ch *amqp.Channel, cfg ConsumerConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range []string{cfg.Queue, cfg.DLQ, cfg.StatusQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	if err := ch.QueueBind(cfg.Queue, AnalysisRoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind analysis queue: %w", err)
	}
	if err := ch.QueueBind(cfg.StatusQueue, StatusRoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind status queue: %w", err)
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(
		ctx,
		c.queue,
		"",
		false, // autoAck=false
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("starting worker pool",
		zap.Int("workers", c.workerCount),
		zap.String("queue", c.queue),
	)

	for i := 0; i < c.workerCount; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, deliveries)
	}

	<-ctx.Done()
	c.logger.Info("context cancelled, waiting for workers to finish")
	c.wg.Wait()
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	log := c.logger.With(zap.Int("worker_id", id))
	log.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Info("delivery channel closed")
				return
			}
			c.processDelivery(ctx, d, log)
		}
	}
}

func (c *Consumer) processDelivery(ctx context.Context, d amqp.Delivery, log *zap.Logger) {
	err := c.handler(ctx, d.Body)
	if err == nil {
		metrics.DeliveriesTotal.WithLabelValues("ack").Inc()
		_ = d.Ack(false)
		return
	}

	attempt := attemptFrom(d)
	delay := Backoff(c.baseDelay, attempt)
	log.Warn("message processing failed, requeueing after backoff",
		zap.Error(err),
		zap.Uint64("delivery_tag", d.DeliveryTag),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
	)

	// on shutdown the message goes back without waiting out the delay
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
	metrics.DeliveriesTotal.WithLabelValues("requeue").Inc()
	_ = d.Nack(false, true)
}

// attemptFrom estimates how often a delivery has been tried. Dead-lettered
// copies carry x-death entries; plain requeues only set Redelivered.
func attemptFrom(d amqp.Delivery) int {
	if xDeath, ok := d.Headers["x-death"]; ok {
		if deaths, ok := xDeath.([]interface{}); ok && len(deaths) > 0 {
			return len(deaths) + 1
		}
	}
	if d.Redelivered {
		return 2
	}
	return 1
}

// Backoff doubles base per attempt, capped at one minute.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxBackoff) {
		return maxBackoff
	}
	return time.Duration(delay)
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
