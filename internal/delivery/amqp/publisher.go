package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqplib "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Harsh-BH/Sentinel/judge/internal/domain"
	"github.com/Harsh-BH/Sentinel/judge/internal/repository"
)

const (
	verdictExchange     = "sentinel.verdicts"
	verdictExchangeType = "topic"

	// Publish timeout covers the broker confirmation.
	publishTimeout = 5 * time.Second
)

var _ repository.VerdictPublisher = (*VerdictPublisher)(nil)

// VerdictPublisher publishes VerdictEvents to a topic exchange with
// publisher confirms. Routing keys are "verdict.<status>".
type VerdictPublisher struct {
	url     string
	conn    *amqplib.Connection
	channel *amqplib.Channel
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewVerdictPublisher connects to RabbitMQ and declares the verdict exchange.
func NewVerdictPublisher(url string, logger *zap.Logger) (*VerdictPublisher, error) {
	p := &VerdictPublisher{url: url, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	go p.watchConnection()
	return p, nil
}

func (p *VerdictPublisher) connect() error {
	conn, err := amqplib.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}

	// Enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(verdictExchange, verdictExchangeType, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = ch
	p.mu.Unlock()

	p.logger.Info("Verdict publisher initialized", zap.String("exchange", verdictExchange))
	return nil
}

// watchConnection monitors the connection and reconnects on failure.
func (p *VerdictPublisher) watchConnection() {
	for {
		p.mu.RLock()
		if p.closed {
			p.mu.RUnlock()
			return
		}
		conn := p.conn
		p.mu.RUnlock()

		reason, ok := <-conn.NotifyClose(make(chan *amqplib.Error, 1))
		if !ok {
			// Closed by Close.
			return
		}

		p.logger.Warn("RabbitMQ connection lost, reconnecting...", zap.String("reason", reason.Error()))

		for attempt := 0; ; attempt++ {
			p.mu.RLock()
			closed := p.closed
			p.mu.RUnlock()
			if closed {
				return
			}

			time.Sleep(reconnectDelay(attempt))
			if err := p.connect(); err != nil {
				p.logger.Warn("RabbitMQ reconnect failed", zap.Error(err))
				continue
			}
			p.logger.Info("RabbitMQ reconnected successfully")
			break
		}
	}
}

// PublishVerdict publishes event and waits for the broker to confirm it.
func (p *VerdictPublisher) PublishVerdict(ctx context.Context, event *domain.VerdictEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal verdict: %w", err)
	}

	p.mu.RLock()
	ch := p.channel
	p.mu.RUnlock()
	if ch == nil {
		return fmt.Errorf("rabbitmq: channel not available (reconnecting)")
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	confirm, err := ch.PublishWithDeferredConfirmWithContext(publishCtx,
		verdictExchange,
		verdictRoutingKey(event.Status),
		false, // mandatory
		false, // immediate
		amqplib.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqplib.Persistent,
			MessageId:    event.SubmissionID.String(),
			Timestamp:    event.JudgedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	acked, err := confirm.WaitContext(publishCtx)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish confirmation (submission_id=%s): %w", event.SubmissionID, err)
	}
	if !acked {
		return fmt.Errorf("rabbitmq: broker nacked verdict (submission_id=%s)", event.SubmissionID)
	}

	p.logger.Debug("Published verdict",
		zap.String("submission_id", event.SubmissionID.String()),
		zap.String("status", string(event.Status)),
	)
	return nil
}

// verdictRoutingKey lets consumers bind to e.g. "verdict.ACCEPTED" or "verdict.#".
func verdictRoutingKey(status domain.SubmissionStatus) string {
	return "verdict." + string(status)
}

// Close closes the channel and connection.
func (p *VerdictPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	if p.channel != nil {
		err = multierr.Append(err, p.channel.Close())
	}
	if p.conn != nil {
		err = multierr.Append(err, p.conn.Close())
	}
	return err
}
