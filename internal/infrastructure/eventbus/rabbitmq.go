package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"fulfillment/internal/config"
)

var ErrNotReady = errors.New("event bus publisher not ready")

// RabbitMQPublisher publishes JSON messages to a durable exchange with
// publisher confirms. The channel is shared, so publishes are serialised to
// keep confirmations paired with their messages.
type RabbitMQPublisher struct {
	cfg           config.EventBusConfig
	logger        *zap.Logger
	mu            sync.Mutex
	connection    *amqp.Connection
	channel       *amqp.Channel
	notifyConfirm chan amqp.Confirmation
}

func NewRabbitMQPublisher(cfg config.EventBusConfig, logger *zap.Logger) (*RabbitMQPublisher, error) {
	logger.Info("connecting to RabbitMQ", zap.String("exchange", cfg.Exchange))

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open producer channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("producer channel could not be put into confirm mode: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,     // name
		cfg.ExchangeType, // type
		true,             // durable
		false,            // auto-deleted
		false,            // internal
		false,            // no-wait
		nil,              // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	return &RabbitMQPublisher{
		cfg:           cfg,
		logger:        logger,
		connection:    conn,
		channel:       ch,
		notifyConfirm: ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
	}, nil
}

// PublishMessage sends payload as JSON under routingKey and waits for the
// broker to confirm it.
func (p *RabbitMQPublisher) PublishMessage(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return ErrNotReady
	}

	err = p.channel.Publish(
		p.cfg.Exchange, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	timer := time.NewTimer(p.cfg.PublishTimeout)
	defer timer.Stop()

	select {
	case confirm, ok := <-p.notifyConfirm:
		if !ok {
			return ErrNotReady
		}
		if !confirm.Ack {
			return fmt.Errorf("message %d nacked by broker", confirm.DeliveryTag)
		}
		p.logger.Debug("message confirmed", zap.String("routingKey", routingKey), zap.Uint64("tag", confirm.DeliveryTag))
		return nil
	case <-timer.C:
		return errors.New("publish confirmation timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
		p.channel = nil
	}
	if p.connection != nil && !p.connection.IsClosed() {
		errs = append(errs, p.connection.Close())
	}
	p.connection = nil
	return errors.Join(errs...)
}
