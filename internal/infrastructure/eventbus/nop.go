package eventbus

import (
	"context"

	"go.uber.org/zap"
)

// NopPublisher is used when no broker is configured.
type NopPublisher struct {
	logger *zap.Logger
}

func NewNopPublisher(logger *zap.Logger) *NopPublisher {
	return &NopPublisher{logger: logger}
}

func (p *NopPublisher) PublishMessage(ctx context.Context, routingKey string, payload any) error {
	p.logger.Debug("event bus disabled, dropping message", zap.String("routingKey", routingKey))
	return nil
}

func (p *NopPublisher) Close() error { return nil }
