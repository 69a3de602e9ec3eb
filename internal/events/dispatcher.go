package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type Handler func(ctx context.Context, e Event) error

// Forwarder ships events to an external broker.
type Forwarder interface {
	PublishMessage(ctx context.Context, routingKey string, payload any) error
}

// Dispatcher delivers events to in-process subscribers synchronously, in
// subscription order, then forwards them to the broker.
type Dispatcher struct {
	mu        sync.RWMutex
	handlers  map[Type][]Handler
	forwarder Forwarder
	logger    *zap.Logger
}

func NewDispatcher(forwarder Forwarder, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers:  make(map[Type][]Handler),
		forwarder: forwarder,
		logger:    logger,
	}
}

func (d *Dispatcher) Subscribe(t Type, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = append(d.handlers[t], h)
}

// Publish returns the joined errors of the in-process handlers. Broker
// failures are logged only: the broker is a best-effort mirror.
func (d *Dispatcher) Publish(ctx context.Context, e Event) error {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.handlers[e.Type]...)
	d.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("handling %s: %w", e.Type, err))
		}
	}

	if d.forwarder != nil {
		if err := d.forwarder.PublishMessage(ctx, string(e.Type), e); err != nil {
			d.logger.Warn("failed to forward event", zap.String("type", string(e.Type)), zap.String("eventId", e.ID), zap.Error(err))
		}
	}

	return errors.Join(errs...)
}
