// Package events is a small synchronous in-process event bus.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/connectors"
	"papertrader/src/model"
	"papertrader/src/risk"
)

type Topic string

const (
	TopicPositionsReconciled Topic = "positions.reconciled"
	TopicExitSubmitted       Topic = "exit.submitted"
)

type Event interface {
	Topic() Topic
}

// PositionView is a broker position with its P/L in percent.
type PositionView struct {
	connectors.Position
	PLPct decimal.Decimal `json:"pl_pct"`
}

// PositionsReconciled is emitted once per tick after the ledger caught up
// with the broker positions.
type PositionsReconciled struct {
	UserID    string
	Policy    *model.RiskPolicy
	Positions []PositionView
	At        time.Time
}

func (PositionsReconciled) Topic() Topic { return TopicPositionsReconciled }

// ExitSubmitted reports the outcome of one automated exit attempt.
type ExitSubmitted struct {
	UserID        string
	Symbol        string
	Quantity      decimal.Decimal
	PLPct         decimal.Decimal
	Reason        risk.ExitReason
	BrokerOrderID string
	// RejectReason is set when the broker refused the order.
	RejectReason string
	At           time.Time
}

func (ExitSubmitted) Topic() Topic { return TopicExitSubmitted }

func (e ExitSubmitted) Rejected() bool { return e.RejectReason != "" }

type Handler func(ctx context.Context, evt Event) error

type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]namedHandler
}

type namedHandler struct {
	name string
	fn   Handler
}

func NewBus() *Bus {
	return &Bus{handlers: map[Topic][]namedHandler{}}
}

// Subscribe registers fn for topic. Handlers run in registration order.
func (b *Bus) Subscribe(topic Topic, name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], namedHandler{name: name, fn: fn})
}

// Publish runs every handler of evt's topic. A failing or panicking handler
// does not stop the others; their errors are joined in the result.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	b.mu.RLock()
	handlers := append([]namedHandler(nil), b.handlers[evt.Topic()]...)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := b.dispatch(ctx, h, evt); err != nil {
			logger.WithFields(map[string]interface{}{
				"component": "events",
				"topic":     evt.Topic(),
				"handler":   h.name,
			}).WithError(err).Error("event handler failed")
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bus) dispatch(ctx context.Context, h namedHandler, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.fn(ctx, evt)
}
