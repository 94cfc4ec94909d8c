package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishOrderAndIsolation(t *testing.T) {
	bus := NewBus()

	var calls []string
	bus.Subscribe(TopicPositionsReconciled, "first", func(_ context.Context, evt Event) error {
		calls = append(calls, "first:"+evt.(PositionsReconciled).UserID)
		return errors.New("first failed")
	})
	bus.Subscribe(TopicPositionsReconciled, "panicky", func(context.Context, Event) error {
		calls = append(calls, "panicky")
		panic("boom")
	})
	bus.Subscribe(TopicPositionsReconciled, "last", func(context.Context, Event) error {
		calls = append(calls, "last")
		return nil
	})
	bus.Subscribe(TopicExitSubmitted, "other", func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := bus.Publish(context.Background(), PositionsReconciled{UserID: "u-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first failed")
	assert.Contains(t, err.Error(), "panicky: panic: boom")

	assert.Equal(t, []string{"first:u-1", "panicky", "last"}, calls)
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	assert.NoError(t, bus.Publish(context.Background(), ExitSubmitted{Symbol: "AAPL"}))
	assert.False(t, ExitSubmitted{}.Rejected())
	assert.True(t, ExitSubmitted{RejectReason: "no"}.Rejected())
}
