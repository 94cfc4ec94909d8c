package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture(t *testing.T) {
	repo := &mockExceptionRepo{}

	Capture(context.Background(), repo, "exit_evaluator", "PlaceOrder", "warn", nil, nil)
	assert.Empty(t, repo.created, "nil errors are not captured")

	Capture(context.Background(), repo, "exit_evaluator", "PlaceOrder", "warn", errors.New("rejected"), map[string]interface{}{
		"user_id": "u-1",
		"symbol":  "AAPL",
	})
	require.Len(t, repo.created, 1)

	exc := repo.created[0]
	assert.Equal(t, "papertrader", exc.Service)
	assert.Equal(t, "exit_evaluator", exc.Module)
	assert.Equal(t, "rejected", exc.Message)
	assert.Equal(t, "u-1", exc.UserID)
	assert.Equal(t, "AAPL", exc.Symbol)
	assert.JSONEq(t, `{"user_id":"u-1","symbol":"AAPL"}`, exc.Context)
	assert.NotEmpty(t, exc.Stack)

	assert.NotPanics(t, func() {
		Capture(context.Background(), nil, "m", "f", "error", errors.New("x"), nil)
	})
}

func TestSettlementPatch(t *testing.T) {
	patch, done := settlementPatch("filled", decPtr("10"))
	require.True(t, done)
	assert.Equal(t, "filled", *patch.Status)
	assert.Equal(t, 10.0, *patch.EntryPrice)

	_, done = settlementPatch("partially_filled", nil)
	assert.False(t, done)

	patch, done = settlementPatch("expired", nil)
	require.True(t, done)
	assert.Equal(t, "cancelled", *patch.Status)
	assert.Nil(t, patch.EntryPrice)
}
