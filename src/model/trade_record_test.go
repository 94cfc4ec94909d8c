package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{TradeStatusPending, TradeStatusFilled, true},
		{TradeStatusPending, TradeStatusCancelled, true},
		{TradeStatusPending, TradeStatusFailed, true},
		{TradeStatusPending, TradeStatusPending, true},
		{TradeStatusFilled, TradeStatusPending, false},
		{TradeStatusFilled, TradeStatusCancelled, false},
		{TradeStatusCancelled, TradeStatusFilled, false},
		{TradeStatusFailed, TradeStatusFilled, false},
		{TradeStatusFilled, TradeStatusFilled, true},
	}

	for _, tc := range cases {
		t.Run(tc.from+"->"+tc.to, func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestTradeRecordBeforeCreate(t *testing.T) {
	rec := &TradeRecord{Symbol: " aapl "}
	require.NoError(t, rec.BeforeCreate(nil))

	assert.Len(t, rec.ID, 36)
	assert.Equal(t, "AAPL", rec.Symbol)

	existing := &TradeRecord{ID: "fixed-id", Symbol: "MSFT"}
	require.NoError(t, existing.BeforeCreate(nil))
	assert.Equal(t, "fixed-id", existing.ID)
}

func TestDefaultRiskPolicy(t *testing.T) {
	p := DefaultRiskPolicy("user-1")

	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, RiskProfileModerate, p.RiskProfile)
	assert.Equal(t, "8", p.ProfitTargetPct.String())
	assert.Equal(t, "2", p.StopLossPct.String())
	assert.False(t, p.StopLossEnabled)
	assert.False(t, p.AutomatedTradingEnabled)
}
