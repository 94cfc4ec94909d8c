package controller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"papertrader/src/connectors"
	"papertrader/src/metrics"
	"papertrader/src/model"
	"papertrader/src/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAfterFunc captures scheduled fill checks instead of running them.
func stubAfterFunc(t *testing.T) *[]func() {
	t.Helper()
	old := afterFunc
	t.Cleanup(func() { afterFunc = old })

	var scheduled []func()
	afterFunc = func(_ time.Duration, f func()) { scheduled = append(scheduled, f) }
	return &scheduled
}

type orderFixture struct {
	ctrl     *OrderController
	provider *fakeProvider
	ledger   *repository.TradeRecordRepository
	counters *metrics.Registry
}

func newOrderFixture(t *testing.T, gw *fakeGateway) orderFixture {
	t.Helper()
	f := orderFixture{
		provider: &fakeProvider{gw: gw},
		ledger:   newLedger(t),
		counters: metrics.NewRegistry(),
	}
	f.ctrl = NewOrderController(f.provider, f.ledger, &mockExceptionRepo{}, f.counters, Config{
		FillCheckDelay:   2 * time.Second,
		FillCheckTimeout: time.Second,
	})
	return f
}

func TestOrderIntentValidation(t *testing.T) {
	cases := []struct {
		name   string
		intent OrderIntent
		field  string
	}{
		{"empty symbol", OrderIntent{Symbol: "  ", Quantity: dec("1"), Side: "buy"}, "symbol"},
		{"zero quantity", OrderIntent{Symbol: "AAPL", Quantity: dec("0"), Side: "buy"}, "quantity"},
		{"negative quantity", OrderIntent{Symbol: "AAPL", Quantity: dec("-2"), Side: "buy"}, "quantity"},
		{"bad side", OrderIntent{Symbol: "AAPL", Quantity: dec("1"), Side: "hold"}, "side"},
		{"bad kind", OrderIntent{Symbol: "AAPL", Quantity: dec("1"), Side: "buy", OrderKind: "stop"}, "orderType"},
		{"limit without price", OrderIntent{Symbol: "AAPL", Quantity: dec("1"), Side: "buy", OrderKind: "limit"}, "limitPrice"},
		{"limit with zero price", OrderIntent{Symbol: "AAPL", Quantity: dec("1"), Side: "buy", OrderKind: "limit", LimitPrice: decPtr("0")}, "limitPrice"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{}
			f := newOrderFixture(t, gw)

			res, err := f.ctrl.Submit(context.Background(), "u-1", tc.intent)
			require.Error(t, err)
			assert.Nil(t, res)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.field, ve.Field)
			assert.True(t, IsValidation(err))

			assert.Empty(t, gw.Calls(), "no broker call on invalid input")
			assert.Zero(t, f.provider.calls.Load())
		})
	}
}

func TestOrderIntentValidateNormalises(t *testing.T) {
	in := OrderIntent{Symbol: " aapl ", Quantity: dec("3"), Side: "buy", LimitPrice: decPtr("100")}
	require.NoError(t, in.Validate())
	assert.Equal(t, "AAPL", in.Symbol)
	assert.Equal(t, model.OrderKindMarket, in.OrderKind)
	assert.Nil(t, in.LimitPrice, "market orders drop the limit price")
}

func TestSubmitCancelsOppositeSideBeforePlacing(t *testing.T) {
	scheduled := stubAfterFunc(t)
	gw := &fakeGateway{
		openOrders: []connectors.Order{
			{ID: "s-1", Symbol: "AAPL", Side: "sell"},
			{ID: "b-1", Symbol: "AAPL", Side: "buy"},
			{ID: "s-2", Symbol: "AAPL", Side: "sell"},
			{ID: "s-9", Symbol: "MSFT", Side: "sell"},
		},
		cancelErr: map[string]error{"s-2": errors.New("already filled")},
	}
	f := newOrderFixture(t, gw)

	res, err := f.ctrl.Submit(context.Background(), "u-1", OrderIntent{Symbol: "aapl", Quantity: dec("10"), Side: "buy"})
	require.NoError(t, err)

	assert.Equal(t, []string{"list:AAPL", "cancel:s-1", "cancel:s-2", "place:AAPL"}, gw.Calls())
	assert.Equal(t, int64(1), f.counters.Get(metrics.CancelFailuresSwallowed))

	placed := gw.Placed()
	require.Len(t, placed, 1)
	assert.Equal(t, connectors.TimeInForceDay, placed[0].TimeInForce)
	assert.Equal(t, "market", placed[0].Type)
	assert.NotEmpty(t, placed[0].ClientOrderID)

	require.NotNil(t, res.Trade)
	assert.Equal(t, model.TradeStatusPending, res.Trade.Status)
	assert.Equal(t, "o-1", *res.Trade.BrokerOrderID)
	assert.Nil(t, res.Trade.EntryPrice, "no fill and no limit price")
	assert.Len(t, *scheduled, 1, "market orders get one fill check")
}

func TestSubmitLimitOrder(t *testing.T) {
	scheduled := stubAfterFunc(t)
	gw := &fakeGateway{}
	f := newOrderFixture(t, gw)

	res, err := f.ctrl.Submit(context.Background(), "u-1", OrderIntent{
		Symbol: "MSFT", Quantity: dec("5"), Side: "sell", OrderKind: "limit", LimitPrice: decPtr("410.5"),
	})
	require.NoError(t, err)

	placed := gw.Placed()
	require.Len(t, placed, 1)
	assert.Equal(t, connectors.TimeInForceGTC, placed[0].TimeInForce)
	assert.True(t, placed[0].LimitPrice.Equal(dec("410.5")))

	require.NotNil(t, res.Trade.EntryPrice)
	assert.Equal(t, 410.5, *res.Trade.EntryPrice)
	assert.Equal(t, model.OrderKindLimit, res.Trade.OrderKind)
	assert.Empty(t, *scheduled)
}

func TestSubmitUsesFillPriceWhenPresent(t *testing.T) {
	stubAfterFunc(t)
	gw := &fakeGateway{fillPrice: decPtr("187.25")}
	f := newOrderFixture(t, gw)

	res, err := f.ctrl.Submit(context.Background(), "u-1", OrderIntent{
		Symbol: "AAPL", Quantity: dec("1"), Side: "buy", OrderKind: "limit", LimitPrice: decPtr("190"),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Trade.EntryPrice)
	assert.Equal(t, 187.25, *res.Trade.EntryPrice)
}

func TestSubmitRejectedNeverRecordsFill(t *testing.T) {
	scheduled := stubAfterFunc(t)
	rejection := &connectors.OrderRejectedError{StatusCode: 403, Reason: "insufficient buying power"}
	gw := &fakeGateway{placeErr: map[string]error{"AAPL": rejection}}
	f := newOrderFixture(t, gw)

	res, err := f.ctrl.Submit(context.Background(), "u-1", OrderIntent{Symbol: "AAPL", Quantity: dec("1000"), Side: "buy"})
	assert.Nil(t, res)

	rej, ok := connectors.IsRejected(err)
	require.True(t, ok)
	assert.Same(t, rejection, rej)
	assert.Equal(t, "insufficient buying power", rej.Reason)

	recs := allTrades(t, f.ledger, "u-1")
	require.Len(t, recs, 1)
	assert.Equal(t, model.TradeStatusFailed, recs[0].Status)
	assert.Nil(t, recs[0].BrokerOrderID)
	assert.Empty(t, *scheduled)
}

func TestSubmitPlacesOrderWhenListingFails(t *testing.T) {
	cases := map[string]error{
		"network":      fmt.Errorf("%w: dial tcp: timeout", connectors.ErrGatewayUnavailable),
		"unauthorized": errors.New("unexpected status 401"),
	}
	for name, listErr := range cases {
		t.Run(name, func(t *testing.T) {
			stubAfterFunc(t)
			gw := &fakeGateway{listErr: listErr}
			f := newOrderFixture(t, gw)

			res, err := f.ctrl.Submit(context.Background(), "u-1", OrderIntent{Symbol: "TSLA", Quantity: dec("1"), Side: "buy"})
			require.NoError(t, err)
			require.NotNil(t, res.Order)

			assert.Equal(t, []string{"list:TSLA", "place:TSLA"}, gw.Calls())
			assert.Equal(t, int64(1), f.counters.Get(metrics.OpenOrderListFailures))

			recs := allTrades(t, f.ledger, "u-1")
			require.Len(t, recs, 1)
			assert.Equal(t, model.TradeStatusPending, recs[0].Status)
		})
	}
}

func TestFillCheck(t *testing.T) {
	t.Run("filled order settles the record", func(t *testing.T) {
		scheduled := stubAfterFunc(t)
		gw := &fakeGateway{}
		f := newOrderFixture(t, gw)

		res, err := f.ctrl.Submit(context.Background(), "u-1", OrderIntent{Symbol: "AAPL", Quantity: dec("2"), Side: "buy"})
		require.NoError(t, err)
		require.Len(t, *scheduled, 1)

		gw.setOrder(&connectors.Order{ID: "o-1", Symbol: "AAPL", Status: connectors.OrderStatusFilled, FilledAvgPrice: decPtr("101.5")})
		(*scheduled)[0]()

		recs := allTrades(t, f.ledger, "u-1")
		require.Len(t, recs, 1)
		assert.Equal(t, res.Trade.ID, recs[0].ID)
		assert.Equal(t, model.TradeStatusFilled, recs[0].Status)
		assert.Equal(t, 101.5, *recs[0].EntryPrice)
		assert.Equal(t, 101.5, *recs[0].CurrentPrice)
		assert.Equal(t, int64(1), f.counters.Get(metrics.FillChecks))
	})

	t.Run("open order stays pending", func(t *testing.T) {
		scheduled := stubAfterFunc(t)
		gw := &fakeGateway{}
		f := newOrderFixture(t, gw)

		_, err := f.ctrl.Submit(context.Background(), "u-1", OrderIntent{Symbol: "AAPL", Quantity: dec("2"), Side: "buy"})
		require.NoError(t, err)
		(*scheduled)[0]()

		recs := allTrades(t, f.ledger, "u-1")
		assert.Equal(t, model.TradeStatusPending, recs[0].Status)
	})

	t.Run("unknown order is left as is", func(t *testing.T) {
		scheduled := stubAfterFunc(t)
		gw := &fakeGateway{getErr: map[string]error{"o-1": connectors.ErrOrderNotFound}}
		f := newOrderFixture(t, gw)

		_, err := f.ctrl.Submit(context.Background(), "u-1", OrderIntent{Symbol: "AAPL", Quantity: dec("2"), Side: "buy"})
		require.NoError(t, err)
		assert.NotPanics(t, (*scheduled)[0])

		recs := allTrades(t, f.ledger, "u-1")
		assert.Equal(t, model.TradeStatusPending, recs[0].Status)
	})

	t.Run("panics are recovered", func(t *testing.T) {
		f := newOrderFixture(t, &fakeGateway{})
		assert.NotPanics(t, func() { f.ctrl.checkFill(nil, "u-1", "o-1") })
	})
}
