package controller

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/connectors"
	"papertrader/src/metrics"
	"papertrader/src/model"
	"papertrader/src/repository"
)

const serviceName = "papertrader"

// Capture records a system exception, logs it locally, and optionally
// persists it in the database.
func Capture(
	ctx context.Context,
	repo exceptionRepository,
	module string,
	method string,
	level string,
	err error,
	contextData map[string]interface{},
) {

	if err == nil {
		return
	}

	var ctxJSON string
	if contextData != nil {
		if b, e := json.Marshal(contextData); e == nil {
			ctxJSON = string(b)
		}
	}

	exc := &model.Exception{
		Service:   serviceName,
		Module:    module,
		Method:    method,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
		Level:     level,
		Context:   ctxJSON,
		CreatedAt: time.Now(),
	}
	if v, ok := contextData["user_id"].(string); ok {
		exc.UserID = v
	}
	if v, ok := contextData["symbol"].(string); ok {
		exc.Symbol = v
	}

	// Local log
	logger.WithFields(map[string]interface{}{
		"service": serviceName,
		"module":  module,
		"method":  method,
		"level":   level,
	}).WithError(err).Error("System exception captured")

	if repo != nil {
		if e := repo.Create(ctx, exc); e != nil {
			logger.WithError(e).Error("Failed to persist exception")
		}
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func floatPtr(d decimal.Decimal) *float64 {
	f := d.InexactFloat64()
	return &f
}

func stringPtr(s string) *string { return &s }

// openOrders lists the open orders for symbol. A listing failure is
// logged and counted, and yields no orders.
func openOrders(
	ctx context.Context,
	gw connectors.Gateway,
	counters *metrics.Registry,
	symbol string,
	fields map[string]interface{},
) []connectors.Order {
	open, err := gw.ListOpenOrders(ctx, symbol)
	if err != nil {
		counters.Inc(metrics.OpenOrderListFailures)
		logger.WithFields(fields).WithError(err).Warn("failed to list open orders, skipping cancellation")
		return nil
	}
	return open
}

// cancelOrders cancels each order. Failures are logged and counted, never
// returned.
func cancelOrders(
	ctx context.Context,
	gw connectors.Gateway,
	counters *metrics.Registry,
	orders []connectors.Order,
	fields map[string]interface{},
) {
	for _, o := range orders {
		if err := gw.CancelOrder(ctx, o.ID); err != nil {
			counters.Inc(metrics.CancelFailuresSwallowed)
			logger.WithFields(fields).
				WithField("order_id", o.ID).
				WithError(err).
				Warn("failed to cancel conflicting order, continuing")
			continue
		}

		logger.WithFields(fields).
			WithField("order_id", o.ID).
			WithField("order_side", o.Side).
			Info("cancelled conflicting order")
	}
}

// cancelConflicting cancels every open order for symbol whose side differs
// from side.
func cancelConflicting(
	ctx context.Context,
	gw connectors.Gateway,
	counters *metrics.Registry,
	symbol string,
	side string,
	fields map[string]interface{},
) {
	var opposite []connectors.Order
	for _, o := range openOrders(ctx, gw, counters, symbol, fields) {
		if o.Side != side {
			opposite = append(opposite, o)
		}
	}
	cancelOrders(ctx, gw, counters, opposite, fields)
}

// settlementPatch maps a broker order state to the ledger status it settles
// to. It returns false while the order can still execute.
func settlementPatch(status string, fillPrice *decimal.Decimal) (repository.TradePatch, bool) {
	var patch repository.TradePatch
	switch status {
	case connectors.OrderStatusFilled:
		patch.Status = stringPtr(model.TradeStatusFilled)
		if fillPrice != nil {
			patch.EntryPrice = floatPtr(*fillPrice)
			patch.CurrentPrice = floatPtr(*fillPrice)
		}
	case connectors.OrderStatusCanceled, connectors.OrderStatusExpired:
		patch.Status = stringPtr(model.TradeStatusCancelled)
	case connectors.OrderStatusRejected:
		patch.Status = stringPtr(model.TradeStatusFailed)
	default:
		return patch, false
	}
	return patch, true
}
