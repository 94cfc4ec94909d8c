package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/connectors"
	"papertrader/src/events"
	"papertrader/src/metrics"
	"papertrader/src/model"
	"papertrader/src/risk"
)

// ExitEvaluator applies the user's exit policy to every reconciled position
// and submits market sells for the ones that hit their target or stop.
type ExitEvaluator struct {
	accounts   gatewayProvider
	ledger     tradeLedger
	bus        publisher
	exceptions exceptionRepository
	counters   *metrics.Registry
	guard      *ExitGuard
	now        func() time.Time
}

func NewExitEvaluator(
	accounts gatewayProvider,
	ledger tradeLedger,
	bus publisher,
	exceptions exceptionRepository,
	counters *metrics.Registry,
	guard *ExitGuard,
) *ExitEvaluator {
	if guard == nil {
		guard = NewExitGuard()
	}
	return &ExitEvaluator{
		accounts:   accounts,
		ledger:     ledger,
		bus:        bus,
		exceptions: exceptions,
		counters:   counters,
		guard:      guard,
		now:        time.Now,
	}
}

// Subscribe registers the evaluator for reconciled positions.
func (e *ExitEvaluator) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.TopicPositionsReconciled, "exit_evaluator", e.Handle)
}

// Handle evaluates a PositionsReconciled event. Positions are processed in
// broker order and independently of each other.
func (e *ExitEvaluator) Handle(ctx context.Context, evt events.Event) error {
	rec, ok := evt.(events.PositionsReconciled)
	if !ok {
		return fmt.Errorf("exit evaluator: unexpected event %T", evt)
	}
	if rec.Policy == nil || !rec.Policy.AutomatedTradingEnabled {
		return nil
	}

	var gw connectors.Gateway
	var errs []error
	for _, pos := range rec.Positions {
		decision := risk.Evaluate(rec.Policy, pos.PLPct)
		if !decision.Exit {
			continue
		}

		if gw == nil {
			var err error
			if gw, err = e.accounts.ForUser(ctx, rec.UserID); err != nil {
				return err
			}
		}

		if err := e.exit(ctx, gw, rec.UserID, pos, decision); err != nil {
			e.counters.Inc(metrics.ReconcileSymbolErrors)
			errs = append(errs, fmt.Errorf("%s: %w", pos.Symbol, err))
		}
	}
	return errors.Join(errs...)
}

func (e *ExitEvaluator) exit(
	ctx context.Context,
	gw connectors.Gateway,
	userID string,
	pos events.PositionView,
	decision risk.Decision,
) error {
	fields := map[string]interface{}{
		"controller": "exit_evaluator",
		"user_id":    userID,
		"symbol":     pos.Symbol,
		"reason":     decision.Reason,
		"pl_pct":     pos.PLPct.StringFixed(2),
	}
	log := logger.WithFields(fields)

	if !pos.Qty.IsPositive() {
		log.WithField("qty", pos.Qty.String()).Warn("exit skipped, position is not long")
		e.counters.Inc(metrics.AutoExitsSkipped)
		return nil
	}

	if !e.guard.TryAcquire(userID, pos.Symbol) {
		log.Info("exit skipped, another exit is being submitted")
		e.counters.Inc(metrics.AutoExitsSkipped)
		return nil
	}
	defer e.guard.Release(userID, pos.Symbol)

	inFlight, err := e.exitInFlight(ctx, gw, userID, pos.Symbol, log)
	if err != nil {
		return err
	}
	if inFlight {
		log.Info("exit skipped, previous exit still pending")
		e.counters.Inc(metrics.AutoExitsSkipped)
		return nil
	}

	// Resting orders on either side hold shares or would reopen the position.
	cancelOrders(ctx, gw, e.counters, openOrders(ctx, gw, e.counters, pos.Symbol, fields), fields)

	log.WithField("qty", pos.Qty.String()).Info("submitting automated exit")

	order, err := gw.PlaceOrder(ctx, connectors.OrderRequest{
		Symbol:        pos.Symbol,
		Qty:           pos.Qty,
		Side:          model.SideSell,
		Type:          model.OrderKindMarket,
		TimeInForce:   connectors.TimeInForceDay,
		ClientOrderID: uuid.NewString(),
	})

	rec := &model.TradeRecord{
		UserID:        userID,
		Symbol:        pos.Symbol,
		Side:          model.SideSell,
		OrderKind:     model.OrderKindMarket,
		Quantity:      pos.Qty.InexactFloat64(),
		EntryPrice:    floatPtr(pos.CurrentPrice),
		CurrentPrice:  floatPtr(pos.CurrentPrice),
		ProfitLossPct: floatPtr(pos.PLPct),
		Origin:        model.TradeOriginAutoExit,
	}
	evt := events.ExitSubmitted{
		UserID:   userID,
		Symbol:   pos.Symbol,
		Quantity: pos.Qty,
		PLPct:    pos.PLPct,
		Reason:   decision.Reason,
	}

	if err != nil {
		rej, ok := connectors.IsRejected(err)
		if !ok {
			return err
		}

		e.counters.Inc(metrics.AutoExitsRejected)
		Capture(ctx, e.exceptions, "exit_evaluator", "PlaceOrder", "warn", err, map[string]interface{}{
			"user_id": userID,
			"symbol":  pos.Symbol,
			"reason":  string(decision.Reason),
		})

		rec.Status = model.TradeStatusFailed
		if insErr := e.ledger.Insert(ctx, rec); insErr != nil {
			log.WithError(insErr).Error("failed to record rejected exit")
		}

		evt.RejectReason = rej.Reason
		e.publish(ctx, evt)
		return nil
	}

	rec.Status = model.TradeStatusPending
	rec.BrokerOrderID = stringPtr(order.ID)
	if err := e.ledger.Insert(ctx, rec); err != nil {
		Capture(ctx, e.exceptions, "exit_evaluator", "Insert", "error", err, map[string]interface{}{
			"user_id":  userID,
			"symbol":   pos.Symbol,
			"order_id": order.ID,
		})
		return err
	}

	e.counters.Inc(metrics.AutoExitsSubmitted)
	log.WithField("order_id", order.ID).Info("automated exit submitted")

	evt.BrokerOrderID = order.ID
	e.publish(ctx, evt)
	return nil
}

// exitInFlight reports whether a pending automated exit for symbol still has
// a live broker order. Records whose order the broker no longer knows do not
// count.
func (e *ExitEvaluator) exitInFlight(
	ctx context.Context,
	gw connectors.Gateway,
	userID, symbol string,
	log *logger.Entry,
) (bool, error) {
	pending, err := e.ledger.HasPendingExit(ctx, userID, symbol)
	if err != nil || !pending {
		return false, err
	}

	rows, err := e.ledger.ListPending(ctx, userID, model.SideSell)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.Origin != model.TradeOriginAutoExit || row.BrokerOrderID == nil || !strings.EqualFold(row.Symbol, symbol) {
			continue
		}

		_, err := gw.GetOrder(ctx, *row.BrokerOrderID)
		if errors.Is(err, connectors.ErrOrderNotFound) {
			log.WithField("order_id", *row.BrokerOrderID).Warn("pending exit order unknown to broker, ignoring it")
			continue
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (e *ExitEvaluator) publish(ctx context.Context, evt events.ExitSubmitted) {
	if e.bus == nil {
		return
	}
	evt.At = e.now()
	if err := e.bus.Publish(ctx, evt); err != nil {
		logger.WithField("symbol", evt.Symbol).WithError(err).Warn("exit notification failed")
	}
}
