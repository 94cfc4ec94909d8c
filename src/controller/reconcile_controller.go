package controller

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"

	"papertrader/src/connectors"
	"papertrader/src/events"
	"papertrader/src/metrics"
	"papertrader/src/model"
	"papertrader/src/repository"
)

// TickResult summarises one reconciliation pass for a user.
type TickResult struct {
	UserID    string                `json:"user_id"`
	Policy    *model.RiskPolicy     `json:"policy"`
	Positions []events.PositionView `json:"positions"`
	// Settled counts automated exits resolved from the broker order state.
	Settled int64 `json:"settled"`
	// Filled counts pending manual records the positions confirmed.
	Filled   int64 `json:"filled"`
	EventErr error `json:"-"`
}

// ReconcileController brings the ledger in line with the broker positions
// and announces the result on the bus.
type ReconcileController struct {
	accounts   gatewayProvider
	policies   policyStore
	ledger     tradeLedger
	bus        publisher
	exceptions exceptionRepository
	counters   *metrics.Registry
	now        func() time.Time
}

func NewReconcileController(
	accounts gatewayProvider,
	policies policyStore,
	ledger tradeLedger,
	bus publisher,
	exceptions exceptionRepository,
	counters *metrics.Registry,
) *ReconcileController {
	return &ReconcileController{
		accounts:   accounts,
		policies:   policies,
		ledger:     ledger,
		bus:        bus,
		exceptions: exceptions,
		counters:   counters,
		now:        time.Now,
	}
}

// Tick runs one reconciliation pass for userID. Failing to read the policy
// or the positions aborts the tick; a failure on one symbol does not.
func (c *ReconcileController) Tick(ctx context.Context, userID string) (*TickResult, error) {
	log := logger.WithFields(map[string]interface{}{
		"controller": "reconcile",
		"user_id":    userID,
	})
	c.counters.Inc(metrics.ReconcileTicks)

	policy, err := c.policies.Get(ctx, userID)
	if err != nil {
		log.WithError(err).Error("failed to load risk policy")
		return nil, err
	}
	if policy == nil {
		policy = model.DefaultRiskPolicy(userID)
	}

	gw, err := c.accounts.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	positions, err := gw.ListPositions(ctx)
	if err != nil {
		log.WithError(err).Error("failed to list positions")
		return nil, err
	}

	res := &TickResult{
		UserID:    userID,
		Policy:    policy,
		Positions: make([]events.PositionView, 0, len(positions)),
	}

	res.Settled = c.settleExits(ctx, gw, userID)

	for _, p := range positions {
		view := events.PositionView{Position: p, PLPct: p.PLPercent()}
		res.Positions = append(res.Positions, view)

		n, err := c.reconcileSymbol(ctx, userID, view)
		if err != nil {
			c.counters.Inc(metrics.ReconcileSymbolErrors)
			log.WithField("symbol", p.Symbol).WithError(err).Error("failed to reconcile symbol")
			continue
		}
		res.Filled += n
	}

	log.WithFields(map[string]interface{}{
		"positions": len(res.Positions),
		"settled":   res.Settled,
		"filled":    res.Filled,
	}).Debug("positions reconciled")

	res.EventErr = c.bus.Publish(ctx, events.PositionsReconciled{
		UserID:    userID,
		Policy:    policy,
		Positions: res.Positions,
		At:        c.now(),
	})

	return res, nil
}

// reconcileSymbol confirms pending manual records of a held symbol and
// refreshes price and P/L on the filled ones.
func (c *ReconcileController) reconcileSymbol(ctx context.Context, userID string, view events.PositionView) (int64, error) {
	current := floatPtr(view.CurrentPrice)
	plPct := floatPtr(view.PLPct)

	filled, err := c.ledger.UpdateWhere(ctx, repository.TradeFilter{
		UserID:        userID,
		Symbol:        view.Symbol,
		Status:        model.TradeStatusPending,
		ExcludeOrigin: model.TradeOriginAutoExit,
	}, repository.TradePatch{
		Status:        stringPtr(model.TradeStatusFilled),
		EntryPrice:    floatPtr(view.AvgEntryPrice),
		CurrentPrice:  current,
		ProfitLossPct: plPct,
	})
	if err != nil {
		return 0, err
	}

	_, err = c.ledger.UpdateWhere(ctx, repository.TradeFilter{
		UserID:        userID,
		Symbol:        view.Symbol,
		Status:        model.TradeStatusFilled,
		ExcludeOrigin: model.TradeOriginAutoExit,
	}, repository.TradePatch{
		CurrentPrice:  current,
		ProfitLossPct: plPct,
	})
	return filled, err
}

// settleExits resolves pending automated exits from their broker order.
func (c *ReconcileController) settleExits(ctx context.Context, gw connectors.Gateway, userID string) int64 {
	log := logger.WithFields(map[string]interface{}{
		"controller": "reconcile",
		"op":         "settleExits",
		"user_id":    userID,
	})

	pending, err := c.ledger.ListPending(ctx, userID, model.SideSell)
	if err != nil {
		log.WithError(err).Error("failed to list pending exits")
		return 0
	}

	var settled int64
	for _, rec := range pending {
		if rec.Origin != model.TradeOriginAutoExit || rec.BrokerOrderID == nil {
			continue
		}
		orderID := *rec.BrokerOrderID

		order, err := gw.GetOrder(ctx, orderID)
		if errors.Is(err, connectors.ErrOrderNotFound) {
			log.WithField("order_id", orderID).Warn("exit order unknown to broker, leaving record as is")
			continue
		}
		if err != nil {
			c.counters.Inc(metrics.ReconcileSymbolErrors)
			log.WithField("order_id", orderID).WithError(err).Warn("failed to look up exit order")
			continue
		}

		patch, done := settlementPatch(order.Status, order.FilledAvgPrice)
		if !done {
			continue
		}
		n, err := c.ledger.UpdateWhere(ctx, repository.TradeFilter{
			UserID:        userID,
			BrokerOrderID: orderID,
			Status:        model.TradeStatusPending,
		}, patch)
		if err != nil {
			c.counters.Inc(metrics.ReconcileSymbolErrors)
			log.WithField("order_id", orderID).WithError(err).Error("failed to settle exit record")
			continue
		}
		log.WithFields(map[string]interface{}{
			"order_id": orderID,
			"symbol":   rec.Symbol,
			"status":   *patch.Status,
		}).Info("exit settled")
		settled += n
	}
	return settled
}
