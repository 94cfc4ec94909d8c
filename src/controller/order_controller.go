package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/connectors"
	"papertrader/src/metrics"
	"papertrader/src/model"
	"papertrader/src/repository"
)

// afterFunc schedules the post-submission fill check.
var afterFunc = func(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

// ValidationError is returned for a malformed order intent. Nothing has
// been sent to the broker when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// OrderIntent is a manual order as entered by the user.
type OrderIntent struct {
	Symbol     string
	Quantity   decimal.Decimal
	Side       string
	OrderKind  string
	LimitPrice *decimal.Decimal
}

// Validate normalises the intent in place.
func (in *OrderIntent) Validate() error {
	in.Symbol = normalizeSymbol(in.Symbol)
	if in.Symbol == "" {
		return &ValidationError{Field: "symbol", Message: "required"}
	}
	if !in.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	if in.Side != model.SideBuy && in.Side != model.SideSell {
		return &ValidationError{Field: "side", Message: "must be buy or sell"}
	}
	if in.OrderKind == "" {
		in.OrderKind = model.OrderKindMarket
	}
	switch in.OrderKind {
	case model.OrderKindMarket:
		in.LimitPrice = nil
	case model.OrderKindLimit:
		if in.LimitPrice == nil || !in.LimitPrice.IsPositive() {
			return &ValidationError{Field: "limitPrice", Message: "limit orders need a positive limit price"}
		}
	default:
		return &ValidationError{Field: "orderType", Message: "must be market or limit"}
	}
	return nil
}

// SubmitResult is the broker order together with its ledger record.
type SubmitResult struct {
	Order *connectors.Order  `json:"order"`
	Trade *model.TradeRecord `json:"trade"`
}

type OrderController struct {
	accounts   gatewayProvider
	ledger     tradeLedger
	exceptions exceptionRepository
	counters   *metrics.Registry

	fillCheckDelay   time.Duration
	fillCheckTimeout time.Duration
}

func NewOrderController(
	accounts gatewayProvider,
	ledger tradeLedger,
	exceptions exceptionRepository,
	counters *metrics.Registry,
	cfg Config,
) *OrderController {
	return &OrderController{
		accounts:         accounts,
		ledger:           ledger,
		exceptions:       exceptions,
		counters:         counters,
		fillCheckDelay:   cfg.FillCheckDelay,
		fillCheckTimeout: cfg.FillCheckTimeout,
	}
}

// Submit places a manual order for userID. Open orders on the opposite
// side of the symbol are cancelled first.
func (c *OrderController) Submit(ctx context.Context, userID string, intent OrderIntent) (*SubmitResult, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"controller": "order",
		"user_id":    userID,
		"symbol":     intent.Symbol,
		"side":       intent.Side,
		"kind":       intent.OrderKind,
		"qty":        intent.Quantity.String(),
	}
	log := logger.WithFields(fields)
	log.Info("submitting order")

	gw, err := c.accounts.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	cancelConflicting(ctx, gw, c.counters, intent.Symbol, intent.Side, fields)

	tif := connectors.TimeInForceDay
	if intent.OrderKind == model.OrderKindLimit {
		tif = connectors.TimeInForceGTC
	}

	order, err := gw.PlaceOrder(ctx, connectors.OrderRequest{
		Symbol:        intent.Symbol,
		Qty:           intent.Quantity,
		Side:          intent.Side,
		Type:          intent.OrderKind,
		TimeInForce:   tif,
		LimitPrice:    intent.LimitPrice,
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		if rej, ok := connectors.IsRejected(err); ok {
			log.WithField("reason", rej.Reason).Warn("order rejected by broker")
			c.recordRejection(ctx, userID, intent, fields)
			return nil, err
		}
		log.WithError(err).Error("order submission failed")
		return nil, err
	}

	rec := &model.TradeRecord{
		UserID:        userID,
		Symbol:        intent.Symbol,
		Side:          intent.Side,
		OrderKind:     intent.OrderKind,
		Quantity:      intent.Quantity.InexactFloat64(),
		EntryPrice:    entryPrice(order, intent.LimitPrice),
		Status:        model.TradeStatusPending,
		BrokerOrderID: stringPtr(order.ID),
		Origin:        model.TradeOriginManual,
	}
	if err := c.ledger.Insert(ctx, rec); err != nil {
		Capture(ctx, c.exceptions, "order_controller", "Submit", "error", err, map[string]interface{}{
			"user_id":  userID,
			"symbol":   intent.Symbol,
			"order_id": order.ID,
		})
		return nil, err
	}

	log.WithField("order_id", order.ID).WithField("trade_id", rec.ID).Info("order placed")

	if intent.OrderKind == model.OrderKindMarket {
		afterFunc(c.fillCheckDelay, func() { c.checkFill(gw, userID, order.ID) })
	}

	return &SubmitResult{Order: order, Trade: rec}, nil
}

func entryPrice(order *connectors.Order, limit *decimal.Decimal) *float64 {
	if order.FilledAvgPrice != nil {
		return floatPtr(*order.FilledAvgPrice)
	}
	if limit != nil {
		return floatPtr(*limit)
	}
	return nil
}

func (c *OrderController) recordRejection(ctx context.Context, userID string, intent OrderIntent, fields map[string]interface{}) {
	rec := &model.TradeRecord{
		UserID:     userID,
		Symbol:     intent.Symbol,
		Side:       intent.Side,
		OrderKind:  intent.OrderKind,
		Quantity:   intent.Quantity.InexactFloat64(),
		EntryPrice: entryPrice(&connectors.Order{}, intent.LimitPrice),
		Status:     model.TradeStatusFailed,
		Origin:     model.TradeOriginManual,
	}
	if err := c.ledger.Insert(ctx, rec); err != nil {
		logger.WithFields(fields).WithError(err).Error("failed to record rejected order")
	}
}

// checkFill looks the market order up once and settles its record when filled.
// It runs detached from the request that placed the order.
func (c *OrderController) checkFill(gw connectors.Gateway, userID, orderID string) {
	log := logger.WithFields(map[string]interface{}{
		"controller": "order",
		"op":         "checkFill",
		"user_id":    userID,
		"order_id":   orderID,
	})

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("fill check panicked: %v", r)
		}
	}()

	timeout := c.fillCheckTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c.counters.Inc(metrics.FillChecks)

	order, err := gw.GetOrder(ctx, orderID)
	if errors.Is(err, connectors.ErrOrderNotFound) {
		log.Warn("order not found during fill check, leaving record as is")
		return
	}
	if err != nil {
		log.WithError(err).Warn("fill check failed")
		return
	}
	if !order.IsFilled() {
		log.WithField("status", order.Status).Debug("order not filled yet")
		return
	}

	price := floatPtr(*order.FilledAvgPrice)
	n, err := c.ledger.UpdateWhere(ctx, repository.TradeFilter{
		UserID:        userID,
		BrokerOrderID: orderID,
		Status:        model.TradeStatusPending,
	}, repository.TradePatch{
		Status:       stringPtr(model.TradeStatusFilled),
		EntryPrice:   price,
		CurrentPrice: price,
	})
	if err != nil {
		log.WithError(err).Error("failed to mark order filled")
		return
	}
	log.WithField("affected", n).Info("order filled")
}
