package controller

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"papertrader/src/connectors"
	"papertrader/src/model"
	"papertrader/src/repository"
)

// TradeUpdateController settles ledger records from trade_updates events.
type TradeUpdateController struct {
	ledger tradeLedger
}

func NewTradeUpdateController(ledger tradeLedger) *TradeUpdateController {
	return &TradeUpdateController{ledger: ledger}
}

var tradeEventStatus = map[string]string{
	connectors.TradeEventFill:     connectors.OrderStatusFilled,
	connectors.TradeEventCanceled: connectors.OrderStatusCanceled,
	connectors.TradeEventExpired:  connectors.OrderStatusExpired,
	connectors.TradeEventRejected: connectors.OrderStatusRejected,
}

// Handle applies one update. Events other than fill, canceled, expired and
// rejected are ignored.
func (c *TradeUpdateController) Handle(ctx context.Context, upd connectors.TradeUpdate) error {
	status, ok := tradeEventStatus[upd.Event]
	if !ok || upd.Order.ID == "" {
		return nil
	}

	price := upd.Price
	if price == nil {
		price = upd.Order.FilledAvgPrice
	}

	patch, _ := settlementPatch(status, price)
	n, err := c.ledger.UpdateWhere(ctx, repository.TradeFilter{
		BrokerOrderID: upd.Order.ID,
		Status:        model.TradeStatusPending,
	}, patch)
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"controller": "trade_update",
		"event":      upd.Event,
		"order_id":   upd.Order.ID,
		"symbol":     upd.Order.Symbol,
		"affected":   n,
	}).Info("trade update applied")
	return nil
}
