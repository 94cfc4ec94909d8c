package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/auth"
	"papertrader/src/connectors"
	"papertrader/src/controller"
)

type orderSubmitter interface {
	Submit(ctx context.Context, userID string, intent controller.OrderIntent) (*controller.SubmitResult, error)
}

type reconciler interface {
	Tick(ctx context.Context, userID string) (*controller.TickResult, error)
}

type accountReader interface {
	Account(ctx context.Context, userID string) (*connectors.Account, error)
}

type tradingRequest struct {
	Action     string           `json:"action"`
	Symbol     string           `json:"symbol"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Side       string           `json:"side"`
	OrderType  string           `json:"orderType"`
	LimitPrice *decimal.Decimal `json:"limitPrice"`
}

// TradingHandler serves POST /trading. The action field selects the operation.
func TradingHandler(orders orderSubmitter, positions reconciler, accounts accountReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req tradingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payload")
			return
		}

		logger.WithFields(map[string]interface{}{
			"handler": "trading",
			"action":  req.Action,
			"user_id": userID,
		}).Debug("trading request")

		switch req.Action {
		case "place_order":
			res, err := orders.Submit(r.Context(), userID, controller.OrderIntent{
				Symbol:     req.Symbol,
				Quantity:   req.Quantity,
				Side:       req.Side,
				OrderKind:  req.OrderType,
				LimitPrice: req.LimitPrice,
			})
			if err != nil {
				writeFailure(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"order":   res.Order,
				"trade":   res.Trade,
			})

		case "get_positions":
			res, err := positions.Tick(r.Context(), userID)
			if err != nil {
				writeFailure(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success":   true,
				"positions": res.Positions,
			})

		case "get_account":
			acc, err := accounts.Account(r.Context(), userID)
			if err != nil {
				writeFailure(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"account": acc,
			})

		default:
			writeError(w, http.StatusBadRequest, "Invalid action")
		}
	}
}
