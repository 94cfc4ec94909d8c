package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"papertrader/src/auth"
	"papertrader/src/model"
	"papertrader/src/risk"
)

type policyRepository interface {
	Get(ctx context.Context, userID string) (*model.RiskPolicy, error)
	Upsert(ctx context.Context, policy *model.RiskPolicy) error
}

type settingsRequest struct {
	RiskProfile             string          `json:"risk_profile"`
	ProfitTargetPct         decimal.Decimal `json:"profit_target_percentage"`
	StopLossPct             decimal.Decimal `json:"stop_loss_percentage"`
	StopLossEnabled         bool            `json:"stop_loss_enabled"`
	AutomatedTradingEnabled bool            `json:"automated_trading_enabled"`
}

// GetSettingsHandler returns the user's risk policy, or the defaults when
// none was saved yet.
func GetSettingsHandler(repo policyRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		policy, err := repo.Get(r.Context(), userID)
		if err != nil {
			writeFailure(w, err)
			return
		}
		if policy == nil {
			policy = model.DefaultRiskPolicy(userID)
		}
		writeJSON(w, http.StatusOK, policy)
	}
}

// PutSettingsHandler replaces the user's risk policy as a whole.
func PutSettingsHandler(repo policyRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payload")
			return
		}

		policy := &model.RiskPolicy{
			UserID:                  userID,
			RiskProfile:             req.RiskProfile,
			ProfitTargetPct:         req.ProfitTargetPct,
			StopLossPct:             req.StopLossPct,
			StopLossEnabled:         req.StopLossEnabled,
			AutomatedTradingEnabled: req.AutomatedTradingEnabled,
		}
		if err := risk.ValidatePolicy(policy); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := repo.Upsert(r.Context(), policy); err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, policy)
	}
}
