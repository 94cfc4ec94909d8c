package handler

import (
	"context"
	"net/http"
	"strconv"

	"papertrader/src/auth"
	"papertrader/src/metrics"
	"papertrader/src/model"
)

type tradeLister interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]model.TradeRecord, error)
}

// ListTradesHandler returns the newest ledger records of the user.
func ListTradesHandler(repo tradeLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		limit := 0
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}

		trades, err := repo.ListRecent(r.Context(), userID, limit)
		if err != nil {
			writeFailure(w, err)
			return
		}
		if trades == nil {
			trades = []model.TradeRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"trades": trades})
	}
}

func MetricsHandler(reg *metrics.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reg.Snapshot())
	}
}
