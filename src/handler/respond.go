package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"papertrader/src/connectors"
	"papertrader/src/controller"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps a domain error to its HTTP status. Store and unexpected
// failures are reported as 500 without details.
func writeFailure(w http.ResponseWriter, err error) {
	var status int
	msg := err.Error()

	switch rej, rejected := connectors.IsRejected(err); {
	case controller.IsValidation(err):
		status = http.StatusBadRequest
	case rejected:
		status, msg = http.StatusUnprocessableEntity, rej.Reason
	case errors.Is(err, connectors.ErrGatewayUnavailable):
		status, msg = http.StatusBadGateway, "Broker unavailable"
	default:
		status, msg = http.StatusInternalServerError, "Internal Server Error"
	}

	entry := logger.WithField("status", status).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request failed")
	}
	writeError(w, status, msg)
}
