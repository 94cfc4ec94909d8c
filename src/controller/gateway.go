package controller

import (
	"context"

	"papertrader/src/connectors"
	"papertrader/src/events"
	"papertrader/src/model"
	"papertrader/src/repository"
)

type gatewayProvider interface {
	ForUser(ctx context.Context, userID string) (connectors.Gateway, error)
}

type tradeLedger interface {
	Insert(ctx context.Context, rec *model.TradeRecord) error
	UpdateWhere(ctx context.Context, filter repository.TradeFilter, patch repository.TradePatch) (int64, error)
	ListPending(ctx context.Context, userID, side string) ([]model.TradeRecord, error)
	HasPendingExit(ctx context.Context, userID, symbol string) (bool, error)
}

type policyStore interface {
	Get(ctx context.Context, userID string) (*model.RiskPolicy, error)
}

type exceptionRepository interface {
	Create(ctx context.Context, exception *model.Exception) error
}

type publisher interface {
	Publish(ctx context.Context, evt events.Event) error
}

var (
	_ tradeLedger         = (*repository.TradeRecordRepository)(nil)
	_ policyStore         = (*repository.RiskPolicyRepository)(nil)
	_ exceptionRepository = (*repository.ExceptionRepository)(nil)
	_ publisher           = (*events.Bus)(nil)
)
