package accounts

import (
	"context"

	"papertrader/src/connectors"
)

type snapshotStore interface {
	Get(userID string) (*connectors.Account, bool)
	Put(userID string, acc *connectors.Account)
}

type gatewaySource interface {
	ForUser(ctx context.Context, userID string) (connectors.Gateway, error)
}

// Snapshots serves account summaries from the cache and refreshes them
// from the broker.
type Snapshots struct {
	gateways gatewaySource
	store    snapshotStore
}

func NewSnapshots(gateways gatewaySource, store snapshotStore) *Snapshots {
	return &Snapshots{gateways: gateways, store: store}
}

// Account returns the cached snapshot of userID, fetching it on a miss.
func (s *Snapshots) Account(ctx context.Context, userID string) (*connectors.Account, error) {
	if s.store != nil {
		if acc, ok := s.store.Get(userID); ok {
			return acc, nil
		}
	}
	return s.Refresh(ctx, userID)
}

// Refresh fetches the account from the broker and caches it.
func (s *Snapshots) Refresh(ctx context.Context, userID string) (*connectors.Account, error) {
	gw, err := s.gateways.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	acc, err := gw.GetAccount(ctx)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		s.store.Put(userID, acc)
	}
	return acc, nil
}
