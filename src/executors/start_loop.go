package executors

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"

	"papertrader/src/connectors"
	"papertrader/src/controller"
)

type userLister interface {
	ListAutomated(ctx context.Context) ([]string, error)
}

type reconciler interface {
	Tick(ctx context.Context, userID string) (*controller.TickResult, error)
}

type accountRefresher interface {
	Refresh(ctx context.Context, userID string) (*connectors.Account, error)
}

// Deps are the components driven by the scheduler.
type Deps struct {
	Users      userLister
	Reconciler reconciler
	Accounts   accountRefresher
}

// newTicker is swapped in tests.
var newTicker = func(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// StartLoop runs the positions and account refresh cycles until ctx is done.
// Each cycle covers every user with automated trading enabled; errors are
// logged per user and never stop the loop.
func StartLoop(ctx context.Context, deps Deps, config Config) error {
	if deps.Users == nil || deps.Reconciler == nil {
		return errors.New("scheduler needs a user lister and a reconciler")
	}

	positionsC, stopPositions := newTicker(config.PositionsInterval)
	defer stopPositions()

	var accountC <-chan time.Time
	if deps.Accounts != nil {
		c, stopAccount := newTicker(config.AccountInterval)
		defer stopAccount()
		accountC = c
	}

	logger.WithFields(map[string]interface{}{
		"positions_interval": config.PositionsInterval.String(),
		"account_interval":   config.AccountInterval.String(),
	}).Info("scheduler started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("loop stopped")
			return nil

		case <-positionsC:
			logger.Debug("positions tick")
			forEachUser(ctx, deps.Users, "reconcile", func(ctx context.Context, userID string) error {
				_, err := deps.Reconciler.Tick(ctx, userID)
				return err
			})

		case <-accountC:
			logger.Debug("account tick")
			forEachUser(ctx, deps.Users, "account", func(ctx context.Context, userID string) error {
				_, err := deps.Accounts.Refresh(ctx, userID)
				return err
			})
		}
	}
}

func forEachUser(
	ctx context.Context,
	users userLister,
	cycle string,
	fn func(ctx context.Context, userID string) error,
) {
	ids, err := users.ListAutomated(ctx)
	if err != nil {
		logger.WithField("cycle", cycle).WithError(err).Error("failed to list users")
		return
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if err := fn(ctx, id); err != nil {
			logger.WithFields(map[string]interface{}{
				"cycle":   cycle,
				"user_id": id,
			}).WithError(err).Error("cycle failed for user")
		}
	}
}
