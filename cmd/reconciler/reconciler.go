package reconciler

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"papertrader/src/app"
	"papertrader/src/connectors"
	"papertrader/src/database"
	"papertrader/src/executors"
)

type Reconciler struct{}

func (t *Reconciler) build() (*app.App, error) {
	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to main database")
		return nil, err
	}
	return app.New(database.MainDB)
}

// Start runs the scheduler loop until SIGINT or SIGTERM.
func (t *Reconciler) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	a, err := t.build()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := executors.StartLoop(ctx, a.SchedulerDeps(), a.Scheduler); err != nil {
		logrus.WithError(err).Error("Failed to start reconcile loop")
		return err
	}
	return nil
}

// Once runs a single reconciliation tick for userID.
func (t *Reconciler) Once(userID string) error {
	a, err := t.build()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Reconciler.Tick(context.Background(), userID)
	if err != nil {
		return err
	}

	for _, p := range res.Positions {
		logrus.WithFields(logrus.Fields{
			"symbol": p.Symbol,
			"qty":    p.Qty.String(),
			"pl_pct": p.PLPct.StringFixed(2),
		}).Info("position")
	}
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"settled": res.Settled,
		"filled":  res.Filled,
	}).Info("tick done")
	return res.EventErr
}

// Stream applies trade_updates of the shared account to the ledger.
func (t *Reconciler) Stream() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	a, err := t.build()
	if err != nil {
		return err
	}
	defer a.Close()

	client := connectors.NewStreamClient(a.Shared)
	return client.Run(ctx, a.TradeUpdates.Handle)
}
