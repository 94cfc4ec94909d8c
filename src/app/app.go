// Package app wires the stores, broker access and controllers into one
// object shared by the HTTP server and the CLI commands.
package app

import (
	"errors"
	"net/http"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"papertrader/src/accounts"
	"papertrader/src/cache"
	"papertrader/src/connectors"
	"papertrader/src/controller"
	"papertrader/src/events"
	"papertrader/src/executors"
	"papertrader/src/handler"
	"papertrader/src/metrics"
	"papertrader/src/notify"
	"papertrader/src/repository"
	"papertrader/src/server"
)

type App struct {
	Counters *metrics.Registry
	Bus      *events.Bus

	Trades     *repository.TradeRecordRepository
	Policies   *repository.RiskPolicyRepository
	Brokers    *repository.BrokerAccountRepository
	Exceptions *repository.ExceptionRepository

	Accounts  *accounts.Provider
	Snapshots *accounts.Snapshots

	Orders       *controller.OrderController
	Reconciler   *controller.ReconcileController
	Exits        *controller.ExitEvaluator
	TradeUpdates *controller.TradeUpdateController
	Notifier     *notify.Sender

	Shared    connectors.Credentials
	Scheduler executors.Config

	cache *cache.Cache
}

// New builds the application on db. Subscribers are registered on the bus
// in a fixed order: the exit evaluator first, then the notifier.
func New(db *gorm.DB) (*App, error) {
	if db == nil {
		return nil, errors.New("app needs a database")
	}

	sched := executors.GetConfig()
	c, err := cache.New(sched.AccountCacheCost, sched.AccountInterval)
	if err != nil {
		return nil, err
	}

	a := &App{
		Counters:   metrics.Default,
		Bus:        events.NewBus(),
		Trades:     repository.NewTradeRecordRepository().WithDB(db),
		Policies:   repository.NewRiskPolicyRepository().WithDB(db),
		Brokers:    repository.NewBrokerAccountRepository().WithDB(db),
		Exceptions: repository.NewExceptionRepository().WithDB(db),
		Shared:     connectors.GetConfig().SharedCredentials(),
		Scheduler:  sched,
		Notifier:   notify.NewSenderFromConfig(),
		cache:      c,
	}

	a.Accounts = accounts.NewProvider(a.Brokers, a.Shared)
	a.Snapshots = accounts.NewSnapshots(a.Accounts, cache.NewAccountSnapshots(c))

	a.Orders = controller.NewOrderController(a.Accounts, a.Trades, a.Exceptions, a.Counters, controller.GetConfig())
	a.Reconciler = controller.NewReconcileController(a.Accounts, a.Policies, a.Trades, a.Bus, a.Exceptions, a.Counters)
	a.Exits = controller.NewExitEvaluator(a.Accounts, a.Trades, a.Bus, a.Exceptions, a.Counters, controller.NewExitGuard())
	a.TradeUpdates = controller.NewTradeUpdateController(a.Trades)

	a.Exits.Subscribe(a.Bus)
	a.Notifier.Subscribe(a.Bus)

	logger.WithFields(map[string]interface{}{
		"broker":   a.Shared.BaseURL,
		"notifier": a.Notifier.Enabled(),
	}).Info("application wired")

	return a, nil
}

func (a *App) Router() http.Handler {
	return server.NewRouter(server.Routes{
		Trading:     handler.TradingHandler(a.Orders, a.Reconciler, a.Snapshots),
		GetSettings: handler.GetSettingsHandler(a.Policies),
		PutSettings: handler.PutSettingsHandler(a.Policies),
		Trades:      handler.ListTradesHandler(a.Trades),
		Metrics:     a.Counters,
	})
}

// SchedulerDeps returns what executors.StartLoop drives.
func (a *App) SchedulerDeps() executors.Deps {
	return executors.Deps{
		Users:      a.Policies,
		Reconciler: a.Reconciler,
		Accounts:   a.Snapshots,
	}
}

func (a *App) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
}
