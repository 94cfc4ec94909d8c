package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"papertrader/src/connectors"
	"papertrader/src/events"
	"papertrader/src/model"
	"papertrader/src/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	openOrders   []connectors.Order
	listErr      error
	cancelErr    map[string]error
	placeErr     map[string]error
	placeDelay   time.Duration
	placed       []connectors.OrderRequest
	fillPrice    *decimal.Decimal
	orders       map[string]*connectors.Order
	getErr       map[string]error
	positions    []connectors.Position
	positionsErr error
	account      *connectors.Account
}

var _ connectors.Gateway = (*fakeGateway)(nil)

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	g.calls = append(g.calls, call)
	g.mu.Unlock()
}

func (g *fakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) Placed() []connectors.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]connectors.OrderRequest(nil), g.placed...)
}

func (g *fakeGateway) ListOpenOrders(_ context.Context, symbol string) ([]connectors.Order, error) {
	g.record("list:" + symbol)
	if g.listErr != nil {
		return nil, g.listErr
	}
	var out []connectors.Order
	for _, o := range g.openOrders {
		if o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out, nil
}

func (g *fakeGateway) CancelOrder(_ context.Context, orderID string) error {
	g.record("cancel:" + orderID)
	return g.cancelErr[orderID]
}

func (g *fakeGateway) PlaceOrder(_ context.Context, req connectors.OrderRequest) (*connectors.Order, error) {
	g.record("place:" + req.Symbol)
	if g.placeDelay > 0 {
		time.Sleep(g.placeDelay)
	}
	if err := g.placeErr[req.Symbol]; err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.placed = append(g.placed, req)
	order := &connectors.Order{
		ID:             fmt.Sprintf("o-%d", len(g.placed)),
		ClientOrderID:  req.ClientOrderID,
		Symbol:         req.Symbol,
		Qty:            req.Qty,
		Side:           req.Side,
		Type:           req.Type,
		TimeInForce:    req.TimeInForce,
		LimitPrice:     req.LimitPrice,
		FilledAvgPrice: g.fillPrice,
		Status:         connectors.OrderStatusAccepted,
	}
	if g.orders == nil {
		g.orders = map[string]*connectors.Order{}
	}
	g.orders[order.ID] = order
	return order, nil
}

func (g *fakeGateway) GetOrder(_ context.Context, orderID string) (*connectors.Order, error) {
	g.record("get:" + orderID)
	if err := g.getErr[orderID]; err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return nil, connectors.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (g *fakeGateway) setOrder(o *connectors.Order) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orders == nil {
		g.orders = map[string]*connectors.Order{}
	}
	g.orders[o.ID] = o
}

func (g *fakeGateway) forgetOrder(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.orders, id)
}

func (g *fakeGateway) ListPositions(context.Context) ([]connectors.Position, error) {
	g.record("positions")
	return g.positions, g.positionsErr
}

func (g *fakeGateway) GetAccount(context.Context) (*connectors.Account, error) {
	g.record("account")
	return g.account, nil
}

type fakeProvider struct {
	gw    connectors.Gateway
	err   error
	calls atomic.Int32
}

func (p *fakeProvider) ForUser(context.Context, string) (connectors.Gateway, error) {
	p.calls.Add(1)
	return p.gw, p.err
}

var _ gatewayProvider = (*fakeProvider)(nil)

type mockPolicyStore struct {
	policy *model.RiskPolicy
	err    error
}

func (m *mockPolicyStore) Get(context.Context, string) (*model.RiskPolicy, error) {
	return m.policy, m.err
}

var _ policyStore = (*mockPolicyStore)(nil)

type mockExceptionRepo struct {
	mu      sync.Mutex
	created []*model.Exception
}

func (m *mockExceptionRepo) Create(_ context.Context, exc *model.Exception) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, exc)
	return nil
}

var _ exceptionRepository = (*mockExceptionRepo)(nil)

type eventRecorder struct {
	mu     sync.Mutex
	events []events.ExitSubmitted
}

func (r *eventRecorder) handle(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt.(events.ExitSubmitted))
	return nil
}

func newLedger(t *testing.T) *repository.TradeRecordRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.TradeRecord{}))
	return repository.NewTradeRecordRepository().WithDB(db)
}

func allTrades(t *testing.T, ledger *repository.TradeRecordRepository, userID string) []model.TradeRecord {
	t.Helper()
	recs, err := ledger.Find(context.Background(), repository.TradeFilter{UserID: userID})
	require.NoError(t, err)
	return recs
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func position(symbol, qty, current, avg, plpc string) connectors.Position {
	return connectors.Position{
		Symbol:         symbol,
		Qty:            dec(qty),
		Side:           "long",
		AvgEntryPrice:  dec(avg),
		CurrentPrice:   dec(current),
		UnrealizedPLPC: dec(plpc),
	}
}

// exitPolicy is target 8%, stop 3% enabled, automation on.
func exitPolicy(userID string) *model.RiskPolicy {
	return &model.RiskPolicy{
		UserID:                  userID,
		RiskProfile:             model.RiskProfileModerate,
		ProfitTargetPct:         dec("8"),
		StopLossPct:             dec("3"),
		StopLossEnabled:         true,
		AutomatedTradingEnabled: true,
	}
}
