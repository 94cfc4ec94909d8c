package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"papertrader/src/auth"
	"papertrader/src/metrics"
	"papertrader/src/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPolicyRepo struct {
	policy *model.RiskPolicy
	err    error
	saved  *model.RiskPolicy
}

func (m *mockPolicyRepo) Get(context.Context, string) (*model.RiskPolicy, error) {
	return m.policy, m.err
}

func (m *mockPolicyRepo) Upsert(_ context.Context, p *model.RiskPolicy) error {
	m.saved = p
	return m.err
}

type mockTradeLister struct {
	limit  int
	trades []model.TradeRecord
	err    error
}

func (m *mockTradeLister) ListRecent(_ context.Context, _ string, limit int) ([]model.TradeRecord, error) {
	m.limit = limit
	return m.trades, m.err
}

func withUser(req *http.Request) *http.Request {
	return req.WithContext(auth.WithUserID(req.Context(), "u-1"))
}

func TestGetSettingsHandler_Defaults(t *testing.T) {
	rr := httptest.NewRecorder()
	GetSettingsHandler(&mockPolicyRepo{}).ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodGet, "/settings", nil)))
	require.Equal(t, http.StatusOK, rr.Code)

	var got model.RiskPolicy
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, model.RiskProfileModerate, got.RiskProfile)
	assert.True(t, got.ProfitTargetPct.Equal(decimal.NewFromInt(8)))
	assert.False(t, got.AutomatedTradingEnabled)
}

func TestGetSettingsHandler_RepoError(t *testing.T) {
	rr := httptest.NewRecorder()
	GetSettingsHandler(&mockPolicyRepo{err: assert.AnError}).ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodGet, "/settings", nil)))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestPutSettingsHandler(t *testing.T) {
	repo := &mockPolicyRepo{}
	body := `{"risk_profile":"aggressive","profit_target_percentage":12,"stop_loss_percentage":"3","stop_loss_enabled":true,"automated_trading_enabled":true}`

	rr := httptest.NewRecorder()
	PutSettingsHandler(repo).ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(body))))
	require.Equal(t, http.StatusOK, rr.Code)

	require.NotNil(t, repo.saved)
	assert.Equal(t, "u-1", repo.saved.UserID)
	assert.Equal(t, "aggressive", repo.saved.RiskProfile)
	assert.True(t, repo.saved.ProfitTargetPct.Equal(decimal.NewFromInt(12)))
	assert.True(t, repo.saved.StopLossEnabled)
	assert.True(t, repo.saved.AutomatedTradingEnabled)
}

func TestPutSettingsHandler_Invalid(t *testing.T) {
	repo := &mockPolicyRepo{}
	body := `{"risk_profile":"moderate","profit_target_percentage":80}`

	rr := httptest.NewRecorder()
	PutSettingsHandler(repo).ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(body))))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, repo.saved)
}

func TestPutSettingsHandler_Unauthorized(t *testing.T) {
	rr := httptest.NewRecorder()
	PutSettingsHandler(&mockPolicyRepo{}).ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestListTradesHandler(t *testing.T) {
	repo := &mockTradeLister{trades: []model.TradeRecord{{ID: "t-1", Symbol: "AAPL"}}}

	rr := httptest.NewRecorder()
	ListTradesHandler(repo).ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodGet, "/trades?limit=5", nil)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, repo.limit)
	assert.Contains(t, rr.Body.String(), `"t-1"`)

	rr = httptest.NewRecorder()
	ListTradesHandler(repo).ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodGet, "/trades?limit=abc", nil)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	ListTradesHandler(repo).ServeHTTP(rr, withUser(httptest.NewRequest(http.MethodGet, "/trades", nil)))
	assert.Equal(t, 0, repo.limit, "the repository applies the default")
}

func TestMetricsHandler(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Inc(metrics.CancelFailuresSwallowed)

	rr := httptest.NewRecorder()
	MetricsHandler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got map[string]int64
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got[metrics.CancelFailuresSwallowed])
}
