package webapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"

	"github.com/tapyield/cashout/config"
	"github.com/tapyield/cashout/infra/memory"
	"github.com/tapyield/cashout/infra/provider/mockpayment"
	"github.com/tapyield/cashout/pkg/app"
	"github.com/tapyield/cashout/pkg/eventbus"
	"github.com/tapyield/cashout/pkg/money"
	"github.com/tapyield/cashout/pkg/registry"
)

type WebAPITestSuite struct {
	suite.Suite

	app      *fiber.App
	core     *app.App
	primary  *mockpayment.Provider
	fallback *mockpayment.Provider
}

func TestWebAPITestSuite(t *testing.T) {
	suite.Run(t, new(WebAPITestSuite))
}

func (s *WebAPITestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opening, err := money.NewFromSmallestUnit(100_00, money.DefaultCurrency)
	s.Require().NoError(err)

	s.primary = mockpayment.New("mock-primary")
	s.fallback = mockpayment.New("mock-secondary")
	reg := registry.New(10, logger)
	reg.Register(s.primary)
	reg.Register(s.fallback)

	cfg := &config.AppConfig{
		Failover: config.FailoverConfig{
			MaxRetries:      2,
			BackoffSchedule: []time.Duration{time.Millisecond},
			AttemptTimeout:  time.Second,
		},
		RateLimit: config.RateLimitConfig{MaxRequests: 1000, Window: time.Second},
		Reconcile: config.ReconcileConfig{
			OpeningBalanceCents:      100_00,
			ToleranceCents:           1,
			EscalationToleranceCents: 1000,
			MaxSaneAmountCents:       1_000_000,
		},
		Autopilot: config.AutopilotConfig{
			MinBalanceCents:  50_00,
			CashoutFraction:  0.5,
			MaxDailyCashouts: 3,
			PollInterval:     time.Hour,
			Destination:      "acct_autopilot",
		},
	}

	s.core = app.New(app.Deps{
		Ledger:       memory.NewLedger(opening),
		Transactions: memory.NewTransactionStore(),
		Reviews:      memory.NewReviewQueue(),
		Registry:     reg,
		Bus:          eventbus.NewSimpleEventBus(),
		Logger:       logger,
	}, cfg)
	s.app = SetupApp(s.core)
}

func (s *WebAPITestSuite) request(method, target, body string) *http.Response {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	return resp
}

func (s *WebAPITestSuite) decode(resp *http.Response) map[string]any {
	defer resp.Body.Close() //nolint: errcheck
	var out map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *WebAPITestSuite) data(resp *http.Response) map[string]any {
	body := s.decode(resp)
	data, _ := body["data"].(map[string]any)
	return data
}

func (s *WebAPITestSuite) TestRootRoute() {
	resp := s.request(http.MethodGet, "/", "")
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *WebAPITestSuite) TestDispatchPayout() {
	resp := s.request(http.MethodPost, "/payouts",
		`{"amount": 25.00, "destination": "acct_123"}`)
	s.Equal(http.StatusCreated, resp.StatusCode)

	data := s.data(resp)
	s.Equal(true, data["success"])
	s.Equal("mock-primary", data["provider_used"])
	s.NotEmpty(data["transaction_id"])

	balResp := s.request(http.MethodGet, "/balance", "")
	s.Equal(http.StatusOK, balResp.StatusCode)
	bal := s.data(balResp)
	s.Equal(float64(75_00), bal["balance_cents"])
}

func (s *WebAPITestSuite) TestDispatchPayoutIdempotent() {
	body := `{"request_id": "req-1", "amount": 10.00, "destination": "acct_123"}`
	first := s.request(http.MethodPost, "/payouts", body)
	s.Equal(http.StatusCreated, first.StatusCode)
	firstData := s.data(first)

	second := s.request(http.MethodPost, "/payouts", body)
	s.Equal(http.StatusCreated, second.StatusCode)
	secondData := s.data(second)

	s.Equal(firstData["transaction_id"], secondData["transaction_id"])
	s.Equal(1, s.primary.Submits())

	bal := s.data(s.request(http.MethodGet, "/balance", ""))
	s.Equal(float64(90_00), bal["balance_cents"])
}

func (s *WebAPITestSuite) TestDispatchPayoutInsufficientFunds() {
	resp := s.request(http.MethodPost, "/payouts",
		`{"amount": 500.00, "destination": "acct_123"}`)
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	s.Equal(0, s.primary.Submits())
}

func (s *WebAPITestSuite) TestDispatchPayoutValidation() {
	// A missing destination is answered with the 400 problem-details the
	// binder wrote, not a rethrown 500.
	resp := s.request(http.MethodPost, "/payouts", `{"amount": 25.00}`)
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Contains(resp.Header.Get(fiber.HeaderContentType), "application/problem+json")

	var pd ProblemDetails
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&pd))
	s.Equal(http.StatusBadRequest, pd.Status)
	s.Equal("Validation failed", pd.Title)

	resp = s.request(http.MethodPost, "/payouts",
		`{"amount": -5, "destination": "acct_123"}`)
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.request(http.MethodPost, "/payouts", `not json`)
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal(0, s.primary.Submits())
}

func (s *WebAPITestSuite) TestDispatchPayoutFailover() {
	s.primary.AlwaysFail()

	resp := s.request(http.MethodPost, "/payouts",
		`{"amount": 10.00, "destination": "acct_123"}`)
	s.Equal(http.StatusCreated, resp.StatusCode)

	data := s.data(resp)
	s.Equal(true, data["success"])
	s.Equal("mock-secondary", data["provider_used"])
}

func (s *WebAPITestSuite) TestDispatchPayoutExhaustionEscalates() {
	s.primary.AlwaysFail()
	s.fallback.AlwaysFail()

	resp := s.request(http.MethodPost, "/payouts",
		`{"amount": 10.00, "destination": "acct_123"}`)
	s.Equal(http.StatusBadGateway, resp.StatusCode)

	data := s.data(resp)
	s.Equal(false, data["success"])
	s.Equal(true, data["escalated"])

	// Money is back.
	bal := s.data(s.request(http.MethodGet, "/balance", ""))
	s.Equal(float64(100_00), bal["balance_cents"])

	// One pending review item exists.
	listResp := s.request(http.MethodGet, "/reviews?status=pending", "")
	s.Equal(http.StatusOK, listResp.StatusCode)
	body := s.decode(listResp)
	items, ok := body["data"].([]any)
	s.Require().True(ok)
	s.Require().Len(items, 1)

	item := items[0].(map[string]any)
	s.Equal("pending", item["status"])

	// Resolve it, then a second resolution conflicts.
	id := item["id"].(string)
	approve := s.request(http.MethodPost, "/reviews/"+id+"/approve", "")
	defer approve.Body.Close() //nolint: errcheck
	s.Equal(http.StatusOK, approve.StatusCode)

	again := s.request(http.MethodPost, "/reviews/"+id+"/reject", "")
	defer again.Body.Close() //nolint: errcheck
	s.Equal(http.StatusConflict, again.StatusCode)
}

func (s *WebAPITestSuite) TestGetPayout() {
	resp := s.request(http.MethodPost, "/payouts",
		`{"amount": 5.00, "destination": "acct_123"}`)
	id := s.data(resp)["transaction_id"].(string)

	getResp := s.request(http.MethodGet, "/payouts/"+id, "")
	s.Equal(http.StatusOK, getResp.StatusCode)
	data := s.data(getResp)
	s.Equal("completed", data["status"])
	s.Equal(float64(5_00), data["amount_cents"])
	attempts, ok := data["attempts"].([]any)
	s.Require().True(ok)
	s.Len(attempts, 1)
}

func (s *WebAPITestSuite) TestGetPayoutNotFound() {
	resp := s.request(http.MethodGet, "/payouts/not-a-uuid", "")
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.request(http.MethodGet, "/payouts/6b1f86a5-19c0-4b0e-8f4a-111111111111", "")
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *WebAPITestSuite) TestProviderRegistry() {
	listResp := s.request(http.MethodGet, "/providers", "")
	s.Equal(http.StatusOK, listResp.StatusCode)
	body := s.decode(listResp)
	conns, ok := body["data"].([]any)
	s.Require().True(ok)
	s.Len(conns, 2)

	deactivate := s.request(http.MethodPost, "/providers/mock-primary/deactivate", "")
	defer deactivate.Body.Close() //nolint: errcheck
	s.Equal(http.StatusOK, deactivate.StatusCode)

	// Traffic now routes around the deactivated provider.
	resp := s.request(http.MethodPost, "/payouts",
		`{"amount": 1.00, "destination": "acct_123"}`)
	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Equal("mock-secondary", s.data(resp)["provider_used"])

	activate := s.request(http.MethodPost, "/providers/mock-primary/activate", "")
	defer activate.Body.Close() //nolint: errcheck
	s.Equal(http.StatusOK, activate.StatusCode)

	unknown := s.request(http.MethodPost, "/providers/nope/activate", "")
	defer unknown.Body.Close() //nolint: errcheck
	s.Equal(http.StatusNotFound, unknown.StatusCode)
}

func (s *WebAPITestSuite) TestReconciliationRun() {
	dispatch := s.request(http.MethodPost, "/payouts",
		`{"amount": 20.00, "destination": "acct_123"}`)
	defer dispatch.Body.Close() //nolint: errcheck
	s.Equal(http.StatusCreated, dispatch.StatusCode)

	resp := s.request(http.MethodPost, "/reconciliation/run", `{"cadence": "daily"}`)
	s.Equal(http.StatusOK, resp.StatusCode)
	report := s.data(resp)
	s.Equal("passed", report["status"])

	bad := s.request(http.MethodPost, "/reconciliation/run", `{"cadence": "hourly"}`)
	defer bad.Body.Close() //nolint: errcheck
	s.Equal(http.StatusBadRequest, bad.StatusCode)
}

func (s *WebAPITestSuite) TestReconciliationAdjust() {
	noReason := s.request(http.MethodPost, "/reconciliation/adjust", `{"delta_cents": 100}`)
	defer noReason.Body.Close() //nolint: errcheck
	s.Equal(http.StatusBadRequest, noReason.StatusCode)

	resp := s.request(http.MethodPost, "/reconciliation/adjust",
		`{"delta_cents": -100, "reason": "bank statement correction"}`)
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusOK, resp.StatusCode)

	bal := s.data(s.request(http.MethodGet, "/balance", ""))
	s.Equal(float64(99_00), bal["balance_cents"])
}

func (s *WebAPITestSuite) TestAutopilotLifecycle() {
	status := s.data(s.request(http.MethodGet, "/autopilot/status", ""))
	s.Equal(false, status["running"])

	start := s.request(http.MethodPost, "/autopilot/start", "")
	s.Equal(http.StatusOK, start.StatusCode)
	s.Equal(true, s.data(start)["running"])

	stop := s.request(http.MethodPost, "/autopilot/stop", "")
	s.Equal(http.StatusOK, stop.StatusCode)
	s.Equal(false, s.data(stop)["running"])
}

func (s *WebAPITestSuite) TestRateLimit() {
	s.core.Config.RateLimit = config.RateLimitConfig{MaxRequests: 3, Window: time.Minute}
	limited := SetupApp(s.core)

	var last int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		resp, err := limited.Test(req, -1)
		s.Require().NoError(err)
		resp.Body.Close() //nolint: errcheck
		last = resp.StatusCode
	}
	s.Equal(http.StatusTooManyRequests, last)
}

func (s *WebAPITestSuite) TestProblemDetailsShape() {
	target := fmt.Sprintf("/payouts/%s", "6b1f86a5-19c0-4b0e-8f4a-111111111111")
	resp := s.request(http.MethodGet, target, "")
	defer resp.Body.Close() //nolint: errcheck
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Contains(resp.Header.Get(fiber.HeaderContentType), "application/problem+json")

	var pd ProblemDetails
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&pd))
	s.Equal(http.StatusNotFound, pd.Status)
	s.Equal(target, pd.Instance)
}
