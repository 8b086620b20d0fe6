package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dhoini/billing-service/internal/api/rest/handlers"
	"github.com/Dhoini/billing-service/internal/api/rest/middleware"
	"github.com/Dhoini/billing-service/internal/domain"
	"github.com/Dhoini/billing-service/internal/events"
	"github.com/Dhoini/billing-service/internal/gateway"
	"github.com/Dhoini/billing-service/internal/metrics"
	"github.com/Dhoini/billing-service/internal/repository"
	"github.com/Dhoini/billing-service/internal/service"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T, auth *middleware.JWTMiddleware) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	plans := repository.NewInMemoryPlanRepository(log, domain.Plan{
		ID:       "basic",
		Name:     "Basic",
		Price:    decimal.RequireFromString("9.99"),
		Duration: domain.PlanDurationMonthly,
		Status:   domain.PlanStatusActive,
	})
	subscribers := repository.NewInMemorySubscriberRepository(log, domain.Subscriber{ID: "user-1", Email: "one@example.com"})

	m := metrics.New(log)
	bus := events.NewMemoryBus()
	dispatcher := events.NewDispatcher(bus, bus, m.Events, log)
	subscriptionRepo := repository.NewInMemorySubscriptionRepository(log)
	payments := service.NewPaymentService(repository.NewInMemoryPaymentRepository(log), subscriptionRepo, subscribers,
		gateway.NewSandboxGateway(gateway.ModeSandbox, log), dispatcher, m.Payments, log)
	subscriptions := service.NewSubscriptionService(subscriptionRepo, plans, subscribers,
		payments, dispatcher, m.Subscriptions, log)

	return SetupRouter(RouterDeps{
		Subscriptions: subscriptions,
		Payments:      payments,
		Registry:      m.Registry,
		Auth:          auth,
		Readiness: map[string]handlers.Pinger{
			"storage": func(context.Context) error { return nil },
		},
		Log: log,
	})
}

func do(r http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubscriptionLifecycle(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/v1/subscriptions", `{"subscriber_id":"user-1","plan_id":"basic"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var sub domain.Subscription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)

	w = do(r, http.MethodPost, "/api/v1/subscriptions", `{"subscriber_id":"user-1","plan_id":"basic"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodGet, "/api/v1/subscriptions/user/user-1/active", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/v1/payments/subscription/"+sub.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var payments []domain.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payments))
	require.Len(t, payments, 1)
	assert.Equal(t, domain.PaymentStatusApproved, payments[0].Status)

	w = do(r, http.MethodPost, "/api/v1/subscriptions/"+sub.ID+"/cancel", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/v1/subscriptions/"+sub.ID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodGet, "/api/v1/subscriptions/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateSubscription_Validation(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/v1/subscriptions", `{"plan_id":"basic"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPost, "/api/v1/subscriptions", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/subscriptions", `{"subscriber_id":"ghost","plan_id":"basic"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentsAndRefund(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/v1/payments", `{"subscriber_id":"user-1","amount":"25.00","description":"one-off"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p domain.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, domain.PaymentStatusApproved, p.Status)

	w = do(r, http.MethodPost, "/api/v1/payments", `{"subscriber_id":"user-1","amount":"-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/payments/"+p.ID+"/refund", `{"percentageToRefund":150}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPost, "/api/v1/payments/"+p.ID+"/refund", `{"percentageToRefund":50,"reason":"partial"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, domain.PaymentStatusRefunded, p.Status)
	assert.Equal(t, "partial", p.FailureReason)

	w = do(r, http.MethodPost, "/api/v1/payments/"+p.ID+"/refund", `{"percentageToRefund":50}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(r, http.MethodGet, "/api/v1/payments/user/user-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRenewalsEndpoint(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(r, http.MethodPost, "/api/v1/cron/subscriptions/renewals", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"renewed":0`)
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(t, nil)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ready", "").Code)

	w := do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAuthRequired(t *testing.T) {
	auth := middleware.NewJWTMiddleware(logger.NewNop(), &middleware.DefaultTokenValidator{Secret: []byte(testSecret)})
	r := newTestRouter(t, auth)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/subscriptions", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "").Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/api/v1/subscriptions", "", "Authorization", "Bearer "+signed)
	assert.Equal(t, http.StatusOK, w.Code)

	bad, err := token.SignedString([]byte("other"))
	require.NoError(t, err)
	w = do(r, http.MethodGet, "/api/v1/subscriptions", "", "Authorization", "Bearer "+bad)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReadinessFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ready", handlers.ReadinessCheck(map[string]handlers.Pinger{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}))

	w := do(r, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
