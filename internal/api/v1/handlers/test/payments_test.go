package test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmlat/STT-Telegram/internal/api/v1/handlers"
	"github.com/dmlat/STT-Telegram/internal/app/billing"
	"github.com/dmlat/STT-Telegram/internal/app/ledger"
	"github.com/dmlat/STT-Telegram/internal/app/model"
	"github.com/dmlat/STT-Telegram/internal/app/testutil"
	"github.com/dmlat/STT-Telegram/internal/metrics"
)

type createdPayment struct {
	amountRub   int64
	description string
	metadata    map[string]string
}

type fakeGateway struct {
	payments []createdPayment
	err      error
}

func (f *fakeGateway) CreatePayment(_ context.Context, amountRub int64, description string, metadata map[string]string) (*billing.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payments = append(f.payments, createdPayment{
		amountRub:   amountRub,
		description: description,
		metadata:    metadata,
	})
	return &billing.Payment{
		ID:          fmt.Sprintf("pay-%d", len(f.payments)),
		RedirectURL: "https://yookassa.test/confirm",
	}, nil
}

func (f *fakeGateway) QueryStatus(context.Context, string) (billing.PaymentStatus, error) {
	return billing.PaymentPending, nil
}

type paymentsEnv struct {
	mem     *testutil.MemoryStore
	store   *billing.TransactionStore
	gateway *fakeGateway
}

func newPaymentsHandler(t *testing.T, gateway billing.PaymentGateway) (*handlers.PaymentsHandler, *paymentsEnv) {
	t.Helper()
	mem := testutil.NewMemoryStore()
	store := billing.NewTransactionStore(mem, ledger.New(mem, 300, zap.NewNop()), zap.NewNop())
	fg, _ := gateway.(*fakeGateway)
	h := handlers.NewPaymentsHandler(
		billing.DefaultPricing(),
		store,
		gateway,
		metrics.New(prometheus.NewRegistry()),
		zap.NewNop(),
	)
	return h, &paymentsEnv{mem: mem, store: store, gateway: fg}
}

func postJSON(router http.Handler, path, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPaymentsHandler_Tariffs(t *testing.T) {
	handler, _ := newPaymentsHandler(t, &fakeGateway{})
	router := setupTestRouter()
	router.GET("/api/v1/payments/tariffs", handler.Tariffs)

	req := httptest.NewRequest("GET", "/api/v1/payments/tariffs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	tariffs := body["tariffs"].([]interface{})
	require.Len(t, tariffs, 5)
	first := tariffs[0].(map[string]interface{})
	assert.Equal(t, float64(10), first["minutes"])
	assert.Equal(t, float64(49), first["amount_rub"])
	assert.Equal(t, float64(600), first["seconds_added"])
}

func TestPaymentsHandler_Create(t *testing.T) {
	handler, env := newPaymentsHandler(t, &fakeGateway{})
	router := setupTestRouter()
	router.POST("/api/v1/payments", handler.Create)

	rec := postJSON(router, "/api/v1/payments", `{"user_id":21,"minutes":30}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(129), body["amount_rub"])
	assert.Equal(t, float64(1800), body["seconds_added"])
	assert.Equal(t, "pay-1", body["payment_id"])
	assert.Equal(t, "https://yookassa.test/confirm", body["confirmation_url"])

	txID := body["transaction_id"].(string)
	require.NotEmpty(t, txID)

	txn := env.mem.Transactions[txID]
	require.NotNil(t, txn)
	assert.Equal(t, model.TransactionPending, txn.Status)
	assert.Equal(t, int64(21), txn.UserID)
	require.NotNil(t, txn.PaymentRef)
	assert.Equal(t, "pay-1", *txn.PaymentRef)

	require.Len(t, env.gateway.payments, 1)
	assert.Equal(t, txID, env.gateway.payments[0].metadata["transaction_id"])
	assert.Equal(t, "21", env.gateway.payments[0].metadata["user_id"])
	assert.Contains(t, env.gateway.payments[0].description, "30 min")
}

func TestPaymentsHandler_Create_CustomMinutesUseFormula(t *testing.T) {
	handler, _ := newPaymentsHandler(t, &fakeGateway{})
	router := setupTestRouter()
	router.POST("/api/v1/payments", handler.Create)

	rec := postJSON(router, "/api/v1/payments", `{"user_id":21,"minutes":15}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(57), body["amount_rub"])
	assert.Equal(t, float64(900), body["seconds_added"])
}

func TestPaymentsHandler_Create_GatewayDown(t *testing.T) {
	handler, env := newPaymentsHandler(t, &fakeGateway{err: fmt.Errorf("connect: connection refused")})
	router := setupTestRouter()
	router.POST("/api/v1/payments", handler.Create)

	rec := postJSON(router, "/api/v1/payments", `{"user_id":21,"minutes":30}`)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service_unavailable", decodeBody(t, rec)["kind"])

	// The orphaned transaction was closed, not left pending.
	require.Len(t, env.mem.Transactions, 1)
	for _, txn := range env.mem.Transactions {
		assert.Equal(t, model.TransactionFailed, txn.Status)
	}
}

func TestPaymentsHandler_Create_NoGateway(t *testing.T) {
	handler, _ := newPaymentsHandler(t, nil)
	router := setupTestRouter()
	router.POST("/api/v1/payments", handler.Create)

	rec := postJSON(router, "/api/v1/payments", `{"user_id":21,"minutes":30}`)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPaymentsHandler_Create_Validation(t *testing.T) {
	handler, _ := newPaymentsHandler(t, &fakeGateway{})
	router := setupTestRouter()
	router.POST("/api/v1/payments", handler.Create)

	for name, body := range map[string]string{
		"missing minutes": `{"user_id":21}`,
		"above the cap":   `{"user_id":21,"minutes":601}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := postJSON(router, "/api/v1/payments", body)

			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, "validation", decodeBody(t, rec)["kind"])
		})
	}
}

func TestPaymentsHandler_Webhook_Succeeded(t *testing.T) {
	handler, env := newPaymentsHandler(t, &fakeGateway{})
	router := setupTestRouter()
	router.POST("/api/v1/payments", handler.Create)
	router.POST("/api/v1/payments/webhook", handler.Webhook)

	rec := postJSON(router, "/api/v1/payments", `{"user_id":21,"minutes":30}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	txID := decodeBody(t, rec)["transaction_id"].(string)

	notification := fmt.Sprintf(
		`{"event":"payment.succeeded","object":{"id":"pay-1","status":"succeeded","metadata":{"transaction_id":%q}}}`,
		txID)

	rec = postJSON(router, "/api/v1/payments/webhook", notification)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["processed"])
	assert.Equal(t, 1800.0, env.mem.Users[21].BalanceSeconds)

	// Redelivery settles nothing twice.
	rec = postJSON(router, "/api/v1/payments/webhook", notification)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["processed"])
	assert.Equal(t, 1800.0, env.mem.Users[21].BalanceSeconds)
}

func TestPaymentsHandler_Webhook_Canceled(t *testing.T) {
	handler, env := newPaymentsHandler(t, &fakeGateway{})
	router := setupTestRouter()
	router.POST("/api/v1/payments", handler.Create)
	router.POST("/api/v1/payments/webhook", handler.Webhook)

	rec := postJSON(router, "/api/v1/payments", `{"user_id":21,"minutes":30}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	txID := decodeBody(t, rec)["transaction_id"].(string)

	rec = postJSON(router, "/api/v1/payments/webhook", fmt.Sprintf(
		`{"event":"payment.canceled","object":{"id":"pay-1","metadata":{"transaction_id":%q}}}`, txID))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["processed"])
	assert.Equal(t, model.TransactionFailed, env.mem.Transactions[txID].Status)
	_, exists := env.mem.Users[21]
	assert.False(t, exists, "a canceled payment credits nothing")
}

func TestPaymentsHandler_Webhook_Ignored(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "unknown event",
			payload: `{"event":"refund.succeeded","object":{"id":"pay-1","metadata":{"transaction_id":"tx-1"}}}`,
		},
		{
			name:    "missing metadata",
			payload: `{"event":"payment.succeeded","object":{"id":"pay-1"}}`,
		},
		{
			name:    "unknown transaction",
			payload: `{"event":"payment.succeeded","object":{"id":"pay-1","metadata":{"transaction_id":"no-such-tx"}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newPaymentsHandler(t, &fakeGateway{})
			router := setupTestRouter()
			router.POST("/api/v1/payments/webhook", handler.Webhook)

			rec := postJSON(router, "/api/v1/payments/webhook", tt.payload)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, false, decodeBody(t, rec)["processed"])
		})
	}
}

func TestPaymentsHandler_Webhook_Malformed(t *testing.T) {
	handler, _ := newPaymentsHandler(t, &fakeGateway{})
	router := setupTestRouter()
	router.POST("/api/v1/payments/webhook", handler.Webhook)

	rec := postJSON(router, "/api/v1/payments/webhook", `{"object":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
