package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spark/app/http/controllers/api/health"
	paymentController "spark/app/http/controllers/api/v1/payment"
	receiptController "spark/app/http/controllers/api/v1/receipt"
	"spark/app/http/middlewares"
	"spark/app/repositories"
	"spark/pkg/config"
	"spark/pkg/daraja"
	"spark/pkg/database/dbtest"
	"spark/pkg/limiter"
	"spark/pkg/payment"
	"spark/pkg/payment/mpesa"
	"spark/pkg/payment/types"
)

type recordingNotifier struct {
	mu       sync.Mutex
	receipts []*types.Receipt
}

func (n *recordingNotifier) NotifyReceipt(_ context.Context, r *types.Receipt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receipts = append(n.receipts, r)
	return nil
}

func (n *recordingNotifier) Send(_ context.Context, r *types.Receipt) error {
	return n.NotifyReceipt(context.Background(), r)
}

// fakeDaraja answers the OAuth and STK push endpoints
func fakeDaraja(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_e2e","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newEngine(t *testing.T) (*gin.Engine, *recordingNotifier) {
	gin.SetMode(gin.TestMode)

	repo := repositories.NewPaymentRepository(dbtest.NewSQLite(t))
	notifier := &recordingNotifier{}

	svc, err := payment.NewPaymentService(types.ProviderMpesa, daraja.Config{
		BaseURL:          fakeDaraja(t).URL,
		ConsumerKey:      "key",
		ConsumerSecret:   "secret",
		ShortCode:        "174379",
		Passkey:          "passkey",
		CallbackURL:      "https://example.com/v1/payments/callback",
		AccountReference: "AdventistSpark",
		Timeout:          5 * time.Second,
	}, payment.Options{
		Repository: repo,
		Limiter:    limiter.NewPhoneLimiter(repo, 5*time.Minute, 3, false),
		Notifier:   notifier,
	})
	require.NoError(t, err)

	r := gin.New()
	RegisterAPIRoutes(r, Handlers{
		Payment: paymentController.NewPaymentController(svc, mpesa.NewIPAllowList([]string{"196.201.214."}, false)),
		Receipt: receiptController.NewReceiptController(notifier),
		Health:  health.NewHealthController(repo, nil),
	})
	return r, notifier
}

func call(r *gin.Engine, method, path, body, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if ip != "" {
		req.RemoteAddr = ip + ":443"
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

const paidCallback = `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_e2e","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":1500.00},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},{"Name":"Balance"},{"Name":"TransactionDate","Value":20250301123015},{"Name":"PhoneNumber","Value":254712345678}]}}}}`

func TestPaymentLifecycle(t *testing.T) {
	r, notifier := newEngine(t)

	w := call(r, http.MethodPost, "/v1/payments/stk-push",
		`{"phoneNumber":"+254 712-345-678","amount":"1500","ticketType":"Regular (Ages 21-28)","email":"guest@example.com"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ws_CO_e2e", jsonBody(t, w)["checkoutRequestId"])
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = call(r, http.MethodGet, "/v1/payments/ws_CO_e2e/status", "", "")
	assert.Equal(t, map[string]interface{}{"status": "pending"}, jsonBody(t, w))

	w = call(r, http.MethodPost, "/v1/payments/callback", paidCallback, "196.201.214.10")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Accepted", jsonBody(t, w)["ResultDesc"])

	w = call(r, http.MethodPost, "/v1/payments/status", `{"checkoutRequestId":"ws_CO_e2e"}`, "")
	assert.Equal(t, map[string]interface{}{"status": "completed"}, jsonBody(t, w))

	w = call(r, http.MethodPost, "/v1/payments/callback", paidCallback, "196.201.214.10")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Already processed", jsonBody(t, w)["ResultDesc"])

	require.Len(t, notifier.receipts, 1)
	assert.Equal(t, "guest@example.com", notifier.receipts[0].Email)
	assert.Equal(t, "NLJ7RT61SV", notifier.receipts[0].MpesaReceipt)
	assert.Equal(t, int64(1500), notifier.receipts[0].Amount)
}

func TestCallbackFromUnknownOrigin(t *testing.T) {
	r, notifier := newEngine(t)

	w := call(r, http.MethodPost, "/v1/payments/stk-push",
		`{"phoneNumber":"0712345678","amount":1500,"ticketType":"Regular (Ages 21-28)","email":"guest@example.com"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(r, http.MethodPost, "/v1/payments/callback", paidCallback, "8.8.8.8")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, float64(1), jsonBody(t, w)["ResultCode"])

	// the forged success must leave the ticket unpaid
	w = call(r, http.MethodGet, "/v1/payments/ws_CO_e2e/status", "", "")
	assert.Equal(t, map[string]interface{}{"status": "pending"}, jsonBody(t, w))
	assert.Empty(t, notifier.receipts)
}

func TestCallbackIsNotIPThrottled(t *testing.T) {
	config.Set("app.api_rate_limit", "1-H")
	t.Cleanup(func() { config.Set("app.api_rate_limit", "") })

	r, _ := newEngine(t)
	const ip = "196.201.214.77"

	for i := 0; i < middlewares.DefaultBurst+20; i++ {
		w := call(r, http.MethodPost, "/v1/payments/callback",
			`{"Body":{"stkCallback":{"MerchantRequestID":"m-9","CheckoutRequestID":"ws_CO_burst","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`, ip)
		require.NotEqual(t, http.StatusTooManyRequests, w.Code, "callback %d", i)
		require.Equal(t, http.StatusNotFound, w.Code)
	}

	// the same address is still throttled on the browser routes
	for i := 0; i < middlewares.DefaultBurst; i++ {
		w := call(r, http.MethodGet, "/v1/payments/ws_CO_burst/status", "", ip)
		require.Equal(t, http.StatusNotFound, w.Code, "status %d", i)
	}
	w := call(r, http.MethodGet, "/v1/payments/ws_CO_burst/status", "", ip)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestStatusUnknownCheckout(t *testing.T) {
	r, _ := newEngine(t)

	w := call(r, http.MethodGet, "/v1/payments/ws_CO_missing/status", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Payment not found", jsonBody(t, w)["error"])
}

func TestInternalReceiptsNeedSecret(t *testing.T) {
	r, notifier := newEngine(t)

	// no INTERNAL_API_SECRET configured means every call is refused
	w := call(r, http.MethodPost, "/internal/receipts", `{"email":"guest@example.com"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, notifier.receipts)
}

func TestHealthz(t *testing.T) {
	r, _ := newEngine(t)

	w := call(r, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", jsonBody(t, w)["status"])
}

func TestPreflight(t *testing.T) {
	r, _ := newEngine(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/payments/stk-push", nil)
	req.Header.Set("Origin", "https://tickets.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
