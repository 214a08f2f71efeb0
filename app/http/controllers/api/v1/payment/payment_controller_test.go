package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymentModel "spark/app/models/payment"
	"spark/pkg/payment/mpesa"
	"spark/pkg/payment/types"
)

const safaricomIP = "196.201.214.10"

type stubService struct {
	createErr error
	created   *types.Request

	status    paymentModel.Status
	statusErr error

	notify    *types.NotifyResult
	notifyErr error
	notified  *types.Callback
}

func (s *stubService) CreatePayment(_ context.Context, req *types.Request) (*types.Result, error) {
	s.created = req
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &types.Result{
		CheckoutRequestID: "ws_CO_1",
		MerchantRequestID: "m-1",
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

func (s *stubService) QueryStatus(_ context.Context, _ string) (paymentModel.Status, error) {
	return s.status, s.statusErr
}

func (s *stubService) HandleNotify(_ context.Context, cb *types.Callback) (*types.NotifyResult, error) {
	s.notified = cb
	return s.notify, s.notifyErr
}

func newRouter(svc types.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	pc := NewPaymentController(svc, mpesa.NewIPAllowList([]string{"196.201.214."}, false))
	r.POST("/v1/payments/stk-push", pc.STKPush)
	r.POST("/v1/payments/callback", pc.Callback)
	r.POST("/v1/payments/status", pc.Status)
	r.GET("/v1/payments/:checkoutRequestId/status", pc.StatusByParam)
	return r
}

func perform(r *gin.Engine, method, path, body, remoteIP string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if remoteIP != "" {
		req.RemoteAddr = remoteIP + ":443"
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

const validPush = `{"phoneNumber":"0712 345 678","amount":1500,"ticketType":"Regular (Ages 21-28)","email":"a@b.co"}`

func TestSTKPushAccepted(t *testing.T) {
	svc := &stubService{}
	w := perform(newRouter(svc), http.MethodPost, "/v1/payments/stk-push", validPush, "")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ws_CO_1", body["checkoutRequestId"])
	assert.Equal(t, "Success. Request accepted for processing", body["message"])

	require.NotNil(t, svc.created)
	assert.Equal(t, "254712345678", svc.created.PhoneNumber)
	assert.Equal(t, int64(1500), svc.created.Amount)
}

func TestSTKPushValidation(t *testing.T) {
	svc := &stubService{}
	w := perform(newRouter(svc), http.MethodPost, "/v1/payments/stk-push",
		`{"phoneNumber":"0812345678","amount":1500,"ticketType":"Regular (Ages 21-28)"}`, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Phone number must be a valid Kenyan mobile number", decode(t, w)["error"])
	assert.Nil(t, svc.created)
}

func TestSTKPushErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err     error
		status  int
		message string
		details string
	}{
		"rate limited": {
			err:     &types.RateLimitError{RetryAfter: 5 * time.Minute},
			status:  http.StatusTooManyRequests,
			message: "Too many payment requests. Please wait 5 minutes before trying again.",
		},
		"declined": {
			err:     fmt.Errorf("push: %w", &types.UpstreamRejection{Code: "1", Description: "Invalid PhoneNumber"}),
			status:  http.StatusBadRequest,
			message: "Failed to initiate payment",
			details: "Invalid PhoneNumber",
		},
		"configuration": {
			err:     types.ErrConfiguration,
			status:  http.StatusInternalServerError,
			message: "M-Pesa configuration incomplete",
		},
		"oauth": {
			err:     fmt.Errorf("%w: 401", types.ErrUpstreamAuth),
			status:  http.StatusBadGateway,
			message: "Failed to get M-Pesa access token",
		},
		"transport": {
			err:     fmt.Errorf("%w: timeout", types.ErrUpstreamUnavailable),
			status:  http.StatusBadGateway,
			message: "Failed to initiate payment",
		},
		"ledger write": {
			err:     types.ErrLedgerWrite,
			status:  http.StatusInternalServerError,
			message: "Failed to record payment",
		},
		"unexpected": {
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			message: "Internal server error",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := perform(newRouter(&stubService{createErr: tc.err}), http.MethodPost, "/v1/payments/stk-push", validPush, "")

			assert.Equal(t, tc.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tc.message, body["error"])
			if tc.details != "" {
				assert.Equal(t, tc.details, body["details"])
			}
		})
	}
}

func TestSTKPushRetryAfterHeader(t *testing.T) {
	svc := &stubService{createErr: &types.RateLimitError{RetryAfter: 5 * time.Minute}}
	w := perform(newRouter(svc), http.MethodPost, "/v1/payments/stk-push", validPush, "")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "300", w.Header().Get("Retry-After"))
}

const callbackBody = `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`

func TestCallbackAcknowledgements(t *testing.T) {
	cases := map[string]struct {
		svc    *stubService
		ip     string
		body   string
		status int
		code   float64
		desc   string
	}{
		"forged origin": {
			svc:    &stubService{},
			ip:     "8.8.8.8",
			body:   callbackBody,
			status: http.StatusForbidden,
			code:   1,
			desc:   "Unauthorized",
		},
		"malformed body": {
			svc:    &stubService{},
			ip:     safaricomIP,
			body:   `{"Body":`,
			status: http.StatusOK,
			code:   1,
			desc:   "Processing error",
		},
		"missing result code": {
			svc:    &stubService{notify: &types.NotifyResult{Status: paymentModel.StatusCompleted}},
			ip:     safaricomIP,
			body:   `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultDesc":"ok"}}}`,
			status: http.StatusOK,
			code:   1,
			desc:   "Processing error",
		},
		"unknown transaction": {
			svc:    &stubService{notifyErr: types.ErrUnknownTransaction},
			ip:     safaricomIP,
			body:   callbackBody,
			status: http.StatusNotFound,
			code:   1,
			desc:   "Unknown transaction",
		},
		"already processed": {
			svc:    &stubService{notify: &types.NotifyResult{Status: paymentModel.StatusFailed, AlreadyProcessed: true}},
			ip:     safaricomIP,
			body:   callbackBody,
			status: http.StatusOK,
			code:   0,
			desc:   "Already processed",
		},
		"accepted": {
			svc:    &stubService{notify: &types.NotifyResult{Status: paymentModel.StatusFailed}},
			ip:     safaricomIP,
			body:   callbackBody,
			status: http.StatusOK,
			code:   0,
			desc:   "Accepted",
		},
		"storage error": {
			svc:    &stubService{notifyErr: types.ErrLedgerWrite},
			ip:     safaricomIP,
			body:   callbackBody,
			status: http.StatusOK,
			code:   1,
			desc:   "Processing error",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := perform(newRouter(tc.svc), http.MethodPost, "/v1/payments/callback", tc.body, tc.ip)

			assert.Equal(t, tc.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tc.code, body["ResultCode"])
			assert.Equal(t, tc.desc, body["ResultDesc"])
		})
	}
}

func TestCallbackForgedOriginNeverReachesService(t *testing.T) {
	svc := &stubService{notify: &types.NotifyResult{}}
	perform(newRouter(svc), http.MethodPost, "/v1/payments/callback", callbackBody, "8.8.8.8")

	assert.Nil(t, svc.notified)
}

func TestCallbackPassesParsedResult(t *testing.T) {
	svc := &stubService{notify: &types.NotifyResult{Status: paymentModel.StatusFailed}}
	perform(newRouter(svc), http.MethodPost, "/v1/payments/callback", callbackBody, safaricomIP)

	require.NotNil(t, svc.notified)
	assert.Equal(t, "ws_CO_1", svc.notified.CheckoutRequestID)
	assert.Equal(t, 1032, svc.notified.ResultCode)
}

func TestCallbackBodyTooLarge(t *testing.T) {
	svc := &stubService{notify: &types.NotifyResult{}}
	huge := `{"pad":"` + strings.Repeat("x", MaxCallbackBody) + `"}`
	w := perform(newRouter(svc), http.MethodPost, "/v1/payments/callback", huge, safaricomIP)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Processing error", decode(t, w)["ResultDesc"])
	assert.Nil(t, svc.notified)
}

func TestStatus(t *testing.T) {
	cases := map[string]struct {
		svc    *stubService
		method string
		path   string
		body   string
		status int
		want   string
	}{
		"body": {
			svc:    &stubService{status: paymentModel.StatusCompleted},
			method: http.MethodPost,
			path:   "/v1/payments/status",
			body:   `{"checkoutRequestId":"ws_CO_1"}`,
			status: http.StatusOK,
			want:   "completed",
		},
		"path": {
			svc:    &stubService{status: paymentModel.StatusPending},
			method: http.MethodGet,
			path:   "/v1/payments/ws_CO_1/status",
			status: http.StatusOK,
			want:   "pending",
		},
		"missing id": {
			svc:    &stubService{},
			method: http.MethodPost,
			path:   "/v1/payments/status",
			body:   `{}`,
			status: http.StatusBadRequest,
		},
		"empty body": {
			svc:    &stubService{},
			method: http.MethodPost,
			path:   "/v1/payments/status",
			status: http.StatusBadRequest,
		},
		"unknown": {
			svc:    &stubService{statusErr: types.ErrPaymentNotFound},
			method: http.MethodGet,
			path:   "/v1/payments/ws_CO_9/status",
			status: http.StatusNotFound,
		},
		"storage error": {
			svc:    &stubService{statusErr: fmt.Errorf("%w: closed", types.ErrLedgerRead)},
			method: http.MethodGet,
			path:   "/v1/payments/ws_CO_1/status",
			status: http.StatusInternalServerError,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := perform(newRouter(tc.svc), tc.method, tc.path, tc.body, "")

			assert.Equal(t, tc.status, w.Code)
			body := decode(t, w)
			if tc.want != "" {
				assert.Equal(t, map[string]interface{}{"status": tc.want}, body)
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}
