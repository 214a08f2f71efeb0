package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spark/app/http/middlewares"
	"spark/pkg/payment/types"
	"spark/pkg/receipt"
)

type stubSender struct {
	err  error
	sent []*types.Receipt
}

func (s *stubSender) Send(_ context.Context, r *types.Receipt) error {
	s.sent = append(s.sent, r)
	return s.err
}

const body = `{"email":"a@b.co","ticketType":"VIP (Ages 21-28)","amount":3000,"mpesaReceipt":"NLJ7RT61SV","phoneNumber":"254712345678","transactionDate":"20250301123015"}`

func newRouter(sender receipt.Sender) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/internal/receipts", middlewares.InternalSecret("s3cret"), NewReceiptController(sender).Send)
	return r
}

func send(r *gin.Engine, secret, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/internal/receipts", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(receipt.SecretHeader, secret)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSendReceipt(t *testing.T) {
	sender := &stubSender{}
	w := send(newRouter(sender), "s3cret", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "NLJ7RT61SV", sender.sent[0].MpesaReceipt)
	assert.Equal(t, int64(3000), sender.sent[0].Amount)
}

func TestSendReceiptRequiresSecret(t *testing.T) {
	for name, secret := range map[string]string{"missing": "", "wrong": "guess"} {
		t.Run(name, func(t *testing.T) {
			sender := &stubSender{}
			w := send(newRouter(sender), secret, body)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Empty(t, sender.sent)
		})
	}
}

func TestSendReceiptFailure(t *testing.T) {
	sender := &stubSender{err: errors.New("smtp: connection refused")}
	w := send(newRouter(sender), "s3cret", body)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, false, got["success"])
	assert.Equal(t, "smtp: connection refused", got["error"])
}

func TestSendReceiptBadBody(t *testing.T) {
	sender := &stubSender{}

	assert.Equal(t, http.StatusBadRequest, send(newRouter(sender), "s3cret", `{"email":`).Code)
	assert.Equal(t, http.StatusBadRequest, send(newRouter(sender), "s3cret", `{"ticketType":"VIP (Ages 21-28)"}`).Code)
	assert.Empty(t, sender.sent)
}
