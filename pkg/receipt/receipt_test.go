package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"spark/pkg/payment/types"
)

func sampleReceipt() *types.Receipt {
	return &types.Receipt{
		Email:           "guest@example.com",
		TicketType:      "Regular (Ages 21-28)",
		Amount:          1500,
		MpesaReceipt:    "NLJ7RT61SV",
		PhoneNumber:     "254712345678",
		TransactionDate: "20250301123015",
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "KES 100", FormatAmount(100))
	assert.Equal(t, "KES 1,500", FormatAmount(1500))
	assert.Equal(t, "KES 100,000", FormatAmount(100000))
}

func TestFormatTransactionDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, "Saturday, 1 March 2025 at 12:30", FormatTransactionDate("20250301123015", now))
	// unparsable dates fall back to now in Nairobi
	assert.Equal(t, "Sunday, 1 June 2025 at 11:00", FormatTransactionDate("", now))
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(sampleReceipt(), time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, html, "Regular (Ages 21-28)")
	assert.Contains(t, html, "KES 1,500")
	assert.Contains(t, html, "NLJ7RT61SV")
	assert.Contains(t, html, `src="cid:ticket-qr.png"`)
	assert.Contains(t, html, "2025 Adventist Singles Spark")
}

func TestRenderHTMLEscapes(t *testing.T) {
	r := sampleReceipt()
	r.MpesaReceipt = "<script>"
	html, err := RenderHTML(r, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestTicketQR(t *testing.T) {
	data, err := TicketQRData(sampleReceipt())
	require.NoError(t, err)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(data), &payload))
	assert.Equal(t, "NLJ7RT61SV", payload["receipt"])
	assert.Equal(t, "Regular (Ages 21-28)", payload["ticket"])
	assert.Equal(t, "254712345678", payload["phone"])
	assert.Equal(t, "20250301123015", payload["date"])

	png, err := TicketQR(sampleReceipt())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestMailerSend(t *testing.T) {
	var sent *gomail.Message
	m := NewMailer(SMTPConfig{Host: "localhost", Port: 465, FromAddress: "tickets@example.com", FromName: "Spark"}).
		WithTransport(func(msg *gomail.Message) error {
			sent = msg
			return nil
		})

	require.NoError(t, m.Send(context.Background(), sampleReceipt()))
	require.NotNil(t, sent)
	assert.Equal(t, []string{"guest@example.com"}, sent.GetHeader("To"))
	assert.Equal(t, []string{"Your Regular (Ages 21-28) Ticket - Adventist Singles Spark"}, sent.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := sent.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "image/png")
}

func TestMailerErrors(t *testing.T) {
	m := NewMailer(SMTPConfig{Host: "localhost", Port: 465}).WithTransport(func(*gomail.Message) error {
		return errors.New("535 authentication failed")
	})
	assert.Error(t, m.Send(context.Background(), sampleReceipt()))

	noEmail := sampleReceipt()
	noEmail.Email = ""
	assert.Error(t, m.Send(context.Background(), noEmail))
}

func TestVerifySecret(t *testing.T) {
	assert.True(t, VerifySecret("s3cret", "s3cret"))
	assert.False(t, VerifySecret("s3cret", "s3cre"))
	assert.False(t, VerifySecret("s3cret", ""))
	assert.False(t, VerifySecret("", ""))
}

func TestHTTPNotifier(t *testing.T) {
	var got types.Receipt
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(SecretHeader) != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	require.NoError(t, NewHTTPNotifier(srv.URL, "s3cret", time.Second, false).NotifyReceipt(context.Background(), sampleReceipt()))
	assert.Equal(t, "NLJ7RT61SV", got.MpesaReceipt)
	assert.Equal(t, int64(1500), got.Amount)

	assert.Error(t, NewHTTPNotifier(srv.URL, "wrong", time.Second, false).Send(context.Background(), sampleReceipt()))
}

func TestHTTPNotifierSkipsWithoutSecret(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	assert.NoError(t, NewHTTPNotifier(srv.URL, "", time.Second, false).NotifyReceipt(context.Background(), sampleReceipt()))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestHTTPNotifierAsync(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(done)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, NewHTTPNotifier(srv.URL, "s3cret", time.Second, true).NotifyReceipt(ctx, sampleReceipt()))
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("receipt was not posted")
	}
}
