package receipt

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"spark/pkg/logger"
	"spark/pkg/payment/types"
)

// SecretHeader carries the shared secret on internal calls
const SecretHeader = "X-Internal-Secret"

// VerifySecret compares a presented secret with the configured one in constant
// time. An unconfigured secret never verifies.
func VerifySecret(expected, presented string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

// HTTPNotifier posts receipts to the internal receipt endpoint
type HTTPNotifier struct {
	client *resty.Client
	url    string
	secret string
	async  bool
}

var (
	_ types.Notifier = (*HTTPNotifier)(nil)
	_ Sender         = (*HTTPNotifier)(nil)
)

// NewHTTPNotifier creates a notifier for url. With async set, NotifyReceipt
// returns at once and delivery happens in the background.
func NewHTTPNotifier(url, secret string, timeout time.Duration, async bool) *HTTPNotifier {
	return &HTTPNotifier{
		client: resty.New().SetTimeout(timeout),
		url:    url,
		secret: secret,
		async:  async,
	}
}

// NotifyReceipt triggers the receipt email
func (n *HTTPNotifier) NotifyReceipt(ctx context.Context, r *types.Receipt) error {
	if n.secret == "" {
		logger.WarnString("Receipt", "Notify", "INTERNAL_API_SECRET is not set, skipping receipt for "+r.MpesaReceipt)
		return nil
	}
	if !n.async {
		return n.Send(ctx, r)
	}

	receipt := *r
	go func() {
		if err := n.Send(context.WithoutCancel(ctx), &receipt); err != nil {
			logger.WarnString("Receipt", "Notify", err.Error())
		}
	}()
	return nil
}

// Send posts r and waits for the answer
func (n *HTTPNotifier) Send(ctx context.Context, r *types.Receipt) error {
	if n.secret == "" {
		return fmt.Errorf("internal secret not configured")
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader(SecretHeader, n.secret).
		SetHeader("Content-Type", "application/json").
		SetBody(r).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("post receipt: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("post receipt: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
