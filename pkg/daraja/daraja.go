// Package daraja is a client for the Safaricom Daraja M-Pesa API
package daraja

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"spark/pkg/app"
	"spark/pkg/logger"
)

const (
	tokenPath    = "/oauth/v1/generate"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	timestampFmt = "20060102150405"

	// TransactionTypePayBill is the STK transaction type for paybill shortcodes
	TransactionTypePayBill = "CustomerPayBillOnline"
	// ResponseCodeAccepted is the only push response code that means the prompt was sent
	ResponseCodeAccepted = "0"
	// DefaultTimeout bounds each Daraja call
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrAuth means no access token could be obtained
	ErrAuth = errors.New("daraja: access token request failed")
	// ErrTransport means the request did not get a usable response
	ErrTransport = errors.New("daraja: request failed")
	// ErrMalformedCallback means the callback body is not a stkCallback envelope
	ErrMalformedCallback = errors.New("daraja: malformed callback")
)

// APIError is a push declined by Daraja
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daraja: code %s: %s", e.Code, e.Message)
}

// Client talks to one Daraja environment
type Client struct {
	config Config
	http   *resty.Client
	now    func() time.Time
}

// NewClient creates a client. Calls are not retried: a retried push would
// prompt the customer twice.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		config: cfg,
		http:   httpClient,
		now:    app.TimenowInTimezone,
	}
}

// WithClock replaces the time source used for push timestamps
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Config returns the client configuration
func (c *Client) Config() Config {
	return c.config
}

// Token performs the client credentials exchange
func (c *Client) Token(ctx context.Context) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.config.ConsumerKey, c.config.ConsumerSecret).
		SetQueryParam("grant_type", "client_credentials").
		SetResult(&TokenResponse{}).
		Get(tokenPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}

	if resp.IsError() {
		logger.ErrorString("Daraja", "Token", fmt.Sprintf("status %d body %s", resp.StatusCode(), resp.String()))
		return "", fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode())
	}

	token, _ := resp.Result().(*TokenResponse)
	if token == nil || token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuth)
	}
	return token.AccessToken, nil
}

// STKPush asks Daraja to prompt the phone for payment
func (c *Client) STKPush(ctx context.Context, token string, req PushRequest) (*STKPushResponse, error) {
	timestamp := Timestamp(c.now())
	body := STKPushRequest{
		BusinessShortCode: c.config.ShortCode,
		Password:          Password(c.config.ShortCode, c.config.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   TransactionTypePayBill,
		Amount:            req.Amount,
		PartyA:            req.PhoneNumber,
		PartyB:            c.config.ShortCode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       c.config.CallbackURL,
		AccountReference:  c.config.AccountReference,
		TransactionDesc:   "Ticket: " + req.TicketType,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&STKPushResponse{}).
		SetError(&ErrorResponse{}).
		Post(stkPushPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	logger.InfoString("Daraja", "STKPush", fmt.Sprintf("status %d phone %s amount %d",
		resp.StatusCode(), req.PhoneNumber, req.Amount))

	if resp.IsError() {
		if e, ok := resp.Error().(*ErrorResponse); ok && e.ErrorCode != "" {
			return nil, &APIError{Code: e.ErrorCode, Message: e.ErrorMessage}
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode())
		}
		return nil, &APIError{Code: strconv.Itoa(resp.StatusCode()), Message: resp.String()}
	}

	result, _ := resp.Result().(*STKPushResponse)
	if result == nil {
		return nil, fmt.Errorf("%w: empty response", ErrTransport)
	}
	if result.ResponseCode != ResponseCodeAccepted {
		return nil, &APIError{Code: result.ResponseCode, Message: result.ResponseDescription}
	}
	if result.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", ErrTransport)
	}
	return result, nil
}

// Timestamp formats t as YYYYMMDDHHmmss in the configured timezone
func Timestamp(t time.Time) string {
	return app.TimeIn(t).Format(timestampFmt)
}

// Password is base64(shortcode + passkey + timestamp)
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// ParseCallback decodes a callback body
func ParseCallback(data []byte) (*STKCallback, error) {
	var envelope CallbackEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	cb := envelope.Body.STKCallback
	if cb == nil || cb.CheckoutRequestID == "" {
		return nil, ErrMalformedCallback
	}
	// a missing code must not read as 0, which is success
	if cb.ResultCode == nil {
		return nil, fmt.Errorf("%w: missing ResultCode", ErrMalformedCallback)
	}
	return cb, nil
}
