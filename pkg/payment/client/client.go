// Package client is a Go client for the payment endpoints. It mirrors what
// the checkout page does: start a push, then poll until the ledger settles.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"spark/app/models/payment"
	"spark/pkg/logger"
	"spark/pkg/payment/types"
)

const (
	// DefaultInterval is the gap between status polls
	DefaultInterval = 3 * time.Second
	// DefaultTimeout is how long to wait for a callback before giving up
	DefaultTimeout = 120 * time.Second
)

var (
	// ErrSettlementTimeout means no terminal status was seen before the timeout
	ErrSettlementTimeout = errors.New("payment was not settled in time")
	// ErrNotFound means the server has no row for the checkout id
	ErrNotFound = errors.New("payment not found")
)

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// WaitOptions tunes WaitForSettlement; zero values take the defaults
type WaitOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

type initiateResponse struct {
	Success           bool   `json:"success"`
	CheckoutRequestID string `json:"checkoutRequestId"`
	Message           string `json:"message"`
}

type statusResponse struct {
	Status payment.Status `json:"status"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Client calls one payment server
type Client struct {
	http *resty.Client
}

// New creates a client for baseURL
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

// Initiate starts an STK push and returns the checkout id
func (c *Client) Initiate(ctx context.Context, req *types.Request) (*types.Result, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&initiateResponse{}).
		SetError(&errorResponse{}).
		Post("/v1/payments/stk-push")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}

	out := resp.Result().(*initiateResponse)
	return &types.Result{
		CheckoutRequestID: out.CheckoutRequestID,
		CustomerMessage:   out.Message,
	}, nil
}

// Status fetches the current status of a checkout
func (c *Client) Status(ctx context.Context, checkoutRequestID string) (payment.Status, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&statusResponse{}).
		SetError(&errorResponse{}).
		Get("/v1/payments/" + url.PathEscape(checkoutRequestID) + "/status")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.IsError() {
		return "", apiError(resp)
	}
	return resp.Result().(*statusResponse).Status, nil
}

// WaitForSettlement polls until the checkout is completed or failed.
// A 404 is retried because the row may not be visible yet. On timeout it
// returns StatusFailed with ErrSettlementTimeout; the server row is left pending.
func (c *Client) WaitForSettlement(ctx context.Context, checkoutRequestID string, opts WaitOptions) (payment.Status, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	deadline := time.NewTimer(opts.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		status, err := c.Status(ctx, checkoutRequestID)
		switch {
		case err == nil && status.IsTerminal():
			return status, nil
		case err != nil && ctx.Err() != nil:
			return "", ctx.Err()
		case err != nil && !errors.Is(err, ErrNotFound):
			logger.WarnString("PaymentClient", "Poll", fmt.Sprintf("checkout %s: %v", checkoutRequestID, err))
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return payment.StatusFailed, ErrSettlementTimeout
		case <-ticker.C:
		}
	}
}

func apiError(resp *resty.Response) error {
	e := &APIError{StatusCode: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	if body, ok := resp.Error().(*errorResponse); ok && body.Error != "" {
		e.Message = body.Error
		e.Details = body.Details
	}
	return e
}
