package types

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConfiguration means required provider settings are missing
	ErrConfiguration = errors.New("m-pesa configuration incomplete")
	// ErrUpstreamAuth means the provider refused or failed the OAuth exchange
	ErrUpstreamAuth = errors.New("failed to get m-pesa access token")
	// ErrUpstreamUnavailable means the push request never got a usable answer
	ErrUpstreamUnavailable = errors.New("m-pesa request failed")
	// ErrLedgerWrite means the provider accepted the push but the row could not be stored
	ErrLedgerWrite = errors.New("failed to record payment")
	// ErrLedgerRead means the ledger could not be queried
	ErrLedgerRead = errors.New("failed to read payment")
	// ErrPaymentNotFound means no row exists for the checkout id
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrUnknownTransaction means a callback named a checkout id we never issued
	ErrUnknownTransaction = errors.New("unknown transaction")
	// ErrUnauthorizedSource means a callback came from outside the allow-list
	ErrUnauthorizedSource = errors.New("unauthorized callback source")
)

// RateLimitError is returned when a phone number has too many recent attempts
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Too many payment requests. Please wait %d minutes before trying again.",
		int(e.RetryAfter.Round(time.Minute).Minutes()))
}

// UpstreamRejection is returned when the provider declines the push request
type UpstreamRejection struct {
	Code        string
	Description string
}

func (e *UpstreamRejection) Error() string {
	return fmt.Sprintf("m-pesa rejected the request (code %s): %s", e.Code, e.Description)
}
