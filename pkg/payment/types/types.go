package types

import (
	"context"
	"time"

	"spark/app/models/payment"
)

// Provider identifies a payment provider
type Provider string

const (
	ProviderMpesa Provider = "mpesa"
)

// Request is a validated initiation request. PhoneNumber is already normalized
// and Amount is in whole shillings.
type Request struct {
	PhoneNumber string `json:"phoneNumber"`
	Amount      int64  `json:"amount"`
	TicketType  string `json:"ticketType"`
	Email       string `json:"email,omitempty"`
}

// Result is returned once the provider has accepted the push
type Result struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
	MerchantRequestID string `json:"merchantRequestId"`
	CustomerMessage   string `json:"message"`
}

// Callback is a provider settlement notice, already parsed out of the provider envelope
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string

	// only present when ResultCode is 0
	ReceiptNumber   string
	TransactionDate string
	PhoneNumber     string
	Amount          int64
}

// Succeeded reports whether the callback settles the payment as completed
func (c *Callback) Succeeded() bool {
	return c.ResultCode == payment.ResultCodeSuccess
}

// NotifyResult describes what HandleNotify did with a callback
type NotifyResult struct {
	Status           payment.Status
	AlreadyProcessed bool
}

// Settlement is the one-time update applied to a pending row
type Settlement struct {
	Status          payment.Status
	ResultCode      int
	ResultDesc      string
	ReceiptNumber   *string
	TransactionDate *string
}

// Receipt is the payload of the internal receipt email trigger
type Receipt struct {
	Email           string `json:"email"`
	TicketType      string `json:"ticketType"`
	Amount          int64  `json:"amount"`
	MpesaReceipt    string `json:"mpesaReceipt"`
	PhoneNumber     string `json:"phoneNumber"`
	TransactionDate string `json:"transactionDate"`
}

// Service is the payment orchestration surface used by the HTTP layer
type Service interface {
	// CreatePayment sends the push prompt and records a pending row
	CreatePayment(ctx context.Context, req *Request) (*Result, error)
	// QueryStatus returns only the status of a checkout
	QueryStatus(ctx context.Context, checkoutRequestID string) (payment.Status, error)
	// HandleNotify applies a provider callback at most once
	HandleNotify(ctx context.Context, cb *Callback) (*NotifyResult, error)
}

// Repository is the payment ledger
type Repository interface {
	Create(ctx context.Context, p *payment.Payment) error
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*payment.Payment, error)
	CountByPhoneSince(ctx context.Context, phoneNumber string, since time.Time) (int64, error)
	// Settle updates the row only while it is still pending and reports whether it did
	Settle(ctx context.Context, checkoutRequestID string, s Settlement) (bool, error)
}

// Notifier delivers receipts after a successful settlement
type Notifier interface {
	NotifyReceipt(ctx context.Context, r *Receipt) error
}
