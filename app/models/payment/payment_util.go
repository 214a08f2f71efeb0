package payment

import (
	"errors"
	"strings"
)

// Status is the payment lifecycle state
type Status string

const (
	StatusPending   Status = "pending"   // waiting for the callback
	StatusCompleted Status = "completed" // paid, receipt recorded
	StatusFailed    Status = "failed"    // declined, cancelled or timed out at the provider
)

// IsTerminal reports whether s can no longer change
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ResultCodeSuccess is the only callback result code that settles as completed
const ResultCodeSuccess = 0

// TicketTypes is the closed list of ticket SKUs on sale
var TicketTypes = []string{
	"Early Bird (Ages 21-28)",
	"Early Bird (Ages 28-40+)",
	"Regular (Ages 21-28)",
	"Regular (Ages 28-40+)",
	"VIP (Ages 21-28)",
	"VIP (Ages 28-40+)",
}

// IsValidTicketType reports whether t is one of TicketTypes, matched exactly
func IsValidTicketType(t string) bool {
	for _, v := range TicketTypes {
		if v == t {
			return true
		}
	}
	return false
}

// TicketTypeList renders TicketTypes for error messages
func TicketTypeList() string {
	return strings.Join(TicketTypes, ", ")
}

// Validate checks the fields required to store a pending row
func (p *Payment) Validate() error {
	if p.PhoneNumber == "" {
		return errors.New("phone_number is required")
	}
	if p.Amount <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if p.CheckoutRequestID == "" {
		return errors.New("checkout_request_id is required")
	}
	if !IsValidTicketType(p.TicketType) {
		return errors.New("invalid ticket type")
	}
	return nil
}

// IsPending reports whether the row is still waiting for its callback
func (p *Payment) IsPending() bool {
	return p.Status == StatusPending
}

// IsCompleted reports whether the payment settled successfully
func (p *Payment) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// IsFailed reports whether the payment settled unsuccessfully
func (p *Payment) IsFailed() bool {
	return p.Status == StatusFailed
}
