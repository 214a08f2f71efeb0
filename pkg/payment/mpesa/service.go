// Package mpesa orchestrates M-Pesa STK push payments: initiation against
// Daraja, callback reconciliation and status reads over the payment ledger.
package mpesa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"spark/app/models/payment"
	"spark/pkg/daraja"
	"spark/pkg/limiter"
	"spark/pkg/logger"
	"spark/pkg/payment/types"
)

// MissingReceiptDesc prefixes the stored description of a success callback
// that arrived without a receipt number
const MissingReceiptDesc = "Success reported without MpesaReceiptNumber"

// Gateway is the part of the Daraja client the service needs
type Gateway interface {
	Config() daraja.Config
	Token(ctx context.Context) (string, error)
	STKPush(ctx context.Context, token string, req daraja.PushRequest) (*daraja.STKPushResponse, error)
}

// Limiter decides whether a phone may start another attempt
type Limiter interface {
	Allow(ctx context.Context, phone string) (limiter.Decision, error)
}

// Service implements types.Service for M-Pesa
type Service struct {
	gateway  Gateway
	repo     types.Repository
	limiter  Limiter
	notifier types.Notifier
}

var _ types.Service = (*Service)(nil)

// NewService wires the service. notifier may be nil, in which case no
// receipts are sent.
func NewService(gateway Gateway, repo types.Repository, lim Limiter, notifier types.Notifier) *Service {
	return &Service{
		gateway:  gateway,
		repo:     repo,
		limiter:  lim,
		notifier: notifier,
	}
}

// CreatePayment sends the push prompt and records a pending row once Daraja
// has accepted it. Nothing is stored for a push Daraja refused.
func (s *Service) CreatePayment(ctx context.Context, req *types.Request) (*types.Result, error) {
	decision, err := s.limiter.Allow(ctx, req.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrLedgerRead, err)
	}
	if !decision.Allowed {
		logger.WarnString("Mpesa", "RateLimit", fmt.Sprintf("phone %s has %d attempts in window", req.PhoneNumber, decision.Count))
		return nil, &types.RateLimitError{RetryAfter: decision.RetryAfter}
	}

	if missing := s.gateway.Config().Missing(); len(missing) > 0 {
		logger.ErrorString("Mpesa", "Config", "missing "+strings.Join(missing, ", "))
		return nil, fmt.Errorf("%w: missing %s", types.ErrConfiguration, strings.Join(missing, ", "))
	}

	token, err := s.gateway.Token(ctx)
	if err != nil {
		logger.ErrorString("Mpesa", "Token", err.Error())
		return nil, fmt.Errorf("%w: %v", types.ErrUpstreamAuth, err)
	}

	resp, err := s.gateway.STKPush(ctx, token, daraja.PushRequest{
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
		TicketType:  req.TicketType,
	})
	if err != nil {
		var apiErr *daraja.APIError
		if errors.As(err, &apiErr) {
			logger.WarnString("Mpesa", "STKPush", apiErr.Error())
			return nil, &types.UpstreamRejection{Code: apiErr.Code, Description: apiErr.Message}
		}
		logger.ErrorString("Mpesa", "STKPush", err.Error())
		return nil, fmt.Errorf("%w: %v", types.ErrUpstreamUnavailable, err)
	}

	p := &payment.Payment{
		PhoneNumber:       req.PhoneNumber,
		Amount:            req.Amount,
		TicketType:        req.TicketType,
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
		Status:            payment.StatusPending,
	}
	if req.Email != "" {
		email := req.Email
		p.Email = &email
	}

	if err := s.repo.Create(ctx, p); err != nil {
		// the customer has a prompt on their phone that this ledger cannot reconcile
		logger.Error("Mpesa",
			zap.String("event", "ledger insert failed after push accepted"),
			zap.String("checkout_request_id", resp.CheckoutRequestID),
			zap.String("merchant_request_id", resp.MerchantRequestID),
			zap.String("phone", req.PhoneNumber),
			zap.Int64("amount", req.Amount),
			zap.String("ticket_type", req.TicketType),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", types.ErrLedgerWrite, err)
	}

	logger.InfoString("Mpesa", "CreatePayment", fmt.Sprintf("checkout %s pending for %s", p.CheckoutRequestID, p.PhoneNumber))

	return &types.Result{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

// QueryStatus returns the ledger status of a checkout
func (s *Service) QueryStatus(ctx context.Context, checkoutRequestID string) (payment.Status, error) {
	p, err := s.repo.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		if errors.Is(err, types.ErrPaymentNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", types.ErrLedgerRead, err)
	}
	return p.Status, nil
}

// HandleNotify settles a pending row from a callback. A row is settled at
// most once; repeats and late deliveries are reported as AlreadyProcessed.
func (s *Service) HandleNotify(ctx context.Context, cb *types.Callback) (*types.NotifyResult, error) {
	p, err := s.repo.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, types.ErrPaymentNotFound) {
			logger.Warn("Mpesa",
				zap.String("tag", "SECURITY"),
				zap.String("event", "callback for unknown checkout"),
				zap.String("checkout_request_id", cb.CheckoutRequestID),
				zap.String("merchant_request_id", cb.MerchantRequestID),
			)
			return nil, types.ErrUnknownTransaction
		}
		return nil, fmt.Errorf("%w: %v", types.ErrLedgerRead, err)
	}

	if p.Status.IsTerminal() {
		logger.DebugString("Mpesa", "Callback", fmt.Sprintf("checkout %s already %s", p.CheckoutRequestID, p.Status))
		return &types.NotifyResult{Status: p.Status, AlreadyProcessed: true}, nil
	}

	settlement := types.Settlement{
		Status:     payment.StatusFailed,
		ResultCode: cb.ResultCode,
		ResultDesc: cb.ResultDesc,
	}
	switch {
	case cb.Succeeded() && cb.ReceiptNumber == "":
		// a completed row always carries its receipt; this one needs manual reconciliation
		settlement.ResultDesc = MissingReceiptDesc + ": " + cb.ResultDesc
		logger.Error("Mpesa",
			zap.String("event", "success callback without receipt number"),
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.String("merchant_request_id", cb.MerchantRequestID),
			zap.String("phone", cb.PhoneNumber),
			zap.Int64("amount", cb.Amount),
		)
	case cb.Succeeded():
		settlement.Status = payment.StatusCompleted
		receipt := cb.ReceiptNumber
		settlement.ReceiptNumber = &receipt
		if cb.TransactionDate != "" {
			date := cb.TransactionDate
			settlement.TransactionDate = &date
		}
		auditConfirmation(p, cb)
	}

	updated, err := s.repo.Settle(ctx, cb.CheckoutRequestID, settlement)
	if err != nil {
		logger.Error("Mpesa",
			zap.String("event", "settle failed"),
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.Int("result_code", cb.ResultCode),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", types.ErrLedgerWrite, err)
	}
	if !updated {
		// a concurrent delivery settled it between the read and the update
		status := settlement.Status
		if current, err := s.repo.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID); err == nil {
			status = current.Status
		}
		return &types.NotifyResult{Status: status, AlreadyProcessed: true}, nil
	}

	logger.InfoString("Mpesa", "Callback", fmt.Sprintf("checkout %s settled %s (code %d: %s)",
		cb.CheckoutRequestID, settlement.Status, cb.ResultCode, cb.ResultDesc))

	if settlement.Status == payment.StatusCompleted && p.Email != nil && *p.Email != "" {
		s.sendReceipt(ctx, p, cb)
	}

	return &types.NotifyResult{Status: settlement.Status}, nil
}

// sendReceipt hands the receipt to the notifier. Failures never affect the settlement.
func (s *Service) sendReceipt(ctx context.Context, p *payment.Payment, cb *types.Callback) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyReceipt(ctx, &types.Receipt{
		Email:           *p.Email,
		TicketType:      p.TicketType,
		Amount:          p.Amount,
		MpesaReceipt:    cb.ReceiptNumber,
		PhoneNumber:     p.PhoneNumber,
		TransactionDate: cb.TransactionDate,
	})
	if err != nil {
		logger.WarnString("Mpesa", "Receipt", fmt.Sprintf("checkout %s: %v", p.CheckoutRequestID, err))
	}
}

// auditConfirmation logs when Daraja confirms a different amount or phone than was requested
func auditConfirmation(p *payment.Payment, cb *types.Callback) {
	if cb.Amount != 0 && cb.Amount != p.Amount {
		logger.Warn("Mpesa",
			zap.String("event", "confirmed amount differs"),
			zap.String("checkout_request_id", p.CheckoutRequestID),
			zap.Int64("requested", p.Amount),
			zap.Int64("confirmed", cb.Amount),
		)
	}
	if cb.PhoneNumber != "" && cb.PhoneNumber != p.PhoneNumber {
		logger.Warn("Mpesa",
			zap.String("event", "confirmed phone differs"),
			zap.String("checkout_request_id", p.CheckoutRequestID),
			zap.String("requested", p.PhoneNumber),
			zap.String("confirmed", cb.PhoneNumber),
		)
	}
}
