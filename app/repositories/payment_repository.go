package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"spark/app/models/payment"
	"spark/pkg/payment/types"
)

// PaymentRepository is the gorm backed payment ledger
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a repository over db
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{
		db: db,
	}
}

// Create inserts a new row
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// GetByCheckoutRequestID loads a row by its reconciliation key.
// A missing row is reported as types.ErrPaymentNotFound.
func (r *PaymentRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CountByPhoneSince counts attempts for a phone number created at or after since
func (r *PaymentRepository) CountByPhoneSince(ctx context.Context, phoneNumber string, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("phone_number = ? AND created_at >= ?", phoneNumber, since).
		Count(&total).Error
	return total, err
}

// Settle applies s to the row only while it is still pending. The status
// predicate lives in the UPDATE itself, so of two concurrent deliveries at
// most one sees a row affected.
func (r *PaymentRepository) Settle(ctx context.Context, checkoutRequestID string, s types.Settlement) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&payment.Payment{}).
		Where("checkout_request_id = ? AND status = ?", checkoutRequestID, payment.StatusPending).
		Updates(map[string]interface{}{
			"status":               s.Status,
			"result_code":          s.ResultCode,
			"result_desc":          s.ResultDesc,
			"mpesa_receipt_number": s.ReceiptNumber,
			"transaction_date":     s.TransactionDate,
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Ping checks the underlying connection
func (r *PaymentRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
