package payment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment is one STK push attempt. The row is created pending after Daraja
// accepts the push and is settled exactly once by the callback.
type Payment struct {
	ID                 string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PhoneNumber        string    `gorm:"type:varchar(15);not null;index:idx_payments_phone_created,priority:1" json:"phoneNumber"`
	Amount             int64     `gorm:"not null" json:"amount"`
	TicketType         string    `gorm:"type:varchar(64);not null" json:"ticketType"`
	Email              *string   `gorm:"type:varchar(255)" json:"email,omitempty"`
	MerchantRequestID  string    `gorm:"type:varchar(64)" json:"merchantRequestId"`
	CheckoutRequestID  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"checkoutRequestId"`
	Status             Status    `gorm:"type:varchar(20);index;not null;default:pending" json:"status"`
	ResultCode         *int      `json:"resultCode,omitempty"`
	ResultDesc         *string   `gorm:"type:varchar(255)" json:"resultDesc,omitempty"`
	MpesaReceiptNumber *string   `gorm:"type:varchar(32)" json:"mpesaReceiptNumber,omitempty"`
	TransactionDate    *string   `gorm:"type:varchar(14)" json:"transactionDate,omitempty"`
	CreatedAt          time.Time `gorm:"not null;index:idx_payments_phone_created,priority:2" json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// TableName pins the table name
func (Payment) TableName() string {
	return "payments"
}

// BeforeCreate assigns the id and validates the row
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	return p.Validate()
}
