package models

import "time"

// PaymentError reasons recorded to the error sink.
const (
	PaymentErrorInvalidSignature = "invalid_signature"
	PaymentErrorPrepayFailed     = "prepay_error"
	PaymentErrorNotifyFailed     = "notify_error"
)

// PaymentError is a persistent record of a failed or rejected gateway
// interaction, keyed by provider and order for operator review.
type PaymentError struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Provider  string    `gorm:"type:varchar(20);not null;index" json:"provider"`
	OrderID   *uint     `gorm:"index" json:"order_id,omitempty"`
	Reason    string    `gorm:"type:varchar(100);not null" json:"reason"`
	Detail    string    `gorm:"type:text" json:"detail"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
