package models

import "time"

// Payment providers understood by the gateway adapter.
const (
	PaymentProviderWechat   = "wechat"
	PaymentProviderAlipay   = "alipay"
	PaymentProviderPoints   = "points"
	PaymentProviderInternal = "internal"
)

// Payment status values. One initiated row precedes at most one paid row
// per order.
const (
	PaymentStatusInitiated = "initiated"
	PaymentStatusPaid      = "paid"
	PaymentStatusRefunded  = "refunded"
)

// Payment is one money movement attempt against an order. The Meta column of
// an initiated row carries the prepay snapshot (voucher/points usage) that the
// notification processor replays on confirmation.
type Payment struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	OrderID       uint       `gorm:"not null;index" json:"order_id"`
	Provider      string     `gorm:"type:varchar(20);not null;index" json:"provider"`
	ProviderTxnID string     `gorm:"type:varchar(100);index" json:"provider_txn_id"`
	Status        string     `gorm:"type:varchar(20);not null;index" json:"status"`
	Amount        int64      `gorm:"not null;default:0" json:"amount"`
	Meta          string     `gorm:"type:json" json:"meta"`
	PaidAt        *time.Time `gorm:"type:datetime" json:"paid_at,omitempty"`
	RefundAt      *time.Time `gorm:"type:datetime" json:"refund_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
