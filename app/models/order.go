package models

import (
	"encoding/json"
	"time"
)

// Order status values. Transitions are one-directional:
// created -> paid -> refunded, created -> canceled, waitlist -> paid,
// waitlist -> canceled. A paid, refunded or canceled order is never reopened.
const (
	OrderStatusCreated  = "created"
	OrderStatusWaitlist = "waitlist"
	OrderStatusPaid     = "paid"
	OrderStatusRefunded = "refunded"
	OrderStatusCanceled = "canceled"
)

// Order records an enrollment and the money owed for it.
// Amount is the final payable in integer currency units after discounts.
type Order struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ActivityID     uint       `gorm:"not null;index" json:"activity_id"`
	MemberID       uint       `gorm:"not null;index" json:"member_id"`
	Amount         int64      `gorm:"not null;default:0" json:"amount"`
	Currency       string     `gorm:"type:varchar(10);default:'CNY'" json:"currency"`
	Status         string     `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod  string     `gorm:"type:varchar(20)" json:"payment_method"`
	TransactionID  string     `gorm:"type:varchar(100)" json:"transaction_id"`
	DiscountAmount int64      `gorm:"not null;default:0" json:"discount_amount"`
	VoucherApplied string     `gorm:"type:json" json:"voucher_applied"` // discount + voucher usage snapshot
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	PaidAt         *time.Time `gorm:"type:datetime" json:"paid_at,omitempty"`
	RefundAt       *time.Time `gorm:"type:datetime" json:"refund_at,omitempty"`
}

// VoucherUsage is the member-voucher portion of an order's discount snapshot.
type VoucherUsage struct {
	VoucherID  uint  `json:"voucher_id"`
	UsedAmount int64 `json:"used_amount"`
}

// AppliedDiscount is the JSON shape stored in Order.VoucherApplied.
type AppliedDiscount struct {
	Rate           float64       `json:"rate,omitempty"`
	MaxDiscount    int64         `json:"max_discount,omitempty"`
	MinAmount      int64         `json:"min_amount,omitempty"`
	OriginalAmount int64         `json:"original_amount"`
	VoucherUsage   *VoucherUsage `json:"voucher_usage,omitempty"`
}

// AppliedDiscountSnapshot parses the VoucherApplied column, returning nil for
// empty or malformed snapshots.
func (o *Order) AppliedDiscountSnapshot() *AppliedDiscount {
	if o.VoucherApplied == "" {
		return nil
	}
	var snap AppliedDiscount
	if err := json.Unmarshal([]byte(o.VoucherApplied), &snap); err != nil {
		return nil
	}
	return &snap
}

// Closed reports whether the order reached a terminal state.
func (o *Order) Closed() bool {
	return o.Status == OrderStatusRefunded || o.Status == OrderStatusCanceled
}
