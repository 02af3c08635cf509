package models

import "time"

// Member voucher sources and statuses.
const (
	VoucherSourceCashback = "cashback"
	VoucherSourcePromo    = "promo"

	VoucherStatusAvailable = "available"
	VoucherStatusUsed      = "used"
)

// MemberVoucher is a member-held discount balance. Balance never exceeds
// Amount; once it reaches zero the voucher flips to used. Cancellation of the
// consuming order restores the used portion and flips it back to available.
type MemberVoucher struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	MemberID  uint       `gorm:"not null;index" json:"member_id"`
	Title     string     `gorm:"type:varchar(100)" json:"title"`
	Source    string     `gorm:"type:varchar(20);not null" json:"source"`
	OrderID   *uint      `gorm:"index" json:"order_id,omitempty"`
	Amount    int64      `gorm:"not null" json:"amount"`
	Balance   int64      `gorm:"not null" json:"balance"`
	Status    string     `gorm:"type:varchar(20);not null;index" json:"status"`
	Meta      string     `gorm:"type:json" json:"meta"`
	ExpireAt  *time.Time `gorm:"type:datetime" json:"expire_at,omitempty"`
	UsedAt    *time.Time `gorm:"type:datetime" json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

// Usable reports whether the voucher can be redeemed at the given time.
func (v *MemberVoucher) Usable(now time.Time) bool {
	if v.Status != VoucherStatusAvailable || v.Balance <= 0 {
		return false
	}
	return v.ExpireAt == nil || !now.After(*v.ExpireAt)
}
