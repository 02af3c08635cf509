package models

import "time"

// Points transaction types.
const (
	PointsTypeSettlement   = "settlement"
	PointsTypeReferral     = "referral"
	PointsTypeSpend        = "spend"
	PointsTypeManual       = "manual"
	PointsTypeManualAdjust = "manual_adjust"
)

// Points transaction directions.
const (
	PointsDirectionCredit = "credit"
	PointsDirectionDebit  = "debit"
)

// PointsTransaction is an immutable, append-only ledger entry. The sum of
// signed amounts for a member always equals their account balance.
type PointsTransaction struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MemberID   uint      `gorm:"not null;index;uniqueIndex:uniq_points_txn_type_member_order,priority:2" json:"member_id"`
	Type       string    `gorm:"type:varchar(20);not null;index;uniqueIndex:uniq_points_txn_type_member_order,priority:1" json:"type"`
	Direction  string    `gorm:"type:varchar(10);not null" json:"direction"`
	Amount     int64     `gorm:"not null" json:"amount"`
	Origin     string    `gorm:"type:varchar(32)" json:"origin"`
	ActivityID *uint     `gorm:"index" json:"activity_id,omitempty"`
	OrderID    *uint     `gorm:"index;uniqueIndex:uniq_points_txn_type_member_order,priority:3" json:"order_id,omitempty"`
	Meta       string    `gorm:"type:json" json:"meta"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// Signed returns the balance delta this entry contributed.
func (t *PointsTransaction) Signed() int64 {
	if t.Direction == PointsDirectionDebit {
		return -t.Amount
	}
	return t.Amount
}
