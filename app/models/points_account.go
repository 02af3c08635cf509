package models

import "time"

// PointsPerCurrencyUnit is the ledger exchange rate: 10,000 points equal one
// currency unit of order amount.
const PointsPerCurrencyUnit = 10000

// ReferralPointsPerCurrencyUnit is the inviter bonus rate applied during
// settlement.
const ReferralPointsPerCurrencyUnit = 100

// PointsAccount is the per-member points aggregate. Balance never goes
// negative; Locked is reserved for future holds and stays zero in current
// flows. It is the only mutable row of the ledger and is updated in lockstep
// with each PointsTransaction insert.
type PointsAccount struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MemberID  uint      `gorm:"not null;uniqueIndex" json:"member_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	Locked    int64     `gorm:"not null;default:0" json:"locked"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Available is the spendable part of the balance.
func (a *PointsAccount) Available() int64 {
	av := a.Balance - a.Locked
	if av < 0 {
		return 0
	}
	return av
}
