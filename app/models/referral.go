package models

import "time"

// InviteCode is a member's shareable referral code, created on first read.
type InviteCode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MemberID  uint      `gorm:"not null;uniqueIndex" json:"member_id"`
	Code      string    `gorm:"type:varchar(16);not null;uniqueIndex" json:"code"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Referral binds an invitee to the inviter whose code they used. An invitee
// can be bound at most once.
type Referral struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	InviterID uint      `gorm:"not null;index" json:"inviter_id"`
	InviteeID uint      `gorm:"not null;uniqueIndex" json:"invitee_id"`
	Channel   string    `gorm:"type:varchar(32)" json:"channel"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
