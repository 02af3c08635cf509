package enrollment

import (
	"errors"

	"github.com/goupclub/goup/app/models"
)

var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrMemberNotFound   = errors.New("member not found")
	ErrMemberDisabled   = errors.New("member is disabled")
	ErrSignupClosed     = errors.New("signup period is over")
	ErrGroupNotAllowed  = errors.New("member group not eligible for this activity")
	ErrAlreadyEnrolled  = errors.New("member already has an open order for this activity")
	ErrVoucherNotUsable = errors.New("voucher is not usable")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderClosed      = errors.New("order is already closed")
	ErrCancelAfterStart = errors.New("cancellation is closed after activity start")
	ErrInvalidAmount    = errors.New("order amount must be a non-negative integer")
)

// SignupRequest carries one enrollment attempt. VoucherAmount is how much of
// the voucher balance to redeem; zero redeems as much as the order allows.
type SignupRequest struct {
	ActivityID    uint  `json:"activity_id" validate:"required"`
	MemberID      uint  `json:"member_id" validate:"required"`
	Amount        int64 `json:"amount" validate:"gte=0"`
	VoucherID     uint  `json:"voucher_id"`
	VoucherAmount int64 `json:"voucher_amount" validate:"gte=0"`
}

// SignupResult reports where the member landed and what they owe.
type SignupResult struct {
	Order      *models.Order `json:"order"`
	Waitlisted bool          `json:"waitlisted"`
}

// CancelResult reports the terminal state the order moved to.
type CancelResult struct {
	Order           *models.Order `json:"order"`
	VoucherRestored int64         `json:"voucher_restored"`
}
