package payment

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidSignature    = errors.New("invalid gateway signature")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotPayable     = errors.New("order is not payable")
	ErrUnsupportedProvider = errors.New("unsupported payment provider")
	ErrOpenIDRequired      = errors.New("openid required for wechat jsapi")
)

// InsufficientPointsError carries the shortfall so clients can show it.
type InsufficientPointsError struct {
	Required  int64 `json:"required"`
	Available int64 `json:"available"`
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: required %d, available %d", e.Required, e.Available)
}

// PointsUsage is the points part of a prepay snapshot. AppliedPoints is
// always PointsCashDeduction * UnitPerCurrency.
type PointsUsage struct {
	MemberID            uint  `json:"member_id"`
	RequestedPoints     int64 `json:"requested_points"`
	AppliedPoints       int64 `json:"applied_points"`
	PointsCashDeduction int64 `json:"points_cash_deduction"`
	UnitPerCurrency     int64 `json:"unit_per_currency"`
}

// PrepayMeta is the JSON snapshot stored on the initiated payment row. The
// notification processor replays it verbatim; nothing is recomputed at
// confirmation time.
type PrepayMeta struct {
	RequestedAt    time.Time   `json:"requested_at"`
	AppliedVoucher int64       `json:"applied_voucher"`
	PointsUsage    PointsUsage `json:"points_usage"`
	PrepayID       string      `json:"prepay_id,omitempty"`
}

// PrepayRequest starts a gateway payment for an order.
type PrepayRequest struct {
	OrderID       uint   `json:"order_id" validate:"required"`
	Provider      string `json:"provider" validate:"required,oneof=wechat alipay"`
	MemberID      uint   `json:"member_id"`
	VoucherAmount int64  `json:"voucher_amount" validate:"gte=0"`
	PointsToUse   int64  `json:"points_to_use" validate:"gte=0"`
	OpenID        string `json:"openid"`
	Description   string `json:"description"`
	Subject       string `json:"subject"`
}

// PrepayResult is the client-facing payment handle plus the amount breakdown.
type PrepayResult struct {
	OrderID        uint              `json:"order_id"`
	PaymentID      uint              `json:"payment_id"`
	Provider       string            `json:"provider"`
	Amount         int64             `json:"amount"`
	OriginalAmount int64             `json:"original_amount"`
	AppliedVoucher int64             `json:"applied_voucher"`
	PointsUsage    PointsUsage       `json:"points_usage"`
	PrepayID       string            `json:"prepay_id,omitempty"`
	PayParams      map[string]string `json:"pay_params,omitempty"`
	PayURL         string            `json:"pay_url,omitempty"`
}

// NotifyResult reports what a notification did. Skipped means the order was
// already settled and the redelivery had no effect.
type NotifyResult struct {
	OrderID   uint `json:"order_id"`
	PaymentID uint `json:"payment_id,omitempty"`
	Skipped   bool `json:"skipped"`
}
