package points

import "errors"

var (
	// ErrInsufficientPoints is returned when a spend needs more points than
	// the member's available balance.
	ErrInsufficientPoints = errors.New("insufficient points balance")

	// ErrInvalidAmount is returned for zero or negative ledger amounts.
	ErrInvalidAmount = errors.New("points amount must be positive")
)
