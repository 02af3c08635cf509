package voucher

import (
	"math"

	"github.com/goupclub/goup/app/models"
)

// DeductionConfig is the slice of the voucher configuration the pure
// deduction computation needs. Amounts are integer minor currency units.
type DeductionConfig struct {
	DiscountRate float64
	MaxDiscount  int64
	MinAmount    int64
}

// Deduction is the result of applying a voucher balance against an amount.
type Deduction struct {
	AppliedVoucher int64
	FinalPayable   int64
}

// ComputeDeduction applies a member voucher balance to an order amount.
//
// Nothing is applied when the amount or balance is non-positive or the amount
// is below the configured minimum. Otherwise the applied portion is capped by
// floor(amount*rate) and by the absolute MaxDiscount; a non-positive cap value
// leaves that cap open.
func ComputeDeduction(amount, voucherBalance int64, cfg DeductionConfig) Deduction {
	if amount <= 0 {
		return Deduction{AppliedVoucher: 0, FinalPayable: 0}
	}
	if voucherBalance <= 0 {
		return Deduction{AppliedVoucher: 0, FinalPayable: amount}
	}
	if amount < cfg.MinAmount {
		return Deduction{AppliedVoucher: 0, FinalPayable: amount}
	}

	rate := cfg.DiscountRate
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		rate = 0
	}
	maxByRate := int64(math.Floor(float64(amount) * rate))

	cap := int64(math.MaxInt64)
	if maxByRate > 0 {
		cap = maxByRate
	}
	if cfg.MaxDiscount > 0 && cfg.MaxDiscount < cap {
		cap = cfg.MaxDiscount
	}

	applied := voucherBalance
	if cap < applied {
		applied = cap
	}
	final := amount - applied
	if final < 0 {
		final = 0
	}
	return Deduction{AppliedVoucher: applied, FinalPayable: final}
}

// GlobalDiscount computes the automatic (non-voucher) discount for an amount
// under a rate and an absolute cap. A non-positive cap disables the discount,
// matching how category rules are configured.
func GlobalDiscount(amount int64, rate float64, maxDiscount int64) int64 {
	if amount <= 0 || rate <= 0 || maxDiscount <= 0 {
		return 0
	}
	d := int64(math.Floor(float64(amount) * rate))
	if d > maxDiscount {
		d = maxDiscount
	}
	if d > amount {
		d = amount
	}
	return d
}

// SelectCategoryRule picks, among the rules matching any of the activity's
// categories, the one yielding the largest absolute discount for the amount.
// Ties on discount keep the earlier rule. Returns nil when no rule matches.
func SelectCategoryRule(rules []models.CategoryRule, categories []uint, amount int64) *models.CategoryRule {
	if len(rules) == 0 || len(categories) == 0 {
		return nil
	}
	catSet := make(map[uint]struct{}, len(categories))
	for _, id := range categories {
		catSet[id] = struct{}{}
	}

	var best *models.CategoryRule
	var bestDiscount int64 = -1
	for i := range rules {
		r := rules[i]
		if _, ok := catSet[r.CategoryID]; !ok {
			continue
		}
		est := GlobalDiscount(amount, r.DiscountRate, r.MaxDiscount)
		if est > bestDiscount {
			best = &rules[i]
			bestDiscount = est
		}
	}
	return best
}

// CashbackAmount sizes the cashback voucher issued after a confirmed payment.
// The highest tier whose threshold is at or below the paid amount sets the
// base rate (falling back to the flat cashback rate), a special-activity
// multiplier scales it, and the result is rounded to the nearest minor unit.
func CashbackAmount(paid int64, activityID uint, cfg *models.VoucherConfig) int64 {
	if paid <= 0 || cfg == nil {
		return 0
	}

	baseRate := cfg.CashbackRate
	var chosen *models.CashbackTier
	for _, t := range cfg.ParsedCashbackTiers() {
		t := t
		if paid >= t.Threshold && t.Rate >= 0 {
			if chosen == nil || t.Threshold > chosen.Threshold {
				chosen = &t
			}
		}
	}
	if chosen != nil {
		baseRate = chosen.Rate
	}

	multiplier := 1.0
	if activityID != 0 {
		for _, s := range cfg.ParsedSpecialActivities() {
			if s.ActivityID == activityID {
				if s.Multiplier > 0 {
					multiplier = s.Multiplier
				}
				break
			}
		}
	}

	amount := int64(math.Round(float64(paid) * baseRate * multiplier))
	if amount < 0 {
		return 0
	}
	return amount
}
