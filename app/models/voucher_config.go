package models

import (
	"encoding/json"
	"time"
)

// VoucherConfig is the single active discount/cashback configuration. Updates
// append a new row; readers always take the latest row as an immutable
// snapshot for the duration of one operation.
type VoucherConfig struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	DiscountRate      float64   `gorm:"not null;default:0" json:"discount_rate"`
	MaxDiscount       int64     `gorm:"not null;default:0" json:"max_discount"`
	CashbackRate      float64   `gorm:"not null;default:0" json:"cashback_rate"`
	SingleVoucherOnly bool      `gorm:"default:false" json:"single_voucher_only"`
	MinAmount         int64     `gorm:"not null;default:0" json:"min_amount"`
	CategoryRules     string    `gorm:"type:json" json:"category_rules"`
	CashbackTiers     string    `gorm:"type:json" json:"cashback_tiers"`
	SpecialActivities string    `gorm:"type:json" json:"special_activities"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CategoryRule overrides the global discount for activities in one category.
type CategoryRule struct {
	CategoryID   uint    `json:"category_id"`
	DiscountRate float64 `json:"discount_rate"`
	MaxDiscount  int64   `json:"max_discount"`
}

// CashbackTier maps a paid-amount threshold to a cashback rate. The highest
// tier whose threshold is met wins.
type CashbackTier struct {
	Threshold int64   `json:"threshold"`
	Rate      float64 `json:"rate"`
}

// SpecialActivity multiplies the cashback rate for one activity.
type SpecialActivity struct {
	ActivityID uint    `json:"activity_id"`
	Multiplier float64 `json:"multiplier"`
}

// ParsedCategoryRules decodes the CategoryRules column. Malformed JSON counts
// as no rules; the global rate then applies.
func (c *VoucherConfig) ParsedCategoryRules() []CategoryRule {
	if c.CategoryRules == "" {
		return nil
	}
	var rules []CategoryRule
	if err := json.Unmarshal([]byte(c.CategoryRules), &rules); err != nil {
		return nil
	}
	return rules
}

// ParsedCashbackTiers decodes the CashbackTiers column.
func (c *VoucherConfig) ParsedCashbackTiers() []CashbackTier {
	if c.CashbackTiers == "" {
		return nil
	}
	var tiers []CashbackTier
	if err := json.Unmarshal([]byte(c.CashbackTiers), &tiers); err != nil {
		return nil
	}
	return tiers
}

// ParsedSpecialActivities decodes the SpecialActivities column.
func (c *VoucherConfig) ParsedSpecialActivities() []SpecialActivity {
	if c.SpecialActivities == "" {
		return nil
	}
	var specials []SpecialActivity
	if err := json.Unmarshal([]byte(c.SpecialActivities), &specials); err != nil {
		return nil
	}
	return specials
}
