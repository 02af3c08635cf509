package voucher

import (
	"testing"

	"github.com/goupclub/goup/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDeduction(t *testing.T) {
	tests := []struct {
		name        string
		amount      int64
		balance     int64
		cfg         DeductionConfig
		wantApplied int64
		wantPayable int64
	}{
		{
			name:        "half rate caps applied at half the amount",
			amount:      300,
			balance:     200,
			cfg:         DeductionConfig{DiscountRate: 0.5},
			wantApplied: 150,
			wantPayable: 150,
		},
		{
			name:        "below minimum amount applies nothing",
			amount:      180,
			balance:     500,
			cfg:         DeductionConfig{DiscountRate: 0.5, MinAmount: 200},
			wantApplied: 0,
			wantPayable: 180,
		},
		{
			name:        "absolute cap tighter than rate cap",
			amount:      250,
			balance:     100,
			cfg:         DeductionConfig{DiscountRate: 0.3, MaxDiscount: 60},
			wantApplied: 60,
			wantPayable: 190,
		},
		{
			name:        "balance is the binding limit",
			amount:      300,
			balance:     40,
			cfg:         DeductionConfig{DiscountRate: 0.5},
			wantApplied: 40,
			wantPayable: 260,
		},
		{
			name:        "no caps configured spends balance up to the amount",
			amount:      120,
			balance:     500,
			cfg:         DeductionConfig{},
			wantApplied: 500,
			wantPayable: 0,
		},
		{
			name:        "zero balance applies nothing",
			amount:      300,
			balance:     0,
			cfg:         DeductionConfig{DiscountRate: 0.5},
			wantApplied: 0,
			wantPayable: 300,
		},
		{
			name:        "non-positive amount yields zero payable",
			amount:      -5,
			balance:     200,
			cfg:         DeductionConfig{DiscountRate: 0.5},
			wantApplied: 0,
			wantPayable: 0,
		},
		{
			name:        "negative rate treated as no rate cap",
			amount:      100,
			balance:     30,
			cfg:         DeductionConfig{DiscountRate: -1},
			wantApplied: 30,
			wantPayable: 70,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDeduction(tt.amount, tt.balance, tt.cfg)
			assert.Equal(t, tt.wantApplied, got.AppliedVoucher, "applied")
			assert.Equal(t, tt.wantPayable, got.FinalPayable, "payable")
		})
	}
}

func TestComputeDeductionNeverNegative(t *testing.T) {
	for amount := int64(0); amount <= 400; amount += 37 {
		for balance := int64(0); balance <= 600; balance += 53 {
			got := ComputeDeduction(amount, balance, DeductionConfig{DiscountRate: 0.5, MaxDiscount: 60, MinAmount: 50})
			assert.GreaterOrEqual(t, got.AppliedVoucher, int64(0))
			assert.GreaterOrEqual(t, got.FinalPayable, int64(0))
			assert.LessOrEqual(t, got.AppliedVoucher, balance)
		}
	}
}

func TestGlobalDiscount(t *testing.T) {
	assert.Equal(t, int64(60), GlobalDiscount(250, 0.3, 60))
	assert.Equal(t, int64(75), GlobalDiscount(250, 0.3, 100))
	assert.Equal(t, int64(0), GlobalDiscount(250, 0.3, 0), "zero cap disables the discount")
	assert.Equal(t, int64(0), GlobalDiscount(250, 0, 60))
	assert.Equal(t, int64(0), GlobalDiscount(0, 0.3, 60))
	assert.Equal(t, int64(100), GlobalDiscount(100, 2.0, 500), "discount never exceeds the amount")
}

func TestSelectCategoryRule(t *testing.T) {
	rules := []models.CategoryRule{
		{CategoryID: 1, DiscountRate: 0.1, MaxDiscount: 100},
		{CategoryID: 2, DiscountRate: 0.5, MaxDiscount: 40},
		{CategoryID: 3, DiscountRate: 0.3, MaxDiscount: 100},
	}

	t.Run("largest absolute discount wins", func(t *testing.T) {
		// amount 200: cat1 -> 20, cat2 -> 40 (capped), cat3 -> 60
		rule := SelectCategoryRule(rules, []uint{1, 2, 3}, 200)
		require.NotNil(t, rule)
		assert.Equal(t, uint(3), rule.CategoryID)
	})

	t.Run("only matching categories considered", func(t *testing.T) {
		rule := SelectCategoryRule(rules, []uint{2}, 200)
		require.NotNil(t, rule)
		assert.Equal(t, uint(2), rule.CategoryID)
	})

	t.Run("no category overlap", func(t *testing.T) {
		assert.Nil(t, SelectCategoryRule(rules, []uint{9}, 200))
	})

	t.Run("empty inputs", func(t *testing.T) {
		assert.Nil(t, SelectCategoryRule(nil, []uint{1}, 200))
		assert.Nil(t, SelectCategoryRule(rules, nil, 200))
	})
}

func TestCashbackAmount(t *testing.T) {
	cfg := &models.VoucherConfig{
		CashbackRate:      0.01,
		CashbackTiers:     `[{"threshold":100,"rate":0.02},{"threshold":500,"rate":0.05}]`,
		SpecialActivities: `[{"activity_id":7,"multiplier":2}]`,
	}

	t.Run("flat rate below all tiers", func(t *testing.T) {
		assert.Equal(t, int64(1), CashbackAmount(80, 0, cfg))
	})

	t.Run("highest met tier wins", func(t *testing.T) {
		assert.Equal(t, int64(4), CashbackAmount(200, 0, cfg))
		assert.Equal(t, int64(30), CashbackAmount(600, 0, cfg))
	})

	t.Run("special activity multiplier", func(t *testing.T) {
		assert.Equal(t, int64(8), CashbackAmount(200, 7, cfg))
	})

	t.Run("unknown activity keeps base rate", func(t *testing.T) {
		assert.Equal(t, int64(4), CashbackAmount(200, 8, cfg))
	})

	t.Run("rounds to nearest unit", func(t *testing.T) {
		// 150 * 0.02 = 3.0, 151 * 0.02 = 3.02 -> 3, 175 * 0.02 = 3.5 -> 4
		assert.Equal(t, int64(3), CashbackAmount(151, 0, cfg))
		assert.Equal(t, int64(4), CashbackAmount(175, 0, cfg))
	})

	t.Run("zero paid or missing config", func(t *testing.T) {
		assert.Equal(t, int64(0), CashbackAmount(0, 0, cfg))
		assert.Equal(t, int64(0), CashbackAmount(100, 0, nil))
	})
}

func TestDeductionConfigFor(t *testing.T) {
	cfg := &models.VoucherConfig{
		DiscountRate:  0.1,
		MaxDiscount:   500,
		MinAmount:     50,
		CategoryRules: `[{"category_id":2,"discount_rate":0.5,"max_discount":40}]`,
	}

	t.Run("category rule overrides rate and cap", func(t *testing.T) {
		dc := DeductionConfigFor(cfg, []uint{2}, 200)
		assert.Equal(t, 0.5, dc.DiscountRate)
		assert.Equal(t, int64(40), dc.MaxDiscount)
		assert.Equal(t, int64(50), dc.MinAmount, "minimum stays global")
	})

	t.Run("no matching rule keeps global config", func(t *testing.T) {
		dc := DeductionConfigFor(cfg, []uint{1}, 200)
		assert.Equal(t, 0.1, dc.DiscountRate)
		assert.Equal(t, int64(500), dc.MaxDiscount)
	})
}
