package voucher

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/goupclub/goup/app/models"
	"github.com/goupclub/goup/internal/pkg/cache"
	"gorm.io/gorm"
)

const (
	configCacheKey = "voucher:config:latest"
	configCacheTTL = 30 * time.Second
)

// ConfigStore loads and updates the voucher configuration. Updates append a
// new row so concurrent readers keep their snapshot.
type ConfigStore struct {
	db *gorm.DB
}

func NewConfigStore(db *gorm.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

// Latest returns the newest configuration row, served from Redis for a short
// window to keep the hot payment path off the database. A missing row yields
// an all-zero config, which disables discounts and cashback.
func (s *ConfigStore) Latest() (*models.VoucherConfig, error) {
	if raw, err := cache.Get(configCacheKey); err == nil && raw != "" {
		var cfg models.VoucherConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err == nil {
			return &cfg, nil
		}
	}

	var cfg models.VoucherConfig
	err := s.db.Order("id DESC").First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.VoucherConfig{}, nil
	}
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(&cfg); err == nil {
		_ = cache.Set(configCacheKey, string(raw), configCacheTTL)
	}
	return &cfg, nil
}

// Update appends a new configuration row and drops the cached snapshot so the
// next reader sees it immediately.
func (s *ConfigStore) Update(cfg *models.VoucherConfig) error {
	cfg.ID = 0
	if err := s.db.Create(cfg).Error; err != nil {
		return err
	}
	_ = cache.Delete(configCacheKey)
	return nil
}

// DeductionConfigFor resolves the effective deduction parameters for an
// activity: a matching category rule overrides the global rate and cap, the
// minimum amount always comes from the global config.
func DeductionConfigFor(cfg *models.VoucherConfig, categories []uint, amount int64) DeductionConfig {
	dc := DeductionConfig{
		DiscountRate: cfg.DiscountRate,
		MaxDiscount:  cfg.MaxDiscount,
		MinAmount:    cfg.MinAmount,
	}
	if rule := SelectCategoryRule(cfg.ParsedCategoryRules(), categories, amount); rule != nil {
		dc.DiscountRate = rule.DiscountRate
		dc.MaxDiscount = rule.MaxDiscount
	}
	return dc
}
