package statistics

import (
	"encoding/json"
	"time"

	"github.com/goupclub/goup/app/models"
	"github.com/goupclub/goup/internal/pkg/cache"
	"gorm.io/gorm"
)

const (
	overviewCacheKey = "statistics:orders:overview"
	overviewCacheTTL = 60 * time.Second
)

// Overview is the order and payment aggregate shown to operators.
type Overview struct {
	TotalOrders         int64 `json:"total_orders"`
	PaidOrders          int64 `json:"paid_orders"`
	TotalPaidAmount     int64 `json:"total_paid_amount"`
	TotalRefundedAmount int64 `json:"total_refunded_amount"`
}

// DailyPoint is one day of order volume and paid turnover.
type DailyPoint struct {
	Date       string `json:"date"`
	Orders     int64  `json:"orders"`
	PaidAmount int64  `json:"paid_amount"`
}

// GetOverview computes the order aggregates, served from Redis for a short
// window since operators poll this.
func GetOverview(db *gorm.DB) (*Overview, error) {
	if raw, err := cache.Get(overviewCacheKey); err == nil && raw != "" {
		var o Overview
		if json.Unmarshal([]byte(raw), &o) == nil {
			return &o, nil
		}
	}

	var o Overview
	if err := db.Model(&models.Order{}).Count(&o.TotalOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusPaid).
		Count(&o.PaidOrders).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusPaid).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&o.TotalPaidAmount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusRefunded).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&o.TotalRefundedAmount).Error; err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(&o); err == nil {
		_ = cache.Set(overviewCacheKey, string(raw), overviewCacheTTL)
	}
	return &o, nil
}

// GetDaily returns one point per day in [from, to], zero-filled for days
// without orders. Dates are YYYY-MM-DD.
func GetDaily(db *gorm.DB, from, to time.Time) ([]DailyPoint, error) {
	type row struct {
		D      string
		Cnt    int64
		Amount int64
	}

	var orderRows []row
	if err := db.Model(&models.Order{}).
		Select("DATE(created_at) AS d, COUNT(*) AS cnt").
		Where("DATE(created_at) BETWEEN ? AND ?", from.Format("2006-01-02"), to.Format("2006-01-02")).
		Group("DATE(created_at)").
		Scan(&orderRows).Error; err != nil {
		return nil, err
	}
	var paidRows []row
	if err := db.Model(&models.Order{}).
		Select("DATE(paid_at) AS d, COALESCE(SUM(amount),0) AS amount").
		Where("status = ? AND DATE(paid_at) BETWEEN ? AND ?",
			models.OrderStatusPaid, from.Format("2006-01-02"), to.Format("2006-01-02")).
		Group("DATE(paid_at)").
		Scan(&paidRows).Error; err != nil {
		return nil, err
	}

	byDate := make(map[string]*DailyPoint)
	for _, r := range orderRows {
		byDate[r.D] = &DailyPoint{Date: r.D, Orders: r.Cnt}
	}
	for _, r := range paidRows {
		if p, ok := byDate[r.D]; ok {
			p.PaidAmount = r.Amount
		} else {
			byDate[r.D] = &DailyPoint{Date: r.D, PaidAmount: r.Amount}
		}
	}

	var out []DailyPoint
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		if p, ok := byDate[key]; ok {
			out = append(out, *p)
		} else {
			out = append(out, DailyPoint{Date: key})
		}
	}
	return out, nil
}
