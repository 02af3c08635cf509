package payment

import (
	"github.com/goupclub/goup/app/models"
	"gorm.io/gorm"
)

// PaymentFilter narrows the operator payment listing. Zero values mean no
// filter.
type PaymentFilter struct {
	OrderID  uint
	Provider string
	Status   string
}

// ListPayments returns payment rows matching the filter, newest first.
func ListPayments(db *gorm.DB, f PaymentFilter, offset, limit int) ([]models.Payment, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := db.Model(&models.Payment{})
	if f.OrderID != 0 {
		q = q.Where("order_id = ?", f.OrderID)
	}
	if f.Provider != "" {
		q = q.Where("provider = ?", f.Provider)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var payments []models.Payment
	err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&payments).Error
	return payments, total, err
}
