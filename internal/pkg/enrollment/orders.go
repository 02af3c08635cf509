package enrollment

import (
	"github.com/goupclub/goup/app/models"
	"gorm.io/gorm"
)

// OrderFilter narrows the operator order listing. Zero values mean no filter.
type OrderFilter struct {
	ActivityID uint
	MemberID   uint
	Status     string
}

// ListOrders returns orders matching the filter, newest first.
func ListOrders(db *gorm.DB, f OrderFilter, offset, limit int) ([]models.Order, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := db.Model(&models.Order{})
	if f.ActivityID != 0 {
		q = q.Where("activity_id = ?", f.ActivityID)
	}
	if f.MemberID != 0 {
		q = q.Where("member_id = ?", f.MemberID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []models.Order
	err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&orders).Error
	return orders, total, err
}
