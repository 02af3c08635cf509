package voucher

import (
	"github.com/goupclub/goup/app/models"
	"gorm.io/gorm"
)

// ListMemberVouchers returns a member's vouchers, newest first.
func ListMemberVouchers(db *gorm.DB, memberID uint, offset, limit int) ([]models.MemberVoucher, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var total int64
	q := db.Model(&models.MemberVoucher{}).Where("member_id = ?", memberID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var vouchers []models.MemberVoucher
	err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&vouchers).Error
	return vouchers, total, err
}

// IssuePromo creates a promo voucher for a member, an operator action.
func IssuePromo(db *gorm.DB, memberID uint, title string, amount int64) (*models.MemberVoucher, error) {
	v := &models.MemberVoucher{
		MemberID: memberID,
		Title:    title,
		Source:   models.VoucherSourcePromo,
		Amount:   amount,
		Balance:  amount,
		Status:   models.VoucherStatusAvailable,
	}
	if err := db.Create(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}
