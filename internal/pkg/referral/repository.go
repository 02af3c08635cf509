package referral

import (
	"errors"

	"github.com/goupclub/goup/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the referral service. The
// conditional creates rely on the unique indexes on member_id, code and
// invitee_id.
type Repository interface {
	FindCodeByMember(memberID uint) (*models.InviteCode, error)
	FindCodeOwner(code string) (*models.InviteCode, error)
	CreateCodeIfAbsent(c *models.InviteCode) error
	FindReferralByInvitee(inviteeID uint) (*models.Referral, error)
	CreateReferralIfAbsent(r *models.Referral) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a referral repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindCodeByMember(memberID uint) (*models.InviteCode, error) {
	var c models.InviteCode
	err := r.db.Where("member_id = ?", memberID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) FindCodeOwner(code string) (*models.InviteCode, error) {
	var c models.InviteCode
	err := r.db.Where("code = ?", code).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) CreateCodeIfAbsent(c *models.InviteCode) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(c).Error
}

func (r *gormRepository) FindReferralByInvitee(inviteeID uint) (*models.Referral, error) {
	var ref models.Referral
	err := r.db.Where("invitee_id = ?", inviteeID).First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *gormRepository) CreateReferralIfAbsent(ref *models.Referral) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(ref).Error
}
