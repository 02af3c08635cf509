package enrollment

import (
	"errors"

	"github.com/goupclub/goup/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the enrollment service. Methods
// suffixed ForUpdate take a row lock and must run inside Transact.
type Repository interface {
	Transact(fn func(Repository) error) error

	GetActivityForUpdate(id uint) (*models.Activity, error)
	SaveActivity(a *models.Activity) error
	GetMember(id uint) (*models.Member, error)
	FindOpenOrder(activityID, memberID uint) (*models.Order, error)
	GetOrderForUpdate(id uint) (*models.Order, error)
	CreateOrder(o *models.Order) error
	SaveOrder(o *models.Order) error
	GetVoucherForUpdate(id uint) (*models.MemberVoucher, error)
	SaveVoucher(v *models.MemberVoucher) error
	CreatePayment(p *models.Payment) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an enrollment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transact(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetActivityForUpdate(id uint) (*models.Activity, error) {
	var a models.Activity
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *gormRepository) SaveActivity(a *models.Activity) error {
	return r.db.Save(a).Error
}

func (r *gormRepository) GetMember(id uint) (*models.Member, error) {
	var m models.Member
	err := r.db.First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) FindOpenOrder(activityID, memberID uint) (*models.Order, error) {
	var o models.Order
	err := r.db.
		Where("activity_id = ? AND member_id = ? AND status IN ?",
			activityID, memberID,
			[]string{models.OrderStatusCreated, models.OrderStatusWaitlist, models.OrderStatusPaid}).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *gormRepository) GetOrderForUpdate(id uint) (*models.Order, error) {
	var o models.Order
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *gormRepository) CreateOrder(o *models.Order) error {
	return r.db.Create(o).Error
}

func (r *gormRepository) SaveOrder(o *models.Order) error {
	return r.db.Save(o).Error
}

func (r *gormRepository) GetVoucherForUpdate(id uint) (*models.MemberVoucher, error) {
	var v models.MemberVoucher
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&v, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *gormRepository) SaveVoucher(v *models.MemberVoucher) error {
	return r.db.Save(v).Error
}

func (r *gormRepository) CreatePayment(p *models.Payment) error {
	return r.db.Create(p).Error
}
