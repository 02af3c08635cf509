package payment

import (
	"errors"

	"github.com/goupclub/goup/app/models"
	"github.com/goupclub/goup/internal/pkg/points"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the payment service. Points
// returns a ledger repository bound to the same transaction so order and
// ledger writes commit together.
type Repository interface {
	Transact(fn func(Repository) error) error
	Points() points.Repository

	GetOrder(id uint) (*models.Order, error)
	GetOrderForUpdate(id uint) (*models.Order, error)
	SaveOrder(o *models.Order) error
	FindLatestInitiatedPayment(orderID uint) (*models.Payment, error)
	CreatePayment(p *models.Payment) error
	SavePayment(p *models.Payment) error
	CreateVoucher(v *models.MemberVoucher) error
	CreatePaymentError(e *models.PaymentError) error
	ListPaymentErrors(offset, limit int) ([]models.PaymentError, int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transact(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) Points() points.Repository {
	return points.NewRepository(r.db)
}

func (r *gormRepository) GetOrder(id uint) (*models.Order, error) {
	var o models.Order
	err := r.db.First(&o, id).Error
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

func (r *gormRepository) SaveOrder(o *models.Order) error {
	return r.db.Save(o).Error
}

func (r *gormRepository) FindLatestInitiatedPayment(orderID uint) (*models.Payment, error) {
	var p models.Payment
	err := r.db.
		Where("order_id = ? AND status = ?", orderID, models.PaymentStatusInitiated).
		Order("id DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) CreatePayment(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) SavePayment(p *models.Payment) error {
	return r.db.Save(p).Error
}

func (r *gormRepository) CreateVoucher(v *models.MemberVoucher) error {
	return r.db.Create(v).Error
}

func (r *gormRepository) CreatePaymentError(e *models.PaymentError) error {
	return r.db.Create(e).Error
}

func (r *gormRepository) ListPaymentErrors(offset, limit int) ([]models.PaymentError, int64, error) {
	var total int64
	q := r.db.Model(&models.PaymentError{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var errs []models.PaymentError
	err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&errs).Error
	return errs, total, err
}
