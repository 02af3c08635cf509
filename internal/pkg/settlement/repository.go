package settlement

import (
	"errors"
	"time"

	"github.com/goupclub/goup/app/models"
	"github.com/goupclub/goup/internal/pkg/points"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the settlement runner.
type Repository interface {
	Points() points.Repository
	GetActivity(id uint) (*models.Activity, error)
	ListPaidOrders(activityID uint, start, end *time.Time) ([]models.Order, error)
	FindInviter(inviteeID uint) (uint, error)
	CreateJob(job *models.SettlementJob) error
	SaveJob(job *models.SettlementJob) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a settlement repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Points() points.Repository {
	return points.NewRepository(r.db)
}

func (r *gormRepository) GetActivity(id uint) (*models.Activity, error) {
	var a models.Activity
	err := r.db.First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *gormRepository) ListPaidOrders(activityID uint, start, end *time.Time) ([]models.Order, error) {
	q := r.db.Where("activity_id = ? AND status = ?", activityID, models.OrderStatusPaid)
	if start != nil {
		q = q.Where("paid_at >= ?", *start)
	}
	if end != nil {
		q = q.Where("paid_at <= ?", *end)
	}
	var orders []models.Order
	err := q.Order("id ASC").Find(&orders).Error
	return orders, err
}

func (r *gormRepository) FindInviter(inviteeID uint) (uint, error) {
	var ref models.Referral
	err := r.db.Where("invitee_id = ?", inviteeID).First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ref.InviterID, nil
}

func (r *gormRepository) CreateJob(job *models.SettlementJob) error {
	return r.db.Create(job).Error
}

func (r *gormRepository) SaveJob(job *models.SettlementJob) error {
	return r.db.Save(job).Error
}
