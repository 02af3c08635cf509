package points

import (
	"errors"

	"github.com/goupclub/goup/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the points ledger service.
// Apply and ApplyOnce are atomic: the transaction row and the account balance
// change together or not at all.
type Repository interface {
	GetOrCreateAccount(memberID uint) (*models.PointsAccount, error)
	GetAccountForUpdate(memberID uint) (*models.PointsAccount, error)
	Apply(txn *models.PointsTransaction) error
	ApplyOnce(txn *models.PointsTransaction) (bool, error)
	FindByTypeAndOrder(txnType string, memberID, orderID uint) (*models.PointsTransaction, error)
	ListTransactions(memberID uint, offset, limit int) ([]models.PointsTransaction, int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a points repository backed by GORM. Pass a transaction
// handle to make ledger writes part of a larger unit of work.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetOrCreateAccount(memberID uint) (*models.PointsAccount, error) {
	var account models.PointsAccount
	err := r.db.Where("member_id = ?", memberID).First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account = models.PointsAccount{MemberID: memberID}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}},
		DoNothing: true,
	}).Create(&account).Error; err != nil {
		return nil, err
	}
	err = r.db.Where("member_id = ?", memberID).First(&account).Error
	return &account, err
}

// GetAccountForUpdate reads the account row FOR UPDATE, creating it first if
// absent. Callers run inside a transaction; the lock serializes concurrent
// spends for the same member until that transaction commits.
func (r *gormRepository) GetAccountForUpdate(memberID uint) (*models.PointsAccount, error) {
	var account models.PointsAccount
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("member_id = ?", memberID).
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account = models.PointsAccount{MemberID: memberID}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}},
		DoNothing: true,
	}).Create(&account).Error; err != nil {
		return nil, err
	}
	err = r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("member_id = ?", memberID).
		First(&account).Error
	return &account, err
}

// Apply inserts the ledger entry and moves the account balance by its signed
// amount inside one transaction. The account row is locked first so concurrent
// writers serialize; a debit never takes the balance below zero.
func (r *gormRepository) Apply(txn *models.PointsTransaction) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return applyLocked(tx, txn)
	})
}

// ApplyOnce behaves like Apply but refuses to insert a second entry with the
// same type, member and order. It reports whether the entry was created.
// The existence check is a plain read; the unique index on
// (type, member_id, order_id) backstops concurrent callers that both miss.
func (r *gormRepository) ApplyOnce(txn *models.PointsTransaction) (bool, error) {
	if txn.OrderID == nil {
		return false, errors.New("ApplyOnce requires an order id")
	}
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.PointsTransaction
		err := tx.Where("type = ? AND member_id = ? AND order_id = ?", txn.Type, txn.MemberID, *txn.OrderID).
			First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		created = true
		return applyLocked(tx, txn)
	})
	return created, err
}

func applyLocked(tx *gorm.DB, txn *models.PointsTransaction) error {
	var account models.PointsAccount
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("member_id = ?", txn.MemberID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account = models.PointsAccount{MemberID: txn.MemberID}
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if err := tx.Create(txn).Error; err != nil {
		return err
	}

	balance := account.Balance + txn.Signed()
	if balance < 0 {
		balance = 0
	}
	return tx.Model(&models.PointsAccount{}).
		Where("id = ?", account.ID).
		Update("balance", balance).Error
}

func (r *gormRepository) FindByTypeAndOrder(txnType string, memberID, orderID uint) (*models.PointsTransaction, error) {
	var txn models.PointsTransaction
	err := r.db.Where("type = ? AND member_id = ? AND order_id = ?", txnType, memberID, orderID).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *gormRepository) ListTransactions(memberID uint, offset, limit int) ([]models.PointsTransaction, int64, error) {
	var total int64
	q := r.db.Model(&models.PointsTransaction{}).Where("member_id = ?", memberID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txns []models.PointsTransaction
	err := q.Order("id DESC").Offset(offset).Limit(limit).Find(&txns).Error
	return txns, total, err
}
