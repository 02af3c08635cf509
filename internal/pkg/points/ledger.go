package points

import (
	"github.com/goupclub/goup/app/models"
	"gorm.io/gorm"
)

// Service is the points ledger: an append-only transaction log plus a
// per-member balance kept in lockstep with it.
type Service struct {
	repo Repository
}

// NewService creates a points service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a points service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// PointsForAmount converts an order amount in minor currency units into
// ledger points.
func PointsForAmount(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return amount * models.PointsPerCurrencyUnit
}

// ReferralBonus converts a paid order amount into the inviter's bonus points.
func ReferralBonus(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return amount * models.ReferralPointsPerCurrencyUnit
}

// Account returns the member's points account, creating an empty one on first
// access.
func (s *Service) Account(memberID uint) (*models.PointsAccount, error) {
	return s.repo.GetOrCreateAccount(memberID)
}

// Transactions lists the member's ledger entries, newest first.
func (s *Service) Transactions(memberID uint, offset, limit int) ([]models.PointsTransaction, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactions(memberID, offset, limit)
}

// Grant credits points to a member outside of any order, typically by an
// operator.
func (s *Service) Grant(memberID uint, amount int64, origin, meta string) (*models.PointsTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	txn := &models.PointsTransaction{
		MemberID:  memberID,
		Type:      models.PointsTypeManual,
		Direction: models.PointsDirectionCredit,
		Amount:    amount,
		Origin:    origin,
		Meta:      meta,
	}
	if err := s.repo.Apply(txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// Adjust moves a member's balance by a signed delta. Negative deltas debit
// and are clamped so the balance never goes below zero.
func (s *Service) Adjust(memberID uint, delta int64, origin, meta string) (*models.PointsTransaction, error) {
	if delta == 0 {
		return nil, ErrInvalidAmount
	}
	direction := models.PointsDirectionCredit
	amount := delta
	if delta < 0 {
		direction = models.PointsDirectionDebit
		amount = -delta
	}
	txn := &models.PointsTransaction{
		MemberID:  memberID,
		Type:      models.PointsTypeManualAdjust,
		Direction: direction,
		Amount:    amount,
		Origin:    origin,
		Meta:      meta,
	}
	if err := s.repo.Apply(txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// SpendOnOrder debits the points equivalent of an order amount. It fails
// without writing anything when the available balance does not cover the
// amount, and is a no-op if the same order was already debited. The
// availability check reads the account FOR UPDATE so concurrent spends for
// the same member serialize instead of both passing on a stale balance.
func (s *Service) SpendOnOrder(memberID, orderID, activityID uint, amount int64, meta string) (*models.PointsTransaction, bool, error) {
	needed := PointsForAmount(amount)
	if needed <= 0 {
		return nil, false, ErrInvalidAmount
	}

	account, err := s.repo.GetAccountForUpdate(memberID)
	if err != nil {
		return nil, false, err
	}
	if account.Available() < needed {
		return nil, false, ErrInsufficientPoints
	}

	txn := &models.PointsTransaction{
		MemberID:   memberID,
		Type:       models.PointsTypeSpend,
		Direction:  models.PointsDirectionDebit,
		Amount:     needed,
		Origin:     "order",
		ActivityID: &activityID,
		OrderID:    &orderID,
		Meta:       meta,
	}
	created, err := s.repo.ApplyOnce(txn)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := s.repo.FindByTypeAndOrder(models.PointsTypeSpend, memberID, orderID)
		return existing, false, err
	}
	return txn, true, nil
}

// CreditOnce credits points for an order at most once per (type, member,
// order). Repeat calls report created=false and leave the ledger untouched.
func (s *Service) CreditOnce(txnType string, memberID, orderID, activityID uint, amount int64, origin, meta string) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	txn := &models.PointsTransaction{
		MemberID:   memberID,
		Type:       txnType,
		Direction:  models.PointsDirectionCredit,
		Amount:     amount,
		Origin:     origin,
		ActivityID: &activityID,
		OrderID:    &orderID,
		Meta:       meta,
	}
	return s.repo.ApplyOnce(txn)
}

// HasOrderTransaction reports whether a ledger entry of the given type exists
// for the member and order.
func (s *Service) HasOrderTransaction(txnType string, memberID, orderID uint) (bool, error) {
	txn, err := s.repo.FindByTypeAndOrder(txnType, memberID, orderID)
	if err != nil {
		return false, err
	}
	return txn != nil, nil
}
