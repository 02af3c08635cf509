package points

import (
	"testing"

	"github.com/goupclub/goup/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepository keeps the ledger in memory with the same atomicity rules as
// the GORM implementation.
type fakeRepository struct {
	accounts    map[uint]*models.PointsAccount
	txns        []models.PointsTransaction
	nextID      uint
	lockedReads int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{accounts: make(map[uint]*models.PointsAccount)}
}

func (f *fakeRepository) GetOrCreateAccount(memberID uint) (*models.PointsAccount, error) {
	if a, ok := f.accounts[memberID]; ok {
		copied := *a
		return &copied, nil
	}
	f.nextID++
	a := &models.PointsAccount{ID: f.nextID, MemberID: memberID}
	f.accounts[memberID] = a
	copied := *a
	return &copied, nil
}

func (f *fakeRepository) GetAccountForUpdate(memberID uint) (*models.PointsAccount, error) {
	f.lockedReads++
	return f.GetOrCreateAccount(memberID)
}

func (f *fakeRepository) Apply(txn *models.PointsTransaction) error {
	if _, err := f.GetOrCreateAccount(txn.MemberID); err != nil {
		return err
	}
	f.nextID++
	txn.ID = f.nextID
	f.txns = append(f.txns, *txn)

	a := f.accounts[txn.MemberID]
	a.Balance += txn.Signed()
	if a.Balance < 0 {
		a.Balance = 0
	}
	return nil
}

func (f *fakeRepository) ApplyOnce(txn *models.PointsTransaction) (bool, error) {
	existing, err := f.FindByTypeAndOrder(txn.Type, txn.MemberID, *txn.OrderID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	return true, f.Apply(txn)
}

func (f *fakeRepository) FindByTypeAndOrder(txnType string, memberID, orderID uint) (*models.PointsTransaction, error) {
	for i := range f.txns {
		t := f.txns[i]
		if t.Type == txnType && t.MemberID == memberID && t.OrderID != nil && *t.OrderID == orderID {
			return &t, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) ListTransactions(memberID uint, offset, limit int) ([]models.PointsTransaction, int64, error) {
	var out []models.PointsTransaction
	for i := len(f.txns) - 1; i >= 0; i-- {
		if f.txns[i].MemberID == memberID {
			out = append(out, f.txns[i])
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (f *fakeRepository) balance(memberID uint) int64 {
	if a, ok := f.accounts[memberID]; ok {
		return a.Balance
	}
	return 0
}

func TestAccountCreatedOnFirstAccess(t *testing.T) {
	svc := NewService(newFakeRepository())

	account, err := svc.Account(42)
	require.NoError(t, err)
	assert.Equal(t, uint(42), account.MemberID)
	assert.Equal(t, int64(0), account.Balance)
}

func TestGrantAndAdjustKeepBalanceEqualToLedgerSum(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	_, err := svc.Grant(1, 5000, "ops", "")
	require.NoError(t, err)
	_, err = svc.Adjust(1, -1200, "ops", "")
	require.NoError(t, err)
	_, err = svc.Adjust(1, 300, "ops", "")
	require.NoError(t, err)

	var sum int64
	for _, txn := range repo.txns {
		sum += txn.Signed()
	}
	assert.Equal(t, int64(4100), sum)
	assert.Equal(t, sum, repo.balance(1))
}

func TestAdjustDebitClampsAtZero(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	_, err := svc.Grant(1, 100, "ops", "")
	require.NoError(t, err)
	_, err = svc.Adjust(1, -500, "ops", "")
	require.NoError(t, err)

	assert.Equal(t, int64(0), repo.balance(1))
}

func TestAdjustRejectsZeroDelta(t *testing.T) {
	svc := NewService(newFakeRepository())
	_, err := svc.Adjust(1, 0, "ops", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSpendOnOrderDebitsPointsEquivalent(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	_, err := svc.Grant(1, 500000, "ops", "")
	require.NoError(t, err)

	txn, created, err := svc.SpendOnOrder(1, 10, 3, 40, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(400000), txn.Amount)
	assert.Equal(t, models.PointsDirectionDebit, txn.Direction)
	assert.Equal(t, int64(100000), repo.balance(1))
}

func TestSpendOnOrderReadsAccountUnderLock(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	_, err := svc.Grant(1, 500000, "ops", "")
	require.NoError(t, err)
	assert.Equal(t, 0, repo.lockedReads, "grants need no availability check")

	_, _, err = svc.SpendOnOrder(1, 10, 3, 40, "")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lockedReads, "the spend check must go through the FOR UPDATE read")
}

func TestSpendOnOrderInsufficientBalance(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	_, err := svc.Grant(1, 399999, "ops", "")
	require.NoError(t, err)

	_, _, err = svc.SpendOnOrder(1, 10, 3, 40, "")
	assert.ErrorIs(t, err, ErrInsufficientPoints)
	assert.Equal(t, int64(399999), repo.balance(1), "failed spend writes nothing")
	assert.Len(t, repo.txns, 1)
}

func TestSpendOnOrderIsIdempotentPerOrder(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	_, err := svc.Grant(1, 900000, "ops", "")
	require.NoError(t, err)

	_, created, err := svc.SpendOnOrder(1, 10, 3, 40, "")
	require.NoError(t, err)
	assert.True(t, created)

	txn, created, err := svc.SpendOnOrder(1, 10, 3, 40, "")
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, txn)
	assert.Equal(t, int64(500000), repo.balance(1), "second spend leaves the balance alone")
}

func TestCreditOnce(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	created, err := svc.CreditOnce(models.PointsTypeSettlement, 1, 10, 3, 400000, "settlement", "")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.CreditOnce(models.PointsTypeSettlement, 1, 10, 3, 400000, "settlement", "")
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, int64(400000), repo.balance(1))

	has, err := svc.HasOrderTransaction(models.PointsTypeSettlement, 1, 10)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestPointsConversions(t *testing.T) {
	assert.Equal(t, int64(400000), PointsForAmount(40))
	assert.Equal(t, int64(0), PointsForAmount(0))
	assert.Equal(t, int64(4000), ReferralBonus(40))
	assert.Equal(t, int64(0), ReferralBonus(-1))
}
