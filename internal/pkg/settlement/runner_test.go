package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/goupclub/goup/app/models"
	"github.com/goupclub/goup/internal/pkg/points"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePointsRepo struct {
	accounts map[uint]*models.PointsAccount
	txns     []models.PointsTransaction
	nextID   uint
}

func newFakePointsRepo() *fakePointsRepo {
	return &fakePointsRepo{accounts: make(map[uint]*models.PointsAccount)}
}

func (f *fakePointsRepo) GetOrCreateAccount(memberID uint) (*models.PointsAccount, error) {
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

func (f *fakePointsRepo) GetAccountForUpdate(memberID uint) (*models.PointsAccount, error) {
	return f.GetOrCreateAccount(memberID)
}

func (f *fakePointsRepo) Apply(txn *models.PointsTransaction) error {
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

func (f *fakePointsRepo) ApplyOnce(txn *models.PointsTransaction) (bool, error) {
	existing, _ := f.FindByTypeAndOrder(txn.Type, txn.MemberID, *txn.OrderID)
	if existing != nil {
		return false, nil
	}
	return true, f.Apply(txn)
}

func (f *fakePointsRepo) FindByTypeAndOrder(txnType string, memberID, orderID uint) (*models.PointsTransaction, error) {
	for i := range f.txns {
		t := f.txns[i]
		if t.Type == txnType && t.MemberID == memberID && t.OrderID != nil && *t.OrderID == orderID {
			return &t, nil
		}
	}
	return nil, nil
}

func (f *fakePointsRepo) ListTransactions(memberID uint, offset, limit int) ([]models.PointsTransaction, int64, error) {
	return nil, 0, nil
}

func (f *fakePointsRepo) balance(memberID uint) int64 {
	if a, ok := f.accounts[memberID]; ok {
		return a.Balance
	}
	return 0
}

type fakeRepo struct {
	activities map[uint]*models.Activity
	orders     []models.Order
	inviters   map[uint]uint
	jobs       []*models.SettlementJob
	pointsRep  *fakePointsRepo
	nextID     uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		activities: make(map[uint]*models.Activity),
		inviters:   make(map[uint]uint),
		pointsRep:  newFakePointsRepo(),
	}
}

func (f *fakeRepo) Points() points.Repository { return f.pointsRep }

func (f *fakeRepo) GetActivity(id uint) (*models.Activity, error) { return f.activities[id], nil }

func (f *fakeRepo) ListPaidOrders(activityID uint, start, end *time.Time) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.ActivityID != activityID || o.Status != models.OrderStatusPaid {
			continue
		}
		if start != nil && (o.PaidAt == nil || o.PaidAt.Before(*start)) {
			continue
		}
		if end != nil && (o.PaidAt == nil || o.PaidAt.After(*end)) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeRepo) FindInviter(inviteeID uint) (uint, error) { return f.inviters[inviteeID], nil }

func (f *fakeRepo) CreateJob(job *models.SettlementJob) error {
	f.nextID++
	job.ID = f.nextID
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeRepo) SaveJob(job *models.SettlementJob) error { return nil }

func endedActivity(id uint, endedAgo time.Duration, now time.Time) *models.Activity {
	end := now.Add(-endedAgo)
	return &models.Activity{ID: id, Title: "run", End: &end, Max: 100}
}

func newTestRunner(repo *fakeRepo, now time.Time) *Runner {
	r := NewRunner(repo)
	r.now = func() time.Time { return now }
	return r
}

func paidOrder(id, activityID, memberID uint, amount int64, paidAt time.Time) models.Order {
	return models.Order{
		ID: id, ActivityID: activityID, MemberID: memberID, Amount: amount,
		Status: models.OrderStatusPaid, PaidAt: &paidAt,
	}
}

func TestRunCreditsSettlementAndReferral(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.activities[3] = endedActivity(3, time.Hour, now)
	repo.orders = []models.Order{
		paidOrder(10, 3, 1, 40, now.Add(-2*time.Hour)),
		paidOrder(11, 3, 2, 150, now.Add(-2*time.Hour)),
	}
	repo.inviters[1] = 9
	runner := newTestRunner(repo, now)

	res, err := runner.Run(context.Background(), RunParams{ActivityID: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 0, res.Errors)

	assert.Equal(t, int64(400000), repo.pointsRep.balance(1))
	assert.Equal(t, int64(1500000), repo.pointsRep.balance(2))
	assert.Equal(t, int64(4000), repo.pointsRep.balance(9), "inviter bonus floor(40*100)")

	require.Len(t, repo.jobs, 1)
	assert.Equal(t, models.SettlementJobDone, repo.jobs[0].Status)
}

func TestRunIsIdempotent(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.activities[3] = endedActivity(3, time.Hour, now)
	repo.orders = []models.Order{paidOrder(10, 3, 1, 40, now.Add(-2*time.Hour))}
	repo.inviters[1] = 9
	runner := newTestRunner(repo, now)

	_, err := runner.Run(context.Background(), RunParams{ActivityID: 3})
	require.NoError(t, err)
	txnsAfterFirst := len(repo.pointsRep.txns)

	res, err := runner.Run(context.Background(), RunParams{ActivityID: 3})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, repo.pointsRep.txns, txnsAfterFirst, "re-run writes nothing")
	assert.Equal(t, int64(400000), repo.pointsRep.balance(1))
	assert.Equal(t, int64(4000), repo.pointsRep.balance(9))
}

func TestRunDryRunWritesNothing(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	// activity not even over yet; dry runs are always allowed
	end := now.Add(time.Hour)
	repo.activities[3] = &models.Activity{ID: 3, End: &end, Max: 100}
	repo.orders = []models.Order{paidOrder(10, 3, 1, 40, now.Add(-time.Minute))}
	repo.inviters[1] = 9
	runner := newTestRunner(repo, now)

	res, err := runner.Run(context.Background(), RunParams{ActivityID: 3, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Empty(t, repo.pointsRep.txns)
	assert.Equal(t, int64(0), repo.pointsRep.balance(1))
	assert.Equal(t, int64(0), repo.pointsRep.balance(9))
}

func TestRunRefusesDuringGracePeriod(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.activities[3] = endedActivity(3, 10*time.Minute, now)
	runner := newTestRunner(repo, now)

	_, err := runner.Run(context.Background(), RunParams{ActivityID: 3})
	assert.ErrorIs(t, err, ErrTooEarly)

	_, err = runner.Run(context.Background(), RunParams{ActivityID: 3, AfterEndedMinutes: 5})
	assert.NoError(t, err, "shorter grace window permits the run")
}

func TestRunActivityNotFound(t *testing.T) {
	runner := newTestRunner(newFakeRepo(), time.Now())
	_, err := runner.Run(context.Background(), RunParams{ActivityID: 99})
	assert.ErrorIs(t, err, ErrActivityNotFound)
}

func TestRunRespectsPaidAtWindow(t *testing.T) {
	now := time.Now()
	repo := newFakeRepo()
	repo.activities[3] = endedActivity(3, time.Hour, now)
	early := now.Add(-48 * time.Hour)
	late := now.Add(-2 * time.Hour)
	repo.orders = []models.Order{
		paidOrder(10, 3, 1, 40, early),
		paidOrder(11, 3, 2, 150, late),
	}
	runner := newTestRunner(repo, now)

	from := now.Add(-3 * time.Hour)
	res, err := runner.Run(context.Background(), RunParams{ActivityID: 3, Start: &from})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, int64(0), repo.pointsRep.balance(1))
	assert.Equal(t, int64(1500000), repo.pointsRep.balance(2))
}
