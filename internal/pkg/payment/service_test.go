package payment

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

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
	orders    map[uint]*models.Order
	payments  []*models.Payment
	vouchers  []models.MemberVoucher
	perrors   []models.PaymentError
	pointsRep *fakePointsRepo
	nextID    uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[uint]*models.Order), pointsRep: newFakePointsRepo()}
}

func (f *fakeRepo) Transact(fn func(Repository) error) error { return fn(f) }
func (f *fakeRepo) Points() points.Repository                { return f.pointsRep }

func (f *fakeRepo) GetOrder(id uint) (*models.Order, error)          { return f.orders[id], nil }
func (f *fakeRepo) GetOrderForUpdate(id uint) (*models.Order, error) { return f.orders[id], nil }
func (f *fakeRepo) SaveOrder(o *models.Order) error {
	f.orders[o.ID] = o
	return nil
}

func (f *fakeRepo) FindLatestInitiatedPayment(orderID uint) (*models.Payment, error) {
	for i := len(f.payments) - 1; i >= 0; i-- {
		p := f.payments[i]
		if p.OrderID == orderID && p.Status == models.PaymentStatusInitiated {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) CreatePayment(p *models.Payment) error {
	f.nextID++
	p.ID = f.nextID
	f.payments = append(f.payments, p)
	return nil
}
func (f *fakeRepo) SavePayment(p *models.Payment) error { return nil }

func (f *fakeRepo) CreateVoucher(v *models.MemberVoucher) error {
	f.nextID++
	v.ID = f.nextID
	f.vouchers = append(f.vouchers, *v)
	return nil
}

func (f *fakeRepo) CreatePaymentError(e *models.PaymentError) error {
	f.perrors = append(f.perrors, *e)
	return nil
}

func (f *fakeRepo) ListPaymentErrors(offset, limit int) ([]models.PaymentError, int64, error) {
	return f.perrors, int64(len(f.perrors)), nil
}

func (f *fakeRepo) paidPayments() []*models.Payment {
	var out []*models.Payment
	for _, p := range f.payments {
		if p.Status == models.PaymentStatusPaid {
			out = append(out, p)
		}
	}
	return out
}

type fakeWechat struct {
	prepayErr error
	verifyErr error
	txn       *WechatTransaction
}

func (f *fakeWechat) PrepayJSAPI(ctx context.Context, description, outTradeNo string, totalCents int64, openID string) (string, error) {
	if f.prepayErr != nil {
		return "", f.prepayErr
	}
	return "wx_prepay_" + outTradeNo, nil
}

func (f *fakeWechat) PayParams(prepayID string) (map[string]string, error) {
	return map[string]string{"package": "prepay_id=" + prepayID}, nil
}

func (f *fakeWechat) VerifyNotify(timestamp, nonce, signature string, body []byte) error {
	return f.verifyErr
}

func (f *fakeWechat) DecodeNotify(body []byte) (*WechatTransaction, error) {
	if f.txn == nil {
		return nil, errors.New("no txn configured")
	}
	return f.txn, nil
}

type fakeAlipay struct {
	verifyErr error
}

func (f *fakeAlipay) WapPayURL(outTradeNo, subject string, amount int64) (string, error) {
	return "https://openapi.alipay.com/gateway.do?out_trade_no=" + outTradeNo, nil
}

func (f *fakeAlipay) VerifyNotify(params map[string]string) error { return f.verifyErr }

type fakeConfigs struct {
	cfg *models.VoucherConfig
}

func (f *fakeConfigs) Latest() (*models.VoucherConfig, error) {
	if f.cfg == nil {
		return &models.VoucherConfig{}, nil
	}
	return f.cfg, nil
}

func newTestService(repo *fakeRepo, wc *fakeWechat, ap *fakeAlipay, cfg *models.VoucherConfig) *Service {
	return NewService(repo, wc, ap, &fakeConfigs{cfg: cfg})
}

func TestPrepayWechatCapsPointsAndSnapshots(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[1] = &models.Order{ID: 1, MemberID: 7, ActivityID: 3, Amount: 50, Status: models.OrderStatusCreated}
	repo.pointsRep.accounts[7] = &models.PointsAccount{ID: 1, MemberID: 7, Balance: 420000}
	svc := newTestService(repo, &fakeWechat{}, &fakeAlipay{}, nil)

	res, err := svc.Prepay(context.Background(), PrepayRequest{
		OrderID: 1, Provider: models.PaymentProviderWechat, MemberID: 7,
		PointsToUse: 999999, OpenID: "oABC",
	})
	require.NoError(t, err)

	// 420,000 points cover 42 whole units, capped below the 50 payable
	assert.Equal(t, int64(8), res.Amount)
	assert.Equal(t, int64(42), res.PointsUsage.PointsCashDeduction)
	assert.Equal(t, int64(420000), res.PointsUsage.AppliedPoints)
	assert.Equal(t, int64(models.PointsPerCurrencyUnit), res.PointsUsage.UnitPerCurrency)
	assert.Equal(t, "wx_prepay_1", res.PrepayID)
	assert.NotEmpty(t, res.PayParams)

	pre, err := repo.FindLatestInitiatedPayment(1)
	require.NoError(t, err)
	require.NotNil(t, pre)
	assert.Equal(t, int64(8), pre.Amount)

	var meta PrepayMeta
	require.NoError(t, json.Unmarshal([]byte(pre.Meta), &meta))
	assert.Equal(t, int64(420000), meta.PointsUsage.AppliedPoints)
	assert.Equal(t, uint(7), meta.PointsUsage.MemberID)
	assert.Equal(t, "wx_prepay_1", meta.PrepayID)

	assert.Equal(t, int64(420000), repo.pointsRep.balance(7), "prepay must not debit points")
}

func TestPrepayAlipayBuildsPayURL(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[1] = &models.Order{ID: 1, MemberID: 7, Amount: 150, Status: models.OrderStatusCreated}
	svc := newTestService(repo, &fakeWechat{}, &fakeAlipay{}, nil)

	res, err := svc.Prepay(context.Background(), PrepayRequest{OrderID: 1, Provider: models.PaymentProviderAlipay})
	require.NoError(t, err)
	assert.Equal(t, "alipay_1", res.PrepayID)
	assert.Contains(t, res.PayURL, "out_trade_no=1")
	assert.Equal(t, int64(150), res.Amount)
}

func TestPrepayAcceptsWaitlistOrder(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[1] = &models.Order{ID: 1, MemberID: 7, Amount: 120, Status: models.OrderStatusWaitlist}
	svc := newTestService(repo, &fakeWechat{}, &fakeAlipay{}, nil)

	res, err := svc.Prepay(context.Background(), PrepayRequest{
		OrderID: 1, Provider: models.PaymentProviderWechat, MemberID: 7, OpenID: "oABC",
	})
	require.NoError(t, err)
	assert.Equal(t, "wx_prepay_1", res.PrepayID)
	assert.Equal(t, int64(120), res.Amount)
}

func TestPrepayRejections(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[1] = &models.Order{ID: 1, Amount: 100, Status: models.OrderStatusPaid}
	repo.orders[2] = &models.Order{ID: 2, Amount: 100, Status: models.OrderStatusCreated}
	svc := newTestService(repo, &fakeWechat{}, &fakeAlipay{}, nil)
	ctx := context.Background()

	_, err := svc.Prepay(ctx, PrepayRequest{OrderID: 99, Provider: models.PaymentProviderWechat})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.Prepay(ctx, PrepayRequest{OrderID: 1, Provider: models.PaymentProviderWechat})
	assert.ErrorIs(t, err, ErrOrderNotPayable)

	_, err = svc.Prepay(ctx, PrepayRequest{OrderID: 2, Provider: models.PaymentProviderWechat})
	assert.ErrorIs(t, err, ErrOpenIDRequired)

	_, err = svc.Prepay(ctx, PrepayRequest{OrderID: 2, Provider: "paypal"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestPrepayProviderFailureRecordsError(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[1] = &models.Order{ID: 1, Amount: 100, Status: models.OrderStatusCreated}
	svc := newTestService(repo, &fakeWechat{prepayErr: errors.New("gateway down")}, &fakeAlipay{}, nil)

	_, err := svc.Prepay(context.Background(), PrepayRequest{
		OrderID: 1, Provider: models.PaymentProviderWechat, OpenID: "oABC",
	})
	require.Error(t, err)
	require.Len(t, repo.perrors, 1)
	assert.Equal(t, models.PaymentErrorPrepayFailed, repo.perrors[0].Reason)
	assert.Equal(t, models.PaymentProviderWechat, repo.perrors[0].Provider)
}

func TestPayWithPoints(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[10] = &models.Order{ID: 10, MemberID: 1, ActivityID: 3, Amount: 40, Status: models.OrderStatusCreated}
	repo.pointsRep.accounts[1] = &models.PointsAccount{ID: 1, MemberID: 1, Balance: 500000}
	svc := newTestService(repo, nil, nil, nil)

	record, err := svc.PayWithPoints(context.Background(), 10, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentProviderPoints, record.Provider)
	assert.Equal(t, models.PaymentStatusPaid, record.Status)
	assert.Contains(t, record.ProviderTxnID, "points_")
	assert.Equal(t, int64(100000), repo.pointsRep.balance(1))
	assert.Equal(t, models.OrderStatusPaid, repo.orders[10].Status)
	assert.Equal(t, models.PaymentProviderPoints, repo.orders[10].PaymentMethod)
}

func TestPayWithPointsRejectsWaitlistOrder(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[10] = &models.Order{ID: 10, MemberID: 1, Amount: 40, Status: models.OrderStatusWaitlist}
	repo.pointsRep.accounts[1] = &models.PointsAccount{ID: 1, MemberID: 1, Balance: 500000}
	svc := newTestService(repo, nil, nil, nil)

	_, err := svc.PayWithPoints(context.Background(), 10, 1)
	assert.ErrorIs(t, err, ErrOrderNotPayable)
	assert.Equal(t, int64(500000), repo.pointsRep.balance(1))
}

func TestPayWithPointsInsufficient(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[10] = &models.Order{ID: 10, MemberID: 1, Amount: 40, Status: models.OrderStatusCreated}
	repo.pointsRep.accounts[1] = &models.PointsAccount{ID: 1, MemberID: 1, Balance: 399999}
	svc := newTestService(repo, nil, nil, nil)

	_, err := svc.PayWithPoints(context.Background(), 10, 1)
	var ipe *InsufficientPointsError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, int64(400000), ipe.Required)
	assert.Equal(t, int64(399999), ipe.Available)
	assert.Equal(t, models.OrderStatusCreated, repo.orders[10].Status)
	assert.Equal(t, int64(399999), repo.pointsRep.balance(1))
}

func TestPayWithPointsWrongMemberOrState(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[10] = &models.Order{ID: 10, MemberID: 1, Amount: 40, Status: models.OrderStatusPaid}
	svc := newTestService(repo, nil, nil, nil)

	_, err := svc.PayWithPoints(context.Background(), 10, 2)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.PayWithPoints(context.Background(), 10, 1)
	assert.ErrorIs(t, err, ErrOrderNotPayable)
}

func wechatSuccess(orderID uint, cents int64) *WechatTransaction {
	txn := &WechatTransaction{
		OutTradeNo:    strconv.FormatUint(uint64(orderID), 10),
		TransactionID: "wx-txn-1",
		TradeState:    "SUCCESS",
	}
	txn.Amount.Total = cents
	txn.Amount.PayerTotal = cents
	return txn
}

func TestWechatNotifySettlesExactlyOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[1] = &models.Order{ID: 1, MemberID: 7, ActivityID: 3, Amount: 50, Status: models.OrderStatusCreated}
	repo.pointsRep.accounts[7] = &models.PointsAccount{ID: 1, MemberID: 7, Balance: 420000}

	meta, _ := json.Marshal(&PrepayMeta{PointsUsage: PointsUsage{
		MemberID: 7, AppliedPoints: 420000, PointsCashDeduction: 42, UnitPerCurrency: 10000,
	}})
	repo.payments = append(repo.payments, &models.Payment{
		ID: 1, OrderID: 1, Provider: models.PaymentProviderWechat,
		Status: models.PaymentStatusInitiated, Amount: 8, Meta: string(meta),
	})
	repo.nextID = 1

	wc := &fakeWechat{txn: wechatSuccess(1, 800)}
	svc := newTestService(repo, wc, nil, &models.VoucherConfig{CashbackRate: 0.5})

	res, err := svc.ProcessWechatNotify(context.Background(), "ts", "nonce", "sig", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, uint(1), res.OrderID)

	assert.Equal(t, models.OrderStatusPaid, repo.orders[1].Status)
	assert.Equal(t, "wx-txn-1", repo.orders[1].TransactionID)
	require.Len(t, repo.paidPayments(), 1)
	assert.Equal(t, int64(8), repo.paidPayments()[0].Amount)

	assert.Equal(t, int64(0), repo.pointsRep.balance(7), "snapshot points debited")

	require.Len(t, repo.vouchers, 1)
	assert.Equal(t, models.VoucherSourceCashback, repo.vouchers[0].Source)
	assert.Equal(t, int64(4), repo.vouchers[0].Amount, "round(8*0.5)")

	// redelivery: acknowledged, nothing changes
	res, err = svc.ProcessWechatNotify(context.Background(), "ts", "nonce", "sig", []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Len(t, repo.paidPayments(), 1)
	assert.Len(t, repo.vouchers, 1)
	assert.Equal(t, int64(0), repo.pointsRep.balance(7))
}

func TestWechatNotifyInvalidSignature(t *testing.T) {
	repo := newFakeRepo()
	wc := &fakeWechat{verifyErr: ErrInvalidSignature}
	svc := newTestService(repo, wc, nil, nil)

	_, err := svc.ProcessWechatNotify(context.Background(), "ts", "nonce", "bad", []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidSignature)
	require.Len(t, repo.perrors, 1)
	assert.Equal(t, models.PaymentErrorInvalidSignature, repo.perrors[0].Reason)
}

func TestWechatNotifyIgnoresNonSuccessState(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[1] = &models.Order{ID: 1, MemberID: 7, Amount: 50, Status: models.OrderStatusCreated}
	txn := wechatSuccess(1, 800)
	txn.TradeState = "CLOSED"
	svc := newTestService(repo, &fakeWechat{txn: txn}, nil, nil)

	res, err := svc.ProcessWechatNotify(context.Background(), "ts", "nonce", "sig", []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, models.OrderStatusCreated, repo.orders[1].Status)
}

func TestAlipayNotifySettlesAndSkipsDuplicates(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[1] = &models.Order{ID: 1, MemberID: 7, ActivityID: 3, Amount: 150, Status: models.OrderStatusCreated}
	svc := newTestService(repo, nil, &fakeAlipay{}, nil)

	params := map[string]string{
		"out_trade_no": "1",
		"trade_no":     "ali-txn-1",
		"trade_status": "TRADE_SUCCESS",
		"total_amount": "150.00",
	}
	res, err := svc.ProcessAlipayNotify(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, models.OrderStatusPaid, repo.orders[1].Status)
	require.Len(t, repo.paidPayments(), 1)
	assert.Equal(t, int64(150), repo.paidPayments()[0].Amount)

	res, err = svc.ProcessAlipayNotify(context.Background(), params)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Len(t, repo.paidPayments(), 1)
}

func TestAlipayNotifyInvalidSignature(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, nil, &fakeAlipay{verifyErr: ErrInvalidSignature}, nil)

	_, err := svc.ProcessAlipayNotify(context.Background(), map[string]string{"out_trade_no": "1"})
	assert.ErrorIs(t, err, ErrInvalidSignature)
	require.Len(t, repo.perrors, 1)
	assert.Equal(t, models.PaymentErrorInvalidSignature, repo.perrors[0].Reason)
	require.NotNil(t, repo.perrors[0].OrderID)
	assert.Equal(t, uint(1), *repo.perrors[0].OrderID)
}

func TestRefund(t *testing.T) {
	repo := newFakeRepo()
	repo.orders[1] = &models.Order{ID: 1, MemberID: 7, Amount: 150, Status: models.OrderStatusPaid}
	svc := newTestService(repo, nil, nil, nil)

	record, err := svc.Refund(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, record.Status)
	assert.Equal(t, models.PaymentProviderInternal, record.Provider)
	assert.Equal(t, models.OrderStatusRefunded, repo.orders[1].Status)

	_, err = svc.Refund(context.Background(), 1)
	assert.ErrorIs(t, err, ErrOrderNotPayable)
}
