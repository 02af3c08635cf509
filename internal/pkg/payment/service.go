package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/goupclub/goup/app/models"
	"github.com/goupclub/goup/internal/pkg/points"
	"github.com/goupclub/goup/internal/pkg/voucher"
	"gorm.io/gorm"
)

// WechatGateway is the provider surface the service needs from the WeChat
// client.
type WechatGateway interface {
	PrepayJSAPI(ctx context.Context, description, outTradeNo string, totalCents int64, openID string) (string, error)
	PayParams(prepayID string) (map[string]string, error)
	VerifyNotify(timestamp, nonce, signature string, body []byte) error
	DecodeNotify(body []byte) (*WechatTransaction, error)
}

// AlipayGateway is the provider surface the service needs from the Alipay
// client.
type AlipayGateway interface {
	WapPayURL(outTradeNo, subject string, amount int64) (string, error)
	VerifyNotify(params map[string]string) error
}

// ConfigSource yields the current voucher configuration snapshot.
type ConfigSource interface {
	Latest() (*models.VoucherConfig, error)
}

// Service drives prepay, points-only payment and the exactly-once
// notification processor.
type Service struct {
	repo    Repository
	wechat  WechatGateway
	alipay  AlipayGateway
	configs ConfigSource
	now     func() time.Time
}

// NewService creates a payment service from injected dependencies. The
// gateways may be nil when the corresponding provider is not configured.
func NewService(repo Repository, wechat WechatGateway, alipay AlipayGateway, configs ConfigSource) *Service {
	return &Service{repo: repo, wechat: wechat, alipay: alipay, configs: configs, now: time.Now}
}

// NewServiceFromDB creates a payment service with GORM persistence.
func NewServiceFromDB(db *gorm.DB, wechat WechatGateway, alipay AlipayGateway) *Service {
	return NewService(NewRepository(db), wechat, alipay, voucher.NewConfigStore(db))
}

// Prepay computes the final payable for an order, persists the initiated
// payment row with the full usage snapshot, and asks the provider for a
// payment handle. The snapshot on that row is the sole source of truth when
// the notification arrives.
func (s *Service) Prepay(ctx context.Context, req PrepayRequest) (*PrepayResult, error) {
	order, err := s.repo.GetOrder(req.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	// Waitlisted orders stay payable; the gateway confirmation settles them
	// like any created order.
	if order.Status != models.OrderStatusCreated && order.Status != models.OrderStatusWaitlist {
		return nil, ErrOrderNotPayable
	}

	payable := order.Amount
	var appliedVoucher int64
	if req.VoucherAmount > 0 {
		cfg, err := s.configs.Latest()
		if err != nil {
			return nil, err
		}
		d := voucher.ComputeDeduction(payable, req.VoucherAmount, voucher.DeductionConfig{
			DiscountRate: cfg.DiscountRate,
			MaxDiscount:  cfg.MaxDiscount,
			MinAmount:    cfg.MinAmount,
		})
		appliedVoucher = d.AppliedVoucher
		payable = d.FinalPayable
	}

	usage := PointsUsage{
		MemberID:        req.MemberID,
		RequestedPoints: req.PointsToUse,
		UnitPerCurrency: models.PointsPerCurrencyUnit,
	}
	if req.PointsToUse > 0 && req.MemberID != 0 {
		account, err := s.repo.Points().GetOrCreateAccount(req.MemberID)
		if err != nil {
			return nil, err
		}
		available := account.Available()
		if available > req.PointsToUse {
			available = req.PointsToUse
		}
		// Points apply in whole currency units only.
		deduction := available / models.PointsPerCurrencyUnit
		if deduction > payable {
			deduction = payable
		}
		usage.PointsCashDeduction = deduction
		usage.AppliedPoints = deduction * models.PointsPerCurrencyUnit
		payable -= deduction
	}

	meta := PrepayMeta{
		RequestedAt:    s.now(),
		AppliedVoucher: appliedVoucher,
		PointsUsage:    usage,
	}
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	record := &models.Payment{
		OrderID:  order.ID,
		Provider: req.Provider,
		Status:   models.PaymentStatusInitiated,
		Amount:   payable,
		Meta:     string(metaJSON),
	}
	if err := s.repo.CreatePayment(record); err != nil {
		return nil, err
	}

	result := &PrepayResult{
		OrderID:        order.ID,
		PaymentID:      record.ID,
		Provider:       req.Provider,
		Amount:         payable,
		OriginalAmount: order.Amount,
		AppliedVoucher: appliedVoucher,
		PointsUsage:    usage,
	}
	outTradeNo := strconv.FormatUint(uint64(order.ID), 10)

	switch req.Provider {
	case models.PaymentProviderWechat:
		if s.wechat == nil {
			return nil, s.prepayFailed(req, fmt.Errorf("wechat gateway not configured"))
		}
		if req.OpenID == "" {
			return nil, ErrOpenIDRequired
		}
		description := req.Description
		if description == "" {
			description = req.Subject
		}
		if description == "" {
			description = "activity signup"
		}
		prepayID, err := s.wechat.PrepayJSAPI(ctx, description, outTradeNo, payable*100, req.OpenID)
		if err != nil {
			return nil, s.prepayFailed(req, err)
		}
		payParams, err := s.wechat.PayParams(prepayID)
		if err != nil {
			return nil, s.prepayFailed(req, err)
		}
		result.PrepayID = prepayID
		result.PayParams = payParams
	case models.PaymentProviderAlipay:
		if s.alipay == nil {
			return nil, s.prepayFailed(req, fmt.Errorf("alipay gateway not configured"))
		}
		subject := req.Subject
		if subject == "" {
			subject = req.Description
		}
		if subject == "" {
			subject = "activity signup"
		}
		payURL, err := s.alipay.WapPayURL(outTradeNo, subject, payable)
		if err != nil {
			return nil, s.prepayFailed(req, err)
		}
		result.PrepayID = "alipay_" + outTradeNo
		result.PayURL = payURL
	default:
		return nil, ErrUnsupportedProvider
	}

	meta.PrepayID = result.PrepayID
	if metaJSON, err := json.Marshal(&meta); err == nil {
		record.ProviderTxnID = result.PrepayID
		record.Meta = string(metaJSON)
		if err := s.repo.SavePayment(record); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Service) prepayFailed(req PrepayRequest, cause error) error {
	log.Warnf("payment: %s prepay failed for order %d: %v", req.Provider, req.OrderID, cause)
	orderID := req.OrderID
	_ = s.repo.CreatePaymentError(&models.PaymentError{
		Provider: req.Provider,
		OrderID:  &orderID,
		Reason:   models.PaymentErrorPrepayFailed,
		Detail:   cause.Error(),
	})
	return cause
}

// PayWithPoints settles an order entirely from the member's points balance:
// debit, synthetic paid payment row and order flip in one transaction.
func (s *Service) PayWithPoints(ctx context.Context, orderID, memberID uint) (*models.Payment, error) {
	_ = ctx
	now := s.now()
	var record *models.Payment
	err := s.repo.Transact(func(tx Repository) error {
		order, err := tx.GetOrderForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil || order.MemberID != memberID {
			return ErrOrderNotFound
		}
		if order.Status != models.OrderStatusCreated {
			return ErrOrderNotPayable
		}

		if order.Amount > 0 {
			needed := points.PointsForAmount(order.Amount)
			account, err := tx.Points().GetAccountForUpdate(memberID)
			if err != nil {
				return err
			}
			if available := account.Available(); available < needed {
				return &InsufficientPointsError{Required: needed, Available: available}
			}
			ledger := points.NewService(tx.Points())
			if _, _, err := ledger.SpendOnOrder(memberID, order.ID, order.ActivityID, order.Amount, `{"via":"points"}`); err != nil {
				return err
			}
		}

		txnID := "points_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		paidAt := now
		record = &models.Payment{
			OrderID:       order.ID,
			Provider:      models.PaymentProviderPoints,
			ProviderTxnID: txnID,
			Status:        models.PaymentStatusPaid,
			Amount:        order.Amount,
			PaidAt:        &paidAt,
		}
		if err := tx.CreatePayment(record); err != nil {
			return err
		}

		order.Status = models.OrderStatusPaid
		order.PaidAt = &paidAt
		order.PaymentMethod = models.PaymentProviderPoints
		order.TransactionID = txnID
		return tx.SaveOrder(order)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ProcessWechatNotify verifies, decrypts and settles a WeChat payment
// notification. Redeliveries after the order is paid are acknowledged as
// skipped without side effects.
func (s *Service) ProcessWechatNotify(ctx context.Context, timestamp, nonce, signature string, body []byte) (*NotifyResult, error) {
	if s.wechat == nil {
		return nil, ErrUnsupportedProvider
	}
	if err := s.wechat.VerifyNotify(timestamp, nonce, signature, body); err != nil {
		_ = s.repo.CreatePaymentError(&models.PaymentError{
			Provider: models.PaymentProviderWechat,
			Reason:   models.PaymentErrorInvalidSignature,
			Detail:   string(body),
		})
		return nil, ErrInvalidSignature
	}

	txn, err := s.wechat.DecodeNotify(body)
	if err != nil {
		return nil, s.notifyFailed(models.PaymentProviderWechat, nil, err)
	}
	if txn.TradeState != "" && txn.TradeState != "SUCCESS" {
		return &NotifyResult{Skipped: true}, nil
	}
	orderID, err := parseOrderID(txn.OutTradeNo)
	if err != nil {
		return nil, s.notifyFailed(models.PaymentProviderWechat, nil, err)
	}

	paidCents := txn.Amount.PayerTotal
	if paidCents == 0 {
		paidCents = txn.Amount.Total
	}
	result, err := s.confirm(orderID, models.PaymentProviderWechat, txn.TransactionID, paidCents/100)
	if err != nil {
		return nil, s.notifyFailed(models.PaymentProviderWechat, &orderID, err)
	}
	return result, nil
}

// ProcessAlipayNotify verifies and settles an Alipay asynchronous
// notification (form-encoded params).
func (s *Service) ProcessAlipayNotify(ctx context.Context, params map[string]string) (*NotifyResult, error) {
	_ = ctx
	if s.alipay == nil {
		return nil, ErrUnsupportedProvider
	}
	if err := s.alipay.VerifyNotify(params); err != nil {
		detail, _ := json.Marshal(params)
		perr := &models.PaymentError{
			Provider: models.PaymentProviderAlipay,
			Reason:   models.PaymentErrorInvalidSignature,
			Detail:   string(detail),
		}
		if orderID, err := parseOrderID(params["out_trade_no"]); err == nil {
			perr.OrderID = &orderID
		}
		_ = s.repo.CreatePaymentError(perr)
		return nil, ErrInvalidSignature
	}

	if status := params["trade_status"]; status != "" && status != "TRADE_SUCCESS" && status != "TRADE_FINISHED" {
		return &NotifyResult{Skipped: true}, nil
	}
	orderID, err := parseOrderID(params["out_trade_no"])
	if err != nil {
		return nil, s.notifyFailed(models.PaymentProviderAlipay, nil, err)
	}

	var paid int64
	if f, err := strconv.ParseFloat(params["total_amount"], 64); err == nil {
		paid = int64(math.Round(f))
	}
	result, err := s.confirm(orderID, models.PaymentProviderAlipay, params["trade_no"], paid)
	if err != nil {
		return nil, s.notifyFailed(models.PaymentProviderAlipay, &orderID, err)
	}
	return result, nil
}

// confirm performs the settlement transaction: paid payment row, order flip,
// snapshot points debit and cashback voucher, all or nothing.
func (s *Service) confirm(orderID uint, provider, providerTxnID string, paidAmount int64) (*NotifyResult, error) {
	cfg, err := s.configs.Latest()
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &NotifyResult{OrderID: orderID}
	err = s.repo.Transact(func(tx Repository) error {
		order, err := tx.GetOrderForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status == models.OrderStatusPaid || order.Closed() {
			result.Skipped = true
			return nil
		}

		if pre, err := tx.FindLatestInitiatedPayment(orderID); err != nil {
			return err
		} else if pre != nil && pre.Meta != "" {
			var meta PrepayMeta
			if json.Unmarshal([]byte(pre.Meta), &meta) == nil &&
				meta.PointsUsage.MemberID != 0 && meta.PointsUsage.AppliedPoints > 0 {
				oid := orderID
				debit := &models.PointsTransaction{
					MemberID:  meta.PointsUsage.MemberID,
					Type:      models.PointsTypeSpend,
					Direction: models.PointsDirectionDebit,
					Amount:    meta.PointsUsage.AppliedPoints,
					Origin:    "order_payment",
					OrderID:   &oid,
					Meta:      fmt.Sprintf(`{"via":%q}`, provider),
				}
				if _, err := tx.Points().ApplyOnce(debit); err != nil {
					return err
				}
			}
		}

		paidAt := now
		record := &models.Payment{
			OrderID:       orderID,
			Provider:      provider,
			ProviderTxnID: providerTxnID,
			Status:        models.PaymentStatusPaid,
			Amount:        paidAmount,
			PaidAt:        &paidAt,
		}
		if err := tx.CreatePayment(record); err != nil {
			return err
		}
		result.PaymentID = record.ID

		order.Status = models.OrderStatusPaid
		order.PaidAt = &paidAt
		order.PaymentMethod = provider
		order.TransactionID = providerTxnID
		if err := tx.SaveOrder(order); err != nil {
			return err
		}

		if cashback := voucher.CashbackAmount(paidAmount, order.ActivityID, cfg); cashback > 0 {
			oid := orderID
			return tx.CreateVoucher(&models.MemberVoucher{
				MemberID: order.MemberID,
				Title:    "Signup cashback",
				Source:   models.VoucherSourceCashback,
				OrderID:  &oid,
				Amount:   cashback,
				Balance:  cashback,
				Status:   models.VoucherStatusAvailable,
				Meta:     fmt.Sprintf(`{"via":%q}`, provider),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) notifyFailed(provider string, orderID *uint, cause error) error {
	log.Warnf("payment: %s notification rejected: %v", provider, cause)
	_ = s.repo.CreatePaymentError(&models.PaymentError{
		Provider: provider,
		OrderID:  orderID,
		Reason:   models.PaymentErrorNotifyFailed,
		Detail:   cause.Error(),
	})
	return cause
}

// Refund moves a paid order to refunded with an internal refund payment row.
// Capacity bookkeeping stays with the enrollment cancel flow; this is the
// operator-facing money reversal.
func (s *Service) Refund(ctx context.Context, orderID uint) (*models.Payment, error) {
	_ = ctx
	now := s.now()
	var record *models.Payment
	err := s.repo.Transact(func(tx Repository) error {
		order, err := tx.GetOrderForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status != models.OrderStatusPaid {
			return ErrOrderNotPayable
		}

		refundAt := now
		record = &models.Payment{
			OrderID:  order.ID,
			Provider: models.PaymentProviderInternal,
			Status:   models.PaymentStatusRefunded,
			Amount:   order.Amount,
			RefundAt: &refundAt,
		}
		if err := tx.CreatePayment(record); err != nil {
			return err
		}
		order.Status = models.OrderStatusRefunded
		order.RefundAt = &refundAt
		return tx.SaveOrder(order)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Errors lists the payment error sink, newest first.
func (s *Service) Errors(offset, limit int) ([]models.PaymentError, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListPaymentErrors(offset, limit)
}

func parseOrderID(outTradeNo string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(outTradeNo), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid out_trade_no %q", outTradeNo)
	}
	return uint(id), nil
}
