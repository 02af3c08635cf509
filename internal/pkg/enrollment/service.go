package enrollment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/goupclub/goup/app/models"
	"github.com/goupclub/goup/internal/pkg/voucher"
	"gorm.io/gorm"
)

// ConfigSource yields the current voucher configuration snapshot.
type ConfigSource interface {
	Latest() (*models.VoucherConfig, error)
}

// Service runs signups and cancellations against activity capacity.
type Service struct {
	repo    Repository
	configs ConfigSource
	now     func() time.Time
}

// NewService creates an enrollment service from an injected repository and
// config source.
func NewService(repo Repository, configs ConfigSource) *Service {
	return &Service{repo: repo, configs: configs, now: time.Now}
}

// NewServiceFromDB creates an enrollment service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), voucher.NewConfigStore(db))
}

// Signup enrolls a member into an activity, spilling to the waitlist once the
// capacity is reached. The whole operation, capacity counter, voucher
// redemption and order insert, runs in one DB transaction with the activity
// row locked.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	_ = ctx
	if req.Amount < 0 {
		return nil, ErrInvalidAmount
	}

	cfg, err := s.configs.Latest()
	if err != nil {
		return nil, err
	}

	now := s.now()
	var result SignupResult
	err = s.repo.Transact(func(tx Repository) error {
		activity, err := tx.GetActivityForUpdate(req.ActivityID)
		if err != nil {
			return err
		}
		if activity == nil {
			return ErrActivityNotFound
		}
		member, err := tx.GetMember(req.MemberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}
		if member.Disabled {
			return ErrMemberDisabled
		}
		if !activity.SignupOpen(now) {
			return ErrSignupClosed
		}
		if !activity.AllowsGroup(member.MemberGroup) {
			return ErrGroupNotAllowed
		}
		if open, err := tx.FindOpenOrder(req.ActivityID, req.MemberID); err != nil {
			return err
		} else if open != nil {
			return ErrAlreadyEnrolled
		}

		amount := req.Amount
		if amount == 0 {
			amount = activity.Price
		}

		snapshot := models.AppliedDiscount{OriginalAmount: amount}
		payable := amount

		// Redeeming a member voucher suppresses the automatic discount when
		// the config says one benefit per order.
		applyAuto := req.VoucherID == 0 || !cfg.SingleVoucherOnly
		if applyAuto {
			rate, maxDiscount := cfg.DiscountRate, cfg.MaxDiscount
			if rule := voucher.SelectCategoryRule(cfg.ParsedCategoryRules(), activity.Categories(), payable); rule != nil {
				rate, maxDiscount = rule.DiscountRate, rule.MaxDiscount
			}
			if payable >= cfg.MinAmount {
				if d := voucher.GlobalDiscount(payable, rate, maxDiscount); d > 0 {
					payable -= d
					snapshot.Rate = rate
					snapshot.MaxDiscount = maxDiscount
					snapshot.MinAmount = cfg.MinAmount
				}
			}
		}

		if req.VoucherID != 0 {
			mv, err := tx.GetVoucherForUpdate(req.VoucherID)
			if err != nil {
				return err
			}
			if mv == nil || mv.MemberID != req.MemberID || !mv.Usable(now) {
				return ErrVoucherNotUsable
			}
			// Redemption is a straight balance draw capped at
			// min(balance, requested, payable); the rate caps apply only to
			// the prepay deduction path.
			requested := req.VoucherAmount
			if requested <= 0 || requested > mv.Balance {
				requested = mv.Balance
			}
			used := requested
			if used > payable {
				used = payable
			}
			if used > 0 {
				mv.Balance -= used
				if mv.Balance <= 0 {
					mv.Balance = 0
					mv.Status = models.VoucherStatusUsed
					usedAt := now
					mv.UsedAt = &usedAt
				}
				if err := tx.SaveVoucher(mv); err != nil {
					return err
				}
				payable -= used
				snapshot.VoucherUsage = &models.VoucherUsage{VoucherID: mv.ID, UsedAmount: used}
			}
		}

		status := models.OrderStatusCreated
		if activity.Enrolled < activity.Max {
			activity.Enrolled++
		} else {
			activity.Waitlist++
			status = models.OrderStatusWaitlist
			result.Waitlisted = true
		}
		if err := tx.SaveActivity(activity); err != nil {
			return err
		}

		snapJSON, err := json.Marshal(&snapshot)
		if err != nil {
			return err
		}
		order := &models.Order{
			ActivityID:     req.ActivityID,
			MemberID:       req.MemberID,
			Amount:         payable,
			Status:         status,
			DiscountAmount: amount - payable,
			VoucherApplied: string(snapJSON),
		}
		if err := tx.CreateOrder(order); err != nil {
			return err
		}
		result.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Cancel closes an open order before the activity starts, releasing exactly
// the capacity slot it consumed and restoring any voucher balance it used.
// Paid orders move to refunded with an internal refund payment row; points
// spent on the order are not returned.
func (s *Service) Cancel(ctx context.Context, orderID uint) (*CancelResult, error) {
	_ = ctx
	now := s.now()
	var result CancelResult
	err := s.repo.Transact(func(tx Repository) error {
		order, err := tx.GetOrderForUpdate(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Closed() {
			return ErrOrderClosed
		}

		activity, err := tx.GetActivityForUpdate(order.ActivityID)
		if err != nil {
			return err
		}
		if activity == nil {
			return ErrActivityNotFound
		}
		if activity.Start != nil && !now.Before(*activity.Start) {
			return ErrCancelAfterStart
		}
		switch order.Status {
		case models.OrderStatusWaitlist:
			if activity.Waitlist > 0 {
				activity.Waitlist--
			}
		default:
			if activity.Enrolled > 0 {
				activity.Enrolled--
			}
		}
		if err := tx.SaveActivity(activity); err != nil {
			return err
		}

		if snap := order.AppliedDiscountSnapshot(); snap != nil && snap.VoucherUsage != nil {
			mv, err := tx.GetVoucherForUpdate(snap.VoucherUsage.VoucherID)
			if err != nil {
				return err
			}
			if mv != nil {
				mv.Balance += snap.VoucherUsage.UsedAmount
				if mv.Balance > mv.Amount {
					mv.Balance = mv.Amount
				}
				mv.Status = models.VoucherStatusAvailable
				mv.UsedAt = nil
				if err := tx.SaveVoucher(mv); err != nil {
					return err
				}
				result.VoucherRestored = snap.VoucherUsage.UsedAmount
			}
		}

		if order.Status == models.OrderStatusPaid {
			refundAt := now
			payment := &models.Payment{
				OrderID:  order.ID,
				Provider: models.PaymentProviderInternal,
				Status:   models.PaymentStatusRefunded,
				Amount:   order.Amount,
				RefundAt: &refundAt,
			}
			if err := tx.CreatePayment(payment); err != nil {
				return err
			}
			order.Status = models.OrderStatusRefunded
			order.RefundAt = &refundAt
		} else {
			order.Status = models.OrderStatusCanceled
		}
		if err := tx.SaveOrder(order); err != nil {
			return err
		}
		result.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
