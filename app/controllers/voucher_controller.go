package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/goupclub/goup/app/models"
	"github.com/goupclub/goup/internal/pkg/database"
	"github.com/goupclub/goup/internal/pkg/voucher"
)

// HandleGetVoucherConfig returns the active discount and cashback
// configuration.
func HandleGetVoucherConfig(c *fiber.Ctx) error {
	store := voucher.NewConfigStore(database.GetDB())
	cfg, err := store.Latest()
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(cfg)
}

type voucherConfigRequest struct {
	DiscountRate      float64 `json:"discount_rate" validate:"gte=0,lte=1"`
	MaxDiscount       int64   `json:"max_discount" validate:"gte=0"`
	CashbackRate      float64 `json:"cashback_rate" validate:"gte=0,lte=1"`
	SingleVoucherOnly bool    `json:"single_voucher_only"`
	MinAmount         int64   `json:"min_amount" validate:"gte=0"`
	CategoryRules     string  `json:"category_rules"`
	CashbackTiers     string  `json:"cashback_tiers"`
	SpecialActivities string  `json:"special_activities"`
}

// HandleUpdateVoucherConfig appends a new configuration row. Readers pick it
// up once the short cache window expires.
func HandleUpdateVoucherConfig(c *fiber.Ctx) error {
	var req voucherConfigRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	cfg := &models.VoucherConfig{
		DiscountRate:      req.DiscountRate,
		MaxDiscount:       req.MaxDiscount,
		CashbackRate:      req.CashbackRate,
		SingleVoucherOnly: req.SingleVoucherOnly,
		MinAmount:         req.MinAmount,
		CategoryRules:     req.CategoryRules,
		CashbackTiers:     req.CashbackTiers,
		SpecialActivities: req.SpecialActivities,
	}
	store := voucher.NewConfigStore(database.GetDB())
	if err := store.Update(cfg); err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(cfg)
}

// HandleMemberVouchers lists a member's vouchers, newest first.
func HandleMemberVouchers(c *fiber.Ctx) error {
	memberID := paramUint(c, "id")
	if memberID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid member id")
	}

	offset, limit := pagination(c)
	items, total, err := voucher.ListMemberVouchers(database.GetDB(), memberID, offset, limit)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"items": items, "total": total, "offset": offset, "limit": limit})
}

type promoVoucherRequest struct {
	MemberID uint   `json:"member_id" validate:"required"`
	Title    string `json:"title" validate:"required,max=128"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
}

// HandleIssuePromoVoucher creates a promo voucher for a member.
func HandleIssuePromoVoucher(c *fiber.Ctx) error {
	var req promoVoucherRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	v, err := voucher.IssuePromo(database.GetDB(), req.MemberID, req.Title, req.Amount)
	if err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(v)
}
