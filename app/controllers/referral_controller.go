package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/goupclub/goup/internal/pkg/database"
	"github.com/goupclub/goup/internal/pkg/referral"
)

// HandleReferralCode returns a member's invite code, creating one on first
// access.
func HandleReferralCode(c *fiber.Ctx) error {
	memberID := paramUint(c, "memberId")
	if memberID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid member id")
	}

	svc := referral.NewServiceFromDB(database.GetDB())
	code, err := svc.Code(c.Context(), memberID)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"member_id": memberID, "code": code})
}

type referralBindRequest struct {
	MemberID uint   `json:"member_id" validate:"required"`
	Code     string `json:"code" validate:"required"`
	Channel  string `json:"channel"`
}

// HandleReferralBind binds a member to the inviter owning the given code.
// A member already bound keeps the original inviter.
func HandleReferralBind(c *fiber.Ctx) error {
	var req referralBindRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	svc := referral.NewServiceFromDB(database.GetDB())
	res, err := svc.Bind(c.Context(), req.MemberID, req.Code, req.Channel)
	if err != nil {
		switch {
		case errors.Is(err, referral.ErrInvalidCode),
			errors.Is(err, referral.ErrSelfReferral):
			return jsonError(c, fiber.StatusUnprocessableEntity, "rejected", err.Error())
		default:
			return internalError(c, err)
		}
	}
	return c.JSON(res)
}
