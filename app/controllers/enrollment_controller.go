package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/goupclub/goup/internal/pkg/database"
	"github.com/goupclub/goup/internal/pkg/enrollment"
)

// HandleActivitySignup enrolls a member into an activity, either as a
// confirmed order or on the waitlist when capacity is exhausted.
func HandleActivitySignup(c *fiber.Ctx) error {
	var req enrollment.SignupRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	svc := enrollment.NewServiceFromDB(database.GetDB())
	res, err := svc.Signup(c.Context(), req)
	if err != nil {
		return enrollmentError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"order":      res.Order,
		"waitlisted": res.Waitlisted,
	})
}

type cancelRequest struct {
	OrderID uint `json:"order_id" validate:"required"`
}

// HandleActivityCancel cancels an enrollment before the activity starts,
// releasing capacity and restoring any redeemed voucher balance.
func HandleActivityCancel(c *fiber.Ctx) error {
	var req cancelRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	svc := enrollment.NewServiceFromDB(database.GetDB())
	res, err := svc.Cancel(c.Context(), req.OrderID)
	if err != nil {
		return enrollmentError(c, err)
	}

	return c.JSON(fiber.Map{
		"order":            res.Order,
		"voucher_restored": res.VoucherRestored,
	})
}

func enrollmentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, enrollment.ErrActivityNotFound),
		errors.Is(err, enrollment.ErrMemberNotFound),
		errors.Is(err, enrollment.ErrOrderNotFound):
		return jsonError(c, fiber.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, enrollment.ErrMemberDisabled),
		errors.Is(err, enrollment.ErrSignupClosed),
		errors.Is(err, enrollment.ErrGroupNotAllowed),
		errors.Is(err, enrollment.ErrAlreadyEnrolled),
		errors.Is(err, enrollment.ErrVoucherNotUsable),
		errors.Is(err, enrollment.ErrOrderClosed),
		errors.Is(err, enrollment.ErrCancelAfterStart),
		errors.Is(err, enrollment.ErrInvalidAmount):
		return jsonError(c, fiber.StatusUnprocessableEntity, "rejected", err.Error())
	default:
		return internalError(c, err)
	}
}
