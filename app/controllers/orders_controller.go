package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/goupclub/goup/internal/pkg/database"
	"github.com/goupclub/goup/internal/pkg/enrollment"
	"github.com/goupclub/goup/internal/pkg/payment"
)

// HandleAdminOrders lists orders with optional activity_id, member_id and
// status filters.
func HandleAdminOrders(c *fiber.Ctx) error {
	filter := enrollment.OrderFilter{
		ActivityID: uint(c.QueryInt("activity_id", 0)),
		MemberID:   uint(c.QueryInt("member_id", 0)),
		Status:     c.Query("status"),
	}
	offset, limit := pagination(c)

	items, total, err := enrollment.ListOrders(database.GetDB(), filter, offset, limit)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"items": items, "total": total, "offset": offset, "limit": limit})
}

// HandleAdminPayments lists payment rows with optional order_id, provider and
// status filters.
func HandleAdminPayments(c *fiber.Ctx) error {
	filter := payment.PaymentFilter{
		OrderID:  uint(c.QueryInt("order_id", 0)),
		Provider: c.Query("provider"),
		Status:   c.Query("status"),
	}
	offset, limit := pagination(c)

	items, total, err := payment.ListPayments(database.GetDB(), filter, offset, limit)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"items": items, "total": total, "offset": offset, "limit": limit})
}
