package controllers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/goupclub/goup/internal/pkg/database"
	"github.com/goupclub/goup/internal/pkg/middleware"
	"github.com/goupclub/goup/internal/pkg/points"
)

// HandleMemberPoints returns a member's points account.
func HandleMemberPoints(c *fiber.Ctx) error {
	memberID := paramUint(c, "id")
	if memberID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid member id")
	}

	svc := points.NewServiceFromDB(database.GetDB())
	account, err := svc.Account(memberID)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(account)
}

// HandleMemberPointsTransactions lists a member's ledger entries, newest
// first.
func HandleMemberPointsTransactions(c *fiber.Ctx) error {
	memberID := paramUint(c, "id")
	if memberID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid member id")
	}

	offset, limit := pagination(c)
	svc := points.NewServiceFromDB(database.GetDB())
	items, total, err := svc.Transactions(memberID, offset, limit)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"items": items, "total": total, "offset": offset, "limit": limit})
}

// HandlePointsTransactions lists ledger entries for the member named in the
// member_id query parameter. Operator view of the same ledger.
func HandlePointsTransactions(c *fiber.Ctx) error {
	memberID := uint(c.QueryInt("member_id", 0))
	if memberID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "member_id query parameter is required")
	}

	offset, limit := pagination(c)
	svc := points.NewServiceFromDB(database.GetDB())
	items, total, err := svc.Transactions(memberID, offset, limit)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"items": items, "total": total, "offset": offset, "limit": limit})
}

type pointsGrantRequest struct {
	MemberID uint   `json:"member_id" validate:"required"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Note     string `json:"note"`
}

// HandlePointsGrant credits points to a member, recorded with the acting
// admin for audit.
func HandlePointsGrant(c *fiber.Ctx) error {
	var req pointsGrantRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	svc := points.NewServiceFromDB(database.GetDB())
	txn, err := svc.Grant(req.MemberID, req.Amount, "admin", adminMeta(c, req.Note))
	if err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(txn)
}

type pointsAdjustRequest struct {
	MemberID uint   `json:"member_id" validate:"required"`
	Delta    int64  `json:"delta" validate:"required"`
	Note     string `json:"note"`
}

// HandlePointsAdjust applies a signed correction to a member's balance.
// Debits clamp at zero rather than going negative.
func HandlePointsAdjust(c *fiber.Ctx) error {
	var req pointsAdjustRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	svc := points.NewServiceFromDB(database.GetDB())
	txn, err := svc.Adjust(req.MemberID, req.Delta, "admin", adminMeta(c, req.Note))
	if err != nil {
		if errors.Is(err, points.ErrInvalidAmount) {
			return jsonError(c, fiber.StatusUnprocessableEntity, "rejected", err.Error())
		}
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(txn)
}

func adminMeta(c *fiber.Ctx, note string) string {
	raw, _ := json.Marshal(map[string]string{
		"admin": middleware.AdminUsername(c),
		"note":  note,
	})
	return string(raw)
}
