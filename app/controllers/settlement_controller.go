package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/goupclub/goup/internal/pkg/database"
	"github.com/goupclub/goup/internal/pkg/settlement"
)

// HandleSettlementRun settles points for an activity's paid orders. The run
// is idempotent; re-running skips orders already settled.
func HandleSettlementRun(c *fiber.Ctx) error {
	var params settlement.RunParams
	if !parseAndValidate(c, &params) {
		return nil
	}

	runner := settlement.NewRunnerFromDB(database.GetDB())
	res, err := runner.Run(c.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrActivityNotFound):
			return jsonError(c, fiber.StatusNotFound, "not_found", err.Error())
		case errors.Is(err, settlement.ErrTooEarly):
			return jsonError(c, fiber.StatusUnprocessableEntity, "too_early", err.Error())
		default:
			return internalError(c, err)
		}
	}
	return c.JSON(res)
}
