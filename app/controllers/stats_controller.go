package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/goupclub/goup/internal/pkg/database"
	"github.com/goupclub/goup/internal/pkg/metrics/counter"
	"github.com/goupclub/goup/internal/pkg/statistics"
)

// HandleStatsOverview returns order aggregates plus the webhook outcome
// counters for the operator dashboard.
func HandleStatsOverview(c *fiber.Ctx) error {
	overview, err := statistics.GetOverview(database.GetDB())
	if err != nil {
		return internalError(c, err)
	}

	outcomes, err := counter.NotifyOutcomes()
	if err != nil {
		// counters are best effort, the aggregates still ship
		outcomes = map[string]int64{}
	}

	return c.JSON(fiber.Map{
		"overview":        overview,
		"notify_outcomes": outcomes,
	})
}

// HandleStatsDaily returns daily order and turnover series for a date range,
// defaulting to the last 14 days.
func HandleStatsDaily(c *fiber.Ctx) error {
	to := time.Now()
	from := to.AddDate(0, 0, -13)

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid from date, expected YYYY-MM-DD")
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid to date, expected YYYY-MM-DD")
		}
		to = parsed
	}
	if to.Before(from) {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Date range is inverted")
	}

	series, err := statistics.GetDaily(database.GetDB(), from, to)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"items": series})
}
