package router

import (
	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	health := func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	}
	app.Get("/health", health)
	app.Get("/api/health", health)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
