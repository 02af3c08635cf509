package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/goupclub/goup/app/models"
	"github.com/goupclub/goup/internal/pkg/database"
	"github.com/goupclub/goup/internal/pkg/middleware"
)

type adminLoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6"`
}

// HandleAdminLogin exchanges operator credentials for a bearer token.
func HandleAdminLogin(c *fiber.Ctx) error {
	var req adminLoginRequest
	if !parseAndValidate(c, &req) {
		return nil
	}

	db := database.GetDB()
	var admin models.AdminUser
	err := db.Where("username = ?", req.Username).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Invalid credentials")
	}
	if err != nil {
		return internalError(c, err)
	}
	if admin.Disabled || !admin.CheckPassword(req.Password) {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Invalid credentials")
	}

	token, err := middleware.IssueAdminToken(admin.Username)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"token":    token,
		"username": admin.Username,
	})
}
