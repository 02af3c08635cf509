package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/goupclub/goup/internal/pkg/env"
)

// AdminUsernameKey is the Locals key under which the authenticated admin's
// username is stored for downstream handlers.
const AdminUsernameKey = "admin_username"

const defaultTokenTTL = 12 * time.Hour

func jwtSecret() []byte {
	return []byte(env.GetEnv("JWT_SECRET", "goup-dev-secret"))
}

// IssueAdminToken creates a signed session token for an operator.
func IssueAdminToken(username string) (string, error) {
	claims := jwt.MapClaims{
		"sub": username,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(defaultTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

// RequireAdmin guards operator endpoints. It expects a bearer token issued by
// IssueAdminToken and stores the admin username in Locals for audit fields.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "missing bearer token",
			})
		}

		raw := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return jwtSecret(), nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "invalid or expired token",
			})
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "invalid token claims",
			})
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "invalid token subject",
			})
		}

		c.Locals(AdminUsernameKey, sub)
		return c.Next()
	}
}

// AdminUsername returns the authenticated admin's username from Locals, or
// an empty string outside a guarded route.
func AdminUsername(c *fiber.Ctx) string {
	if v, ok := c.Locals(AdminUsernameKey).(string); ok {
		return v
	}
	return ""
}
