package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"webaudit_backend/pkg/utils/jwt"
)

const claimsKey = "user"

// AuthMiddleware validates the bearer token and stores its claims in locals.
func AuthMiddleware(signer *jwt.Signer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or malformed token",
			})
		}

		claims, err := signer.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// CurrentClaims returns the claims stored by AuthMiddleware.
func CurrentClaims(c *fiber.Ctx) (*jwt.Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*jwt.Claims)
	return claims, ok && claims != nil
}
