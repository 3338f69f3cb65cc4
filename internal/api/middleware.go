package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/carebridge/realtime-service/internal/auth"
)

// Recovery keeps a handler panic from killing the request pipeline.
func Recovery(log *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("panic recovered", "path", c.Path(), "panic", r)
				_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "internal server error",
				})
			}
		}()
		return c.Next()
	}
}

// RequireAuth validates the bearer token and stores the claims for handlers.
func RequireAuth(v *auth.Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ParseBearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		claims, err := v.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		c.Locals("claims", claims)
		return c.Next()
	}
}
