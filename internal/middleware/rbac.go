package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grading-go/internal/service"
	"github.com/noah-isme/gema-grading-go/internal/utils"
)

// RequireGrader admits teachers and admins, the only actors allowed to run
// or inspect grading.
func RequireGrader() fiber.Handler {
	return RequireRole(service.RoleTeacher, service.RoleAdmin)
}

// RequireRole ensures that the bound actor has one of the allowed roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		actor, ok := CurrentActor(c)
		if !ok || actor.ID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if _, ok := allowed[actor.Role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
