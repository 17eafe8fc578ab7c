package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/green-campus-api/internal/utils"
)

// Roles carried in the JWT role claim.
const (
	AuthRoleAny      = "any"
	AuthRoleStudent  = "student"
	AuthRoleReviewer = "reviewer"
	AuthRoleAdmin    = "admin"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with authentication and role guards.
// Reviewer routes also admit admins.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser
	if !requireUser && role != AuthRoleAny {
		requireUser = true
	}

	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id")
		if requireUser && userID == nil {
			return utils.SendErrorWithCode(c, fiber.StatusUnauthorized, "unauthorized", "authentication required")
		}

		if role == AuthRoleAny {
			return handler(c)
		}

		currentRole := normalizeRoleValue(c.Locals("user_role"))
		switch role {
		case AuthRoleReviewer:
			if currentRole != AuthRoleReviewer && currentRole != AuthRoleAdmin {
				return utils.SendErrorWithCode(c, fiber.StatusForbidden, "forbidden", "insufficient permissions")
			}
		default:
			if currentRole != role {
				return utils.SendErrorWithCode(c, fiber.StatusForbidden, "forbidden", "insufficient permissions")
			}
		}

		return handler(c)
	}
}
