package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/turnboard/turnflow/internal/config"
	"github.com/turnboard/turnflow/internal/services"
	"github.com/turnboard/turnflow/internal/types"
)

// AuthAdmin validates that the request has admin role authorization
func AuthAdmin(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, cfg, []string{"admin"}, "turns.authorization.admin")
	}
}

// AuthUser validates that the request has a signed-in operator of any
// workflow role. Tier-level checks happen in the approval service, where
// the decided tier is known.
func AuthUser(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, cfg, []string{"user", "dfo", "ho", "admin"}, "turns.authorization.user")
	}
}

// authorize performs the authorization check
func authorize(c *fiber.Ctx, cfg *config.Config, roles []string, errorType string) error {
	session := c.Cookies("cookie_session")
	if session == "" {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Kind:    types.KindForbidden,
			Message: "Authorizer cookie \"cookie_session\" not found",
			Type:    errorType,
		}
	}

	// Client init waits for the first authenticated request so the redirect
	// URL takes the request's protocol and host.
	if !services.IsAuthorizerInitialized() {
		if err := services.InitAuthorizer(cfg, c.Protocol(), c.Hostname()); err != nil {
			return &types.CustomError{
				Code:    fiber.StatusServiceUnavailable,
				Kind:    types.KindUnavailable,
				Message: fmt.Sprintf("Authorization service unavailable: %v", err),
				Type:    errorType,
			}
		}
	}

	actor, err := services.ValidateSession(session, roles)
	if err != nil {
		return &types.CustomError{
			Code:    fiber.StatusForbidden,
			Kind:    types.KindForbidden,
			Message: fmt.Sprintf("Invalid session: %v", err),
			Type:    errorType,
		}
	}

	// The audit recorder and approval workflow read these downstream.
	c.Locals("actorId", actor.ID)
	c.Locals("actorRoles", actor.Roles)
	c.Locals("actor", actor)

	return c.Next()
}
