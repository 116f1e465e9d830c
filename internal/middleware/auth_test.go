package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/turnboard/turnflow/internal/config"
	"github.com/turnboard/turnflow/internal/middleware"
	"github.com/turnboard/turnflow/internal/types"
)

func setupAuthApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if ce, ok := err.(*types.CustomError); ok {
				return c.Status(ce.Code).JSON(fiber.Map{"message": ce.Message})
			}
			return fiber.DefaultErrorHandler(c, err)
		},
	})
	app.Get("/guarded", middleware.AuthUser(cfg), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

// TestAuthRequiresSessionCookie verifies requests without the session cookie
// are refused before the authorizer is contacted
func TestAuthRequiresSessionCookie(t *testing.T) {
	cfg := &config.Config{AuthzURL: "http://127.0.0.1:1", AuthzClientID: "test-client"}
	app := setupAuthApp(cfg)

	resp, err := app.Test(httptest.NewRequest("GET", "/guarded", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("Expected 403, got %d", resp.StatusCode)
	}
}

// TestAuthInitFailureReturnsUnavailable verifies an unreachable authorizer
// yields 503 on every authenticated request, each one retrying the init
func TestAuthInitFailureReturnsUnavailable(t *testing.T) {
	cfg := &config.Config{AuthzURL: "http://127.0.0.1:1", AuthzClientID: "test-client"}
	app := setupAuthApp(cfg)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/guarded", nil)
		req.AddCookie(&http.Cookie{Name: "cookie_session", Value: "session-token"})
		resp, err := app.Test(req, 5000)
		if err != nil {
			t.Fatalf("Request %d failed: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusServiceUnavailable {
			t.Errorf("Request %d: expected 503, got %d", i, resp.StatusCode)
		}
	}
}
