package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/turnboard/turnflow/internal/types"
)

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// ErrorResponse sends a standard error response envelope
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}

// KindErrorResponse renders a CustomError with its kind and any detail rows
// (outstanding approval tiers, validation particulars).
func KindErrorResponse(c *fiber.Ctx, ce *types.CustomError) error {
	body := fiber.Map{
		"status":    ce.Code,
		"message":   ce.Message,
		"ok":        false,
		"kind":      string(ce.Kind),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      ce.Type,
	}
	if len(ce.Details) > 0 {
		body["details"] = ce.Details
	}
	if ce.Kind == types.KindConflict && strings.HasPrefix(ce.Message, "E_VERSION") {
		body["versionError"] = true
	}
	return c.Status(ce.Code).JSON(body)
}

// VersionErrorResponse sends a version conflict error (409)
func VersionErrorResponse(c *fiber.Ctx) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"status":       fiber.StatusConflict,
		"message":      "E_VERSION - Refresh and reconcile with current version and retry.",
		"ok":           false,
		"versionError": true,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"url":          c.OriginalURL(),
		"type":         "version",
	})
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"status":    fiber.StatusNotFound,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
	})
}

// MutationSuccessResponse sends a success response for mutations (POST/DELETE)
func MutationSuccessResponse(c *fiber.Ctx, newVersion uint64, affectedRows int64) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":      "Success",
		"ok":           true,
		"newVersion":   fmt.Sprintf("%d", newVersion),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"affectedRows": affectedRows,
	})
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status       int      `json:"status"`
	Message      string   `json:"message"`
	Ok           bool     `json:"ok"`
	Kind         string   `json:"kind,omitempty"`
	Timestamp    string   `json:"timestamp"`
	URL          string   `json:"url"`
	Type         string   `json:"type,omitempty"`
	Details      []string `json:"details,omitempty"`
	VersionError bool     `json:"versionError,omitempty"`
}

// SuccessResponseStruct defines the schema for mutation success responses
type SuccessResponseStruct struct {
	Message      string `json:"message"`
	Ok           bool   `json:"ok"`
	NewVersion   string `json:"newVersion"`
	Timestamp    string `json:"timestamp"`
	AffectedRows int64  `json:"affectedRows"`
}
