// common.go
//
// Turn lifecycle and approval workflow engine for rental unit turnovers
// Copyright (c) 2026 Turnboard <dev@turnboard.dev> (https://turnboard.dev), Turnboard LLC
//
// This file is part of turnflow.
// turnflow is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// turnflow is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with turnflow.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Turnboard <dev@turnboard.dev> (https://turnboard.dev), Turnboard LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/turnboard/turnflow/internal/types"
	"github.com/turnboard/turnflow/internal/utils"
)

// actorID returns the authenticated actor's id from the request context,
// falling back to "system" for routes mounted without auth (tests, tooling).
func actorID(c *fiber.Ctx) string {
	if id, ok := c.Locals("actorId").(string); ok && id != "" {
		return id
	}
	return "system"
}

// actorRoles returns the authenticated actor's roles from the request context.
func actorRoles(c *fiber.Ctx) []string {
	if roles, ok := c.Locals("actorRoles").([]string); ok {
		return roles
	}
	return nil
}

// parseLimit reads a non-negative limit query parameter; 0 means unbounded.
func parseLimit(c *fiber.Ctx) int {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// serviceErrorResponse renders service-layer errors with their classified
// kind and status; anything unclassified becomes a 500.
func serviceErrorResponse(c *fiber.Ctx, err error, errorType string) error {
	if ce, ok := err.(*types.CustomError); ok {
		return utils.KindErrorResponse(c, ce)
	}
	return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, errorType)
}
