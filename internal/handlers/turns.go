// turns.go
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
	"github.com/gofiber/fiber/v2"
	"github.com/turnboard/turnflow/internal/services"
	"github.com/turnboard/turnflow/internal/types"
	"github.com/turnboard/turnflow/internal/utils"
	"gorm.io/gorm"
)

// TurnHandler handles turn lifecycle routes
type TurnHandler struct {
	DB *gorm.DB
}

// ListTurns handles GET /api/turns
// @Summary List turns
// @Description List non-deleted turns, optionally filtered by property and status
// @Tags Turns
// @Accept json
// @Produce json
// @Param propertyId query string false "Filter by property"
// @Param status query string false "Filter by status"
// @Success 200 {array} models.Turn
// @Failure 503 {object} utils.ErrorResponseStruct
// @Router /turns [get]
func (h *TurnHandler) ListTurns(c *fiber.Ctx) error {
	turns, err := services.ListTurns(h.DB, c.Query("propertyId"), c.Query("status"))
	if err != nil {
		return serviceErrorResponse(c, err, "listTurns")
	}
	return utils.SuccessResponse(c, turns, fiber.StatusOK)
}

// CreateTurn handles POST /api/turns
// @Summary Create a turn
// @Description Open a new turn in the default stage
// @Tags Turns
// @Accept json
// @Produce json
// @Param body body services.TurnInput true "Turn definition"
// @Success 201 {object} models.Turn
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /turns [post]
func (h *TurnHandler) CreateTurn(c *fiber.Ctx) error {
	var input services.TurnInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "turns.validation.input")
	}

	turn, err := services.CreateTurn(h.DB, input, actorID(c))
	if err != nil {
		return serviceErrorResponse(c, err, "createTurn")
	}
	return utils.SuccessResponse(c, turn, fiber.StatusCreated)
}

// GetTurn handles GET /api/turns/:id
// @Summary Get a turn
// @Description Get a turn with its stage and vendor
// @Tags Turns
// @Accept json
// @Produce json
// @Param id path string true "Turn ID"
// @Success 200 {object} models.Turn
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /turns/{id} [get]
func (h *TurnHandler) GetTurn(c *fiber.Ctx) error {
	turn, err := services.GetTurn(h.DB, c.Params("id"))
	if err != nil {
		return serviceErrorResponse(c, err, "getTurn")
	}
	return utils.SuccessResponse(c, turn, fiber.StatusOK)
}

// UpdateTurn handles PATCH /api/turns/:id
// @Summary Update a turn
// @Description Apply a partial update through the turn state machine with an optimistic version check
// @Tags Turns
// @Accept json
// @Produce json
// @Param id path string true "Turn ID"
// @Param body body object true "Version, patch fields and optional comment"
// @Success 200 {object} models.Turn
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /turns/{id} [patch]
func (h *TurnHandler) UpdateTurn(c *fiber.Ctx) error {
	var body struct {
		Version types.FlexUint64   `json:"version"`
		Patch   services.TurnPatch `json:"patch"`
		Comment string             `json:"comment"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "turns.validation.input")
	}

	turn, err := services.UpdateTurn(h.DB, c.Params("id"), body.Version.Uint64(), body.Patch, actorID(c), body.Comment)
	if err != nil {
		return serviceErrorResponse(c, err, "updateTurn")
	}
	return utils.SuccessResponse(c, turn, fiber.StatusOK)
}

// DeleteTurn handles DELETE /api/turns/:id
// @Summary Delete a turn
// @Description Administrative delete; the turn is flagged and its audit trail kept
// @Tags Turns
// @Accept json
// @Produce json
// @Param id path string true "Turn ID"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /turns/{id} [delete]
func (h *TurnHandler) DeleteTurn(c *fiber.Ctx) error {
	if err := services.DeleteTurn(h.DB, c.Params("id"), actorID(c)); err != nil {
		return serviceErrorResponse(c, err, "deleteTurn")
	}
	return utils.MutationSuccessResponse(c, 0, 1)
}

// GetTurnHistory handles GET /api/turns/:id/history
// @Summary Get turn history
// @Description Get a turn's audit trail, newest first
// @Tags Turns
// @Accept json
// @Produce json
// @Param id path string true "Turn ID"
// @Param limit query int false "Max entries"
// @Success 200 {array} models.TurnHistory
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /turns/{id}/history [get]
func (h *TurnHandler) GetTurnHistory(c *fiber.Ctx) error {
	entries, err := services.GetTurnHistory(h.DB, c.Params("id"), parseLimit(c))
	if err != nil {
		return serviceErrorResponse(c, err, "getTurnHistory")
	}
	return utils.SuccessResponse(c, entries, fiber.StatusOK)
}
