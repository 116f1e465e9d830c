// lockbox.go
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
	"github.com/turnboard/turnflow/internal/utils"
	"gorm.io/gorm"
)

// LockBoxHandler handles lock box ledger routes
type LockBoxHandler struct {
	DB *gorm.DB
}

// GetLockBox handles GET /api/properties/:id/lockbox
// @Summary Get lock box state
// @Description Get the current lock box snapshot for a property
// @Tags LockBox
// @Accept json
// @Produce json
// @Param id path string true "Property ID"
// @Success 200 {object} services.LockBoxSnapshot
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /properties/{id}/lockbox [get]
func (h *LockBoxHandler) GetLockBox(c *fiber.Ctx) error {
	snapshot, err := services.GetLockBox(h.DB, c.Params("id"))
	if err != nil {
		return serviceErrorResponse(c, err, "getLockBox")
	}
	return utils.SuccessResponse(c, snapshot, fiber.StatusOK)
}

// UpdateLockBox handles POST /api/properties/:id/lockbox
// @Summary Change lock box state
// @Description Change a property's lock box fields; every change needs a reason and lands in the ledger
// @Tags LockBox
// @Accept json
// @Produce json
// @Param id path string true "Property ID"
// @Param body body services.LockBoxInput true "Lock box change"
// @Success 200 {object} services.LockBoxSnapshot
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /properties/{id}/lockbox [post]
func (h *LockBoxHandler) UpdateLockBox(c *fiber.Ctx) error {
	var input services.LockBoxInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "lockbox.validation.input")
	}

	snapshot, err := services.UpdateLockBox(h.DB, c.Params("id"), input, actorID(c))
	if err != nil {
		return serviceErrorResponse(c, err, "updateLockBox")
	}
	return utils.SuccessResponse(c, snapshot, fiber.StatusOK)
}

// GetLockBoxHistory handles GET /api/properties/:id/lockbox/history
// @Summary Get lock box history
// @Description Get the append-only access-code trail for a property, newest first
// @Tags LockBox
// @Accept json
// @Produce json
// @Param id path string true "Property ID"
// @Param limit query int false "Max entries"
// @Success 200 {array} models.LockBoxHistory
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /properties/{id}/lockbox/history [get]
func (h *LockBoxHandler) GetLockBoxHistory(c *fiber.Ctx) error {
	entries, err := services.GetLockBoxHistory(h.DB, c.Params("id"), parseLimit(c))
	if err != nil {
		return serviceErrorResponse(c, err, "getLockBoxHistory")
	}
	return utils.SuccessResponse(c, entries, fiber.StatusOK)
}
