package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/turnboard/turnflow/internal/services"
	"github.com/turnboard/turnflow/internal/utils"
	"gorm.io/gorm"
)

// StageHandler handles stage registry routes
type StageHandler struct {
	DB *gorm.DB
}

// ListStages handles GET /api/stages
// @Summary List stages
// @Description List the active workflow stages ordered by sequence
// @Tags Stages
// @Accept json
// @Produce json
// @Success 200 {array} models.Stage
// @Failure 503 {object} utils.ErrorResponseStruct
// @Router /stages [get]
func (h *StageHandler) ListStages(c *fiber.Ctx) error {
	stages, err := services.ListActiveStages(h.DB)
	if err != nil {
		return serviceErrorResponse(c, err, "listStages")
	}
	return utils.SuccessResponse(c, stages, fiber.StatusOK)
}

// GetStage handles GET /api/stages/:key
// @Summary Get a stage
// @Description Get an active stage by key
// @Tags Stages
// @Accept json
// @Produce json
// @Param key path string true "Stage key"
// @Success 200 {object} models.Stage
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /stages/{key} [get]
func (h *StageHandler) GetStage(c *fiber.Ctx) error {
	stage, err := services.GetStage(h.DB, c.Params("key"))
	if err != nil {
		return serviceErrorResponse(c, err, "getStage")
	}
	return utils.SuccessResponse(c, stage, fiber.StatusOK)
}

// CreateStage handles POST /api/stages
// @Summary Create a stage
// @Description Add a stage to the registry; keys must be unique
// @Tags Stages
// @Accept json
// @Produce json
// @Param body body services.StageInput true "Stage definition"
// @Success 201 {object} models.Stage
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /stages [post]
func (h *StageHandler) CreateStage(c *fiber.Ctx) error {
	var input services.StageInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "stages.validation.input")
	}

	stage, err := services.CreateStage(h.DB, input)
	if err != nil {
		return serviceErrorResponse(c, err, "createStage")
	}
	return utils.SuccessResponse(c, stage, fiber.StatusCreated)
}

// UpdateStage handles PATCH /api/stages/:key
// @Summary Update a stage
// @Description Patch a stage's flags; removing the only default flag is rejected
// @Tags Stages
// @Accept json
// @Produce json
// @Param key path string true "Stage key"
// @Param body body services.StagePatch true "Fields to change"
// @Success 200 {object} models.Stage
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /stages/{key} [patch]
func (h *StageHandler) UpdateStage(c *fiber.Ctx) error {
	var patch services.StagePatch
	if err := c.BodyParser(&patch); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "stages.validation.input")
	}

	stage, err := services.UpdateStage(h.DB, c.Params("key"), patch)
	if err != nil {
		return serviceErrorResponse(c, err, "updateStage")
	}
	return utils.SuccessResponse(c, stage, fiber.StatusOK)
}

// DeleteStage handles DELETE /api/stages/:key
// @Summary Delete a stage
// @Description Remove a stage; default, final and referenced stages are protected
// @Tags Stages
// @Accept json
// @Produce json
// @Param key path string true "Stage key"
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /stages/{key} [delete]
func (h *StageHandler) DeleteStage(c *fiber.Ctx) error {
	if err := services.DeleteStage(h.DB, c.Params("key")); err != nil {
		return serviceErrorResponse(c, err, "deleteStage")
	}
	return utils.MutationSuccessResponse(c, 0, 1)
}

// ListThresholds handles GET /api/thresholds
// @Summary List approval thresholds
// @Description List the active approval threshold bands
// @Tags Stages
// @Accept json
// @Produce json
// @Success 200 {array} models.ApprovalThreshold
// @Failure 503 {object} utils.ErrorResponseStruct
// @Router /thresholds [get]
func (h *StageHandler) ListThresholds(c *fiber.Ctx) error {
	thresholds, err := services.ListActiveThresholds(h.DB)
	if err != nil {
		return serviceErrorResponse(c, err, "listThresholds")
	}
	return utils.SuccessResponse(c, thresholds, fiber.StatusOK)
}
