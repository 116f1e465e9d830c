package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/turnboard/turnflow/internal/services"
	"github.com/turnboard/turnflow/internal/types"
	"github.com/turnboard/turnflow/internal/utils"
	"gorm.io/gorm"
)

// ApprovalHandler handles approval workflow routes
type ApprovalHandler struct {
	DB *gorm.DB
}

// SubmitDecisions handles POST /api/turns/:id/approvals
// @Summary Submit approval decisions
// @Description Record one or more tier decisions for a turn; a single object or an array are both accepted
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Turn ID"
// @Param body body services.DecisionInput true "Decision(s)"
// @Success 200 {object} services.ApprovalSummary
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /turns/{id}/approvals [post]
func (h *ApprovalHandler) SubmitDecisions(c *fiber.Ctx) error {
	var body types.FlexList[services.DecisionInput]
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "approvals.validation.input")
	}
	decisions := body.Slice()
	if len(decisions) == 0 {
		return utils.ErrorResponse(c, "At least one decision is required", fiber.StatusBadRequest, "approvals.validation.input")
	}

	turnID := c.Params("id")
	var summary *services.ApprovalSummary
	for _, decision := range decisions {
		var err error
		summary, err = services.SubmitDecision(h.DB, turnID, actorID(c), actorRoles(c), decision)
		if err != nil {
			return serviceErrorResponse(c, err, "submitDecisions")
		}
	}
	return utils.SuccessResponse(c, summary, fiber.StatusOK)
}

// GetApprovals handles GET /api/turns/:id/approvals
// @Summary Get approval state
// @Description Get the decision records and recomputed aggregate approval state of a turn
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Turn ID"
// @Success 200 {object} services.ApprovalSummary
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /turns/{id}/approvals [get]
func (h *ApprovalHandler) GetApprovals(c *fiber.Ctx) error {
	summary, err := services.GetTurnApprovals(h.DB, c.Params("id"))
	if err != nil {
		return serviceErrorResponse(c, err, "getApprovals")
	}
	return utils.SuccessResponse(c, summary, fiber.StatusOK)
}
