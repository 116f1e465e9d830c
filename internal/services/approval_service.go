package services

import (
	"fmt"
	"time"

	"github.com/turnboard/turnflow/internal/models"
	"github.com/turnboard/turnflow/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tierRoles maps each approval tier to the actor roles allowed to decide it.
var tierRoles = map[string][]string{
	models.TierDfo: {"dfo", "admin"},
	models.TierHo:  {"ho", "admin"},
}

// DecisionInput is one approver's decision on a turn.
type DecisionInput struct {
	Tier     string  `json:"tier"`
	Decision string  `json:"decision"`
	Comment  *string `json:"comment"`
	// Override allows an approver to supersede their own earlier decision;
	// the earlier record stays in place, corrections are new records.
	Override bool `json:"override"`
}

// ApprovalState is the aggregate approval status of a turn, recomputed from
// the decision records. The stored turn flags are a denormalized cache of
// this; the decisions are ground truth.
type ApprovalState struct {
	Required        []RequiredTier    `json:"required"`
	Latest          map[string]string `json:"latest"`
	Satisfied       bool              `json:"satisfied"`
	Rejected        bool              `json:"rejected"`
	RejectionReason *string           `json:"rejectionReason"`
}

// ApprovalSummary is the result of listing or submitting decisions.
type ApprovalSummary struct {
	Decisions []models.Approval `json:"decisions"`
	State     ApprovalState     `json:"state"`
}

// ComputeApprovalState derives the aggregate approval status from the
// decision history. Decisions must be ordered oldest first; the latest
// decision per tier wins.
func ComputeApprovalState(required []RequiredTier, decisions []models.Approval) ApprovalState {
	state := ApprovalState{
		Required: required,
		Latest:   make(map[string]string),
	}

	latestByTier := make(map[string]models.Approval)
	for _, d := range decisions {
		latestByTier[d.Tier] = d
		state.Latest[d.Tier] = d.Decision
	}

	state.Satisfied = true
	for _, tier := range required {
		latest, ok := latestByTier[tier.Tier]
		if !ok || latest.Decision != models.DecisionApproved {
			state.Satisfied = false
		}
		if ok && latest.Decision == models.DecisionRejected {
			state.Rejected = true
			if latest.Comment != nil && state.RejectionReason == nil {
				state.RejectionReason = latest.Comment
			}
		}
	}
	if len(required) == 0 {
		state.Satisfied = true
	}

	return state
}

// outstandingTiers returns the required tiers whose latest decision for the
// turn is not "approved", in tier order.
func outstandingTiers(tx *gorm.DB, turnID string, required []RequiredTier) ([]string, error) {
	decisions, err := listDecisions(tx, turnID)
	if err != nil {
		return nil, err
	}
	state := ComputeApprovalState(required, decisions)

	var outstanding []string
	for _, tier := range required {
		if state.Latest[tier.Tier] != models.DecisionApproved {
			outstanding = append(outstanding, tier.Tier)
		}
	}
	return outstanding, nil
}

// SubmitDecision records an approval or rejection for a tier on a turn,
// enforcing role authorization, sequential-approval ordering and the
// one-decision-per-approver rule, then refreshes the turn's denormalized
// approval flags from the decision records.
func SubmitDecision(db *gorm.DB, turnID, approverID string, roles []string, input DecisionInput) (*ApprovalSummary, error) {
	if _, ok := tierRoles[input.Tier]; !ok {
		return nil, types.NewValidationError(fmt.Sprintf("Unknown approval tier '%s'", input.Tier), "approvals.submit")
	}
	if input.Decision != models.DecisionApproved && input.Decision != models.DecisionRejected {
		return nil, types.NewValidationError(fmt.Sprintf("Invalid decision '%s'", input.Decision), "approvals.submit")
	}
	if !roleAuthorized(roles, input.Tier) {
		return nil, types.NewForbiddenError(fmt.Sprintf("Actor is not authorized to decide tier '%s'", input.Tier), "approvals.submit")
	}

	var summary *ApprovalSummary
	err := db.Transaction(func(tx *gorm.DB) error {
		var turn models.Turn
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND is_deleted = ?", turnID, false).
			First(&turn).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return types.NewNotFoundError(fmt.Sprintf("Turn '%s' not found", turnID), "approvals.submit")
			}
			return err
		}

		required, err := ResolveTiers(tx, approvalAmount(&turn))
		if err != nil {
			return err
		}
		tier, ok := findRequiredTier(required, input.Tier)
		if !ok {
			return types.NewValidationError(fmt.Sprintf("Tier '%s' is not required for this turn's cost", input.Tier), "approvals.submit")
		}

		decisions, err := listDecisions(tx, turnID)
		if err != nil {
			return err
		}

		if tier.RequiresSequential && input.Decision == models.DecisionApproved {
			if err := checkSequence(required, decisions, tier); err != nil {
				return err
			}
		}

		if !input.Override {
			for _, d := range decisions {
				if d.Tier == input.Tier && d.ApproverID == approverID {
					return types.NewConflictError(
						fmt.Sprintf("Approver already decided tier '%s' for this turn", input.Tier), "approvals.submit")
				}
			}
		}

		approval := models.Approval{
			TurnID:     turnID,
			ApproverID: approverID,
			Tier:       input.Tier,
			Decision:   input.Decision,
			Comment:    input.Comment,
			DecidedAt:  time.Now(),
		}
		if err := tx.Create(&approval).Error; err != nil {
			return err
		}
		decisions = append(decisions, approval)

		state := ComputeApprovalState(required, decisions)
		before := turn
		after := turn
		refreshApprovalFlags(&after, required, decisions, state)

		after.RowVersion = turn.RowVersion + 1
		result := tx.Model(&models.Turn{}).
			Where("id = ? AND row_version = ?", turn.ID, turn.RowVersion).
			Select("*").Omit("id", "created_at", "turn_number", "property_id", "created_by").
			Updates(&after)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return types.NewConflictError("E_VERSION - Turn was modified concurrently.", "approvals.submit")
		}

		comment := ""
		if input.Comment != nil {
			comment = *input.Comment
		}
		if err := recordTurnEvent(tx, &after, models.ActionApproval, approverID, comment, map[string]interface{}{
			"tier":     input.Tier,
			"decision": input.Decision,
		}); err != nil {
			return err
		}
		// A rejection flips the turn status; the mandatory status_change
		// trigger fires for that like any other mutation.
		changedFields := map[string]interface{}{
			"tier":     input.Tier,
			"decision": input.Decision,
		}
		if before.Status != after.Status {
			changedFields["status"] = after.Status
		}
		if err := recordTurnMutation(tx, &before, &after, approverID, comment, changedFields); err != nil {
			return err
		}

		summary = &ApprovalSummary{Decisions: decisions, State: state}
		return nil
	})
	if err != nil {
		return nil, wrapServiceError(err, "approvals.submit")
	}

	return summary, nil
}

// GetTurnApprovals returns the decision records and the recomputed
// aggregate state for a turn.
func GetTurnApprovals(db *gorm.DB, turnID string) (*ApprovalSummary, error) {
	turn, err := GetTurn(db, turnID)
	if err != nil {
		return nil, err
	}

	required, err := ResolveTiers(db, approvalAmount(turn))
	if err != nil {
		return nil, err
	}
	decisions, err := listDecisions(db, turnID)
	if err != nil {
		return nil, wrapServiceError(err, "approvals.list")
	}

	return &ApprovalSummary{
		Decisions: decisions,
		State:     ComputeApprovalState(required, decisions),
	}, nil
}

// checkSequence rejects a sequential tier until every lower required tier's
// latest decision is "approved"; pending or rejected both block.
func checkSequence(required []RequiredTier, decisions []models.Approval, tier RequiredTier) error {
	state := ComputeApprovalState(required, decisions)
	for _, lower := range required {
		if tierRank[lower.Tier] >= tierRank[tier.Tier] {
			continue
		}
		if state.Latest[lower.Tier] != models.DecisionApproved {
			return types.NewConflictError(
				fmt.Sprintf("Sequence violation: tier '%s' requires tier '%s' to be approved first", tier.Tier, lower.Tier),
				"approvals.sequence")
		}
	}
	return nil
}

// refreshApprovalFlags rewrites the turn's denormalized approval cache from
// the decision records. needsHoApproval is withheld while a sequential DFO
// prerequisite is unresolved.
func refreshApprovalFlags(turn *models.Turn, required []RequiredTier, decisions []models.Approval, state ApprovalState) {
	latestByTier := make(map[string]models.Approval)
	for _, d := range decisions {
		latestByTier[d.Tier] = d
	}

	turn.NeedsDfoApproval = false
	turn.NeedsHoApproval = false
	turn.DfoApprovedBy = nil
	turn.DfoApprovedAt = nil
	turn.HoApprovedBy = nil
	turn.HoApprovedAt = nil

	dfoApproved := state.Latest[models.TierDfo] == models.DecisionApproved
	for _, tier := range required {
		latest, decided := latestByTier[tier.Tier]
		approved := decided && latest.Decision == models.DecisionApproved

		switch tier.Tier {
		case models.TierDfo:
			turn.NeedsDfoApproval = !approved
			if approved {
				turn.DfoApprovedBy = &latest.ApproverID
				at := latest.DecidedAt
				turn.DfoApprovedAt = &at
			}
		case models.TierHo:
			turn.NeedsHoApproval = !approved && (!tier.RequiresSequential || dfoApproved)
			if approved {
				turn.HoApprovedBy = &latest.ApproverID
				at := latest.DecidedAt
				turn.HoApprovedAt = &at
			}
		}
	}

	if state.Rejected {
		turn.Status = models.TurnStatusRejected
		turn.RejectionReason = state.RejectionReason
	} else {
		turn.RejectionReason = nil
	}
}

func listDecisions(tx *gorm.DB, turnID string) ([]models.Approval, error) {
	var decisions []models.Approval
	err := tx.Where("turn_id = ?", turnID).
		Order("decided_at asc, created_at asc").
		Find(&decisions).Error
	if err != nil {
		return nil, err
	}
	return decisions, nil
}

func findRequiredTier(required []RequiredTier, tier string) (RequiredTier, bool) {
	for _, t := range required {
		if t.Tier == tier {
			return t, true
		}
	}
	return RequiredTier{}, false
}

func roleAuthorized(roles []string, tier string) bool {
	allowed := tierRoles[tier]
	for _, r := range roles {
		for _, a := range allowed {
			if r == a {
				return true
			}
		}
	}
	return false
}
