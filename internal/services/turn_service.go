// turn_service.go
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

package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/turnboard/turnflow/internal/models"
	"github.com/turnboard/turnflow/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Statuses in which priced, performed work may carry an actual cost.
var workPerformedStatuses = map[string]bool{
	models.TurnStatusInProgress:  true,
	models.TurnStatusChangeOrder: true,
	models.TurnStatusScan360:     true,
	models.TurnStatusComplete:    true,
}

// TurnInput creates a new turn against a property.
type TurnInput struct {
	PropertyID       string     `json:"propertyId"`
	Priority         string     `json:"priority"`
	VendorID         *string    `json:"vendorId"`
	EstimatedCost    *float64   `json:"estimatedCost"`
	DueDate          *time.Time `json:"dueDate"`
	ScopeOfWork      string     `json:"scopeOfWork"`
	PowerOn          bool       `json:"powerOn"`
	WaterOn          bool       `json:"waterOn"`
	GasOn            bool       `json:"gasOn"`
	TrashOutNeeded   bool       `json:"trashOutNeeded"`
	AppliancesNeeded bool       `json:"appliancesNeeded"`
}

// TurnPatch is a partial update; nil fields are left unchanged. VendorID
// accepts an empty string to clear the assignment.
type TurnPatch struct {
	Status           *string    `json:"status"`
	StageID          *string    `json:"stageId"`
	Priority         *string    `json:"priority"`
	VendorID         *string    `json:"vendorId"`
	EstimatedCost    *float64   `json:"estimatedCost"`
	ActualCost       *float64   `json:"actualCost"`
	DueDate          *time.Time `json:"dueDate"`
	ScopeOfWork      *string    `json:"scopeOfWork"`
	PowerOn          *bool      `json:"powerOn"`
	WaterOn          *bool      `json:"waterOn"`
	GasOn            *bool      `json:"gasOn"`
	TrashOutNeeded   *bool      `json:"trashOutNeeded"`
	AppliancesNeeded *bool      `json:"appliancesNeeded"`
}

// CreateTurn opens a new turn in the default stage and records the creation
// in the audit trail.
func CreateTurn(db *gorm.DB, input TurnInput, actorID string) (*models.Turn, error) {
	if input.PropertyID == "" {
		return nil, types.NewValidationError("propertyId is required", "turns.create")
	}
	if input.Priority == "" {
		input.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(input.Priority) {
		return nil, types.NewValidationError(fmt.Sprintf("Invalid priority '%s'", input.Priority), "turns.create")
	}

	var turn models.Turn
	err := db.Transaction(func(tx *gorm.DB) error {
		var property models.Property
		if err := tx.Where("id = ?", input.PropertyID).First(&property).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return types.NewNotFoundError(fmt.Sprintf("Property '%s' not found", input.PropertyID), "turns.create")
			}
			return err
		}

		if input.VendorID != nil {
			if err := verifyVendor(tx, *input.VendorID); err != nil {
				return err
			}
		}

		defaultStage, err := DefaultStage(tx)
		if err != nil {
			return err
		}

		turn = models.Turn{
			TurnNumber:       newTurnNumber(),
			PropertyID:       input.PropertyID,
			Status:           defaultStage.Key,
			Priority:         input.Priority,
			StageID:          &defaultStage.ID,
			VendorID:         input.VendorID,
			EstimatedCost:    input.EstimatedCost,
			DueDate:          input.DueDate,
			ScopeOfWork:      input.ScopeOfWork,
			PowerOn:          input.PowerOn,
			WaterOn:          input.WaterOn,
			GasOn:            input.GasOn,
			TrashOutNeeded:   input.TrashOutNeeded,
			AppliancesNeeded: input.AppliancesNeeded,
			CreatedBy:        actorID,
		}
		if err := tx.Create(&turn).Error; err != nil {
			return err
		}

		return recordTurnEvent(tx, &turn, models.ActionCreated, actorID, "", map[string]interface{}{
			"turnNumber": turn.TurnNumber,
			"propertyId": turn.PropertyID,
			"status":     turn.Status,
		})
	})
	if err != nil {
		return nil, wrapServiceError(err, "turns.create")
	}

	return &turn, nil
}

// GetTurn returns a turn with its stage and vendor preloaded. Turns removed
// by administrative delete are reported as NotFound, though their audit
// trail remains queryable.
func GetTurn(db *gorm.DB, id string) (*models.Turn, error) {
	var turn models.Turn
	err := db.Preload("Stage").Preload("Vendor").
		Where("id = ? AND is_deleted = ?", id, false).
		First(&turn).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewNotFoundError(fmt.Sprintf("Turn '%s' not found", id), "turns.get")
		}
		return nil, types.NewUnavailableError(err.Error(), "turns.get")
	}
	return &turn, nil
}

// ListTurns returns non-deleted turns, optionally filtered by property and
// status, newest first.
func ListTurns(db *gorm.DB, propertyID, status string) ([]models.Turn, error) {
	query := db.Preload("Stage").Preload("Vendor").
		Where("is_deleted = ?", false).
		Order("created_at desc")
	if propertyID != "" {
		query = query.Where("property_id = ?", propertyID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var turns []models.Turn
	if err := query.Find(&turns).Error; err != nil {
		return nil, types.NewUnavailableError(err.Error(), "turns.list")
	}
	return turns, nil
}

// UpdateTurn applies a partial update through the state machine. The whole
// validate-then-write runs in one transaction against a row lock, with an
// optimistic version check on top; the state update and its mandatory
// history rows commit or roll back together.
func UpdateTurn(db *gorm.DB, id string, version uint64, patch TurnPatch, actorID, comment string) (*models.Turn, error) {
	var updated *models.Turn
	err := db.Transaction(func(tx *gorm.DB) error {
		var turn models.Turn
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND is_deleted = ?", id, false).
			First(&turn).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return types.NewNotFoundError(fmt.Sprintf("Turn '%s' not found", id), "turns.update")
			}
			return err
		}

		if turn.RowVersion != version {
			return types.NewConflictError("E_VERSION - Refresh and reconcile with current version and retry.", "turns.update")
		}

		after := turn
		changed := make(map[string]interface{})

		if err := applyTurnPatch(tx, &after, patch, changed); err != nil {
			return err
		}

		// Same-value writes are dropped above; a request that changes
		// nothing succeeds without touching state or history.
		if len(changed) == 0 {
			updated = &turn
			return nil
		}

		if err := validateTurnRules(tx, &turn, &after, changed); err != nil {
			log.Printf("Rejected turn %s mutation by %s: %v", turn.TurnNumber, actorID, err)
			return err
		}

		after.RowVersion = turn.RowVersion + 1
		result := tx.Model(&models.Turn{}).
			Where("id = ? AND row_version = ?", turn.ID, turn.RowVersion).
			Select("*").Omit("id", "created_at", "turn_number", "property_id", "created_by").
			Updates(&after)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return types.NewConflictError("E_VERSION - Turn was modified concurrently.", "turns.update")
		}

		if err := recordTurnMutation(tx, &turn, &after, actorID, comment, changed); err != nil {
			return err
		}

		updated = &after
		return nil
	})
	if err != nil {
		return nil, wrapServiceError(err, "turns.update")
	}

	return GetTurn(db, updated.ID)
}

// DeleteTurn is an administrative action: the row is flagged, never erased,
// so the audit trail keeps its referent.
func DeleteTurn(db *gorm.DB, id, actorID string) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		var turn models.Turn
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND is_deleted = ?", id, false).
			First(&turn).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return types.NewNotFoundError(fmt.Sprintf("Turn '%s' not found", id), "turns.delete")
			}
			return err
		}

		previousStatus := turn.Status
		turn.Status = models.TurnStatusDeleted
		turn.IsDeleted = true
		turn.RowVersion++
		if err := tx.Model(&models.Turn{}).Where("id = ?", turn.ID).
			Updates(map[string]interface{}{
				"status":      turn.Status,
				"is_deleted":  true,
				"row_version": turn.RowVersion,
			}).Error; err != nil {
			return err
		}

		return recordTurnEvent(tx, &turn, models.ActionDeleted, actorID, "", map[string]interface{}{
			"previousStatus": previousStatus,
		})
	})
	return wrapServiceError(err, "turns.delete")
}

// applyTurnPatch copies patch fields onto after, dropping same-value writes
// and collecting the changed set. Stage resolution happens here so the
// requirement checks below always see the target stage.
func applyTurnPatch(tx *gorm.DB, after *models.Turn, patch TurnPatch, changed map[string]interface{}) error {
	if patch.Priority != nil && *patch.Priority != after.Priority {
		if !models.ValidPriority(*patch.Priority) {
			return types.NewValidationError(fmt.Sprintf("Invalid priority '%s'", *patch.Priority), "turns.update")
		}
		after.Priority = *patch.Priority
		changed["priority"] = after.Priority
	}

	if patch.VendorID != nil {
		// Empty string clears the assignment; nil leaves it unchanged.
		if *patch.VendorID == "" {
			if after.VendorID != nil {
				after.VendorID = nil
				changed["vendorId"] = nil
			}
		} else if !equalStrPtr(patch.VendorID, after.VendorID) {
			if err := verifyVendor(tx, *patch.VendorID); err != nil {
				return err
			}
			after.VendorID = patch.VendorID
			changed["vendorId"] = *patch.VendorID
		}
	}

	if patch.EstimatedCost != nil && !equalFloatPtr(patch.EstimatedCost, after.EstimatedCost) {
		after.EstimatedCost = patch.EstimatedCost
		changed["estimatedCost"] = *patch.EstimatedCost
	}

	if patch.ActualCost != nil && !equalFloatPtr(patch.ActualCost, after.ActualCost) {
		after.ActualCost = patch.ActualCost
		changed["actualCost"] = *patch.ActualCost
	}

	if patch.DueDate != nil && !equalTimePtr(patch.DueDate, after.DueDate) {
		after.DueDate = patch.DueDate
		changed["dueDate"] = *patch.DueDate
	}

	if patch.ScopeOfWork != nil && *patch.ScopeOfWork != after.ScopeOfWork {
		after.ScopeOfWork = *patch.ScopeOfWork
		changed["scopeOfWork"] = after.ScopeOfWork
	}

	applyBool := func(p *bool, field *bool, name string) {
		if p != nil && *p != *field {
			*field = *p
			changed[name] = *p
		}
	}
	applyBool(patch.PowerOn, &after.PowerOn, "powerOn")
	applyBool(patch.WaterOn, &after.WaterOn, "waterOn")
	applyBool(patch.GasOn, &after.GasOn, "gasOn")
	applyBool(patch.TrashOutNeeded, &after.TrashOutNeeded, "trashOutNeeded")
	applyBool(patch.AppliancesNeeded, &after.AppliancesNeeded, "appliancesNeeded")

	if patch.StageID != nil && !equalStrPtr(patch.StageID, after.StageID) {
		stage, err := GetStageByID(tx, *patch.StageID)
		if err != nil {
			return err
		}
		after.StageID = &stage.ID
		changed["stageId"] = stage.ID

		// Status conventionally follows the stage key unless the caller
		// sets it explicitly.
		if patch.Status == nil && after.Status != stage.Key {
			after.Status = stage.Key
			changed["status"] = after.Status
		}
	}

	if patch.Status != nil && *patch.Status != after.Status {
		status := strings.TrimSpace(*patch.Status)
		if status == "" {
			return types.NewValidationError("status cannot be empty", "turns.update")
		}
		if status == models.TurnStatusDeleted {
			return types.NewValidationError("status 'deleted' is reserved for administrative delete", "turns.update")
		}

		// Every status other than rejected names a stage; the turn moves
		// with it so the stage gates always see the transition.
		if status != models.TurnStatusRejected {
			stage, err := GetStage(tx, status)
			if err != nil {
				if ce, ok := err.(*types.CustomError); ok && ce.Kind == types.KindNotFound {
					return types.NewValidationError(fmt.Sprintf("Unknown status '%s'", status), "turns.update")
				}
				return err
			}
			if patch.StageID != nil && *patch.StageID != stage.ID {
				return types.NewValidationError(fmt.Sprintf("Status '%s' does not match the requested stage", status), "turns.update")
			}
			if after.StageID == nil || *after.StageID != stage.ID {
				after.StageID = &stage.ID
				changed["stageId"] = stage.ID
			}
		}

		after.Status = status
		changed["status"] = after.Status
	}

	return nil
}

// validateTurnRules enforces the stage requirement flags and the turn-level
// invariants against the post-patch state. All checks run before any write.
func validateTurnRules(tx *gorm.DB, before, after *models.Turn, changed map[string]interface{}) error {
	if after.ActualCost != nil && before.ActualCost == nil && !workPerformedStatuses[after.Status] {
		return types.NewValidationError("actualCost cannot be set before work is in progress", "turns.update")
	}

	stageChanged := !equalStrPtr(before.StageID, after.StageID)
	statusChanged := before.Status != after.Status
	if !stageChanged && !statusChanged {
		return nil
	}

	var stage *models.Stage
	if after.StageID != nil {
		s, err := GetStageByID(tx, *after.StageID)
		if err != nil {
			return err
		}
		stage = s
	}

	if stageChanged {
		if err := checkStageGates(tx, stage, after); err != nil {
			return err
		}
	}

	// A turn is complete exactly when its status sits on the final stage.
	completed := stage != nil && stage.IsFinal && after.Status == stage.Key
	if completed && after.CompletionDate == nil {
		now := time.Now()
		after.CompletionDate = &now
		changed["completionDate"] = now
	} else if !completed && after.CompletionDate != nil {
		after.CompletionDate = nil
		changed["completionDate"] = nil
	}

	return nil
}

// checkStageGates enforces the requirement flags of the target stage.
func checkStageGates(tx *gorm.DB, stage *models.Stage, after *models.Turn) error {
	if stage.RequiresVendor && after.VendorID == nil {
		return types.NewValidationError(fmt.Sprintf("Stage '%s' requires vendor assignment", stage.Key), "turns.transition")
	}

	if stage.RequiresAmount && (after.EstimatedCost == nil || *after.EstimatedCost <= 0) {
		return types.NewValidationError(fmt.Sprintf("Stage '%s' requires an estimated cost greater than zero", stage.Key), "turns.transition")
	}

	if stage.RequiresLockBox {
		secured, err := HasCurrentLockBox(tx, after.PropertyID)
		if err != nil {
			return err
		}
		if !secured {
			return types.NewValidationError(fmt.Sprintf("Stage '%s' requires a secured lock box on the property", stage.Key), "turns.transition")
		}
	}

	if stage.RequiresApproval {
		tiers, err := ResolveTiers(tx, approvalAmount(after))
		if err != nil {
			return err
		}
		outstanding, err := outstandingTiers(tx, after.ID, tiers)
		if err != nil {
			return err
		}
		if len(outstanding) > 0 {
			return types.NewApprovalRequiredError(outstanding, "turns.transition")
		}
	}

	return nil
}

// approvalAmount is the cost the threshold bands are resolved against:
// actual cost once priced, estimated cost otherwise.
func approvalAmount(turn *models.Turn) float64 {
	if turn.ActualCost != nil {
		return *turn.ActualCost
	}
	if turn.EstimatedCost != nil {
		return *turn.EstimatedCost
	}
	return 0
}

func verifyVendor(tx *gorm.DB, vendorID string) error {
	var count int64
	if err := tx.Model(&models.Vendor{}).
		Where("id = ? AND is_active = ?", vendorID, true).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return types.NewNotFoundError(fmt.Sprintf("Vendor '%s' not found", vendorID), "turns.vendor")
	}
	return nil
}

// newTurnNumber generates a human-readable unique turn number.
func newTurnNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("TURN-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
