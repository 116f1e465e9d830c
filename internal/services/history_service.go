package services

import (
	"encoding/json"
	"fmt"

	"github.com/turnboard/turnflow/internal/models"
	"github.com/turnboard/turnflow/internal/types"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// recordTurnMutation appends the mandatory audit rows for an accepted turn
// mutation, inside the caller's transaction: a status_change row when the
// status differs, a stage_change row when the stage differs, and a
// field_change row when only other fields moved. The enclosing transaction
// rolls back if any insert fails, so a committed mutation always has its
// history.
func recordTurnMutation(tx *gorm.DB, before, after *models.Turn, actorID, comment string, changed map[string]interface{}) error {
	snapshot, err := json.Marshal(changed)
	if err != nil {
		return fmt.Errorf("failed to encode changed-data snapshot: %w", err)
	}

	statusChanged := before.Status != after.Status
	stageChanged := !equalStrPtr(before.StageID, after.StageID)

	if statusChanged {
		entry := models.TurnHistory{
			TurnID:         after.ID,
			Action:         models.ActionStatusChange,
			PreviousStatus: &before.Status,
			NewStatus:      &after.Status,
			ActorID:        actorID,
			Comment:        comment,
			ChangedData:    snapshot,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
	}

	if stageChanged {
		entry := models.TurnHistory{
			TurnID:          after.ID,
			Action:          models.ActionStageChange,
			PreviousStageID: before.StageID,
			NewStageID:      after.StageID,
			ActorID:         actorID,
			Comment:         comment,
			ChangedData:     snapshot,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
	}

	if !statusChanged && !stageChanged && len(changed) > 0 {
		entry := models.TurnHistory{
			TurnID:      after.ID,
			Action:      models.ActionFieldChange,
			ActorID:     actorID,
			Comment:     comment,
			ChangedData: snapshot,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
	}

	return nil
}

// recordTurnEvent appends a single audit row for a lifecycle event
// (creation, administrative deletion, approval decision).
func recordTurnEvent(tx *gorm.DB, turn *models.Turn, action, actorID, comment string, changed map[string]interface{}) error {
	snapshot, err := json.Marshal(changed)
	if err != nil {
		return fmt.Errorf("failed to encode changed-data snapshot: %w", err)
	}

	entry := models.TurnHistory{
		TurnID:      turn.ID,
		Action:      action,
		ActorID:     actorID,
		Comment:     comment,
		ChangedData: snapshot,
	}
	// Creation and deletion snapshot the resulting state; an approval
	// decision leaves the status columns to its status_change row, so a
	// status value appears on exactly one row per mutation.
	if action != models.ActionApproval {
		entry.NewStatus = &turn.Status
		entry.NewStageID = turn.StageID
	}
	return tx.Create(&entry).Error
}

// GetTurnHistory returns a turn's audit trail, newest first. The trail
// survives administrative deletion of the turn itself.
func GetTurnHistory(db *gorm.DB, turnID string, limit int) ([]models.TurnHistory, error) {
	var count int64
	if err := db.Model(&models.Turn{}).Where("id = ?", turnID).Count(&count).Error; err != nil {
		return nil, types.NewUnavailableError(err.Error(), "turns.history")
	}
	if count == 0 {
		return nil, types.NewNotFoundError(fmt.Sprintf("Turn '%s' not found", turnID), "turns.history")
	}

	query := db.Clauses(hints.Comment("select", "MAX_EXECUTION_TIME(10000)")).
		Where("turn_id = ?", turnID).
		Order("created_at desc, id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.TurnHistory
	if err := query.Find(&entries).Error; err != nil {
		return nil, types.NewUnavailableError(err.Error(), "turns.history")
	}
	return entries, nil
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
