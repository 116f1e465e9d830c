package services

import (
	"fmt"
	"sync"

	"github.com/turnboard/turnflow/internal/models"
	"github.com/turnboard/turnflow/internal/types"
	"gorm.io/gorm"
)

// stageCache holds the active stage list per database (cache-aside: the
// registry table is the source of truth, every write invalidates). The key
// is the gorm config, which sessions and transactions derived from the same
// root handle all share.
var stageCache sync.Map // *gorm.Config -> []models.Stage

func stageCacheKey(db *gorm.DB) *gorm.Config { return db.Config }

// StageInput defines a new workflow stage.
type StageInput struct {
	Key              string `json:"key"`
	Name             string `json:"name"`
	Sequence         int    `json:"sequence"`
	IsDefault        bool   `json:"isDefault"`
	IsFinal          bool   `json:"isFinal"`
	RequiresApproval bool   `json:"requiresApproval"`
	RequiresVendor   bool   `json:"requiresVendor"`
	RequiresAmount   bool   `json:"requiresAmount"`
	RequiresLockBox  bool   `json:"requiresLockBox"`
}

// StagePatch updates an existing stage; nil fields are left unchanged.
type StagePatch struct {
	Name             *string `json:"name"`
	Sequence         *int    `json:"sequence"`
	IsActive         *bool   `json:"isActive"`
	IsDefault        *bool   `json:"isDefault"`
	IsFinal          *bool   `json:"isFinal"`
	RequiresApproval *bool   `json:"requiresApproval"`
	RequiresVendor   *bool   `json:"requiresVendor"`
	RequiresAmount   *bool   `json:"requiresAmount"`
	RequiresLockBox  *bool   `json:"requiresLockBox"`
}

// ListActiveStages returns the active stages ordered by sequence.
func ListActiveStages(db *gorm.DB) ([]models.Stage, error) {
	if cached, ok := stageCache.Load(stageCacheKey(db)); ok {
		return cached.([]models.Stage), nil
	}

	var stages []models.Stage
	err := db.Where("is_active = ?", true).
		Order("sequence asc").
		Find(&stages).Error
	if err != nil {
		return nil, types.NewUnavailableError(err.Error(), "stages.list")
	}

	stageCache.Store(stageCacheKey(db), stages)
	return stages, nil
}

// GetStage returns an active stage by key, NotFound otherwise.
func GetStage(db *gorm.DB, key string) (*models.Stage, error) {
	var stage models.Stage
	err := db.Where("stage_key = ? AND is_active = ?", key, true).First(&stage).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewNotFoundError(fmt.Sprintf("Stage '%s' not found", key), "stages.get")
		}
		return nil, types.NewUnavailableError(err.Error(), "stages.get")
	}
	return &stage, nil
}

// GetStageByID returns an active stage by id, NotFound otherwise.
func GetStageByID(db *gorm.DB, id string) (*models.Stage, error) {
	var stage models.Stage
	err := db.Where("id = ? AND is_active = ?", id, true).First(&stage).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewNotFoundError(fmt.Sprintf("Stage '%s' not found", id), "stages.get")
		}
		return nil, types.NewUnavailableError(err.Error(), "stages.get")
	}
	return &stage, nil
}

// DefaultStage returns the stage flagged as the workflow entry point.
func DefaultStage(db *gorm.DB) (*models.Stage, error) {
	var stage models.Stage
	err := db.Where("is_default = ? AND is_active = ?", true, true).First(&stage).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewValidationError("No default stage configured", "stages.default")
		}
		return nil, types.NewUnavailableError(err.Error(), "stages.default")
	}
	return &stage, nil
}

// CreateStage adds a stage to the registry. Keys must be unique; setting
// isDefault moves the default flag off any prior default stage.
func CreateStage(db *gorm.DB, input StageInput) (*models.Stage, error) {
	if input.Key == "" || input.Name == "" {
		return nil, types.NewValidationError("Stage key and name are required", "stages.create")
	}

	var stage models.Stage
	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Stage{}).Where("stage_key = ?", input.Key).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return types.NewConflictError(fmt.Sprintf("Stage key '%s' already exists", input.Key), "stages.create")
		}

		if input.IsDefault {
			if err := tx.Model(&models.Stage{}).Where("is_default = ?", true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}

		stage = models.Stage{
			Key:              input.Key,
			Name:             input.Name,
			Sequence:         input.Sequence,
			IsActive:         true,
			IsDefault:        input.IsDefault,
			IsFinal:          input.IsFinal,
			RequiresApproval: input.RequiresApproval,
			RequiresVendor:   input.RequiresVendor,
			RequiresAmount:   input.RequiresAmount,
			RequiresLockBox:  input.RequiresLockBox,
		}
		return tx.Create(&stage).Error
	})
	if err != nil {
		stageCache.Delete(stageCacheKey(db))
		return nil, wrapServiceError(err, "stages.create")
	}

	stageCache.Delete(stageCacheKey(db))
	return &stage, nil
}

// UpdateStage patches a stage's flags. Removing the default flag from the
// only default stage is rejected; the workflow always has an entry point.
func UpdateStage(db *gorm.DB, key string, patch StagePatch) (*models.Stage, error) {
	var stage models.Stage
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("stage_key = ?", key).First(&stage).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return types.NewNotFoundError(fmt.Sprintf("Stage '%s' not found", key), "stages.update")
			}
			return err
		}

		if patch.IsDefault != nil {
			if !*patch.IsDefault && stage.IsDefault {
				var otherDefaults int64
				if err := tx.Model(&models.Stage{}).
					Where("is_default = ? AND id <> ?", true, stage.ID).
					Count(&otherDefaults).Error; err != nil {
					return err
				}
				if otherDefaults == 0 {
					return types.NewConflictError("Cannot remove default flag from the only default stage", "stages.update")
				}
			}
			if *patch.IsDefault && !stage.IsDefault {
				if err := tx.Model(&models.Stage{}).Where("is_default = ?", true).
					Update("is_default", false).Error; err != nil {
					return err
				}
			}
			stage.IsDefault = *patch.IsDefault
		}

		if patch.Name != nil {
			stage.Name = *patch.Name
		}
		if patch.Sequence != nil {
			stage.Sequence = *patch.Sequence
		}
		if patch.IsActive != nil {
			stage.IsActive = *patch.IsActive
		}
		if patch.IsFinal != nil {
			stage.IsFinal = *patch.IsFinal
		}
		if patch.RequiresApproval != nil {
			stage.RequiresApproval = *patch.RequiresApproval
		}
		if patch.RequiresVendor != nil {
			stage.RequiresVendor = *patch.RequiresVendor
		}
		if patch.RequiresAmount != nil {
			stage.RequiresAmount = *patch.RequiresAmount
		}
		if patch.RequiresLockBox != nil {
			stage.RequiresLockBox = *patch.RequiresLockBox
		}

		return tx.Save(&stage).Error
	})
	if err != nil {
		stageCache.Delete(stageCacheKey(db))
		return nil, wrapServiceError(err, "stages.update")
	}

	stageCache.Delete(stageCacheKey(db))
	return &stage, nil
}

// DeleteStage removes a stage from the registry. Default and final stages
// are protected, as is any stage still referenced by a turn.
func DeleteStage(db *gorm.DB, key string) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		var stage models.Stage
		if err := tx.Where("stage_key = ?", key).First(&stage).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return types.NewNotFoundError(fmt.Sprintf("Stage '%s' not found", key), "stages.delete")
			}
			return err
		}

		if stage.IsDefault || stage.IsFinal {
			return types.NewConflictError(fmt.Sprintf("Stage '%s' is protected and cannot be deleted", key), "stages.delete")
		}

		var refs int64
		if err := tx.Model(&models.Turn{}).Where("stage_id = ?", stage.ID).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return types.NewConflictError(fmt.Sprintf("Stage '%s' is referenced by %d turn(s)", key, refs), "stages.delete")
		}

		return tx.Delete(&stage).Error
	})

	stageCache.Delete(stageCacheKey(db))
	if err != nil {
		return wrapServiceError(err, "stages.delete")
	}
	return nil
}

// wrapServiceError passes CustomErrors through and tags anything else as an
// infrastructure failure.
func wrapServiceError(err error, errorType string) error {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*types.CustomError); ok {
		return ce
	}
	return types.NewUnavailableError(err.Error(), errorType)
}
