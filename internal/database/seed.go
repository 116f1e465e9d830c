package database

import (
	"log"

	"github.com/turnboard/turnflow/internal/models"
	"gorm.io/gorm"
)

func floatPtr(f float64) *float64 { return &f }

// DefaultStages returns the built-in workflow stage configuration. Exactly
// one stage is the default entry point and exactly one is final.
func DefaultStages() []models.Stage {
	return []models.Stage{
		{Key: "draft", Name: "Draft", Sequence: 10, IsActive: true, IsDefault: true},
		{Key: "secure_property", Name: "Secure Property", Sequence: 20, IsActive: true, RequiresLockBox: true},
		{Key: "inspection", Name: "Inspection", Sequence: 30, IsActive: true},
		{Key: "scope_review", Name: "Scope Review", Sequence: 40, IsActive: true, RequiresAmount: true, RequiresApproval: true},
		{Key: "vendor_assigned", Name: "Vendor Assigned", Sequence: 50, IsActive: true, RequiresVendor: true},
		{Key: "in_progress", Name: "In Progress", Sequence: 60, IsActive: true, RequiresVendor: true, RequiresAmount: true},
		{Key: "change_order", Name: "Change Order", Sequence: 70, IsActive: true, RequiresAmount: true, RequiresApproval: true},
		{Key: "scan_360", Name: "360 Scan", Sequence: 80, IsActive: true},
		{Key: "turns_complete", Name: "Turns Complete", Sequence: 90, IsActive: true, IsFinal: true},
	}
}

// DefaultThresholds returns the built-in approval bands: DFO sign-off from
// $3,000 and home-office sign-off from $10,000, the latter only after DFO.
func DefaultThresholds() []models.ApprovalThreshold {
	return []models.ApprovalThreshold{
		{Name: "DFO Approval", MinAmount: 3000, MaxAmount: floatPtr(10000), Tier: models.TierDfo, IsActive: true},
		{Name: "DFO Approval (large)", MinAmount: 10000, MaxAmount: nil, Tier: models.TierDfo, IsActive: true},
		{Name: "Home Office Approval", MinAmount: 10000, MaxAmount: nil, Tier: models.TierHo, RequiresSequential: true, IsActive: true},
	}
}

// SeedWorkflowDefaults inserts the default stage and threshold configuration
// when the respective tables are empty. Existing configuration is never
// overwritten.
func SeedWorkflowDefaults(db *gorm.DB) error {
	var stageCount int64
	if err := db.Model(&models.Stage{}).Count(&stageCount).Error; err != nil {
		return err
	}
	if stageCount == 0 {
		stages := DefaultStages()
		if err := db.Create(&stages).Error; err != nil {
			return err
		}
		log.Printf("Seeded %d default workflow stages", len(stages))
	}

	var thresholdCount int64
	if err := db.Model(&models.ApprovalThreshold{}).Count(&thresholdCount).Error; err != nil {
		return err
	}
	if thresholdCount == 0 {
		thresholds := DefaultThresholds()
		if err := db.Create(&thresholds).Error; err != nil {
			return err
		}
		log.Printf("Seeded %d default approval thresholds", len(thresholds))
	}

	return nil
}
