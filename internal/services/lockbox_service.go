// lockbox_service.go
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
	"strings"
	"time"

	"github.com/turnboard/turnflow/internal/models"
	"github.com/turnboard/turnflow/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/hints"
)

// LockBoxInput is a requested change to a property's lock-box state. Nil
// fields are left unchanged; Reason is mandatory for every change.
type LockBoxInput struct {
	NewCode     *string    `json:"newCode"`
	Location    *string    `json:"location"`
	InstallDate *time.Time `json:"installDate"`
	Notes       *string    `json:"notes"`
	TurnID      *string    `json:"turnId"`
	Reason      string     `json:"reason"`
}

// LockBoxSnapshot is the current lock-box state of a property.
type LockBoxSnapshot struct {
	PropertyID  string     `json:"propertyId"`
	Code        string     `json:"code"`
	Location    string     `json:"location"`
	InstallDate *time.Time `json:"installDate"`
	Notes       string     `json:"notes"`
	RowVersion  uint64     `json:"rowVersion"`
}

// GetLockBox returns the current lock-box snapshot for a property.
func GetLockBox(db *gorm.DB, propertyID string) (*LockBoxSnapshot, error) {
	var property models.Property
	if err := db.Where("id = ?", propertyID).First(&property).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, types.NewNotFoundError(fmt.Sprintf("Property '%s' not found", propertyID), "lockbox.get")
		}
		return nil, types.NewUnavailableError(err.Error(), "lockbox.get")
	}
	return snapshotOf(&property), nil
}

// HasCurrentLockBox reports whether the property carries a non-empty
// lock-box code; turn stages flagged requiresLockBox gate on this.
func HasCurrentLockBox(tx *gorm.DB, propertyID string) (bool, error) {
	var property models.Property
	if err := tx.Select("lock_box_code").Where("id = ?", propertyID).First(&property).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, types.NewNotFoundError(fmt.Sprintf("Property '%s' not found", propertyID), "lockbox.check")
		}
		return false, err
	}
	return strings.TrimSpace(property.LockBoxCode) != "", nil
}

// UpdateLockBox changes a property's lock-box fields and appends the ledger
// entry in the same transaction. No-op requests and requests without a
// reason are rejected before any write, so resubmissions never pollute the
// forensic trail.
func UpdateLockBox(db *gorm.DB, propertyID string, input LockBoxInput, actorID string) (*LockBoxSnapshot, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return nil, types.NewValidationError("A reason is required for every lock box change", "lockbox.update")
	}

	var snapshot *LockBoxSnapshot
	err := db.Transaction(func(tx *gorm.DB) error {
		var property models.Property
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", propertyID).
			First(&property).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return types.NewNotFoundError(fmt.Sprintf("Property '%s' not found", propertyID), "lockbox.update")
			}
			return err
		}

		oldCode := property.LockBoxCode
		dirty := false

		if input.NewCode != nil && *input.NewCode != property.LockBoxCode {
			property.LockBoxCode = *input.NewCode
			dirty = true
		}
		if input.Location != nil && *input.Location != property.LockBoxLocation {
			property.LockBoxLocation = *input.Location
			dirty = true
		}
		if input.InstallDate != nil && !equalTimePtr(input.InstallDate, property.LockBoxInstallDate) {
			property.LockBoxInstallDate = input.InstallDate
			dirty = true
		}
		if input.Notes != nil && *input.Notes != property.LockBoxNotes {
			property.LockBoxNotes = *input.Notes
			dirty = true
		}

		if !dirty {
			return types.NewValidationError("No lock box field differs from current state", "lockbox.update")
		}

		if input.TurnID != nil {
			var count int64
			if err := tx.Model(&models.Turn{}).
				Where("id = ? AND property_id = ?", *input.TurnID, propertyID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return types.NewValidationError(fmt.Sprintf("Turn '%s' does not belong to property '%s'", *input.TurnID, propertyID), "lockbox.update")
			}
		}

		property.RowVersion++
		if err := tx.Model(&models.Property{}).Where("id = ?", property.ID).
			Updates(map[string]interface{}{
				"lock_box_code":         property.LockBoxCode,
				"lock_box_location":     property.LockBoxLocation,
				"lock_box_install_date": property.LockBoxInstallDate,
				"lock_box_notes":        property.LockBoxNotes,
				"row_version":           property.RowVersion,
			}).Error; err != nil {
			return err
		}

		entry := models.LockBoxHistory{
			PropertyID:  property.ID,
			TurnID:      input.TurnID,
			InstallDate: property.LockBoxInstallDate,
			Location:    property.LockBoxLocation,
			OldCode:     oldCode,
			NewCode:     property.LockBoxCode,
			Reason:      input.Reason,
			ActorID:     actorID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		snapshot = snapshotOf(&property)
		return nil
	})
	if err != nil {
		return nil, wrapServiceError(err, "lockbox.update")
	}

	return snapshot, nil
}

// GetLockBoxHistory returns the append-only access-code trail for a
// property, newest first.
func GetLockBoxHistory(db *gorm.DB, propertyID string, limit int) ([]models.LockBoxHistory, error) {
	var count int64
	if err := db.Model(&models.Property{}).Where("id = ?", propertyID).Count(&count).Error; err != nil {
		return nil, types.NewUnavailableError(err.Error(), "lockbox.history")
	}
	if count == 0 {
		return nil, types.NewNotFoundError(fmt.Sprintf("Property '%s' not found", propertyID), "lockbox.history")
	}

	query := db.Clauses(hints.Comment("select", "MAX_EXECUTION_TIME(10000)")).
		Where("property_id = ?", propertyID).
		Order("created_at desc, id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.LockBoxHistory
	if err := query.Find(&entries).Error; err != nil {
		return nil, types.NewUnavailableError(err.Error(), "lockbox.history")
	}
	return entries, nil
}

func snapshotOf(property *models.Property) *LockBoxSnapshot {
	return &LockBoxSnapshot{
		PropertyID:  property.ID,
		Code:        property.LockBoxCode,
		Location:    property.LockBoxLocation,
		InstallDate: property.LockBoxInstallDate,
		Notes:       property.LockBoxNotes,
		RowVersion:  property.RowVersion,
	}
}
