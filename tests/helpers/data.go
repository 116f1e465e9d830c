// data.go
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

package helpers

import (
	"testing"

	"github.com/turnboard/turnflow/internal/database"
	"github.com/turnboard/turnflow/internal/models"
	"gorm.io/gorm"
)

// SeedWorkflow installs the default stage registry and threshold bands
func SeedWorkflow(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := database.SeedWorkflowDefaults(db); err != nil {
		t.Fatalf("Failed to seed workflow defaults: %v", err)
	}
}

// CreateTestProperty creates a property, optionally with a lock box code
func CreateTestProperty(t *testing.T, db *gorm.DB, name, lockBoxCode string) *models.Property {
	t.Helper()
	property := models.Property{
		Name:        name,
		Address:     "100 Test Ave",
		LockBoxCode: lockBoxCode,
	}
	if err := db.Create(&property).Error; err != nil {
		t.Fatalf("Failed to create property: %v", err)
	}
	return &property
}

// CreateTestVendor creates an active vendor
func CreateTestVendor(t *testing.T, db *gorm.DB, name string) *models.Vendor {
	t.Helper()
	vendor := models.Vendor{Name: name, Trade: "general", IsActive: true}
	if err := db.Create(&vendor).Error; err != nil {
		t.Fatalf("Failed to create vendor: %v", err)
	}
	return &vendor
}

// FindStage looks up a seeded stage by key
func FindStage(t *testing.T, db *gorm.DB, key string) *models.Stage {
	t.Helper()
	var stage models.Stage
	if err := db.Where("stage_key = ?", key).First(&stage).Error; err != nil {
		t.Fatalf("Failed to find stage %s: %v", key, err)
	}
	return &stage
}
