package services_test

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/turnboard/turnflow/internal/database"
	"github.com/turnboard/turnflow/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database with the default workflow
// configuration seeded
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	if err := database.SeedWorkflowDefaults(db); err != nil {
		t.Fatalf("Failed to seed workflow defaults: %v", err)
	}

	return db
}

func createProperty(t *testing.T, db *gorm.DB, lockBoxCode string) *models.Property {
	t.Helper()
	property := models.Property{
		Name:        "Unit 4B",
		Address:     "42 Elm St",
		LockBoxCode: lockBoxCode,
	}
	if err := db.Create(&property).Error; err != nil {
		t.Fatalf("Failed to create property: %v", err)
	}
	return &property
}

func createVendor(t *testing.T, db *gorm.DB) *models.Vendor {
	t.Helper()
	vendor := models.Vendor{Name: "Acme Restoration", Trade: "general", IsActive: true}
	if err := db.Create(&vendor).Error; err != nil {
		t.Fatalf("Failed to create vendor: %v", err)
	}
	return &vendor
}

func findStage(t *testing.T, db *gorm.DB, key string) *models.Stage {
	t.Helper()
	var stage models.Stage
	if err := db.Where("stage_key = ?", key).First(&stage).Error; err != nil {
		t.Fatalf("Failed to find stage %s: %v", key, err)
	}
	return &stage
}

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string { return &s }
