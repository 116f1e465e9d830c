package services

import (
	"fmt"

	"github.com/turnboard/turnflow/internal/models"
	"github.com/turnboard/turnflow/internal/types"
	"gorm.io/gorm"
)

// PropertyInput creates or updates a directory property. Lock-box fields are
// deliberately absent; those only move through the lock box ledger.
type PropertyInput struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// VendorInput creates or updates a directory vendor.
type VendorInput struct {
	Name     string `json:"name"`
	Trade    string `json:"trade"`
	IsActive *bool  `json:"isActive"`
}

// ListProperties returns all directory properties ordered by name.
func ListProperties(db *gorm.DB) ([]models.Property, error) {
	var properties []models.Property
	if err := db.Order("name asc").Find(&properties).Error; err != nil {
		return nil, types.NewUnavailableError(err.Error(), "properties.list")
	}
	return properties, nil
}

// CreateProperty adds a property to the directory.
func CreateProperty(db *gorm.DB, input PropertyInput) (*models.Property, error) {
	if input.Name == "" {
		return nil, types.NewValidationError("Property name is required", "properties.create")
	}

	property := models.Property{Name: input.Name, Address: input.Address}
	if err := db.Create(&property).Error; err != nil {
		return nil, types.NewUnavailableError(err.Error(), "properties.create")
	}
	return &property, nil
}

// UpdateProperty changes a property's directory fields.
func UpdateProperty(db *gorm.DB, id string, input PropertyInput) (*models.Property, error) {
	var property models.Property
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&property).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return types.NewNotFoundError(fmt.Sprintf("Property '%s' not found", id), "properties.update")
			}
			return err
		}

		if input.Name != "" {
			property.Name = input.Name
		}
		if input.Address != "" {
			property.Address = input.Address
		}
		return tx.Save(&property).Error
	})
	if err != nil {
		return nil, wrapServiceError(err, "properties.update")
	}
	return &property, nil
}

// ListVendors returns directory vendors, optionally including inactive ones.
func ListVendors(db *gorm.DB, includeInactive bool) ([]models.Vendor, error) {
	query := db.Order("name asc")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var vendors []models.Vendor
	if err := query.Find(&vendors).Error; err != nil {
		return nil, types.NewUnavailableError(err.Error(), "vendors.list")
	}
	return vendors, nil
}

// CreateVendor adds a vendor to the directory.
func CreateVendor(db *gorm.DB, input VendorInput) (*models.Vendor, error) {
	if input.Name == "" {
		return nil, types.NewValidationError("Vendor name is required", "vendors.create")
	}

	vendor := models.Vendor{Name: input.Name, Trade: input.Trade, IsActive: true}
	if input.IsActive != nil {
		vendor.IsActive = *input.IsActive
	}
	if err := db.Create(&vendor).Error; err != nil {
		return nil, types.NewUnavailableError(err.Error(), "vendors.create")
	}
	return &vendor, nil
}

// UpdateVendor changes a vendor's directory fields. Deactivation keeps the
// row; turns already assigned to the vendor stay valid.
func UpdateVendor(db *gorm.DB, id string, input VendorInput) (*models.Vendor, error) {
	var vendor models.Vendor
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&vendor).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return types.NewNotFoundError(fmt.Sprintf("Vendor '%s' not found", id), "vendors.update")
			}
			return err
		}

		if input.Name != "" {
			vendor.Name = input.Name
		}
		if input.Trade != "" {
			vendor.Trade = input.Trade
		}
		if input.IsActive != nil {
			vendor.IsActive = *input.IsActive
		}
		return tx.Save(&vendor).Error
	})
	if err != nil {
		return nil, wrapServiceError(err, "vendors.update")
	}
	return &vendor, nil
}
