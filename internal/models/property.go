package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Property is a rental unit the turns run against. Only the identifiers and
// the current lock-box fields matter to the engine; the rest is directory
// data.
type Property struct {
	ID      string `gorm:"type:char(36);primaryKey" json:"id"`
	Name    string `gorm:"size:255;not null" json:"name"`
	Address string `gorm:"size:255" json:"address"`

	// Current lock-box snapshot; every change goes through the ledger and
	// lands in lock_box_history.
	LockBoxCode        string     `gorm:"size:32" json:"lockBoxCode"`
	LockBoxLocation    string     `gorm:"size:255" json:"lockBoxLocation"`
	LockBoxInstallDate *time.Time `json:"lockBoxInstallDate"`
	LockBoxNotes       string     `gorm:"type:text" json:"lockBoxNotes"`

	RowVersion uint64 `gorm:"not null;default:0" json:"rowVersion"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for Property
func (Property) TableName() string {
	return "properties"
}

// BeforeCreate assigns a UUID primary key
func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// Vendor is a contractor that can be assigned to turns.
type Vendor struct {
	ID       string `gorm:"type:char(36);primaryKey" json:"id"`
	Name     string `gorm:"size:255;not null" json:"name"`
	Trade    string `gorm:"size:128" json:"trade"`
	IsActive bool   `gorm:"not null;default:true" json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for Vendor
func (Vendor) TableName() string {
	return "vendors"
}

// BeforeCreate assigns a UUID primary key
func (v *Vendor) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}
