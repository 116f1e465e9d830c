package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Stage is one configurable step in the turn workflow. Requirement flags are
// data, evaluated generically by the turn state machine, so stages can be
// added or edited at runtime without code changes.
type Stage struct {
	ID       string `gorm:"type:char(36);primaryKey" json:"id"`
	Key      string `gorm:"column:stage_key;uniqueIndex;size:64;not null" json:"key"`
	Name     string `gorm:"size:255;not null" json:"name"`
	Sequence int    `gorm:"not null;default:0;index" json:"sequence"`

	IsActive  bool `gorm:"not null;default:true" json:"isActive"`
	IsDefault bool `gorm:"not null;default:false" json:"isDefault"`
	IsFinal   bool `gorm:"not null;default:false" json:"isFinal"`

	RequiresApproval bool `gorm:"not null;default:false" json:"requiresApproval"`
	RequiresVendor   bool `gorm:"not null;default:false" json:"requiresVendor"`
	RequiresAmount   bool `gorm:"not null;default:false" json:"requiresAmount"`
	RequiresLockBox  bool `gorm:"not null;default:false" json:"requiresLockBox"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for Stage
func (Stage) TableName() string {
	return "turn_stages"
}

// BeforeCreate assigns a UUID primary key
func (s *Stage) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
