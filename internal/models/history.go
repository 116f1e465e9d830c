package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// History actions
const (
	ActionStatusChange = "status_change"
	ActionStageChange  = "stage_change"
	ActionFieldChange  = "field_change"
	ActionCreated      = "created"
	ActionDeleted      = "deleted"
	ActionApproval     = "approval_decision"
)

// TurnHistory is an append-only audit entry scoped to a turn. The storage
// layer exposes no update or delete for these rows; the compliance guarantee
// is structural, not procedural.
type TurnHistory struct {
	ID             string         `gorm:"type:char(36);primaryKey" json:"id"`
	TurnID         string         `gorm:"type:char(36);not null;index:idx_turn_history_turn" json:"turnId"`
	Action         string         `gorm:"size:32;not null" json:"action"`
	PreviousStatus *string        `gorm:"size:32" json:"previousStatus"`
	NewStatus      *string        `gorm:"size:32" json:"newStatus"`
	PreviousStageID *string       `gorm:"type:char(36)" json:"previousStageId"`
	NewStageID     *string        `gorm:"type:char(36)" json:"newStageId"`
	ActorID        string         `gorm:"type:char(36);not null" json:"actorId"`
	Comment        string         `gorm:"type:text" json:"comment"`
	ChangedData    datatypes.JSON `gorm:"type:json" json:"changedData"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// TableName overrides the table name for TurnHistory
func (TurnHistory) TableName() string {
	return "turn_history"
}

// BeforeCreate assigns a UUID primary key
func (h *TurnHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	return nil
}

// LockBoxHistory is an append-only audit entry for a property's physical
// access code. Codes live only in this dedicated store, never in general
// application logs.
type LockBoxHistory struct {
	ID          string     `gorm:"type:char(36);primaryKey" json:"id"`
	PropertyID  string     `gorm:"type:char(36);not null;index:idx_lockbox_history_property" json:"propertyId"`
	TurnID      *string    `gorm:"type:char(36)" json:"turnId"`
	InstallDate *time.Time `json:"installDate"`
	Location    string     `gorm:"size:255" json:"location"`
	OldCode     string     `gorm:"size:32" json:"oldCode"`
	NewCode     string     `gorm:"size:32" json:"newCode"`
	Reason      string     `gorm:"type:text;not null" json:"reason"`
	ActorID     string     `gorm:"type:char(36);not null" json:"actorId"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// TableName overrides the table name for LockBoxHistory
func (LockBoxHistory) TableName() string {
	return "lock_box_history"
}

// BeforeCreate assigns a UUID primary key
func (h *LockBoxHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	return nil
}
