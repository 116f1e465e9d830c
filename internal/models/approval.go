package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Approval decisions
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
	DecisionPending  = "pending"
)

// ApprovalThreshold is a named monetary band mapped to an approval tier.
// An amount inside [MinAmount, MaxAmount) requires that tier; a nil
// MaxAmount means the band is unbounded above.
type ApprovalThreshold struct {
	ID                 string   `gorm:"type:char(36);primaryKey" json:"id"`
	Name               string   `gorm:"size:255;not null" json:"name"`
	MinAmount          float64  `gorm:"type:decimal(10,2);not null" json:"minAmount"`
	MaxAmount          *float64 `gorm:"type:decimal(10,2)" json:"maxAmount"`
	Tier               string   `gorm:"size:16;not null" json:"tier"`
	RequiresSequential bool     `gorm:"not null;default:false" json:"requiresSequential"`
	IsActive           bool     `gorm:"not null;default:true" json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for ApprovalThreshold
func (ApprovalThreshold) TableName() string {
	return "approval_thresholds"
}

// BeforeCreate assigns a UUID primary key
func (a *ApprovalThreshold) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// Approval is one approver's decision on a turn. Records are immutable once
// written; corrections are new records, not edits.
type Approval struct {
	ID         string    `gorm:"type:char(36);primaryKey" json:"id"`
	TurnID     string    `gorm:"type:char(36);not null;index" json:"turnId"`
	ApproverID string    `gorm:"type:char(36);not null" json:"approverId"`
	Tier       string    `gorm:"size:16;not null" json:"tier"`
	Decision   string    `gorm:"size:16;not null" json:"decision"`
	Comment    *string   `gorm:"type:text" json:"comment"`
	DecidedAt  time.Time `json:"decidedAt"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName overrides the table name for Approval
func (Approval) TableName() string {
	return "turn_approvals"
}

// BeforeCreate assigns a UUID primary key
func (a *Approval) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
