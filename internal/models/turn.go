package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Turn statuses conventionally mirror stage keys; "rejected" and "deleted"
// are administrative statuses outside the stage sequence.
const (
	TurnStatusDraft          = "draft"
	TurnStatusSecureProperty = "secure_property"
	TurnStatusInspection     = "inspection"
	TurnStatusScopeReview    = "scope_review"
	TurnStatusVendorAssigned = "vendor_assigned"
	TurnStatusInProgress     = "in_progress"
	TurnStatusChangeOrder    = "change_order"
	TurnStatusScan360        = "scan_360"
	TurnStatusComplete       = "turns_complete"
	TurnStatusRejected       = "rejected"
	TurnStatusDeleted        = "deleted"
)

// Turn priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Approval tiers
const (
	TierDfo = "dfo"
	TierHo  = "ho"
)

// Turn represents one unit of renovation/turnover work on a property.
// Rows are never physically destroyed; administrative deletion flips
// IsDeleted so the audit trail stays intact.
type Turn struct {
	ID              string     `gorm:"type:char(36);primaryKey" json:"id"`
	TurnNumber      string     `gorm:"uniqueIndex;size:32;not null" json:"turnNumber"`
	PropertyID      string     `gorm:"type:char(36);not null;index" json:"propertyId"`
	Property        *Property  `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	Status          string     `gorm:"size:32;not null;default:'draft'" json:"status"`
	Priority        string     `gorm:"size:16;not null;default:'medium'" json:"priority"`
	StageID         *string    `gorm:"type:char(36);index" json:"stageId"`
	Stage           *Stage     `gorm:"foreignKey:StageID" json:"stage,omitempty"`
	VendorID        *string    `gorm:"type:char(36);index" json:"vendorId"`
	Vendor          *Vendor    `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	EstimatedCost   *float64   `gorm:"type:decimal(10,2)" json:"estimatedCost"`
	ActualCost      *float64   `gorm:"type:decimal(10,2)" json:"actualCost"`
	DueDate         *time.Time `json:"dueDate"`
	CompletionDate  *time.Time `json:"completionDate"`
	ScopeOfWork     string     `gorm:"type:text" json:"scopeOfWork"`
	PowerOn         bool       `gorm:"not null;default:false" json:"powerOn"`
	WaterOn         bool       `gorm:"not null;default:false" json:"waterOn"`
	GasOn           bool       `gorm:"not null;default:false" json:"gasOn"`
	TrashOutNeeded  bool       `gorm:"not null;default:false" json:"trashOutNeeded"`
	AppliancesNeeded bool      `gorm:"not null;default:false" json:"appliancesNeeded"`

	// Denormalized approval flags, refreshed from the Approval records on
	// every decision write. The decision records are the ground truth.
	NeedsDfoApproval bool       `gorm:"not null;default:false" json:"needsDfoApproval"`
	NeedsHoApproval  bool       `gorm:"not null;default:false" json:"needsHoApproval"`
	DfoApprovedBy    *string    `gorm:"type:char(36)" json:"dfoApprovedBy"`
	DfoApprovedAt    *time.Time `json:"dfoApprovedAt"`
	HoApprovedBy     *string    `gorm:"type:char(36)" json:"hoApprovedBy"`
	HoApprovedAt     *time.Time `json:"hoApprovedAt"`
	RejectionReason  *string    `gorm:"type:text" json:"rejectionReason"`

	// RowVersion is the optimistic concurrency counter; every successful
	// write increments it and a write against a stale value is rejected.
	RowVersion uint64 `gorm:"not null;default:0" json:"rowVersion"`
	IsDeleted  bool   `gorm:"not null;default:false;index" json:"-"`
	CreatedBy  string `gorm:"type:char(36)" json:"createdBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for Turn
func (Turn) TableName() string {
	return "turns"
}

// BeforeCreate assigns a UUID primary key
func (t *Turn) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// ValidPriority reports whether p is one of the known turn priorities.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
