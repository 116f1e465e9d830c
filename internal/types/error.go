package types

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a failure so handlers can map it to an HTTP status
// and callers can tell exactly what is blocking progress.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindNotFound         ErrorKind = "not_found"
	KindForbidden        ErrorKind = "forbidden"
	KindConflict         ErrorKind = "conflict"
	KindApprovalRequired ErrorKind = "approval_required"
	KindUnavailable      ErrorKind = "unavailable"
)

type CustomError struct {
	Code    int       `json:"code"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Type    string    `json:"type"`
	// Details carries structured context, e.g. the outstanding approval
	// tiers that block a stage transition.
	Details []string `json:"details,omitempty"`
}

func (e *CustomError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%d: %s [%s] [type: %s]", e.Code, e.Message, strings.Join(e.Details, ","), e.Type)
	}
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// NewValidationError reports malformed or missing input (400).
func NewValidationError(message, errorType string) *CustomError {
	return &CustomError{Code: 400, Kind: KindValidation, Message: message, Type: errorType}
}

// NewNotFoundError reports a missing turn/stage/property/vendor (404).
func NewNotFoundError(message, errorType string) *CustomError {
	return &CustomError{Code: 404, Kind: KindNotFound, Message: message, Type: errorType}
}

// NewForbiddenError reports an actor without the required role (403).
func NewForbiddenError(message, errorType string) *CustomError {
	return &CustomError{Code: 403, Kind: KindForbidden, Message: message, Type: errorType}
}

// NewConflictError reports stale versions, sequence violations, duplicate
// decisions and protected-stage deletions (409).
func NewConflictError(message, errorType string) *CustomError {
	return &CustomError{Code: 409, Kind: KindConflict, Message: message, Type: errorType}
}

// NewApprovalRequiredError reports a transition blocked on approval, naming
// the outstanding tiers (409).
func NewApprovalRequiredError(tiers []string, errorType string) *CustomError {
	return &CustomError{
		Code:    409,
		Kind:    KindApprovalRequired,
		Message: fmt.Sprintf("Approval required: [%s]", strings.Join(tiers, ",")),
		Type:    errorType,
		Details: tiers,
	}
}

// NewUnavailableError reports an infrastructure failure (503). Retry policy
// belongs to the caller.
func NewUnavailableError(message, errorType string) *CustomError {
	return &CustomError{Code: 503, Kind: KindUnavailable, Message: message, Type: errorType}
}
