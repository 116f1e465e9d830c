// turn_service_test.go
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

package services_test

import (
	"strings"
	"testing"

	"github.com/turnboard/turnflow/internal/models"
	"github.com/turnboard/turnflow/internal/services"
	"github.com/turnboard/turnflow/internal/types"
	"gorm.io/gorm"
)

func createTurn(t *testing.T, db *gorm.DB, input services.TurnInput) *models.Turn {
	t.Helper()
	turn, err := services.CreateTurn(db, input, "creator-1")
	if err != nil {
		t.Fatalf("CreateTurn failed: %v", err)
	}
	return turn
}

func assertKind(t *testing.T, err error, kind types.ErrorKind) *types.CustomError {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", kind)
	}
	ce, ok := err.(*types.CustomError)
	if !ok {
		t.Fatalf("Expected CustomError, got %T: %v", err, err)
	}
	if ce.Kind != kind {
		t.Fatalf("Expected kind %s, got %s (%v)", kind, ce.Kind, ce)
	}
	return ce
}

// TestCreateTurnDefaults verifies a new turn lands in the default stage with
// a creation history entry
func TestCreateTurnDefaults(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")

	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})

	if turn.Status != models.TurnStatusDraft {
		t.Errorf("Expected status draft, got %s", turn.Status)
	}
	if turn.Priority != models.PriorityMedium {
		t.Errorf("Expected default priority medium, got %s", turn.Priority)
	}
	if !strings.HasPrefix(turn.TurnNumber, "TURN-") {
		t.Errorf("Unexpected turn number format: %s", turn.TurnNumber)
	}
	if turn.RowVersion != 0 {
		t.Errorf("Expected initial row version 0, got %d", turn.RowVersion)
	}

	history, err := services.GetTurnHistory(db, turn.ID, 0)
	if err != nil {
		t.Fatalf("GetTurnHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Action != models.ActionCreated {
		t.Errorf("Expected a single created history entry, got %+v", history)
	}
}

// TestCreateTurnUnknownProperty verifies a turn cannot reference a missing
// property
func TestCreateTurnUnknownProperty(t *testing.T) {
	db := setupTestDB(t)
	_, err := services.CreateTurn(db, services.TurnInput{PropertyID: "nope"}, "creator-1")
	assertKind(t, err, types.KindNotFound)
}

// TestUpdateTurnVersionConflict verifies a stale version is rejected without
// touching state
func TestUpdateTurnVersionConflict(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})

	_, err := services.UpdateTurn(db, turn.ID, turn.RowVersion+5,
		services.TurnPatch{Priority: strPtr(models.PriorityHigh)}, "actor-1", "")
	ce := assertKind(t, err, types.KindConflict)
	if !strings.HasPrefix(ce.Message, "E_VERSION") {
		t.Errorf("Expected E_VERSION message, got %s", ce.Message)
	}

	reloaded, err := services.GetTurn(db, turn.ID)
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if reloaded.Priority != models.PriorityMedium {
		t.Errorf("Priority should be unchanged after conflict, got %s", reloaded.Priority)
	}
}

// TestUpdateTurnNoOp verifies a patch that changes nothing succeeds without
// bumping the version or writing history
func TestUpdateTurnNoOp(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})

	updated, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{Priority: strPtr(models.PriorityMedium)}, "actor-1", "")
	if err != nil {
		t.Fatalf("No-op update failed: %v", err)
	}
	if updated.RowVersion != turn.RowVersion {
		t.Errorf("No-op should not bump version: %d -> %d", turn.RowVersion, updated.RowVersion)
	}

	history, _ := services.GetTurnHistory(db, turn.ID, 0)
	if len(history) != 1 {
		t.Errorf("No-op should add no history, got %d entries", len(history))
	}
}

// TestUpdateTurnFieldChange verifies a plain field change bumps the version
// and records a field_change entry
func TestUpdateTurnFieldChange(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})

	updated, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{Priority: strPtr(models.PriorityUrgent)}, "actor-1", "rush job")
	if err != nil {
		t.Fatalf("UpdateTurn failed: %v", err)
	}
	if updated.RowVersion != turn.RowVersion+1 {
		t.Errorf("Expected version bump to %d, got %d", turn.RowVersion+1, updated.RowVersion)
	}

	history, _ := services.GetTurnHistory(db, turn.ID, 0)
	if len(history) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(history))
	}
	if history[0].Action != models.ActionFieldChange {
		t.Errorf("Expected field_change entry, got %s", history[0].Action)
	}
	if history[0].Comment != "rush job" {
		t.Errorf("Expected comment on history entry, got %q", history[0].Comment)
	}
}

// TestStageTransitionRecordsStatusAndStage verifies a stage move records both
// the stage change and the implied status change
func TestStageTransitionRecordsStatusAndStage(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})
	inspection := findStage(t, db, "inspection")

	updated, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{StageID: &inspection.ID}, "actor-1", "")
	if err != nil {
		t.Fatalf("Stage transition failed: %v", err)
	}
	if updated.Status != "inspection" {
		t.Errorf("Status should follow stage key, got %s", updated.Status)
	}

	history, _ := services.GetTurnHistory(db, turn.ID, 0)
	var sawStatus, sawStage bool
	for _, h := range history {
		if h.Action == models.ActionStatusChange {
			sawStatus = true
		}
		if h.Action == models.ActionStageChange {
			sawStage = true
		}
	}
	if !sawStatus || !sawStage {
		t.Errorf("Expected status_change and stage_change entries, got %+v", history)
	}
}

// TestStageRequiresVendor verifies the vendor_assigned gate
func TestStageRequiresVendor(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})
	stage := findStage(t, db, "vendor_assigned")

	_, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{StageID: &stage.ID}, "actor-1", "")
	assertKind(t, err, types.KindValidation)

	// With a vendor assigned in the same patch the transition goes through
	vendor := createVendor(t, db)
	updated, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{StageID: &stage.ID, VendorID: &vendor.ID}, "actor-1", "")
	if err != nil {
		t.Fatalf("Transition with vendor failed: %v", err)
	}
	if updated.Status != "vendor_assigned" {
		t.Errorf("Expected vendor_assigned status, got %s", updated.Status)
	}
}

// TestStageRequiresLockBox verifies the secure_property gate reads the
// property's current lock box state
func TestStageRequiresLockBox(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})
	stage := findStage(t, db, "secure_property")

	_, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{StageID: &stage.ID}, "actor-1", "")
	assertKind(t, err, types.KindValidation)

	// Install a lock box through the ledger, then retry
	_, err = services.UpdateLockBox(db, property.ID, services.LockBoxInput{
		NewCode: strPtr("4417"),
		Reason:  "initial install",
	}, "actor-1")
	if err != nil {
		t.Fatalf("UpdateLockBox failed: %v", err)
	}

	if _, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{StageID: &stage.ID}, "actor-1", ""); err != nil {
		t.Fatalf("Transition with lock box failed: %v", err)
	}
}

// TestStageRequiresAmountAndApproval verifies the scope_review gate: an
// amount below every threshold band passes without approval, a mid-band
// amount is blocked naming the outstanding tier
func TestStageRequiresAmountAndApproval(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	stage := findStage(t, db, "scope_review")

	// No estimated cost at all: the amount gate trips first
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})
	_, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{StageID: &stage.ID}, "actor-1", "")
	assertKind(t, err, types.KindValidation)

	// $500 sits below every band: no approval needed
	small := createTurn(t, db, services.TurnInput{PropertyID: property.ID, EstimatedCost: floatPtr(500)})
	if _, err := services.UpdateTurn(db, small.ID, small.RowVersion,
		services.TurnPatch{StageID: &stage.ID}, "actor-1", ""); err != nil {
		t.Fatalf("Small turn should not need approval: %v", err)
	}

	// $5,000 requires DFO sign-off
	mid := createTurn(t, db, services.TurnInput{PropertyID: property.ID, EstimatedCost: floatPtr(5000)})
	_, err = services.UpdateTurn(db, mid.ID, mid.RowVersion,
		services.TurnPatch{StageID: &stage.ID}, "actor-1", "")
	ce := assertKind(t, err, types.KindApprovalRequired)
	if len(ce.Details) != 1 || ce.Details[0] != models.TierDfo {
		t.Errorf("Expected outstanding tier [dfo], got %v", ce.Details)
	}

	// $12,000 requires both tiers
	big := createTurn(t, db, services.TurnInput{PropertyID: property.ID, EstimatedCost: floatPtr(12000)})
	_, err = services.UpdateTurn(db, big.ID, big.RowVersion,
		services.TurnPatch{StageID: &stage.ID}, "actor-1", "")
	ce = assertKind(t, err, types.KindApprovalRequired)
	if len(ce.Details) != 2 {
		t.Errorf("Expected outstanding tiers [dfo ho], got %v", ce.Details)
	}
}

// TestApprovalUnblocksTransition verifies that once the required tier
// approves, the gated transition succeeds
func TestApprovalUnblocksTransition(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	stage := findStage(t, db, "scope_review")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID, EstimatedCost: floatPtr(5000)})

	_, err := services.SubmitDecision(db, turn.ID, "dfo-user", []string{"dfo"}, services.DecisionInput{
		Tier:     models.TierDfo,
		Decision: models.DecisionApproved,
	})
	if err != nil {
		t.Fatalf("SubmitDecision failed: %v", err)
	}

	// The decision bumped the row version; reload before transitioning
	reloaded, err := services.GetTurn(db, turn.ID)
	if err != nil {
		t.Fatalf("GetTurn failed: %v", err)
	}
	if _, err := services.UpdateTurn(db, reloaded.ID, reloaded.RowVersion,
		services.TurnPatch{StageID: &stage.ID}, "actor-1", ""); err != nil {
		t.Fatalf("Approved transition failed: %v", err)
	}
}

// TestActualCostGate verifies actualCost cannot be set before work starts
func TestActualCostGate(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})

	_, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{ActualCost: floatPtr(1234)}, "actor-1", "")
	assertKind(t, err, types.KindValidation)
}

// TestFinalStageSetsCompletionDate verifies completion is derived from the
// final stage, and cleared if the turn leaves it
func TestFinalStageSetsCompletionDate(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})
	final := findStage(t, db, "turns_complete")

	updated, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{StageID: &final.ID}, "actor-1", "")
	if err != nil {
		t.Fatalf("Transition to final stage failed: %v", err)
	}
	if updated.CompletionDate == nil {
		t.Fatal("Expected completion date on final stage")
	}

	inspection := findStage(t, db, "inspection")
	updated, err = services.UpdateTurn(db, updated.ID, updated.RowVersion,
		services.TurnPatch{StageID: &inspection.ID}, "actor-1", "")
	if err != nil {
		t.Fatalf("Transition out of final stage failed: %v", err)
	}
	if updated.CompletionDate != nil {
		t.Error("Expected completion date cleared after leaving final stage")
	}
}

// TestDeleteTurnKeepsHistory verifies administrative deletion hides the turn
// but not its audit trail
func TestDeleteTurnKeepsHistory(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})

	if err := services.DeleteTurn(db, turn.ID, "admin-1"); err != nil {
		t.Fatalf("DeleteTurn failed: %v", err)
	}

	_, err := services.GetTurn(db, turn.ID)
	assertKind(t, err, types.KindNotFound)

	history, err := services.GetTurnHistory(db, turn.ID, 0)
	if err != nil {
		t.Fatalf("History should survive deletion: %v", err)
	}
	if len(history) != 2 || history[0].Action != models.ActionDeleted {
		t.Errorf("Expected deleted entry on top of history, got %+v", history)
	}

	// Deleting twice reports NotFound
	err = services.DeleteTurn(db, turn.ID, "admin-1")
	assertKind(t, err, types.KindNotFound)
}

// TestListTurnsFilters verifies the property and status filters
func TestListTurnsFilters(t *testing.T) {
	db := setupTestDB(t)
	propertyA := createProperty(t, db, "")
	propertyB := createProperty(t, db, "")

	createTurn(t, db, services.TurnInput{PropertyID: propertyA.ID})
	createTurn(t, db, services.TurnInput{PropertyID: propertyB.ID})

	all, err := services.ListTurns(db, "", "")
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 turns, got %d", len(all))
	}

	onlyA, err := services.ListTurns(db, propertyA.ID, "")
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	if len(onlyA) != 1 || onlyA[0].PropertyID != propertyA.ID {
		t.Errorf("Expected only property A turns, got %+v", onlyA)
	}
}

// TestStatusOnlyPatchMovesStage verifies a status update carries the turn to
// the matching stage, so a terminal status always lands on the final stage
// with a completion date
func TestStatusOnlyPatchMovesStage(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})
	final := findStage(t, db, "turns_complete")

	updated, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{Status: strPtr(models.TurnStatusComplete)}, "actor-1", "")
	if err != nil {
		t.Fatalf("Status update failed: %v", err)
	}
	if updated.StageID == nil || *updated.StageID != final.ID {
		t.Errorf("Expected turn on the final stage, got %v", updated.StageID)
	}
	if updated.CompletionDate == nil {
		t.Error("Expected completion date with terminal status")
	}
}

// TestStatusOnlyPatchRunsStageGates verifies a status update cannot sidestep
// the requirement flags of the stage it names
func TestStatusOnlyPatchRunsStageGates(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})

	// scope_review needs an estimated cost the turn does not have
	_, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{Status: strPtr("scope_review")}, "actor-1", "")
	assertKind(t, err, types.KindValidation)
}

// TestStatusPatchRejectsUnknownAndReserved verifies free-text statuses are
// refused: a status must name an active stage, be "rejected", and never the
// reserved "deleted"
func TestStatusPatchRejectsUnknownAndReserved(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})

	_, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{Status: strPtr("bogus")}, "actor-1", "")
	assertKind(t, err, types.KindValidation)

	_, err = services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{Status: strPtr(models.TurnStatusDeleted)}, "actor-1", "")
	assertKind(t, err, types.KindValidation)

	// A status naming a different stage than the one requested is a conflict
	// the caller has to resolve
	draft := findStage(t, db, "draft")
	_, err = services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{Status: strPtr("inspection"), StageID: &draft.ID}, "actor-1", "")
	assertKind(t, err, types.KindValidation)
}

// TestRejectedStatusClearsCompletionDate verifies a rejection after
// completion takes the completion date with it
func TestRejectedStatusClearsCompletionDate(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID})

	updated, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{Status: strPtr(models.TurnStatusComplete)}, "actor-1", "")
	if err != nil {
		t.Fatalf("Completion failed: %v", err)
	}
	if updated.CompletionDate == nil {
		t.Fatal("Expected completion date on terminal status")
	}

	updated, err = services.UpdateTurn(db, updated.ID, updated.RowVersion,
		services.TurnPatch{Status: strPtr(models.TurnStatusRejected)}, "actor-1", "")
	if err != nil {
		t.Fatalf("Rejection failed: %v", err)
	}
	if updated.Status != models.TurnStatusRejected {
		t.Errorf("Expected rejected status, got %s", updated.Status)
	}
	if updated.CompletionDate != nil {
		t.Error("Expected completion date cleared with non-terminal status")
	}
}

// TestVendorUnassignedByEmptyString verifies an empty vendorId clears the
// assignment while nil leaves it alone
func TestVendorUnassignedByEmptyString(t *testing.T) {
	db := setupTestDB(t)
	property := createProperty(t, db, "")
	vendor := createVendor(t, db)
	turn := createTurn(t, db, services.TurnInput{PropertyID: property.ID, VendorID: &vendor.ID})

	updated, err := services.UpdateTurn(db, turn.ID, turn.RowVersion,
		services.TurnPatch{VendorID: strPtr("")}, "actor-1", "")
	if err != nil {
		t.Fatalf("Vendor unassignment failed: %v", err)
	}
	if updated.VendorID != nil {
		t.Errorf("Expected vendor cleared, got %v", *updated.VendorID)
	}
	if updated.RowVersion != turn.RowVersion+1 {
		t.Errorf("Expected version bump, got %d", updated.RowVersion)
	}

	// Clearing an already-unassigned vendor changes nothing
	again, err := services.UpdateTurn(db, updated.ID, updated.RowVersion,
		services.TurnPatch{VendorID: strPtr("")}, "actor-1", "")
	if err != nil {
		t.Fatalf("Repeated unassignment failed: %v", err)
	}
	if again.RowVersion != updated.RowVersion {
		t.Errorf("Expected version unchanged, got %d", again.RowVersion)
	}
}
