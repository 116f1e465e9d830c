package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/turnboard/turnflow/internal/database"
	"github.com/turnboard/turnflow/internal/handlers"
	"github.com/turnboard/turnflow/internal/services"
	"github.com/turnboard/turnflow/tests/helpers"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database seeded with the default
// workflow configuration
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	helpers.SeedWorkflow(t, db)

	return db
}

// setupApp mounts the API routes with a stubbed actor in place of the session
// middleware
func setupApp(db *gorm.DB, roles ...string) *fiber.App {
	if len(roles) == 0 {
		roles = []string{"admin"}
	}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("actorId", "test-actor")
		c.Locals("actorRoles", roles)
		return c.Next()
	})

	turns := &handlers.TurnHandler{DB: db}
	approvals := &handlers.ApprovalHandler{DB: db}
	stages := &handlers.StageHandler{DB: db}
	lockbox := &handlers.LockBoxHandler{DB: db}

	app.Get("/api/turns", turns.ListTurns)
	app.Post("/api/turns", turns.CreateTurn)
	app.Get("/api/turns/:id", turns.GetTurn)
	app.Patch("/api/turns/:id", turns.UpdateTurn)
	app.Delete("/api/turns/:id", turns.DeleteTurn)
	app.Get("/api/turns/:id/history", turns.GetTurnHistory)
	app.Get("/api/turns/:id/approvals", approvals.GetApprovals)
	app.Post("/api/turns/:id/approvals", approvals.SubmitDecisions)
	app.Get("/api/stages", stages.ListStages)
	app.Get("/api/thresholds", stages.ListThresholds)
	app.Get("/api/properties/:id/lockbox", lockbox.GetLockBox)
	app.Post("/api/properties/:id/lockbox", lockbox.UpdateLockBox)
	app.Get("/api/properties/:id/lockbox/history", lockbox.GetLockBoxHistory)

	return app
}

func doJSON(t *testing.T, app *fiber.App, method, url string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()

	var req = httptest.NewRequest(method, url, nil)
	if payload != nil {
		body, _ := json.Marshal(payload)
		req = httptest.NewRequest(method, url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp.StatusCode, result
}

// TestCreateAndGetTurn tests POST /api/turns and GET /api/turns/:id
func TestCreateAndGetTurn(t *testing.T) {
	db := setupTestDB(t)
	property := helpers.CreateTestProperty(t, db, "Unit 1A", "")
	app := setupApp(db)

	status, created := doJSON(t, app, "POST", "/api/turns", map[string]interface{}{
		"propertyId":  property.ID,
		"priority":    "high",
		"scopeOfWork": "full repaint",
	})
	if status != 201 {
		t.Fatalf("Expected status 201, got %d: %v", status, created)
	}
	if created["status"] != "draft" || created["priority"] != "high" {
		t.Errorf("Unexpected created turn: %v", created)
	}

	id := created["id"].(string)
	status, fetched := doJSON(t, app, "GET", "/api/turns/"+id, nil)
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	if fetched["turnNumber"] != created["turnNumber"] {
		t.Errorf("Expected the created turn back, got %v", fetched)
	}
	if fetched["stage"] == nil {
		t.Error("Expected preloaded stage in response")
	}
}

// TestGetTurnNotFoundEnvelope tests the 404 error envelope
func TestGetTurnNotFoundEnvelope(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(db)

	status, body := doJSON(t, app, "GET", "/api/turns/missing", nil)
	if status != 404 {
		t.Fatalf("Expected status 404, got %d", status)
	}
	if body["ok"] != false || body["kind"] != "not_found" {
		t.Errorf("Unexpected error envelope: %v", body)
	}
	if body["url"] != "/api/turns/missing" {
		t.Errorf("Expected request url in envelope, got %v", body["url"])
	}
}

// TestUpdateTurnVersionConflictEnvelope tests the 409 envelope with the
// versionError marker
func TestUpdateTurnVersionConflictEnvelope(t *testing.T) {
	db := setupTestDB(t)
	property := helpers.CreateTestProperty(t, db, "Unit 2B", "")
	app := setupApp(db)

	_, created := doJSON(t, app, "POST", "/api/turns", map[string]interface{}{
		"propertyId": property.ID,
	})
	id := created["id"].(string)

	status, body := doJSON(t, app, "PATCH", "/api/turns/"+id, map[string]interface{}{
		"version": 42,
		"patch":   map[string]interface{}{"priority": "urgent"},
	})
	if status != 409 {
		t.Fatalf("Expected status 409, got %d: %v", status, body)
	}
	if body["versionError"] != true {
		t.Errorf("Expected versionError marker, got %v", body)
	}

	// String versions are accepted too
	status, updated := doJSON(t, app, "PATCH", "/api/turns/"+id, map[string]interface{}{
		"version": "0",
		"patch":   map[string]interface{}{"priority": "urgent"},
		"comment": "tenant move-out confirmed",
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d: %v", status, updated)
	}
	if updated["priority"] != "urgent" {
		t.Errorf("Expected patched priority, got %v", updated["priority"])
	}
}

// TestSubmitDecisionEndpoint tests POST /api/turns/:id/approvals with a
// single-object body
func TestSubmitDecisionEndpoint(t *testing.T) {
	db := setupTestDB(t)
	property := helpers.CreateTestProperty(t, db, "Unit 3C", "")
	app := setupApp(db, "dfo")

	turn, err := services.CreateTurn(db, services.TurnInput{
		PropertyID:    property.ID,
		EstimatedCost: floatPtr(5000),
	}, "test-actor")
	if err != nil {
		t.Fatalf("CreateTurn failed: %v", err)
	}

	status, summary := doJSON(t, app, "POST", "/api/turns/"+turn.ID+"/approvals", map[string]interface{}{
		"tier":     "dfo",
		"decision": "approved",
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d: %v", status, summary)
	}
	state := summary["state"].(map[string]interface{})
	if state["satisfied"] != true {
		t.Errorf("Expected satisfied approval state, got %v", state)
	}

	status, body := doJSON(t, app, "GET", "/api/turns/"+turn.ID+"/approvals", nil)
	if status != 200 {
		t.Fatalf("Expected status 200, got %d", status)
	}
	decisions := body["decisions"].([]interface{})
	if len(decisions) != 1 {
		t.Errorf("Expected 1 decision record, got %d", len(decisions))
	}
}

// TestStageAndThresholdEndpoints tests the registry read routes
func TestStageAndThresholdEndpoints(t *testing.T) {
	db := setupTestDB(t)
	app := setupApp(db)

	req := httptest.NewRequest("GET", "/api/stages", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	var stages []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&stages); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(stages) == 0 {
		t.Error("Expected seeded stages")
	}

	req = httptest.NewRequest("GET", "/api/thresholds", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	var bands []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&bands); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(bands) != 3 {
		t.Errorf("Expected 3 threshold bands, got %d", len(bands))
	}
}

// TestLockBoxEndpoints tests the lock-box routes end to end
func TestLockBoxEndpoints(t *testing.T) {
	db := setupTestDB(t)
	property := helpers.CreateTestProperty(t, db, "Unit 4D", "1111")
	app := setupApp(db)

	status, body := doJSON(t, app, "POST", "/api/properties/"+property.ID+"/lockbox", map[string]interface{}{
		"newCode": "2222",
		"reason":  "turnover rotation",
	})
	if status != 200 {
		t.Fatalf("Expected status 200, got %d: %v", status, body)
	}
	if body["code"] != "2222" {
		t.Errorf("Expected updated code in snapshot, got %v", body)
	}

	status, snapshot := doJSON(t, app, "GET", "/api/properties/"+property.ID+"/lockbox", nil)
	if status != 200 || snapshot["code"] != "2222" {
		t.Errorf("Expected current snapshot, got %d %v", status, snapshot)
	}

	req := httptest.NewRequest("GET", "/api/properties/"+property.ID+"/lockbox/history", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	var entries []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(entries) != 1 || entries[0]["oldCode"] != "1111" || entries[0]["newCode"] != "2222" {
		t.Errorf("Unexpected ledger entries: %v", entries)
	}

	// A no-op resubmission is rejected with a validation envelope
	status, rejected := doJSON(t, app, "POST", "/api/properties/"+property.ID+"/lockbox", map[string]interface{}{
		"newCode": "2222",
		"reason":  "turnover rotation",
	})
	if status != 400 || rejected["kind"] != "validation" {
		t.Errorf("Expected validation rejection, got %d %v", status, rejected)
	}
}

// TestDeleteTurnEndpoint tests the administrative delete route
func TestDeleteTurnEndpoint(t *testing.T) {
	db := setupTestDB(t)
	property := helpers.CreateTestProperty(t, db, "Unit 5E", "")
	app := setupApp(db)

	_, created := doJSON(t, app, "POST", "/api/turns", map[string]interface{}{
		"propertyId": property.ID,
	})
	id := created["id"].(string)

	status, body := doJSON(t, app, "DELETE", "/api/turns/"+id, nil)
	if status != 200 || body["ok"] != true {
		t.Fatalf("Expected delete success, got %d %v", status, body)
	}

	status, _ = doJSON(t, app, "GET", "/api/turns/"+id, nil)
	if status != 404 {
		t.Errorf("Expected 404 after delete, got %d", status)
	}

	// The audit trail survives the delete
	req := httptest.NewRequest("GET", "/api/turns/"+id+"/history", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	var entries []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(entries) < 2 {
		t.Errorf("Expected created and deleted history entries, got %d", len(entries))
	}
}

func floatPtr(f float64) *float64 { return &f }
