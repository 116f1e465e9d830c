// main.go
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

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/turnboard/turnflow/internal/config"
	"github.com/turnboard/turnflow/internal/database"
	"github.com/turnboard/turnflow/internal/handlers"
	"github.com/turnboard/turnflow/internal/middleware"
	"github.com/turnboard/turnflow/internal/types"

	_ "github.com/turnboard/turnflow/docs/api" // Swagger docs
)

// @title Turnflow API
// @version 1.0.0
// @description Turn lifecycle and approval workflow engine for rental unit turnovers
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/turnboard/turnflow
// @contact.email dev@turnboard.dev

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed the stage registry and threshold bands on first run
	if cfg.SeedWorkflowDefaults {
		if err := database.SeedWorkflowDefaults(db); err != nil {
			log.Fatalf("Failed to seed workflow defaults: %v", err)
		}
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("turnflow")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api")

	// Version middleware
	api.Use(middleware.VersionMiddleware())

	// Create handlers
	healthHandler := &handlers.HealthHandler{Cfg: cfg, DB: db}
	turnHandler := &handlers.TurnHandler{DB: db}
	approvalHandler := &handlers.ApprovalHandler{DB: db}
	stageHandler := &handlers.StageHandler{DB: db}
	lockBoxHandler := &handlers.LockBoxHandler{DB: db}
	directoryHandler := &handlers.DirectoryHandler{DB: db}

	// Health (public)
	api.Get("/health", healthHandler.GetHealth)

	// Turn lifecycle routes (all require a signed-in operator)
	api.Get("/turns", middleware.AuthUser(cfg), turnHandler.ListTurns)
	api.Post("/turns", middleware.AuthUser(cfg), turnHandler.CreateTurn)
	api.Get("/turns/:id", middleware.AuthUser(cfg), turnHandler.GetTurn)
	api.Patch("/turns/:id", middleware.AuthUser(cfg), turnHandler.UpdateTurn)
	api.Delete("/turns/:id", middleware.AuthAdmin(cfg), turnHandler.DeleteTurn)
	api.Get("/turns/:id/history", middleware.AuthUser(cfg), turnHandler.GetTurnHistory)

	// Approval workflow routes
	api.Get("/turns/:id/approvals", middleware.AuthUser(cfg), approvalHandler.GetApprovals)
	api.Post("/turns/:id/approvals", middleware.AuthUser(cfg), approvalHandler.SubmitDecisions)

	// Stage registry routes (reads for operators, writes admin-only)
	api.Get("/stages", middleware.AuthUser(cfg), stageHandler.ListStages)
	api.Get("/stages/:key", middleware.AuthUser(cfg), stageHandler.GetStage)
	api.Post("/stages", middleware.AuthAdmin(cfg), stageHandler.CreateStage)
	api.Patch("/stages/:key", middleware.AuthAdmin(cfg), stageHandler.UpdateStage)
	api.Delete("/stages/:key", middleware.AuthAdmin(cfg), stageHandler.DeleteStage)
	api.Get("/thresholds", middleware.AuthUser(cfg), stageHandler.ListThresholds)

	// Lock box ledger routes (the code trail itself is admin-only)
	api.Get("/properties/:id/lockbox", middleware.AuthUser(cfg), lockBoxHandler.GetLockBox)
	api.Post("/properties/:id/lockbox", middleware.AuthUser(cfg), lockBoxHandler.UpdateLockBox)
	api.Get("/properties/:id/lockbox/history", middleware.AuthAdmin(cfg), lockBoxHandler.GetLockBoxHistory)

	// Directory routes
	api.Get("/properties", middleware.AuthUser(cfg), directoryHandler.ListProperties)
	api.Post("/properties", middleware.AuthAdmin(cfg), directoryHandler.CreateProperty)
	api.Patch("/properties/:id", middleware.AuthAdmin(cfg), directoryHandler.UpdateProperty)
	api.Get("/vendors", middleware.AuthUser(cfg), directoryHandler.ListVendors)
	api.Post("/vendors", middleware.AuthAdmin(cfg), directoryHandler.CreateVendor)
	api.Patch("/vendors/:id", middleware.AuthAdmin(cfg), directoryHandler.UpdateVendor)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	log.Printf("Authorizer will be initialized on first authenticated request")

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"
	kind := ""

	// Classified service errors carry their own status and kind
	if ce, ok := err.(*types.CustomError); ok {
		code = ce.Code
		message = ce.Message
		errorType = ce.Type
		kind = string(ce.Kind)
	} else if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Check for version errors
	versionError := false
	if message != "" && len(message) >= 9 && message[:9] == "E_VERSION" {
		versionError = true
		errorType = "version"
		code = fiber.StatusConflict
	}

	body := fiber.Map{
		"status":       code,
		"message":      message,
		"ok":           false,
		"versionError": versionError,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"url":          c.OriginalURL(),
		"type":         errorType,
	}
	if kind != "" {
		body["kind"] = kind
	}

	return c.Status(code).JSON(body)
}
