package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/socialsync/backend/internal/router"
	"github.com/socialsync/backend/pkg/config"
	"github.com/socialsync/backend/pkg/storage"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database connection
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.CloseDB() // Ensure database connection is closed when main exits

	// Initialize image storage
	ctx := context.Background()
	imageStorage, err := storage.NewFirebaseStorage(ctx, cfg.FirebaseCredentialsPath, cfg.StorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize image storage: %v", err)
	}

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes and dependencies
	router.SetupRoutes(e, db.Database, imageStorage, cfg)

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
