package router

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/socialsync/backend/internal/handlers"
	"github.com/socialsync/backend/internal/middleware"
	"github.com/socialsync/backend/internal/repositories"
	"github.com/socialsync/backend/pkg/config"
	"github.com/socialsync/backend/pkg/storage"
	"go.mongodb.org/mongo-driver/mongo"
)

// SetupMiddleware configures global Echo middleware and the error envelope
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Logger())
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	e.HTTPErrorHandler = errorHandler
	log.Println("Global middleware configured.")
}

// errorHandler renders every failure as {success: false, message}.
// Unexpected errors surface as a generic 500 with no detail leakage.
func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "Server error"

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	}

	if !c.Response().Committed {
		if err := c.JSON(code, echo.Map{"success": false, "message": message}); err != nil {
			c.Logger().Error(err)
		}
	}
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, db *mongo.Database, imageStorage storage.ImageStorage, cfg *config.Config) {
	// --- Initialize Repositories ---
	userRepo := repositories.NewMongoUserRepository(db)
	postRepo := repositories.NewMongoPostRepository(db)

	ctx := context.Background()
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to create user indexes: %v", err)
	}
	if err := postRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to create post indexes: %v", err)
	}
	log.Println("MongoDB indexes ensured for all collections.")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Unprotected routes for authentication ---
	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	authGroup := e.Group("/api/auth")
	authHandler.RegisterAuthRoutes(authGroup)
	log.Println("Auth routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api")
	api.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	authHandler.RegisterMeRoute(api)

	// User profile routes
	userHandler := handlers.NewUserHandler(userRepo, imageStorage)
	userHandler.RegisterUserRoutes(api)
	log.Println("User routes configured.")

	// Follow/block routes
	relationshipHandler := handlers.NewRelationshipHandler(userRepo)
	relationshipHandler.RegisterRelationshipRoutes(api)
	log.Println("Relationship routes configured.")

	// Feed routes
	feedHandler := handlers.NewFeedHandler(postRepo, userRepo)
	feedHandler.RegisterFeedRoutes(api)
	log.Println("Feed routes configured.")

	// Post routes
	postHandler := handlers.NewPostHandler(postRepo, userRepo, imageStorage)
	postHandler.RegisterPostRoutes(api)
	log.Println("Post routes configured.")

	log.Println("All routes configured.")
}
