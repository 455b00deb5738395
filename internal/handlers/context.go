package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/socialsync/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate = validator.New()

// getUserIDFromContext returns the authenticated user's ID from the JWT
// claims set by the auth middleware, or NilObjectID when unauthenticated.
func getUserIDFromContext(c echo.Context) primitive.ObjectID {
	claims, ok := c.Get("user").(*models.JwtCustomClaims)
	if !ok {
		return primitive.NilObjectID
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID
	}
	return id
}
