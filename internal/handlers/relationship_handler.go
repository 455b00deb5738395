package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/socialsync/backend/internal/models"
	"github.com/socialsync/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RelationshipHandler handles follow/unfollow/block/unblock HTTP requests.
// Every mutation touches two user documents; the repository expresses
// them as set primitives so concurrent calls cannot duplicate entries.
type RelationshipHandler struct {
	userRepository repositories.UserRepository
}

// NewRelationshipHandler creates a new RelationshipHandler
func NewRelationshipHandler(userRepo repositories.UserRepository) *RelationshipHandler {
	return &RelationshipHandler{userRepository: userRepo}
}

// RegisterRelationshipRoutes registers follow and block routes
func (h *RelationshipHandler) RegisterRelationshipRoutes(g *echo.Group) {
	g.POST("/users/:id/follow", h.FollowUser)
	g.DELETE("/users/:id/follow", h.UnfollowUser)
	g.POST("/users/:id/block", h.BlockUser)
	g.DELETE("/users/:id/block", h.UnblockUser)
}

// resolvePair loads the actor and target records, translating a missing
// target into 404 and a malformed or self-referencing ID into 400.
func (h *RelationshipHandler) resolvePair(c echo.Context, selfError string) (*models.User, *models.User, error) {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return nil, nil, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	targetID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}
	if targetID == currentUserID {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, selfError)
	}

	ctx := c.Request().Context()
	target, err := h.userRepository.GetUserByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return nil, nil, echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	actor, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return actor, target, nil
}

// FollowUser follows a user
func (h *RelationshipHandler) FollowUser(c echo.Context) error {
	actor, target, err := h.resolvePair(c, "Cannot follow yourself")
	if err != nil {
		return err
	}

	if actor.IsFollowing(target.ID) {
		return echo.NewHTTPError(http.StatusBadRequest, "Already following this user")
	}

	if err := h.userRepository.AddFollow(c.Request().Context(), actor.ID, target.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Successfully followed user"})
}

// UnfollowUser unfollows a user; idempotent when not currently following
func (h *RelationshipHandler) UnfollowUser(c echo.Context) error {
	actor, target, err := h.resolvePair(c, "Cannot unfollow yourself")
	if err != nil {
		return err
	}

	if err := h.userRepository.RemoveFollow(c.Request().Context(), actor.ID, target.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Successfully unfollowed user"})
}

// BlockUser blocks a user and removes every follow edge between the pair
func (h *RelationshipHandler) BlockUser(c echo.Context) error {
	actor, target, err := h.resolvePair(c, "Cannot block yourself")
	if err != nil {
		return err
	}

	if actor.HasBlocked(target.ID) {
		return echo.NewHTTPError(http.StatusBadRequest, "User already blocked")
	}

	if err := h.userRepository.BlockUser(c.Request().Context(), actor.ID, target.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "User blocked successfully"})
}

// UnblockUser removes a user from the actor's blocked set. Follow
// relationships severed by the block are not restored.
func (h *RelationshipHandler) UnblockUser(c echo.Context) error {
	actor, target, err := h.resolvePair(c, "Cannot unblock yourself")
	if err != nil {
		return err
	}

	if err := h.userRepository.UnblockUser(c.Request().Context(), actor.ID, target.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "User unblocked successfully"})
}
