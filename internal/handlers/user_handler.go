package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/socialsync/backend/internal/models"
	"github.com/socialsync/backend/internal/repositories"
	"github.com/socialsync/backend/pkg/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// searchResultLimit caps user search responses.
const searchResultLimit = 20

// UserHandler handles user profile HTTP requests
type UserHandler struct {
	userRepository repositories.UserRepository
	imageStorage   storage.ImageStorage
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, imageStorage storage.ImageStorage) *UserHandler {
	return &UserHandler{
		userRepository: userRepo,
		imageStorage:   imageStorage,
	}
}

// RegisterUserRoutes registers user profile routes
func (h *UserHandler) RegisterUserRoutes(g *echo.Group) {
	g.GET("/users/search", h.SearchUsers)
	g.PUT("/users/profile", h.UpdateProfile)
	g.PUT("/users/profile-picture", h.UpdateProfilePicture)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
	g.GET("/users/:username", h.GetUserByUsername)
}

// GetUserByUsername returns a user's profile with viewer-relative flags.
// A user who has blocked the viewer is reported as nonexistent.
func (h *UserHandler) GetUserByUsername(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	ctx := c.Request().Context()
	user, err := h.userRepository.GetUserByUsername(ctx, c.Param("username"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	// Masked 404: the target's block makes the viewer see nothing
	if user.HasBlocked(currentUserID) {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}

	viewer, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	followers, err := h.publicUsers(c, user.Followers)
	if err != nil {
		return err
	}
	following, err := h.publicUsers(c, user.Following)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"user":         user.Profile(),
		"followers":    followers,
		"following":    following,
		"isFollowing":  user.IsFollowedBy(currentUserID),
		"isOwnProfile": user.ID == currentUserID,
		"isBlocked":    viewer.HasBlocked(user.ID),
	})
}

// SearchUsers finds users by username or full name, excluding anyone the
// viewer has blocked. An empty query returns an empty list.
func (h *UserHandler) SearchUsers(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "users": []models.PublicUser{}})
	}

	ctx := c.Request().Context()
	viewer, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	users, err := h.userRepository.SearchUsers(ctx, query, viewer.BlockedUsers, searchResultLimit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	results := make([]models.PublicUser, len(users))
	for i := range users {
		results[i] = users[i].ToPublic()
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "users": results})
}

// UpdateProfile applies a partial update to the viewer's own profile.
// Only fields present in the request body are touched.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	user, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Website != nil {
		user.Website = *req.Website
	}
	if req.IsPrivate != nil {
		user.IsPrivate = *req.IsPrivate
	}

	if err := h.userRepository.UpdateUser(ctx, user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": user.Profile()})
}

// UpdateProfilePicture replaces the viewer's profile picture. The old
// stored image is removed best-effort; a storage failure there never
// fails the request.
func (h *UserHandler) UpdateProfilePicture(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Please upload an image")
	}

	ctx := c.Request().Context()
	user, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	if user.ProfilePicture.PublicID != "" {
		if err := h.imageStorage.Delete(ctx, user.ProfilePicture.PublicID); err != nil {
			log.Printf("Failed to delete old profile picture %s: %v", user.ProfilePicture.PublicID, err)
		}
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update profile picture")
	}
	defer src.Close()

	stored, err := h.imageStorage.Upload(ctx, src, "profile-pictures")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update profile picture")
	}

	user.ProfilePicture = models.ImageRef{URL: stored.URL, PublicID: stored.PublicID}
	if err := h.userRepository.UpdateUser(ctx, user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": user.Profile()})
}

// GetFollowers returns the public profiles of a user's followers
func (h *UserHandler) GetFollowers(c echo.Context) error {
	user, err := h.userByIDParam(c)
	if err != nil {
		return err
	}
	followers, err := h.publicUsers(c, user.Followers)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "followers": followers})
}

// GetFollowing returns the public profiles of the users a user follows
func (h *UserHandler) GetFollowing(c echo.Context) error {
	user, err := h.userByIDParam(c)
	if err != nil {
		return err
	}
	following, err := h.publicUsers(c, user.Following)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "following": following})
}

func (h *UserHandler) userByIDParam(c echo.Context) (*models.User, error) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}
	return user, nil
}

func (h *UserHandler) publicUsers(c echo.Context, ids []primitive.ObjectID) ([]models.PublicUser, error) {
	users, err := h.userRepository.GetUsersByIDs(c.Request().Context(), ids)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}
	out := make([]models.PublicUser, len(users))
	for i := range users {
		out[i] = users[i].ToPublic()
	}
	return out, nil
}
