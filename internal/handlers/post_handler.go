package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/socialsync/backend/internal/models"
	"github.com/socialsync/backend/internal/repositories"
	"github.com/socialsync/backend/pkg/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxCaptionLength = 2200
	maxCommentLength = 500
)

// PostHandler handles post CRUD and interaction HTTP requests
// (likes, comments, saves).
type PostHandler struct {
	postRepository repositories.PostRepository
	userRepository repositories.UserRepository
	imageStorage   storage.ImageStorage
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postRepo repositories.PostRepository, userRepo repositories.UserRepository, imageStorage storage.ImageStorage) *PostHandler {
	return &PostHandler{
		postRepository: postRepo,
		userRepository: userRepo,
		imageStorage:   imageStorage,
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/saved/all", h.GetSavedPosts)
	g.GET("/posts/user/:userId", h.GetUserPosts)
	g.GET("/posts/:id", h.GetPost)
	g.PUT("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
	g.POST("/posts/:id/like", h.LikePost)
	g.DELETE("/posts/:id/like", h.UnlikePost)
	g.POST("/posts/:id/comment", h.AddComment)
	g.DELETE("/posts/:id/comment/:commentId", h.DeleteComment)
	g.POST("/posts/:id/save", h.SavePost)
	g.DELETE("/posts/:id/save", h.UnsavePost)
}

// CreatePost creates a post from a multipart form with one or more
// images. Upload failures surface as a generic error; already-uploaded
// images from a partial failure are not cleaned up.
func (h *PostHandler) CreatePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	files := form.File["images"]
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Please upload at least one image")
	}

	caption := c.FormValue("caption")
	if len(caption) > maxCaptionLength {
		return echo.NewHTTPError(http.StatusBadRequest, "Caption cannot exceed 2200 characters")
	}

	var taggedUsers []primitive.ObjectID
	if raw := c.FormValue("taggedUsers"); raw != "" {
		var hexIDs []string
		if err := json.Unmarshal([]byte(raw), &hexIDs); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid tagged users")
		}
		for _, hex := range hexIDs {
			id, err := primitive.ObjectIDFromHex(hex)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "Invalid tagged users")
			}
			taggedUsers = append(taggedUsers, id)
		}
	}

	ctx := c.Request().Context()
	images := make([]models.ImageRef, 0, len(files))
	for _, fileHeader := range files {
		src, err := fileHeader.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create post")
		}
		stored, err := h.imageStorage.Upload(ctx, src, "posts")
		src.Close()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create post")
		}
		images = append(images, models.ImageRef{URL: stored.URL, PublicID: stored.PublicID})
	}

	post := &models.Post{
		UserID:      currentUserID,
		Caption:     caption,
		Images:      images,
		Likes:       []primitive.ObjectID{},
		Comments:    []models.Comment{},
		Location:    c.FormValue("location"),
		TaggedUsers: taggedUsers,
	}

	if err := h.postRepository.CreatePost(ctx, post); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create post")
	}
	if err := h.userRepository.AddPostRef(ctx, currentUserID, post.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create post")
	}

	enriched, err := h.enrichOne(c, post)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "post": enriched})
}

// GetPost returns a single post with its author and comments resolved
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.postByIDParam(c)
	if err != nil {
		return err
	}

	enriched, err := h.enrichOne(c, post)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "post": enriched})
}

// GetUserPosts returns all posts by an author, newest first
func (h *PostHandler) GetUserPosts(c echo.Context) error {
	userID, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	ctx := c.Request().Context()
	posts, err := h.postRepository.GetPostsByUserID(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	enriched, err := h.enrichMany(c, posts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "posts": enriched})
}

// UpdatePost applies a partial update to the caller's own post. Only
// fields present in the request body are touched.
func (h *PostHandler) UpdatePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	post, err := h.postByIDParam(c)
	if err != nil {
		return err
	}
	if post.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized")
	}

	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.Caption != nil {
		post.Caption = *req.Caption
	}
	if req.Location != nil {
		post.Location = *req.Location
	}
	if req.HideLikesCount != nil {
		post.HideLikesCount = *req.HideLikesCount
	}
	if req.CommentsDisabled != nil {
		post.CommentsDisabled = *req.CommentsDisabled
	}

	if err := h.postRepository.UpdatePost(c.Request().Context(), post); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	enriched, err := h.enrichOne(c, post)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "post": enriched})
}

// DeletePost deletes the caller's own post, removes its ID from the
// author's posts set and from every saved-posts set, and releases the
// stored images best-effort. Storage failures are logged, never surfaced.
func (h *PostHandler) DeletePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	post, err := h.postByIDParam(c)
	if err != nil {
		return err
	}
	if post.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized")
	}

	ctx := c.Request().Context()
	for _, image := range post.Images {
		if image.PublicID == "" {
			continue
		}
		if err := h.imageStorage.Delete(ctx, image.PublicID); err != nil {
			log.Printf("Failed to delete stored image %s: %v", image.PublicID, err)
		}
	}

	if err := h.userRepository.RemovePostRef(ctx, post.UserID, post.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}
	if err := h.userRepository.RemovePostFromAllSaved(ctx, post.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}
	if err := h.postRepository.DeletePost(ctx, post.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Post deleted successfully"})
}

// LikePost adds the caller to the post's likes set
func (h *PostHandler) LikePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	post, err := h.postByIDParam(c)
	if err != nil {
		return err
	}
	if post.HasLike(currentUserID) {
		return echo.NewHTTPError(http.StatusBadRequest, "Post already liked")
	}

	updated, err := h.postRepository.AddLike(c.Request().Context(), post.ID, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"message":    "Post liked",
		"likesCount": updated.LikesCount(),
	})
}

// UnlikePost removes the caller from the post's likes set; idempotent
func (h *PostHandler) UnlikePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	post, err := h.postByIDParam(c)
	if err != nil {
		return err
	}

	updated, err := h.postRepository.RemoveLike(c.Request().Context(), post.ID, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":    true,
		"message":    "Post unliked",
		"likesCount": updated.LikesCount(),
	})
}

// AddComment appends a comment to the post
func (h *PostHandler) AddComment(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Comment text is required")
	}
	if len(text) > maxCommentLength {
		return echo.NewHTTPError(http.StatusBadRequest, "Comment cannot exceed 500 characters")
	}

	post, err := h.postByIDParam(c)
	if err != nil {
		return err
	}
	if post.CommentsDisabled {
		return echo.NewHTTPError(http.StatusForbidden, "Comments are disabled")
	}

	ctx := c.Request().Context()
	comment := &models.Comment{
		ID:        primitive.NewObjectID(),
		UserID:    currentUserID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := h.postRepository.AddComment(ctx, post.ID, comment); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	author, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"comment": EnrichedComment{Comment: *comment, Author: author.ToPublic()},
	})
}

// DeleteComment removes a comment; allowed for the comment's author and
// the post's author only.
func (h *PostHandler) DeleteComment(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	post, err := h.postByIDParam(c)
	if err != nil {
		return err
	}

	commentID, err := primitive.ObjectIDFromHex(c.Param("commentId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid comment ID")
	}
	comment := post.FindComment(commentID)
	if comment == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Comment not found")
	}
	if comment.UserID != currentUserID && post.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "Not authorized")
	}

	if err := h.postRepository.RemoveComment(c.Request().Context(), post.ID, commentID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Comment deleted"})
}

// SavePost bookmarks a post for the caller
func (h *PostHandler) SavePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	post, err := h.postByIDParam(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	viewer, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}
	if viewer.HasSaved(post.ID) {
		return echo.NewHTTPError(http.StatusBadRequest, "Post already saved")
	}

	if err := h.userRepository.SavePostRef(ctx, currentUserID, post.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Post saved"})
}

// UnsavePost removes a post from the caller's saved set; idempotent
func (h *PostHandler) UnsavePost(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	postID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid post ID")
	}

	if err := h.userRepository.UnsavePostRef(c.Request().Context(), currentUserID, postID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Post unsaved"})
}

// GetSavedPosts returns the caller's saved posts, enriched
func (h *PostHandler) GetSavedPosts(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	ctx := c.Request().Context()
	viewer, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	posts, err := h.postRepository.GetPostsByIDs(ctx, viewer.SavedPosts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	enriched, err := enrichPosts(ctx, h.userRepository, posts, viewer)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "posts": enriched})
}

func (h *PostHandler) postByIDParam(c echo.Context) (*models.Post, error) {
	postID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid post ID")
	}
	post, err := h.postRepository.GetPostByID(c.Request().Context(), postID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}
	return post, nil
}

func (h *PostHandler) enrichOne(c echo.Context, post *models.Post) (*EnrichedPost, error) {
	enriched, err := h.enrichMany(c, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &enriched[0], nil
}

func (h *PostHandler) enrichMany(c echo.Context, posts []models.Post) ([]EnrichedPost, error) {
	ctx := c.Request().Context()

	var viewer *models.User
	if id := getUserIDFromContext(c); !id.IsZero() {
		if u, err := h.userRepository.GetUserByID(ctx, id); err == nil {
			viewer = u
		}
	}

	enriched, err := enrichPosts(ctx, h.userRepository, posts, viewer)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}
	return enriched, nil
}
