package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/socialsync/backend/internal/models"
	"github.com/socialsync/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedHandler composes the viewer's feed from their follow graph.
type FeedHandler struct {
	postRepository repositories.PostRepository
	userRepository repositories.UserRepository
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(postRepo repositories.PostRepository, userRepo repositories.UserRepository) *FeedHandler {
	return &FeedHandler{
		postRepository: postRepo,
		userRepository: userRepo,
	}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/posts/feed", h.GetFeed)
}

// EnrichedComment is a comment with its author's public profile resolved
type EnrichedComment struct {
	models.Comment
	Author models.PublicUser `json:"author"`
}

// EnrichedPost is a post with author, comment authors and tagged users
// resolved, plus viewer-relative flags
type EnrichedPost struct {
	models.Post
	Author        models.PublicUser   `json:"author"`
	Comments      []EnrichedComment   `json:"comments"`
	TaggedUsers   []models.PublicUser `json:"taggedUsers"`
	LikesCount    int                 `json:"likesCount"`
	CommentsCount int                 `json:"commentsCount"`
	IsLiked       bool                `json:"isLiked"`
	IsSaved       bool                `json:"isSaved"`
}

// enrichPosts resolves every user referenced by the posts (authors,
// comment authors, tagged users) in one batch and builds the outbound
// shapes. viewer may be nil, in which case the viewer-relative flags
// stay false.
func enrichPosts(ctx context.Context, userRepo repositories.UserRepository, posts []models.Post, viewer *models.User) ([]EnrichedPost, error) {
	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	collect := func(id primitive.ObjectID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for i := range posts {
		collect(posts[i].UserID)
		for _, cm := range posts[i].Comments {
			collect(cm.UserID)
		}
		for _, tu := range posts[i].TaggedUsers {
			collect(tu)
		}
	}

	users, err := userRepo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	userMap := make(map[primitive.ObjectID]models.PublicUser, len(users))
	for i := range users {
		userMap[users[i].ID] = users[i].ToPublic()
	}

	enriched := make([]EnrichedPost, len(posts))
	for i := range posts {
		p := posts[i]

		comments := make([]EnrichedComment, len(p.Comments))
		for j, cm := range p.Comments {
			comments[j] = EnrichedComment{Comment: cm, Author: userMap[cm.UserID]}
		}
		tagged := make([]models.PublicUser, 0, len(p.TaggedUsers))
		for _, tu := range p.TaggedUsers {
			if u, ok := userMap[tu]; ok {
				tagged = append(tagged, u)
			}
		}

		enriched[i] = EnrichedPost{
			Post:          p,
			Author:        userMap[p.UserID],
			Comments:      comments,
			TaggedUsers:   tagged,
			LikesCount:    p.LikesCount(),
			CommentsCount: p.CommentsCount(),
		}
		if viewer != nil {
			enriched[i].IsLiked = p.HasLike(viewer.ID)
			enriched[i].IsSaved = viewer.HasSaved(p.ID)
		}
	}
	return enriched, nil
}

// GetFeed returns posts from followed users plus the viewer's own,
// excluding blocked authors, newest first.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID.IsZero() {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 10
	}
	skip := int64((page - 1) * limit)

	ctx := c.Request().Context()
	viewer, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	// Candidate authors: following plus self, minus blocked. Blocked
	// users are excluded even if somehow still followed.
	authors := make([]primitive.ObjectID, 0, len(viewer.Following)+1)
	for _, id := range viewer.Following {
		if !viewer.HasBlocked(id) {
			authors = append(authors, id)
		}
	}
	if !viewer.HasBlocked(viewer.ID) {
		authors = append(authors, viewer.ID)
	}

	posts, err := h.postRepository.GetPostsByAuthors(ctx, authors, skip, int64(limit))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	enriched, err := enrichPosts(ctx, h.userRepository, posts, viewer)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}

	// Heuristic: a full page signals possibly more, not definitely more.
	hasMore := len(posts) == limit

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"posts":   enriched,
		"page":    page,
		"hasMore": hasMore,
	})
}
