package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/socialsync/backend/internal/models"
	"github.com/socialsync/backend/internal/repositories"
)

func TestCreatePost(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	fields := map[string]string{
		"caption":     "first light",
		"location":    "oslo",
		"taggedUsers": `["` + bob.ID.Hex() + `"]`,
	}
	body, contentType := multipartBody(t, fields, "images", []string{"one.jpg", "two.jpg"})
	c, rec := env.newContext(http.MethodPost, "/posts", body, contentType, alice)
	require.NoError(t, h.CreatePost(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody(t, rec)
	post := resp["post"].(map[string]interface{})
	assert.Equal(t, "first light", post["caption"])
	assert.Equal(t, "oslo", post["location"])
	assert.Len(t, post["images"].([]interface{}), 2)
	assert.Equal(t, "alice", post["author"].(map[string]interface{})["username"])
	tagged := post["taggedUsers"].([]interface{})
	require.Len(t, tagged, 1)
	assert.Equal(t, "bob", tagged[0].(map[string]interface{})["username"])

	// Both images landed in storage and the author's posts set grew
	assert.Equal(t, 2, env.store.Len())
	stored := env.reloadUser(t, alice.ID)
	assert.Len(t, stored.Posts, 1)
}

func TestCreatePostRequiresImage(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")

	body, contentType := multipartBody(t, map[string]string{"caption": "no pic"}, "images", nil)
	c, _ := env.newContext(http.MethodPost, "/posts", body, contentType, alice)
	he := requireHTTPError(t, h.CreatePost(c), http.StatusBadRequest)
	assert.Equal(t, "Please upload at least one image", he.Message)
}

func TestCreatePostRejectsLongCaption(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")

	long := strings.Repeat("x", maxCaptionLength+1)
	body, contentType := multipartBody(t, map[string]string{"caption": long}, "images", []string{"a.jpg"})
	c, _ := env.newContext(http.MethodPost, "/posts", body, contentType, alice)
	requireHTTPError(t, h.CreatePost(c), http.StatusBadRequest)
}

func TestLikeAndUnlikePost(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	post := env.seedPost(t, bob, "likeable", time.Now())

	c, rec := env.newContext(http.MethodPost, "/posts/:id/like", nil, "", alice)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.Hex())
	require.NoError(t, h.LikePost(c))
	assert.Equal(t, float64(1), decodeBody(t, rec)["likesCount"])

	// Second like conflicts
	c, _ = env.newContext(http.MethodPost, "/posts/:id/like", nil, "", alice)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.Hex())
	he := requireHTTPError(t, h.LikePost(c), http.StatusBadRequest)
	assert.Equal(t, "Post already liked", he.Message)

	c, rec = env.newContext(http.MethodDelete, "/posts/:id/like", nil, "", alice)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.Hex())
	require.NoError(t, h.UnlikePost(c))
	assert.Equal(t, float64(0), decodeBody(t, rec)["likesCount"])

	// Unlike is idempotent
	c, rec = env.newContext(http.MethodDelete, "/posts/:id/like", nil, "", alice)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.Hex())
	require.NoError(t, h.UnlikePost(c))
	assert.Equal(t, float64(0), decodeBody(t, rec)["likesCount"])
}

func TestAddComment(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	post := env.seedPost(t, bob, "open", time.Now())

	body := jsonBody(t, map[string]string{"text": "  nice shot  "})
	c, rec := env.newContext(http.MethodPost, "/posts/:id/comment", body, "application/json", alice)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.Hex())
	require.NoError(t, h.AddComment(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	comment := decodeBody(t, rec)["comment"].(map[string]interface{})
	assert.Equal(t, "nice shot", comment["text"])
	assert.Equal(t, "alice", comment["author"].(map[string]interface{})["username"])

	stored := env.reloadPost(t, post.ID)
	require.Len(t, stored.Comments, 1)
	assert.Equal(t, alice.ID, stored.Comments[0].UserID)
}

func TestAddCommentRequiresText(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")
	post := env.seedPost(t, alice, "quiet", time.Now())

	body := jsonBody(t, map[string]string{"text": "   "})
	c, _ := env.newContext(http.MethodPost, "/posts/:id/comment", body, "application/json", alice)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.Hex())
	he := requireHTTPError(t, h.AddComment(c), http.StatusBadRequest)
	assert.Equal(t, "Comment text is required", he.Message)
}

func TestAddCommentDisabled(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	post := env.seedPost(t, bob, "closed", time.Now())
	post.CommentsDisabled = true
	require.NoError(t, env.posts.UpdatePost(context.Background(), post))

	body := jsonBody(t, map[string]string{"text": "hello?"})
	c, _ := env.newContext(http.MethodPost, "/posts/:id/comment", body, "application/json", alice)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.Hex())
	he := requireHTTPError(t, h.AddComment(c), http.StatusForbidden)
	assert.Equal(t, "Comments are disabled", he.Message)
}

func TestDeleteCommentAuthorization(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	owner := env.seedUser(t, "owner")
	commenter := env.seedUser(t, "commenter")
	stranger := env.seedUser(t, "stranger")
	post := env.seedPost(t, owner, "discussed", time.Now())

	comment := &models.Comment{ID: primitive.NewObjectID(), UserID: commenter.ID, Text: "mine", CreatedAt: time.Now()}
	require.NoError(t, env.posts.AddComment(context.Background(), post.ID, comment))

	del := func(user *models.User) error {
		c, _ := env.newContext(http.MethodDelete, "/posts/:id/comment/:commentId", nil, "", user)
		c.SetParamNames("id", "commentId")
		c.SetParamValues(post.ID.Hex(), comment.ID.Hex())
		return h.DeleteComment(c)
	}

	requireHTTPError(t, del(stranger), http.StatusForbidden)

	// The post author may remove anyone's comment
	require.NoError(t, del(owner))
	assert.Empty(t, env.reloadPost(t, post.ID).Comments)

	// Gone now
	requireHTTPError(t, del(commenter), http.StatusNotFound)
}

func TestSaveAndUnsavePost(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	post := env.seedPost(t, bob, "keeper", time.Now())

	save := func() error {
		c, _ := env.newContext(http.MethodPost, "/posts/:id/save", nil, "", alice)
		c.SetParamNames("id")
		c.SetParamValues(post.ID.Hex())
		return h.SavePost(c)
	}
	require.NoError(t, save())
	assert.True(t, env.reloadUser(t, alice.ID).HasSaved(post.ID))

	he := requireHTTPError(t, save(), http.StatusBadRequest)
	assert.Equal(t, "Post already saved", he.Message)

	unsave := func() error {
		c, _ := env.newContext(http.MethodDelete, "/posts/:id/save", nil, "", alice)
		c.SetParamNames("id")
		c.SetParamValues(post.ID.Hex())
		return h.UnsavePost(c)
	}
	require.NoError(t, unsave())
	assert.False(t, env.reloadUser(t, alice.ID).HasSaved(post.ID))

	// Idempotent
	require.NoError(t, unsave())
}

func TestGetSavedPosts(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	post := env.seedPost(t, bob, "bookmarked", time.Now())
	env.seedPost(t, bob, "not saved", time.Now())
	require.NoError(t, env.users.SavePostRef(context.Background(), alice.ID, post.ID))

	c, rec := env.newContext(http.MethodGet, "/posts/saved/all", nil, "", alice)
	require.NoError(t, h.GetSavedPosts(c))

	posts := decodeBody(t, rec)["posts"].([]interface{})
	require.Len(t, posts, 1)
	got := posts[0].(map[string]interface{})
	assert.Equal(t, "bookmarked", got["caption"])
	assert.Equal(t, true, got["isSaved"])
}

func TestUpdatePostPartial(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")
	post := env.seedPost(t, alice, "before", time.Now())

	body := jsonBody(t, map[string]interface{}{"caption": "after", "commentsDisabled": true})
	c, rec := env.newContext(http.MethodPut, "/posts/:id", body, "application/json", alice)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.Hex())
	require.NoError(t, h.UpdatePost(c))

	got := decodeBody(t, rec)["post"].(map[string]interface{})
	assert.Equal(t, "after", got["caption"])
	assert.Equal(t, true, got["commentsDisabled"])

	stored := env.reloadPost(t, post.ID)
	assert.Equal(t, "after", stored.Caption)
	assert.True(t, stored.CommentsDisabled)
	assert.False(t, stored.HideLikesCount)
}

func TestUpdatePostForbiddenForOthers(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	post := env.seedPost(t, bob, "his", time.Now())

	body := jsonBody(t, map[string]interface{}{"caption": "mine now"})
	c, _ := env.newContext(http.MethodPut, "/posts/:id", body, "application/json", alice)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.Hex())
	he := requireHTTPError(t, h.UpdatePost(c), http.StatusForbidden)
	assert.Equal(t, "Not authorized", he.Message)
}

func TestDeletePostCascades(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	post := env.seedPost(t, alice, "doomed", time.Now())
	require.NoError(t, env.users.SavePostRef(context.Background(), bob.ID, post.ID))
	publicID := post.Images[0].PublicID

	c, rec := env.newContext(http.MethodDelete, "/posts/:id", nil, "", alice)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.Hex())
	require.NoError(t, h.DeletePost(c))
	assert.Equal(t, true, decodeBody(t, rec)["success"])

	_, err := env.posts.GetPostByID(context.Background(), post.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.Empty(t, env.reloadUser(t, alice.ID).Posts)
	assert.Empty(t, env.reloadUser(t, bob.ID).SavedPosts)
	assert.Contains(t, env.store.Deleted, publicID)
}

func TestDeletePostForbiddenForOthers(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	post := env.seedPost(t, bob, "his", time.Now())

	c, _ := env.newContext(http.MethodDelete, "/posts/:id", nil, "", alice)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.Hex())
	requireHTTPError(t, h.DeletePost(c), http.StatusForbidden)
}

func TestGetPost(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")
	post := env.seedPost(t, alice, "solo", time.Now())
	require.NoError(t, env.users.SavePostRef(context.Background(), alice.ID, post.ID))
	_, err := env.posts.AddLike(context.Background(), post.ID, alice.ID)
	require.NoError(t, err)

	c, rec := env.newContext(http.MethodGet, "/posts/:id", nil, "", alice)
	c.SetParamNames("id")
	c.SetParamValues(post.ID.Hex())
	require.NoError(t, h.GetPost(c))

	got := decodeBody(t, rec)["post"].(map[string]interface{})
	assert.Equal(t, "solo", got["caption"])
	assert.Equal(t, true, got["isLiked"])
	assert.Equal(t, true, got["isSaved"])
	assert.Equal(t, float64(1), got["likesCount"])
}

func TestGetPostNotFound(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")

	c, _ := env.newContext(http.MethodGet, "/posts/:id", nil, "", alice)
	c.SetParamNames("id")
	c.SetParamValues(primitive.NewObjectID().Hex())
	he := requireHTTPError(t, h.GetPost(c), http.StatusNotFound)
	assert.Equal(t, "Post not found", he.Message)

	c, _ = env.newContext(http.MethodGet, "/posts/:id", nil, "", alice)
	c.SetParamNames("id")
	c.SetParamValues("garbage")
	he = requireHTTPError(t, h.GetPost(c), http.StatusBadRequest)
	assert.Equal(t, "Invalid post ID", he.Message)
}

func TestGetUserPosts(t *testing.T) {
	env := newTestEnv()
	h := NewPostHandler(env.posts, env.users, env.store)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")
	base := time.Now().Add(-time.Hour)
	env.seedPost(t, bob, "older", base)
	env.seedPost(t, bob, "newer", base.Add(time.Minute))
	env.seedPost(t, alice, "hers", base.Add(2*time.Minute))

	c, rec := env.newContext(http.MethodGet, "/posts/user/:userId", nil, "", alice)
	c.SetParamNames("userId")
	c.SetParamValues(bob.ID.Hex())
	require.NoError(t, h.GetUserPosts(c))

	posts := decodeBody(t, rec)["posts"].([]interface{})
	require.Len(t, posts, 2)
	assert.Equal(t, "newer", posts[0].(map[string]interface{})["caption"])
	assert.Equal(t, "older", posts[1].(map[string]interface{})["caption"])
}
