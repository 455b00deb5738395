package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/socialsync/backend/internal/models"
	"github.com/socialsync/backend/internal/repositories"
	"github.com/socialsync/backend/pkg/storage"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// testEnv bundles the in-memory repositories and storage every handler
// test runs against.
type testEnv struct {
	e     *echo.Echo
	users *repositories.MemoryUserRepository
	posts *repositories.MemoryPostRepository
	store *storage.MemoryStorage
}

func newTestEnv() *testEnv {
	return &testEnv{
		e:     echo.New(),
		users: repositories.NewMemoryUserRepository(),
		posts: repositories.NewMemoryPostRepository(),
		store: storage.NewMemoryStorage(),
	}
}

func (env *testEnv) seedUser(t *testing.T, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username:       username,
		Email:          username + "@example.com",
		Password:       string(hash),
		FullName:       username + " test",
		ProfilePicture: models.ImageRef{URL: models.DefaultAvatarURL},
	}
	require.NoError(t, env.users.CreateUser(context.Background(), user))
	return user
}

func (env *testEnv) seedPost(t *testing.T, author *models.User, caption string, createdAt time.Time) *models.Post {
	t.Helper()
	post := &models.Post{
		UserID:    author.ID,
		Caption:   caption,
		Images:    []models.ImageRef{{URL: "memory://posts/seed", PublicID: "posts/" + primitive.NewObjectID().Hex()}},
		Likes:     []primitive.ObjectID{},
		Comments:  []models.Comment{},
		CreatedAt: createdAt,
	}
	require.NoError(t, env.posts.CreatePost(context.Background(), post))
	require.NoError(t, env.users.AddPostRef(context.Background(), author.ID, post.ID))
	return post
}

// reloadUser fetches the current state of a user record.
func (env *testEnv) reloadUser(t *testing.T, id primitive.ObjectID) *models.User {
	t.Helper()
	user, err := env.users.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func (env *testEnv) reloadPost(t *testing.T, id primitive.ObjectID) *models.Post {
	t.Helper()
	post, err := env.posts.GetPostByID(context.Background(), id)
	require.NoError(t, err)
	return post
}

// newContext builds an Echo context for a handler invocation. A non-nil
// user is installed as the authenticated identity, the way the JWT
// middleware would.
func (env *testEnv) newContext(method, target string, body io.Reader, contentType string, user *models.User) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	if user != nil {
		c.Set("user", &models.JwtCustomClaims{UserID: user.ID.Hex(), Email: user.Email})
	}
	return c, rec
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// requireHTTPError asserts that err is an echo.HTTPError with the given
// status code and returns it for message checks.
func requireHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, code, he.Code)
	return he
}

// multipartBody builds a multipart form with the given fields and one
// file part per entry of imageField -> file names.
func multipartBody(t *testing.T, fields map[string]string, imageField string, fileNames []string) (io.Reader, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, name := range fileNames {
		fw, err := w.CreateFormFile(imageField, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("fake-image-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}
