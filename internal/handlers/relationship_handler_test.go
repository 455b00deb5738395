package handlers

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/socialsync/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (env *testEnv) relate(t *testing.T, op func(c echo.Context) error, actor *models.User, targetID string) error {
	t.Helper()
	c, _ := env.newContext(http.MethodPost, "/", nil, "", actor)
	c.SetParamNames("id")
	c.SetParamValues(targetID)
	return op(c)
}

func TestFollowUser(t *testing.T) {
	env := newTestEnv()
	h := NewRelationshipHandler(env.users)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	require.NoError(t, env.relate(t, h.FollowUser, alice, bob.ID.Hex()))

	// Mutual consistency: bob in alice.following, alice in bob.followers
	aliceNow := env.reloadUser(t, alice.ID)
	bobNow := env.reloadUser(t, bob.ID)
	assert.True(t, aliceNow.IsFollowing(bob.ID))
	assert.True(t, bobNow.IsFollowedBy(alice.ID))
	assert.False(t, bobNow.IsFollowing(alice.ID), "follow is one-directional")
}

func TestFollowUserTwiceConflicts(t *testing.T) {
	env := newTestEnv()
	h := NewRelationshipHandler(env.users)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	require.NoError(t, env.relate(t, h.FollowUser, alice, bob.ID.Hex()))

	he := requireHTTPError(t, env.relate(t, h.FollowUser, alice, bob.ID.Hex()), http.StatusBadRequest)
	assert.Equal(t, "Already following this user", he.Message)

	// The duplicate attempt must not have produced a duplicate entry
	assert.Len(t, env.reloadUser(t, alice.ID).Following, 1)
}

func TestFollowUnknownTarget(t *testing.T) {
	env := newTestEnv()
	h := NewRelationshipHandler(env.users)
	alice := env.seedUser(t, "alice")

	requireHTTPError(t, env.relate(t, h.FollowUser, alice, primitive.NewObjectID().Hex()), http.StatusNotFound)
}

func TestFollowSelfRejected(t *testing.T) {
	env := newTestEnv()
	h := NewRelationshipHandler(env.users)
	alice := env.seedUser(t, "alice")

	he := requireHTTPError(t, env.relate(t, h.FollowUser, alice, alice.ID.Hex()), http.StatusBadRequest)
	assert.Equal(t, "Cannot follow yourself", he.Message)
}

func TestUnfollowUserIsIdempotent(t *testing.T) {
	env := newTestEnv()
	h := NewRelationshipHandler(env.users)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	require.NoError(t, env.relate(t, h.FollowUser, alice, bob.ID.Hex()))
	require.NoError(t, env.relate(t, h.UnfollowUser, alice, bob.ID.Hex()))

	aliceNow := env.reloadUser(t, alice.ID)
	bobNow := env.reloadUser(t, bob.ID)
	assert.False(t, aliceNow.IsFollowing(bob.ID))
	assert.False(t, bobNow.IsFollowedBy(alice.ID))

	// Second unfollow is a no-op, not an error
	require.NoError(t, env.relate(t, h.UnfollowUser, alice, bob.ID.Hex()))
	assert.False(t, env.reloadUser(t, alice.ID).IsFollowing(bob.ID))
}

func TestBlockUserSeversAllFollowEdges(t *testing.T) {
	env := newTestEnv()
	h := NewRelationshipHandler(env.users)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	// Mutual follows before the block
	require.NoError(t, env.relate(t, h.FollowUser, alice, bob.ID.Hex()))
	require.NoError(t, env.relate(t, h.FollowUser, bob, alice.ID.Hex()))

	require.NoError(t, env.relate(t, h.BlockUser, alice, bob.ID.Hex()))

	aliceNow := env.reloadUser(t, alice.ID)
	bobNow := env.reloadUser(t, bob.ID)
	assert.True(t, aliceNow.HasBlocked(bob.ID))
	assert.False(t, aliceNow.IsFollowing(bob.ID))
	assert.False(t, aliceNow.IsFollowedBy(bob.ID))
	assert.False(t, bobNow.IsFollowing(alice.ID))
	assert.False(t, bobNow.IsFollowedBy(alice.ID))
}

func TestBlockUserTwiceConflicts(t *testing.T) {
	env := newTestEnv()
	h := NewRelationshipHandler(env.users)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	require.NoError(t, env.relate(t, h.BlockUser, alice, bob.ID.Hex()))

	he := requireHTTPError(t, env.relate(t, h.BlockUser, alice, bob.ID.Hex()), http.StatusBadRequest)
	assert.Equal(t, "User already blocked", he.Message)
}

func TestBlockSelfRejected(t *testing.T) {
	env := newTestEnv()
	h := NewRelationshipHandler(env.users)
	alice := env.seedUser(t, "alice")

	requireHTTPError(t, env.relate(t, h.BlockUser, alice, alice.ID.Hex()), http.StatusBadRequest)
}

func TestUnblockDoesNotRestoreFollows(t *testing.T) {
	env := newTestEnv()
	h := NewRelationshipHandler(env.users)
	alice := env.seedUser(t, "alice")
	bob := env.seedUser(t, "bob")

	require.NoError(t, env.relate(t, h.FollowUser, alice, bob.ID.Hex()))
	require.NoError(t, env.relate(t, h.BlockUser, alice, bob.ID.Hex()))
	require.NoError(t, env.relate(t, h.UnblockUser, alice, bob.ID.Hex()))

	aliceNow := env.reloadUser(t, alice.ID)
	assert.False(t, aliceNow.HasBlocked(bob.ID))
	assert.False(t, aliceNow.IsFollowing(bob.ID), "unblock must not restore the follow")
}
