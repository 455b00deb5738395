package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultAvatarURL is used until a user uploads a profile picture.
const DefaultAvatarURL = "https://upload.wikimedia.org/wikipedia/commons/7/7c/Profile_avatar_placeholder_large.png"

// ImageRef is a stored image: its public URL plus the storage object ID
// needed to delete it later.
type ImageRef struct {
	URL      string `json:"url" bson:"url"`
	PublicID string `json:"publicId,omitempty" bson:"public_id,omitempty"`
}

// User represents a user document stored in MongoDB. Relationship sets
// (followers, following, blocked) are arrays of user IDs maintained with
// Mongo set operators so they never hold duplicates.
type User struct {
	ID             primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Username       string               `json:"username" bson:"username"`
	Email          string               `json:"email" bson:"email"`
	Password       string               `json:"-" bson:"password"`
	FullName       string               `json:"fullName" bson:"full_name"`
	Bio            string               `json:"bio" bson:"bio"`
	ProfilePicture ImageRef             `json:"profilePicture" bson:"profile_picture"`
	Website        string               `json:"website" bson:"website"`
	IsPrivate      bool                 `json:"isPrivate" bson:"is_private"`
	Followers      []primitive.ObjectID `json:"followers" bson:"followers"`
	Following      []primitive.ObjectID `json:"following" bson:"following"`
	BlockedUsers   []primitive.ObjectID `json:"-" bson:"blocked_users"`
	Posts          []primitive.ObjectID `json:"posts" bson:"posts"`
	SavedPosts     []primitive.ObjectID `json:"savedPosts" bson:"saved_posts"`
	IsVerified     bool                 `json:"isVerified" bson:"is_verified"`
	CreatedAt      time.Time            `json:"createdAt" bson:"created_at"`
}

// PublicUser is the projection of a user embedded in other responses
// (post authors, comment authors, tagged users, follower lists).
type PublicUser struct {
	ID             primitive.ObjectID `json:"id"`
	Username       string             `json:"username"`
	FullName       string             `json:"fullName"`
	ProfilePicture ImageRef           `json:"profilePicture"`
	IsVerified     bool               `json:"isVerified"`
}

// UserProfile is the outbound shape of a full user document with its
// derived counts.
type UserProfile struct {
	*User
	FollowersCount int `json:"followersCount"`
	FollowingCount int `json:"followingCount"`
	PostsCount     int `json:"postsCount"`
}

// ToPublic returns the user's public projection.
func (u *User) ToPublic() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Username:       u.Username,
		FullName:       u.FullName,
		ProfilePicture: u.ProfilePicture,
		IsVerified:     u.IsVerified,
	}
}

// Profile returns the user with derived counts attached.
func (u *User) Profile() UserProfile {
	return UserProfile{
		User:           u,
		FollowersCount: len(u.Followers),
		FollowingCount: len(u.Following),
		PostsCount:     len(u.Posts),
	}
}

// IsFollowedBy reports whether viewerID is in the user's followers set.
func (u *User) IsFollowedBy(viewerID primitive.ObjectID) bool {
	return ContainsID(u.Followers, viewerID)
}

// HasBlocked reports whether id is in the user's blocked set.
func (u *User) HasBlocked(id primitive.ObjectID) bool {
	return ContainsID(u.BlockedUsers, id)
}

// IsFollowing reports whether id is in the user's following set.
func (u *User) IsFollowing(id primitive.ObjectID) bool {
	return ContainsID(u.Following, id)
}

// HasSaved reports whether postID is in the user's saved posts.
func (u *User) HasSaved(postID primitive.ObjectID) bool {
	return ContainsID(u.SavedPosts, postID)
}

// ContainsID reports whether ids contains id.
func ContainsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// RegisterRequest defines the request body for user registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"fullName" validate:"required,max=50"`
}

// LoginRequest defines the request body for login.
type LoginRequest struct {
	EmailOrUsername string `json:"emailOrUsername" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

// UpdateProfileRequest defines the request body for profile updates.
// Pointer fields distinguish "not supplied" from "explicitly empty".
type UpdateProfileRequest struct {
	FullName  *string `json:"fullName,omitempty" validate:"omitempty,max=50"`
	Bio       *string `json:"bio,omitempty" validate:"omitempty,max=150"`
	Website   *string `json:"website,omitempty"`
	IsPrivate *bool   `json:"isPrivate,omitempty"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
