package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment is embedded in its post; it has no standalone collection. The
// parent post controls its lifecycle.
type Comment struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	UserID    primitive.ObjectID `json:"user" bson:"user"`
	Text      string             `json:"text" bson:"text"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
}

// Post represents a post document stored in MongoDB. Likes are a set of
// user IDs; comments are an ordered embedded sequence.
type Post struct {
	ID               primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	UserID           primitive.ObjectID   `json:"user" bson:"user"`
	Caption          string               `json:"caption" bson:"caption"`
	Images           []ImageRef           `json:"images" bson:"images"`
	Likes            []primitive.ObjectID `json:"likes" bson:"likes"`
	Comments         []Comment            `json:"comments" bson:"comments"`
	Location         string               `json:"location" bson:"location"`
	TaggedUsers      []primitive.ObjectID `json:"taggedUsers" bson:"tagged_users"`
	HideLikesCount   bool                 `json:"hideLikesCount" bson:"hide_likes_count"`
	CommentsDisabled bool                 `json:"commentsDisabled" bson:"comments_disabled"`
	CreatedAt        time.Time            `json:"createdAt" bson:"created_at"`
}

// LikesCount returns the derived number of likes.
func (p *Post) LikesCount() int { return len(p.Likes) }

// CommentsCount returns the derived number of comments.
func (p *Post) CommentsCount() int { return len(p.Comments) }

// HasLike reports whether userID has liked the post.
func (p *Post) HasLike(userID primitive.ObjectID) bool {
	return ContainsID(p.Likes, userID)
}

// FindComment returns the embedded comment with the given ID, or nil.
func (p *Post) FindComment(commentID primitive.ObjectID) *Comment {
	for i := range p.Comments {
		if p.Comments[i].ID == commentID {
			return &p.Comments[i]
		}
	}
	return nil
}

// CreateCommentRequest defines the request body for adding a comment.
type CreateCommentRequest struct {
	Text string `json:"text"`
}

// UpdatePostRequest defines the request body for partial post updates.
// Pointer fields distinguish "not supplied" from "explicitly empty".
type UpdatePostRequest struct {
	Caption          *string `json:"caption,omitempty" validate:"omitempty,max=2200"`
	Location         *string `json:"location,omitempty"`
	HideLikesCount   *bool   `json:"hideLikesCount,omitempty"`
	CommentsDisabled *bool   `json:"commentsDisabled,omitempty"`
}
