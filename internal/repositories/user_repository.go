package repositories

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/socialsync/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// UserRepository defines the interface for user data operations.
// Relationship mutations (follow, block, save) are expressed as set
// primitives so concurrent calls cannot produce duplicate entries; the
// business checks that precede them live in the handlers.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByEmailOrUsername(ctx context.Context, emailOrUsername string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	SearchUsers(ctx context.Context, query string, exclude []primitive.ObjectID, limit int64) ([]models.User, error)

	AddFollow(ctx context.Context, followerID, followeeID primitive.ObjectID) error
	RemoveFollow(ctx context.Context, followerID, followeeID primitive.ObjectID) error
	BlockUser(ctx context.Context, actorID, targetID primitive.ObjectID) error
	UnblockUser(ctx context.Context, actorID, targetID primitive.ObjectID) error

	AddPostRef(ctx context.Context, userID, postID primitive.ObjectID) error
	RemovePostRef(ctx context.Context, userID, postID primitive.ObjectID) error
	RemovePostFromAllSaved(ctx context.Context, postID primitive.ObjectID) error
	SavePostRef(ctx context.Context, userID, postID primitive.ObjectID) error
	UnsavePostRef(ctx context.Context, userID, postID primitive.ObjectID) error
}

// MongoUserRepository implements UserRepository for MongoDB
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new MongoUserRepository
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{collection: db.Collection("users")}
}

// EnsureIndexes creates the unique indexes on username and email.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

// CreateUser creates a new user in MongoDB
func (r *MongoUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, user)
	return err
}

// GetUserByID retrieves a user by ID from MongoDB
func (r *MongoUserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetUserByUsername retrieves a user by username (usernames are stored lowercase)
func (r *MongoUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": strings.ToLower(username)})
}

// GetUserByEmail retrieves a user by email
func (r *MongoUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

// GetUserByEmailOrUsername retrieves a user by either credential handle
func (r *MongoUserRepository) GetUserByEmailOrUsername(ctx context.Context, emailOrUsername string) (*models.User, error) {
	s := strings.ToLower(emailOrUsername)
	return r.findOne(ctx, bson.M{"$or": bson.A{bson.M{"email": s}, bson.M{"username": s}}})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUsersByIDs retrieves the users whose IDs are in ids
func (r *MongoUserRepository) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser replaces an existing user document
func (r *MongoUserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchUsers finds users whose username or full name contains query
// (case-insensitive), excluding the given IDs, capped at limit.
func (r *MongoUserRepository) SearchUsers(ctx context.Context, query string, exclude []primitive.ObjectID, limit int64) ([]models.User, error) {
	pattern := regexp.QuoteMeta(query)
	filter := bson.M{
		"$or": bson.A{
			bson.M{"username": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"full_name": bson.M{"$regex": pattern, "$options": "i"}},
		},
	}
	if len(exclude) > 0 {
		filter["_id"] = bson.M{"$nin": exclude}
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AddFollow adds followee to the follower's following set and the
// follower to the followee's followers set. The two updates are not
// transactional; $addToSet makes retries converge.
func (r *MongoUserRepository) AddFollow(ctx context.Context, followerID, followeeID primitive.ObjectID) error {
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": followerID},
		bson.M{"$addToSet": bson.M{"following": followeeID}}); err != nil {
		return err
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": followeeID},
		bson.M{"$addToSet": bson.M{"followers": followerID}})
	return err
}

// RemoveFollow removes both directions of the follow relationship; a no-op
// when the relationship does not exist.
func (r *MongoUserRepository) RemoveFollow(ctx context.Context, followerID, followeeID primitive.ObjectID) error {
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": followerID},
		bson.M{"$pull": bson.M{"following": followeeID}}); err != nil {
		return err
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": followeeID},
		bson.M{"$pull": bson.M{"followers": followerID}})
	return err
}

// BlockUser adds target to the actor's blocked set and removes every
// follow edge between the two users, in both documents.
func (r *MongoUserRepository) BlockUser(ctx context.Context, actorID, targetID primitive.ObjectID) error {
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": actorID}, bson.M{
		"$addToSet": bson.M{"blocked_users": targetID},
		"$pull":     bson.M{"following": targetID, "followers": targetID},
	}); err != nil {
		return err
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": targetID},
		bson.M{"$pull": bson.M{"following": actorID, "followers": actorID}})
	return err
}

// UnblockUser removes target from the actor's blocked set only; follow
// relationships are not restored.
func (r *MongoUserRepository) UnblockUser(ctx context.Context, actorID, targetID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": actorID},
		bson.M{"$pull": bson.M{"blocked_users": targetID}})
	return err
}

// AddPostRef records postID in the user's authored posts set
func (r *MongoUserRepository) AddPostRef(ctx context.Context, userID, postID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"posts": postID}})
	return err
}

// RemovePostRef removes postID from the user's authored and saved sets
func (r *MongoUserRepository) RemovePostRef(ctx context.Context, userID, postID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"posts": postID, "saved_posts": postID}})
	return err
}

// RemovePostFromAllSaved removes postID from every user's saved set
func (r *MongoUserRepository) RemovePostFromAllSaved(ctx context.Context, postID primitive.ObjectID) error {
	_, err := r.collection.UpdateMany(ctx, bson.M{},
		bson.M{"$pull": bson.M{"saved_posts": postID}})
	return err
}

// SavePostRef adds postID to the user's saved posts set
func (r *MongoUserRepository) SavePostRef(ctx context.Context, userID, postID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"saved_posts": postID}})
	return err
}

// UnsavePostRef removes postID from the user's saved posts set; a no-op
// when the post was not saved.
func (r *MongoUserRepository) UnsavePostRef(ctx context.Context, userID, postID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"saved_posts": postID}})
	return err
}
