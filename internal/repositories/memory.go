package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/socialsync/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryUserRepository is an in-memory UserRepository used by the test
// suite. It mirrors the store-level set semantics the Mongo
// implementation gets from $addToSet/$pull.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*models.User
	order []primitive.ObjectID
}

// NewMemoryUserRepository creates an empty MemoryUserRepository
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[primitive.ObjectID]*models.User)}
}

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return nil
	}
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Followers = cloneIDs(u.Followers)
	c.Following = cloneIDs(u.Following)
	c.BlockedUsers = cloneIDs(u.BlockedUsers)
	c.Posts = cloneIDs(u.Posts)
	c.SavedPosts = cloneIDs(u.SavedPosts)
	return &c
}

func addToSet(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	if models.ContainsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

func pullID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// CreateUser stores a new user
func (r *MemoryUserRepository) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("duplicate key: %s", user.Username)
		}
	}
	r.users[user.ID] = cloneUser(user)
	r.order = append(r.order, user.ID)
	return nil
}

// GetUserByID returns the user with the given ID
func (r *MemoryUserRepository) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

// GetUserByUsername returns the user with the given username
func (r *MemoryUserRepository) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return r.findFirst(func(u *models.User) bool {
		return u.Username == strings.ToLower(username)
	})
}

// GetUserByEmail returns the user with the given email
func (r *MemoryUserRepository) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return r.findFirst(func(u *models.User) bool {
		return u.Email == strings.ToLower(email)
	})
}

// GetUserByEmailOrUsername returns the user matching either handle
func (r *MemoryUserRepository) GetUserByEmailOrUsername(_ context.Context, emailOrUsername string) (*models.User, error) {
	s := strings.ToLower(emailOrUsername)
	return r.findFirst(func(u *models.User) bool {
		return u.Email == s || u.Username == s
	})
}

func (r *MemoryUserRepository) findFirst(match func(*models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if u := r.users[id]; match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

// GetUsersByIDs returns the users whose IDs are in ids, in input order
func (r *MemoryUserRepository) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			users = append(users, *cloneUser(u))
		}
	}
	return users, nil
}

// UpdateUser replaces a stored user
func (r *MemoryUserRepository) UpdateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return ErrNotFound
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

// SearchUsers finds users by substring match on username or full name
func (r *MemoryUserRepository) SearchUsers(_ context.Context, query string, exclude []primitive.ObjectID, limit int64) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(query)
	var users []models.User
	for _, id := range r.order {
		if int64(len(users)) >= limit {
			break
		}
		u := r.users[id]
		if models.ContainsID(exclude, u.ID) {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.FullName), q) {
			users = append(users, *cloneUser(u))
		}
	}
	return users, nil
}

// AddFollow adds the follow edge in both user documents
func (r *MemoryUserRepository) AddFollow(_ context.Context, followerID, followeeID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if follower, ok := r.users[followerID]; ok {
		follower.Following = addToSet(follower.Following, followeeID)
	}
	if followee, ok := r.users[followeeID]; ok {
		followee.Followers = addToSet(followee.Followers, followerID)
	}
	return nil
}

// RemoveFollow removes the follow edge from both user documents
func (r *MemoryUserRepository) RemoveFollow(_ context.Context, followerID, followeeID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if follower, ok := r.users[followerID]; ok {
		follower.Following = pullID(follower.Following, followeeID)
	}
	if followee, ok := r.users[followeeID]; ok {
		followee.Followers = pullID(followee.Followers, followerID)
	}
	return nil
}

// BlockUser records the block and removes every follow edge between the pair
func (r *MemoryUserRepository) BlockUser(_ context.Context, actorID, targetID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actor, ok := r.users[actorID]; ok {
		actor.BlockedUsers = addToSet(actor.BlockedUsers, targetID)
		actor.Following = pullID(actor.Following, targetID)
		actor.Followers = pullID(actor.Followers, targetID)
	}
	if target, ok := r.users[targetID]; ok {
		target.Following = pullID(target.Following, actorID)
		target.Followers = pullID(target.Followers, actorID)
	}
	return nil
}

// UnblockUser removes the block; follow edges stay removed
func (r *MemoryUserRepository) UnblockUser(_ context.Context, actorID, targetID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actor, ok := r.users[actorID]; ok {
		actor.BlockedUsers = pullID(actor.BlockedUsers, targetID)
	}
	return nil
}

// AddPostRef records postID in the user's authored posts set
func (r *MemoryUserRepository) AddPostRef(_ context.Context, userID, postID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.Posts = addToSet(u.Posts, postID)
	}
	return nil
}

// RemovePostRef removes postID from the user's authored and saved sets
func (r *MemoryUserRepository) RemovePostRef(_ context.Context, userID, postID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.Posts = pullID(u.Posts, postID)
		u.SavedPosts = pullID(u.SavedPosts, postID)
	}
	return nil
}

// RemovePostFromAllSaved removes postID from every user's saved set
func (r *MemoryUserRepository) RemovePostFromAllSaved(_ context.Context, postID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		u.SavedPosts = pullID(u.SavedPosts, postID)
	}
	return nil
}

// SavePostRef adds postID to the user's saved posts set
func (r *MemoryUserRepository) SavePostRef(_ context.Context, userID, postID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.SavedPosts = addToSet(u.SavedPosts, postID)
	}
	return nil
}

// UnsavePostRef removes postID from the user's saved posts set
func (r *MemoryUserRepository) UnsavePostRef(_ context.Context, userID, postID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.SavedPosts = pullID(u.SavedPosts, postID)
	}
	return nil
}

// MemoryPostRepository is an in-memory PostRepository used by the test
// suite. Ordering matches the Mongo implementation: created_at
// descending, insertion order on ties.
type MemoryPostRepository struct {
	mu    sync.RWMutex
	posts map[primitive.ObjectID]*models.Post
	order []primitive.ObjectID
}

// NewMemoryPostRepository creates an empty MemoryPostRepository
func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{posts: make(map[primitive.ObjectID]*models.Post)}
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.Images = append([]models.ImageRef(nil), p.Images...)
	c.Likes = cloneIDs(p.Likes)
	c.Comments = append([]models.Comment(nil), p.Comments...)
	c.TaggedUsers = cloneIDs(p.TaggedUsers)
	return &c
}

// CreatePost stores a new post
func (r *MemoryPostRepository) CreatePost(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	r.posts[post.ID] = clonePost(post)
	r.order = append(r.order, post.ID)
	return nil
}

// GetPostByID returns the post with the given ID
func (r *MemoryPostRepository) GetPostByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePost(p), nil
}

func (r *MemoryPostRepository) sorted(match func(*models.Post) bool) []models.Post {
	var posts []models.Post
	for _, id := range r.order {
		if p, ok := r.posts[id]; ok && match(p) {
			posts = append(posts, *clonePost(p))
		}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts
}

// GetPostsByAuthors returns posts by the given authors, newest first
func (r *MemoryPostRepository) GetPostsByAuthors(_ context.Context, authorIDs []primitive.ObjectID, skip, limit int64) ([]models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	posts := r.sorted(func(p *models.Post) bool {
		return models.ContainsID(authorIDs, p.UserID)
	})
	if skip >= int64(len(posts)) {
		return nil, nil
	}
	posts = posts[skip:]
	if limit < int64(len(posts)) {
		posts = posts[:limit]
	}
	return posts, nil
}

// GetPostsByUserID returns all posts by a single author, newest first
func (r *MemoryPostRepository) GetPostsByUserID(_ context.Context, userID primitive.ObjectID) ([]models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sorted(func(p *models.Post) bool { return p.UserID == userID }), nil
}

// GetPostsByIDs returns the posts whose IDs are in ids, newest first
func (r *MemoryPostRepository) GetPostsByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sorted(func(p *models.Post) bool { return models.ContainsID(ids, p.ID) }), nil
}

// UpdatePost replaces a stored post
func (r *MemoryPostRepository) UpdatePost(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[post.ID]; !ok {
		return ErrNotFound
	}
	r.posts[post.ID] = clonePost(post)
	return nil
}

// DeletePost removes a stored post
func (r *MemoryPostRepository) DeletePost(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

// AddLike adds userID to the post's likes set and returns the updated post
func (r *MemoryPostRepository) AddLike(_ context.Context, postID, userID primitive.ObjectID) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[postID]
	if !ok {
		return nil, ErrNotFound
	}
	p.Likes = addToSet(p.Likes, userID)
	return clonePost(p), nil
}

// RemoveLike removes userID from the post's likes set and returns the updated post
func (r *MemoryPostRepository) RemoveLike(_ context.Context, postID, userID primitive.ObjectID) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[postID]
	if !ok {
		return nil, ErrNotFound
	}
	p.Likes = pullID(p.Likes, userID)
	return clonePost(p), nil
}

// AddComment appends a comment to the post
func (r *MemoryPostRepository) AddComment(_ context.Context, postID primitive.ObjectID, comment *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[postID]
	if !ok {
		return ErrNotFound
	}
	p.Comments = append(p.Comments, *comment)
	return nil
}

// RemoveComment removes the comment with commentID from the post
func (r *MemoryPostRepository) RemoveComment(_ context.Context, postID, commentID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[postID]
	if !ok {
		return ErrNotFound
	}
	out := p.Comments[:0]
	for _, c := range p.Comments {
		if c.ID != commentID {
			out = append(out, c)
		}
	}
	p.Comments = out
	return nil
}
