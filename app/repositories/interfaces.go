package repositories

import (
	"context"
	"errors"
	"io"
	"net/url"

	"postsapi/app/models"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Criteria carries whatever the caller passed along with a list request.
// No backend filters on it yet.
type Criteria struct {
	Query url.Values
}

// PostStore defines data access for posts. Ids are opaque strings; a token
// that names no post is absent, never an error.
type PostStore interface {
	// Find returns every post in ascending ID order.
	Find(ctx context.Context, criteria Criteria) ([]*models.Post, error)
	// FindByID returns (nil, nil) when the post does not exist.
	FindByID(ctx context.Context, id string) (*models.Post, error)
	// Insert stores a new post and returns its ID.
	Insert(ctx context.Context, input models.PostInput) (int, error)
	// Update replaces title and contents and returns the number of posts
	// updated.
	Update(ctx context.Context, id string, input models.PostInput) (int, error)
	// Remove deletes a post with its comments and returns the number of
	// posts removed.
	Remove(ctx context.Context, id string) (int, error)
	// FindPostComments returns the post's comments in ascending ID order.
	FindPostComments(ctx context.Context, postID string) ([]*models.Comment, error)
}

// CommentStore defines the write side of comments. It is not exposed over
// HTTP.
type CommentStore interface {
	InsertComment(ctx context.Context, comment *models.Comment) error
}

// Store is the full data-access collaborator handed to the HTTP layer.
type Store interface {
	PostStore
	CommentStore
	io.Closer
}
