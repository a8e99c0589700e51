package models

import "time"

// Post represents a blog post.
type Post struct {
	ID        int       `json:"id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	Contents  string    `json:"contents" bson:"contents"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Comment represents a comment on a blog post.
type Comment struct {
	ID        int       `json:"id" bson:"_id" validate:"gte=0"`
	PostID    int       `json:"post_id" bson:"post_id" validate:"required,gt=0"`
	Text      string    `json:"text" bson:"text" validate:"required"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// PostInput is the writable part of a post, as sent by clients on create
// and update.
type PostInput struct {
	Title    string `json:"title" validate:"required"`
	Contents string `json:"contents" validate:"required"`
}
