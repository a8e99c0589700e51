package models

import (
	"encoding/json"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports whether both title and contents are present.
func (in PostInput) Validate() error {
	return validate.Struct(in)
}

// DecodePostInput reads a PostInput from a JSON body. A body that is not a
// JSON object with string fields yields the zero input, which fails
// Validate.
func DecodePostInput(r io.Reader) PostInput {
	var in PostInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return PostInput{}
	}
	return in
}

// NewPost builds a post from input, stamping both timestamps.
func NewPost(id int, in PostInput, now time.Time) *Post {
	return &Post{
		ID:        id,
		Title:     in.Title,
		Contents:  in.Contents,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply replaces title and contents, keeping ID and CreatedAt.
func (p *Post) Apply(in PostInput, now time.Time) {
	p.Title = in.Title
	p.Contents = in.Contents
	p.UpdatedAt = now
}
