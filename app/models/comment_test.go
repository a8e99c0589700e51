package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCommentValidation(t *testing.T) {
	tests := []struct {
		name    string
		comment *Comment
		wantErr bool
	}{
		{
			name:    "valid comment",
			comment: &Comment{PostID: 1, Text: "Nice post"},
			wantErr: false,
		},
		{
			name:    "missing post",
			comment: &Comment{Text: "Nice post"},
			wantErr: true,
		},
		{
			name:    "empty text",
			comment: &Comment{PostID: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.comment.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCommentBeforeCreate(t *testing.T) {
	comment := &Comment{PostID: 1, Text: "Nice post"}
	now := time.Now()

	assert.True(t, comment.CreatedAt.IsZero())
	comment.BeforeCreate(now)
	assert.Equal(t, now, comment.CreatedAt)
	assert.Equal(t, now, comment.UpdatedAt)
}
