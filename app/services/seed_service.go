package services

import (
	"context"
	"fmt"

	"postsapi/app/models"
	"postsapi/app/repositories"
)

// SamplePost is a post to seed together with the text of its comments.
type SamplePost struct {
	Post     models.PostInput
	Comments []string
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Posts    int
	Comments int
}

// SeedService writes sample content through a store. Comments have no HTTP
// write path, so this is how they get created.
type SeedService struct {
	store repositories.Store
}

// NewSeedService creates a new SeedService
func NewSeedService(store repositories.Store) *SeedService {
	return &SeedService{store: store}
}

// Seed validates every sample before writing any of them, then inserts the
// posts in order with their comments. On a store failure the result reports
// what was written before it.
func (s *SeedService) Seed(ctx context.Context, samples []SamplePost) (SeedResult, error) {
	var result SeedResult

	for i, sample := range samples {
		if err := sample.Post.Validate(); err != nil {
			return result, fmt.Errorf("invalid sample post %d: %w", i, err)
		}
		for j, text := range sample.Comments {
			if text == "" {
				return result, fmt.Errorf("invalid sample post %d: comment %d is empty", i, j)
			}
		}
	}

	for _, sample := range samples {
		id, err := s.store.Insert(ctx, sample.Post)
		if err != nil {
			return result, fmt.Errorf("failed to insert post %q: %w", sample.Post.Title, err)
		}
		result.Posts++

		for _, text := range sample.Comments {
			comment := &models.Comment{PostID: id, Text: text}
			if err := s.store.InsertComment(ctx, comment); err != nil {
				return result, fmt.Errorf("failed to insert comment on post %d: %w", id, err)
			}
			result.Comments++
		}
	}

	return result, nil
}
