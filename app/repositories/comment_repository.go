package repositories

import (
	"context"
	"fmt"

	"postsapi/app/models"

	"github.com/dgraph-io/badger/v4"
)

// InsertComment creates a new comment on an existing post
func (s *BadgerStore) InsertComment(ctx context.Context, comment *models.Comment) error {
	if err := comment.Validate(); err != nil {
		return fmt.Errorf("invalid comment: %w", err)
	}

	return s.update(func(txn *badger.Txn) error {
		if _, err := getPost(txn, comment.PostID); err != nil {
			return fmt.Errorf("post %d: %w", comment.PostID, err)
		}

		id, err := getNextID(txn, CommentSeqKey)
		if err != nil {
			return err
		}
		comment.ID = id
		comment.BeforeCreate(s.now())

		data, err := marshalEntity(comment)
		if err != nil {
			return err
		}

		// Post ID in the key keeps a post's comments contiguous
		return txn.Set(commentKey(comment.PostID, comment.ID), data)
	})
}

// FindPostComments retrieves all comments for a post
func (s *BadgerStore) FindPostComments(ctx context.Context, postID string) ([]*models.Comment, error) {
	comments := []*models.Comment{}
	n, ok := parseID(postID)
	if !ok {
		return comments, nil
	}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = commentPrefix(n)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var comment models.Comment
			err := it.Item().Value(func(val []byte) error {
				return unmarshalEntity(val, &comment)
			})
			if err != nil {
				return fmt.Errorf("failed to read comment %s: %w", it.Item().Key(), err)
			}
			comments = append(comments, &comment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}
