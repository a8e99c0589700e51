package repositories

import (
	"context"
	"errors"
	"fmt"

	"postsapi/app/models"

	"github.com/dgraph-io/badger/v4"
)

// Find retrieves all posts
func (s *BadgerStore) Find(ctx context.Context, criteria Criteria) ([]*models.Post, error) {
	posts := []*models.Post{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(PostKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var post models.Post
			err := it.Item().Value(func(val []byte) error {
				return unmarshalEntity(val, &post)
			})
			if err != nil {
				return fmt.Errorf("failed to read post %s: %w", it.Item().Key(), err)
			}
			posts = append(posts, &post)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// FindByID retrieves a post by ID
func (s *BadgerStore) FindByID(ctx context.Context, id string) (*models.Post, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}

	var post *models.Post
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		post, err = getPost(txn, n)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

// Insert creates a new post
func (s *BadgerStore) Insert(ctx context.Context, input models.PostInput) (int, error) {
	var id int
	err := s.update(func(txn *badger.Txn) error {
		var err error
		id, err = getNextID(txn, PostSeqKey)
		if err != nil {
			return err
		}

		data, err := marshalEntity(models.NewPost(id, input, s.now()))
		if err != nil {
			return err
		}
		return txn.Set(postKey(id), data)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update updates an existing post
func (s *BadgerStore) Update(ctx context.Context, id string, input models.PostInput) (int, error) {
	n, ok := parseID(id)
	if !ok {
		return 0, nil
	}

	err := s.update(func(txn *badger.Txn) error {
		post, err := getPost(txn, n)
		if err != nil {
			return err
		}
		post.Apply(input, s.now())

		data, err := marshalEntity(post)
		if err != nil {
			return err
		}
		return txn.Set(postKey(n), data)
	})
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// Remove deletes a post and its comments
func (s *BadgerStore) Remove(ctx context.Context, id string) (int, error) {
	n, ok := parseID(id)
	if !ok {
		return 0, nil
	}

	err := s.update(func(txn *badger.Txn) error {
		if _, err := getPost(txn, n); err != nil {
			return err
		}

		keys := collectKeys(txn, commentPrefix(n))
		keys = append(keys, postKey(n))
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func getPost(txn *badger.Txn, id int) (*models.Post, error) {
	item, err := txn.Get(postKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = item.Value(func(val []byte) error {
		return unmarshalEntity(val, &post)
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// collectKeys copies every key under prefix so they can be deleted once the
// iterator is closed.
func collectKeys(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}
