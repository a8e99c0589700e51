package repositories

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"postsapi/app/config"
	"postsapi/app/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBadgerTestStore(t *testing.T) Store {
	store, err := OpenBadger("", true, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newSQLiteTestStore(t *testing.T) Store {
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "posts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// newMongoTestStore runs against the server named by POSTS_TEST_MONGO_URL in
// a throwaway database.
func newMongoTestStore(t *testing.T) Store {
	url := os.Getenv("POSTS_TEST_MONGO_URL")
	if url == "" {
		t.Skip("POSTS_TEST_MONGO_URL not set")
	}

	ctx := context.Background()
	database := fmt.Sprintf("posts_test_%d", time.Now().UnixNano())
	store, err := OpenMongo(ctx, url, database)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.client.Database(database).Drop(ctx)
		store.Close()
	})
	return store
}

func TestStores(t *testing.T) {
	backends := map[string]func(t *testing.T) Store{
		"badger": newBadgerTestStore,
		"sqlite": newSQLiteTestStore,
		"mongo":  newMongoTestStore,
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			testStore(t, open(t))
		})
	}
}

func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		posts, err := store.Find(ctx, Criteria{})
		require.NoError(t, err)
		assert.NotNil(t, posts)
		assert.Empty(t, posts)
	})

	var firstID int
	t.Run("insert and find by id", func(t *testing.T) {
		id, err := store.Insert(ctx, models.PostInput{Title: "Hello", Contents: "World"})
		require.NoError(t, err)
		assert.Greater(t, id, 0)
		firstID = id

		post, err := store.FindByID(ctx, strconv.Itoa(id))
		require.NoError(t, err)
		require.NotNil(t, post)
		assert.Equal(t, id, post.ID)
		assert.Equal(t, "Hello", post.Title)
		assert.Equal(t, "World", post.Contents)
		assert.False(t, post.CreatedAt.IsZero())
		assert.False(t, post.UpdatedAt.IsZero())
	})

	t.Run("find returns posts in id order", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			_, err := store.Insert(ctx, models.PostInput{Title: "Post " + strconv.Itoa(i), Contents: "Body"})
			require.NoError(t, err)
		}

		posts, err := store.Find(ctx, Criteria{})
		require.NoError(t, err)
		require.Len(t, posts, 11)
		for i := 1; i < len(posts); i++ {
			assert.Less(t, posts[i-1].ID, posts[i].ID)
		}
	})

	t.Run("absent and malformed ids", func(t *testing.T) {
		canonical := strconv.Itoa(firstID)
		for _, id := range []string{"99999", "abc", "-1", "0", "", "+" + canonical, "0" + canonical} {
			post, err := store.FindByID(ctx, id)
			assert.NoError(t, err, id)
			assert.Nil(t, post, id)

			n, err := store.Update(ctx, id, models.PostInput{Title: "x", Contents: "y"})
			assert.NoError(t, err, id)
			assert.Zero(t, n, id)

			n, err = store.Remove(ctx, id)
			assert.NoError(t, err, id)
			assert.Zero(t, n, id)

			comments, err := store.FindPostComments(ctx, id)
			assert.NoError(t, err, id)
			assert.Empty(t, comments, id)
		}
	})

	t.Run("update replaces fields and keeps created_at", func(t *testing.T) {
		id := strconv.Itoa(firstID)
		before, err := store.FindByID(ctx, id)
		require.NoError(t, err)

		n, err := store.Update(ctx, id, models.PostInput{Title: "Hi", Contents: "There"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		after, err := store.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Hi", after.Title)
		assert.Equal(t, "There", after.Contents)
		assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
		assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
	})

	t.Run("comments", func(t *testing.T) {
		id := strconv.Itoa(firstID)

		comments, err := store.FindPostComments(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, comments)
		assert.Empty(t, comments)

		for _, text := range []string{"first", "second"} {
			comment := &models.Comment{PostID: firstID, Text: text}
			require.NoError(t, store.InsertComment(ctx, comment))
			assert.Greater(t, comment.ID, 0)
		}

		comments, err = store.FindPostComments(ctx, id)
		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Equal(t, "first", comments[0].Text)
		assert.Equal(t, "second", comments[1].Text)
		assert.Equal(t, firstID, comments[0].PostID)
	})

	t.Run("comment on missing post fails", func(t *testing.T) {
		err := store.InsertComment(ctx, &models.Comment{PostID: 99999, Text: "orphan"})
		assert.Error(t, err)
	})

	t.Run("invalid comment fails", func(t *testing.T) {
		err := store.InsertComment(ctx, &models.Comment{PostID: firstID})
		assert.Error(t, err)
	})

	t.Run("remove deletes post and comments", func(t *testing.T) {
		id := strconv.Itoa(firstID)

		n, err := store.Remove(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		post, err := store.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, post)

		comments, err := store.FindPostComments(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, comments)

		n, err = store.Remove(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ids are not reused", func(t *testing.T) {
		id, err := store.Insert(ctx, models.PostInput{Title: "Again", Contents: "Body"})
		require.NoError(t, err)
		assert.NotEqual(t, firstID, id)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("badger in memory", func(t *testing.T) {
		store, err := Open(ctx, config.StorageConfig{Driver: config.DriverBadger, InMemory: true}, zerolog.Nop())
		require.NoError(t, err)
		assert.IsType(t, &BadgerStore{}, store)
		assert.NoError(t, store.Close())
	})

	t.Run("badger on disk", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "badger")
		store, err := Open(ctx, config.StorageConfig{Driver: config.DriverBadger, Path: dir}, zerolog.Nop())
		require.NoError(t, err)

		id, err := store.Insert(ctx, models.PostInput{Title: "Durable", Contents: "Post"})
		require.NoError(t, err)
		require.NoError(t, store.Close())

		store, err = Open(ctx, config.StorageConfig{Driver: config.DriverBadger, Path: dir}, zerolog.Nop())
		require.NoError(t, err)
		defer store.Close()

		post, err := store.FindByID(ctx, strconv.Itoa(id))
		require.NoError(t, err)
		require.NotNil(t, post)
		assert.Equal(t, "Durable", post.Title)
	})

	t.Run("sqlite", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "posts.db")
		store, err := Open(ctx, config.StorageConfig{Driver: config.DriverSQLite, DSN: dsn}, zerolog.Nop())
		require.NoError(t, err)
		assert.IsType(t, &SQLiteStore{}, store)
		assert.NoError(t, store.Close())

		// migrations are idempotent
		store, err = Open(ctx, config.StorageConfig{Driver: config.DriverSQLite, DSN: dsn}, zerolog.Nop())
		require.NoError(t, err)
		assert.NoError(t, store.Close())
	})

	t.Run("unknown driver", func(t *testing.T) {
		store, err := Open(ctx, config.StorageConfig{Driver: "postgres"}, zerolog.Nop())
		assert.Error(t, err)
		assert.Nil(t, store)
	})
}
