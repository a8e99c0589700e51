package repositories

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"postsapi/app/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore implements Store on a SQLite database whose schema is managed
// by the embedded goose migrations.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens the database at dsn and migrates it to the latest
// schema version.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withForeignKeys(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite at %q: %w", dsn, err)
	}
	// SQLite serialises writers anyway; one connection also keeps
	// ":memory:" databases from splitting per connection.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const postColumns = "id, title, contents, created_at, updated_at"

// Find retrieves all posts
func (s *SQLiteStore) Find(ctx context.Context, criteria Criteria) ([]*models.Post, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+postColumns+" FROM posts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Contents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

// FindByID retrieves a post by ID
func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*models.Post, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}

	var p models.Post
	err := s.db.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE id = ?", n).
		Scan(&p.ID, &p.Title, &p.Contents, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query post %d: %w", n, err)
	}
	return &p, nil
}

// Insert creates a new post
func (s *SQLiteStore) Insert(ctx context.Context, input models.PostInput) (int, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO posts (title, contents, created_at, updated_at) VALUES (?, ?, ?, ?)",
		input.Title, input.Contents, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int(id), nil
}

// Update updates an existing post
func (s *SQLiteStore) Update(ctx context.Context, id string, input models.PostInput) (int, error) {
	n, ok := parseID(id)
	if !ok {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE posts SET title = ?, contents = ?, updated_at = ? WHERE id = ?",
		input.Title, input.Contents, s.now(), n)
	if err != nil {
		return 0, fmt.Errorf("failed to update post %d: %w", n, err)
	}
	return rowsAffected(res)
}

// Remove deletes a post and its comments
func (s *SQLiteStore) Remove(ctx context.Context, id string) (int, error) {
	n, ok := parseID(id)
	if !ok {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM comments WHERE post_id = ?", n); err != nil {
		return 0, fmt.Errorf("failed to delete comments of post %d: %w", n, err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", n)
	if err != nil {
		return 0, fmt.Errorf("failed to delete post %d: %w", n, err)
	}
	count, err := rowsAffected(res)
	if err != nil {
		return 0, err
	}
	return count, tx.Commit()
}

// InsertComment creates a new comment on an existing post
func (s *SQLiteStore) InsertComment(ctx context.Context, comment *models.Comment) error {
	if err := comment.Validate(); err != nil {
		return fmt.Errorf("invalid comment: %w", err)
	}
	comment.BeforeCreate(s.now())

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO comments (text, post_id, created_at, updated_at) VALUES (?, ?, ?, ?)",
		comment.Text, comment.PostID, comment.CreatedAt, comment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	comment.ID = int(id)
	return nil
}

// FindPostComments retrieves all comments for a post
func (s *SQLiteStore) FindPostComments(ctx context.Context, postID string) ([]*models.Comment, error) {
	comments := []*models.Comment{}
	n, ok := parseID(postID)
	if !ok {
		return comments, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, post_id, text, created_at, updated_at FROM comments WHERE post_id = ? ORDER BY id", n)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments of post %d: %w", n, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.Text, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
