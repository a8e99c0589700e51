package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"postsapi/app/config"
	"postsapi/app/models"
	"postsapi/app/repositories"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects command output for the duration of f.
func captureOutput(f func()) string {
	old := stdout
	var buf bytes.Buffer
	stdout = &buf
	defer func() { stdout = old }()

	f()
	return buf.String()
}

// mockStdin feeds input to confirmation prompts for the duration of f.
func mockStdin(input string, f func()) {
	old := stdin
	stdin = strings.NewReader(input)
	defer func() { stdin = old }()

	f()
}

func setupTestDB(t *testing.T) string {
	return filepath.Join(t.TempDir(), "data", "badger")
}

func testConfig(dbPath string) *config.Config {
	cfg := config.Default()
	cfg.Storage.Path = dbPath
	return cfg
}

func TestHandleCommand(t *testing.T) {
	initialized := func(t *testing.T, dbPath string) {
		captureOutput(func() { require.Equal(t, 0, initDb(dbPath)) })
	}

	tests := []struct {
		name           string
		driver         string
		setup          func(t *testing.T, dbPath string)
		args           []string
		expectedOutput string
		expectedExit   int
	}{
		{
			name:           "no arguments",
			args:           []string{},
			expectedOutput: "Usage: postsapi db <command>\n\nCommands:",
			expectedExit:   1,
		},
		{
			name:           "help command",
			args:           []string{"help"},
			expectedOutput: "Usage: postsapi db <command>\n\nCommands:",
			expectedExit:   0,
		},
		{
			name:           "unknown command",
			args:           []string{"unknown"},
			expectedOutput: "Unknown db command: unknown",
			expectedExit:   1,
		},
		{
			name:           "restore without file",
			args:           []string{"restore"},
			expectedOutput: "Error: backup file path required for restore",
			expectedExit:   1,
		},
		{
			name:           "backup with another driver",
			driver:         config.DriverSQLite,
			args:           []string{"backup"},
			expectedOutput: "The backup command only supports the badger driver (configured: sqlite)",
			expectedExit:   1,
		},
		{
			name:           "init",
			args:           []string{"init"},
			expectedOutput: "Database initialized successfully",
			expectedExit:   0,
		},
		{
			name: "init when the data directory is a file",
			setup: func(t *testing.T, dbPath string) {
				require.NoError(t, os.WriteFile(filepath.Dir(dbPath), []byte("x"), 0644))
			},
			args:           []string{"init"},
			expectedOutput: "Failed to create database directory",
			expectedExit:   1,
		},
		{
			name:           "backup",
			setup:          initialized,
			args:           []string{"backup"},
			expectedOutput: "Database backed up successfully",
			expectedExit:   0,
		},
		{
			name:           "backup without database",
			args:           []string{"backup"},
			expectedOutput: "No database exists to backup",
			expectedExit:   1,
		},
		{
			name: "backup when backup directory cannot be created",
			setup: func(t *testing.T, dbPath string) {
				initialized(t, dbPath)
				require.NoError(t, os.WriteFile(backupDir(dbPath), []byte("x"), 0644))
			},
			args:           []string{"backup"},
			expectedOutput: "Failed to create backup directory",
			expectedExit:   1,
		},
		{
			name:           "clean without database",
			args:           []string{"clean"},
			expectedOutput: "Database is already clean",
			expectedExit:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := setupTestDB(t)
			if tt.setup != nil {
				tt.setup(t, dbPath)
			}
			cfg := testConfig(dbPath)
			if tt.driver != "" {
				cfg.Storage.Driver = tt.driver
			}

			var returned int
			output := captureOutput(func() {
				returned = HandleCommand(cfg, zerolog.Nop(), tt.args)
			})

			assert.Contains(t, output, tt.expectedOutput)
			assert.Equal(t, tt.expectedExit, returned)
		})
	}
}

func TestInitDb(t *testing.T) {
	dbPath := setupTestDB(t)

	t.Run("initialize new database", func(t *testing.T) {
		output := captureOutput(func() {
			initDb(dbPath)
		})

		assert.Contains(t, output, "Database initialized successfully")
		assert.DirExists(t, dbPath)
	})

	t.Run("initialize existing database", func(t *testing.T) {
		output := captureOutput(func() {
			initDb(dbPath)
		})

		assert.Contains(t, output, "Database already exists")
	})
}

func TestClean(t *testing.T) {
	dbPath := setupTestDB(t)

	t.Run("clean non-existent database", func(t *testing.T) {
		output := captureOutput(func() {
			clean(dbPath)
		})

		assert.Contains(t, output, "Database is already clean")
	})

	t.Run("clean existing database - cancelled", func(t *testing.T) {
		captureOutput(func() { initDb(dbPath) })
		assert.DirExists(t, dbPath)

		var output string
		mockStdin("n\n", func() {
			output = captureOutput(func() {
				clean(dbPath)
			})
		})

		assert.Contains(t, output, "Operation cancelled")
		assert.DirExists(t, dbPath)
	})

	t.Run("clean existing database - confirmed", func(t *testing.T) {
		var output string
		mockStdin("y\n", func() {
			output = captureOutput(func() {
				clean(dbPath)
			})
		})

		assert.Contains(t, output, "Database cleaned successfully")
		assert.NoDirExists(t, dbPath)
	})
}

type failingStreamer struct{ err error }

func (f failingStreamer) Backup(w io.Writer, since uint64) (uint64, error) {
	w.Write([]byte("partial"))
	return 0, f.err
}

func TestWriteBackupRemovesPartialFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "backup_1.db")
	boom := errors.New("stream failed")

	err := writeBackup(failingStreamer{err: boom}, file)
	assert.ErrorIs(t, err, boom)
	assert.NoFileExists(t, file)
}

func TestBackupAndRestore(t *testing.T) {
	dbPath := setupTestDB(t)
	ctx := context.Background()

	t.Run("backup non-existent database", func(t *testing.T) {
		output := captureOutput(func() {
			_, code := backup(dbPath)
			assert.Equal(t, 1, code)
		})

		assert.Contains(t, output, "No database exists to backup")
	})

	// Write a post to restore later
	store, err := repositories.OpenBadger(dbPath, false, zerolog.Nop())
	require.NoError(t, err)
	id, err := store.Insert(ctx, models.PostInput{Title: "Backed up", Contents: "Safe"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	var backupFile string
	t.Run("backup existing database", func(t *testing.T) {
		output := captureOutput(func() {
			var code int
			backupFile, code = backup(dbPath)
			assert.Equal(t, 0, code)
		})

		assert.Contains(t, output, "Database backed up successfully")
		assert.FileExists(t, backupFile)
		assert.Equal(t, backupDir(dbPath), filepath.Dir(backupFile))
	})

	t.Run("restore non-existent backup", func(t *testing.T) {
		output := captureOutput(func() {
			assert.Equal(t, 1, restore(dbPath, "nonexistent.db"))
		})

		assert.Contains(t, output, "Backup file does not exist")
	})

	t.Run("restore empty backup", func(t *testing.T) {
		empty := filepath.Join(t.TempDir(), "empty.db")
		require.NoError(t, os.WriteFile(empty, nil, 0644))

		output := captureOutput(func() {
			assert.Equal(t, 1, restore(dbPath, empty))
		})

		assert.Contains(t, output, "Backup file is empty")
	})

	t.Run("restore with existing database - cancelled", func(t *testing.T) {
		var output string
		mockStdin("n\n", func() {
			output = captureOutput(func() {
				assert.Equal(t, 1, restore(dbPath, backupFile))
			})
		})

		assert.Contains(t, output, "Operation cancelled")
	})

	t.Run("restore truncated backup keeps existing database", func(t *testing.T) {
		// a length prefix promising more bytes than follow
		truncated := make([]byte, 8, 13)
		binary.LittleEndian.PutUint64(truncated, 100)
		truncated = append(truncated, "short"...)
		bad := filepath.Join(t.TempDir(), "truncated.db")
		require.NoError(t, os.WriteFile(bad, truncated, 0644))

		var output string
		mockStdin("y\n", func() {
			output = captureOutput(func() {
				assert.Equal(t, 1, restore(dbPath, bad))
			})
		})
		assert.Contains(t, output, "Failed to restore database")

		entries, err := os.ReadDir(filepath.Dir(dbPath))
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".restore-")
		}

		store, err := repositories.OpenBadger(dbPath, false, zerolog.Nop())
		require.NoError(t, err)
		defer store.Close()

		post, err := store.FindByID(ctx, strconv.Itoa(id))
		require.NoError(t, err)
		require.NotNil(t, post)
		assert.Equal(t, "Backed up", post.Title)
	})

	t.Run("restore into a fresh location", func(t *testing.T) {
		fresh := setupTestDB(t)

		output := captureOutput(func() {
			assert.Equal(t, 0, restore(fresh, backupFile))
		})
		assert.Contains(t, output, "Database restored successfully")

		store, err := repositories.OpenBadger(fresh, false, zerolog.Nop())
		require.NoError(t, err)
		defer store.Close()

		post, err := store.FindByID(ctx, strconv.Itoa(id))
		require.NoError(t, err)
		require.NotNil(t, post)
	})

	t.Run("restore with existing database - confirmed", func(t *testing.T) {
		var output string
		mockStdin("y\n", func() {
			output = captureOutput(func() {
				assert.Equal(t, 0, restore(dbPath, backupFile))
			})
		})
		assert.Contains(t, output, "Database restored successfully")

		store, err := repositories.OpenBadger(dbPath, false, zerolog.Nop())
		require.NoError(t, err)
		defer store.Close()

		post, err := store.FindByID(ctx, strconv.Itoa(id))
		require.NoError(t, err)
		require.NotNil(t, post)
		assert.Equal(t, "Backed up", post.Title)
	})
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "posts.db")

	output := captureOutput(func() {
		assert.Equal(t, 0, seed(ctx, cfg, zerolog.Nop()))
	})
	assert.Contains(t, output, "Seeded 3 posts and 3 comments")

	store, err := repositories.Open(ctx, cfg.Storage, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	posts, err := store.Find(ctx, repositories.Criteria{})
	require.NoError(t, err)
	require.Len(t, posts, len(samplePosts))

	for i, post := range posts {
		assert.Equal(t, samplePosts[i].Post.Title, post.Title)
		comments, err := store.FindPostComments(ctx, strconv.Itoa(post.ID))
		require.NoError(t, err)
		assert.Len(t, comments, len(samplePosts[i].Comments))
	}
}
