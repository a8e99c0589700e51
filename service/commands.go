package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"postsapi/app/config"
	"postsapi/app/models"
	"postsapi/app/repositories"
	"postsapi/app/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// HandleCommand handles db subcommands and returns the process exit code.
func HandleCommand(cfg *config.Config, log zerolog.Logger, args []string) int {
	if len(args) < 1 {
		printDbHelp()
		return 1
	}

	cmd := args[0]
	switch cmd {
	case "seed":
		return seed(context.Background(), cfg, log)
	case "help":
		printDbHelp()
		return 0
	}

	if cfg.Storage.Driver != config.DriverBadger {
		outf("The %s command only supports the badger driver (configured: %s)\n", cmd, cfg.Storage.Driver)
		return 1
	}
	dbPath := cfg.Storage.Path

	switch cmd {
	case "clean":
		return clean(dbPath)
	case "init":
		return initDb(dbPath)
	case "backup":
		_, code := backup(dbPath)
		return code
	case "restore":
		if len(args) < 2 {
			outln("Error: backup file path required for restore")
			return 1
		}
		return restore(dbPath, args[1])
	default:
		outf("Unknown db command: %s\n\n", cmd)
		printDbHelp()
		return 1
	}
}

// printDbHelp prints help for db subcommands.
func printDbHelp() {
	helpText := `Usage: postsapi db <command>

Commands:
  init                            Initialize a new empty database
  clean                           Remove the database
  backup                          Create a backup of the database
  restore <file>                  Restore database from backup
  seed                            Insert sample posts and comments
  help                            Display this help message

init, clean, backup and restore work on the badger data directory
(POSTS_STORAGE_PATH). seed works with every driver.
`
	outln(helpText)
}

func backupDir(dbPath string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(dbPath)), "backups")
}

func openBadger(dbPath string) (*badger.DB, error) {
	return badger.Open(badger.DefaultOptions(dbPath).WithLogger(nil))
}

// clean removes the database.
func clean(dbPath string) int {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		outln("Database is already clean (does not exist)")
		return 0
	}

	if !confirm("Are you sure you want to clean the database? This cannot be undone.") {
		outln("Operation cancelled")
		return 0
	}

	if err := os.RemoveAll(dbPath); err != nil {
		outf("Failed to clean database: %v\n", err)
		return 1
	}
	outln("Database cleaned successfully")
	return 0
}

// initDb initializes a new empty database.
func initDb(dbPath string) int {
	if _, err := os.Stat(dbPath); err == nil {
		outln("Database already exists. Use 'clean' first if you want to reinitialize.")
		return 0
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		outf("Failed to create database directory: %v\n", err)
		return 1
	}

	db, err := openBadger(dbPath)
	if err != nil {
		outf("Failed to initialize database: %v\n", err)
		return 1
	}
	if err := db.Close(); err != nil {
		outf("Failed to close database: %v\n", err)
		return 1
	}

	outln("Database initialized successfully")
	return 0
}

// backup writes a full backup of the database to backups/backup_<unixnano>.db
// next to it and returns the file written.
func backup(dbPath string) (string, int) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		outln("No database exists to backup")
		return "", 1
	}

	dir := backupDir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		outf("Failed to create backup directory: %v\n", err)
		return "", 1
	}

	db, err := openBadger(dbPath)
	if err != nil {
		outf("Failed to open database: %v\n", err)
		return "", 1
	}
	defer db.Close()

	backupFile := filepath.Join(dir, fmt.Sprintf("backup_%d.db", time.Now().UnixNano()))
	if err := writeBackup(db, backupFile); err != nil {
		outf("Failed to backup database: %v\n", err)
		return "", 1
	}

	outf("Database backed up successfully to %s\n", backupFile)
	return backupFile, 0
}

// backupStreamer is the part of *badger.DB that writeBackup needs.
type backupStreamer interface {
	Backup(w io.Writer, since uint64) (uint64, error)
}

// writeBackup streams a full backup into backupFile. No partial file is left
// behind on failure.
func writeBackup(db backupStreamer, backupFile string) error {
	f, err := os.Create(backupFile)
	if err != nil {
		return err
	}
	_, err = db.Backup(f, 0)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(backupFile)
	}
	return err
}

// restore loads a backup into a staging directory next to dbPath and only
// swaps it in once the load succeeded, so a bad backup leaves the existing
// database untouched.
func restore(dbPath, backupFile string) int {
	fi, err := os.Stat(backupFile)
	if os.IsNotExist(err) {
		outf("Backup file does not exist: %s\n", backupFile)
		return 1
	}
	if err != nil {
		outf("Failed to stat backup file: %v\n", err)
		return 1
	}
	if fi.Size() == 0 {
		outf("Backup file is empty: %s\n", backupFile)
		return 1
	}

	_, err = os.Stat(dbPath)
	exists := err == nil
	if exists && !confirm("Existing database found. Do you want to replace it?") {
		outln("Operation cancelled")
		return 1
	}

	parent := filepath.Dir(filepath.Clean(dbPath))
	if err := os.MkdirAll(parent, 0755); err != nil {
		outf("Failed to create database directory: %v\n", err)
		return 1
	}
	staging, err := os.MkdirTemp(parent, filepath.Base(dbPath)+".restore-")
	if err != nil {
		outf("Failed to create staging directory: %v\n", err)
		return 1
	}

	if err := loadBackup(staging, backupFile); err != nil {
		os.RemoveAll(staging)
		outf("Failed to restore database: %v\n", err)
		return 1
	}

	if err := swapDir(staging, dbPath, exists); err != nil {
		os.RemoveAll(staging)
		outf("Failed to replace database: %v\n", err)
		return 1
	}

	outln("Database restored successfully")
	return 0
}

func loadBackup(dir, backupFile string) (err error) {
	f, err := os.Open(backupFile)
	if err != nil {
		return err
	}
	defer f.Close()

	db, err := openBadger(dir)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); err == nil {
			err = cerr
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred during restore: %v", r)
		}
	}()
	return db.Load(f, 4)
}

// swapDir moves staging to dbPath. An existing database is moved aside
// first and put back if the final rename fails.
func swapDir(staging, dbPath string, exists bool) error {
	if !exists {
		return os.Rename(staging, dbPath)
	}

	old := staging + ".old"
	if err := os.Rename(dbPath, old); err != nil {
		return err
	}
	if err := os.Rename(staging, dbPath); err != nil {
		if rerr := os.Rename(old, dbPath); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return os.RemoveAll(old)
}

var samplePosts = []services.SamplePost{
	{
		Post:     models.PostInput{Title: "Getting started", Contents: "The API speaks JSON over /api/posts."},
		Comments: []string{"Clear enough.", "Works with curl too."},
	},
	{
		Post:     models.PostInput{Title: "Comments are read only", Contents: "Comments are created with the seed command, not over HTTP."},
		Comments: []string{"Good to know."},
	},
	{
		Post: models.PostInput{Title: "Quiet post", Contents: "Nobody has commented on this one yet."},
	},
}

// seed inserts sample posts and their comments through the configured
// store.
func seed(ctx context.Context, cfg *config.Config, log zerolog.Logger) int {
	store, err := repositories.Open(ctx, cfg.Storage, log)
	if err != nil {
		outf("Failed to open store: %v\n", err)
		return 1
	}
	defer store.Close()

	result, err := services.NewSeedService(store).Seed(ctx, samplePosts)
	if err != nil {
		outf("Failed to seed database: %v\n", err)
		return 1
	}

	outf("Seeded %d posts and %d comments\n", result.Posts, result.Comments)
	return 0
}
