package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"postsapi/app/config"
)

// Open connects the backend named by cfg.Driver. The caller owns the
// returned store and must Close it.
func Open(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (Store, error) {
	log = log.With().Str("driver", cfg.Driver).Logger()

	var (
		store Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverBadger:
		store, err = OpenBadger(cfg.Path, cfg.InMemory, log)
	case config.DriverSQLite:
		store, err = OpenSQLite(ctx, cfg.DSN)
	case config.DriverMongo:
		store, err = OpenMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	log.Info().Msg("store opened")
	return store, nil
}

// BadgerStore implements Store using BadgerDB
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// OpenBadger opens (or creates) a badger database at path. With inMemory
// set the path is ignored and nothing touches disk.
func OpenBadger(path string, inMemory bool, log zerolog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(badgerLogger{log}).
		WithNumVersionsToKeep(1)
	if inMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}
	return NewBadgerStore(db), nil
}

// NewBadgerStore wraps an already open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// maxConflictAttempts bounds how often a write transaction is replayed when
// a concurrent writer touched the same keys.
const maxConflictAttempts = 3

func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictAttempts; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's internal logging through zerolog. Info and
// debug chatter is demoted one level.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(format, args...)
}
