package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// ErrLocked means another engine process holds the data directory.
var ErrLocked = errors.New("data directory is locked by another gradscout process")

const (
	DBFile   = "gradscout.db"
	lockFile = "gradscout.lock"

	// SQLite-friendly timestamp layout; compares correctly against datetime('now', ...)
	timeLayout = "2006-01-02 15:04:05"
)

type DB struct {
	Pool *sql.DB
	lock *flock.Flock
}

func Open(path string) (*DB, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	pool.SetMaxOpenConns(1) // sqlite typically wants 1 writer
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	return &DB{Pool: pool}, nil
}

// OpenDataDir locks dataDir, opens <dataDir>/gradscout.db and migrates it.
// The lock is released by Close.
func OpenDataDir(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	lk := flock.New(filepath.Join(dataDir, lockFile))
	ok, err := lk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock data dir: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	d, err := Open(filepath.Join(dataDir, DBFile))
	if err != nil {
		_ = lk.Unlock()
		return nil, fmt.Errorf("open db: %w", err)
	}
	d.lock = lk

	if err := Migrate(d.Pool); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *DB) Close() error {
	if d == nil {
		return nil
	}
	var err error
	if d.Pool != nil {
		err = d.Pool.Close()
	}
	if d.lock != nil {
		if uerr := d.lock.Unlock(); err == nil {
			err = uerr
		}
	}
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
