// Package dao is the storage surface over the single-file sqlite
// database. The worker holds exactly one connection; a mutex serializes
// every statement on it.
package dao

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("dao: not found")

const timeLayout = "2006-01-02 15:04:05"

// Dao wraps the guarded sqlite connection.
type Dao struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*Dao, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	d := &Dao{db: db}
	if err := d.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Dao) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Close()
}

// Ping verifies the connection is still usable.
func (d *Dao) Ping() error {
	defer d.lock()()
	return d.db.Ping()
}

// lock/unlock wrap every statement; sqlite has a single writer and the
// worker shares one connection across goroutines.
func (d *Dao) lock() func() {
	d.mu.Lock()
	return d.mu.Unlock
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(timeLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}

func nullInt(v sql.NullInt64) int {
	if v.Valid {
		return int(v.Int64)
	}
	return 0
}

func nullFloat(v sql.NullFloat64) float64 {
	if v.Valid {
		return v.Float64
	}
	return 0
}
