// Package store provides SQLite persistence for craneops. Each logical
// dataset lives in its own database file under a data directory; tables
// inside a dataset are created dynamically at upload time.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/portside-dev/craneops/internal/model"
	_ "modernc.org/sqlite"
)

// Sentinel errors surfaced to the API layer for status mapping.
var (
	ErrDatabaseNotFound = errors.New("database not found")
	ErrDatabaseExists   = errors.New("database already exists")
	ErrTableNotFound    = errors.New("table not found")
	ErrTableExists      = errors.New("table already exists")
	ErrRecordNotFound   = errors.New("record not found")
	ErrColumnNotFound   = errors.New("column not found")
	ErrInvalidName      = errors.New("invalid identifier")
	ErrNotConfirmed     = errors.New("destructive operation requires confirmation")
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dbNamePattern is stricter than identPattern: database names become file
// names on disk, so dots and path separators are rejected outright.
var dbNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)

// Store manages the directory of per-dataset SQLite files and a cache of
// open handles.
type Store struct {
	dir        string
	defaultDB  string
	mu         sync.Mutex
	handles    map[string]*sql.DB
	protection map[string]bool // databases that refuse deletion
}

// Open prepares the data directory and opens the default database.
func Open(dir, defaultDB string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}
	s := &Store{
		dir:        dir,
		defaultDB:  defaultDB,
		handles:    make(map[string]*sql.DB),
		protection: map[string]bool{defaultDB: true},
	}
	if _, err := s.open(defaultDB, true); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes all open database handles.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for name, db := range s.handles {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s: %w", name, err)
		}
		delete(s.handles, name)
	}
	return firstErr
}

// DefaultDatabase returns the name of the default dataset.
func (s *Store) DefaultDatabase() string { return s.defaultDB }

// DB returns the handle for an existing database, opening it on first use.
func (s *Store) DB(name string) (*sql.DB, error) {
	if name == "" {
		name = s.defaultDB
	}
	return s.open(name, false)
}

func (s *Store) open(name string, create bool) (*sql.DB, error) {
	if !dbNamePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.handles[name]; ok {
		return db, nil
	}

	path := s.path(name)
	if !create {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, name)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", name, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database %s: %w", name, err)
	}

	// WAL and a generous busy timeout: concurrent writers rely entirely on
	// SQLite's engine-level serialization.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q on %s: %w", pragma, name, err)
		}
	}

	if _, err := db.Exec(metaSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations on %s: %w", name, err)
	}

	s.handles[name] = db
	return db, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".db")
}

// ListDatabases enumerates the dataset files on disk.
func (s *Store) ListDatabases() ([]model.DatabaseInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading data dir: %w", err)
	}

	var infos []model.DatabaseInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".db")
		fi, err := e.Info()
		if err != nil {
			continue
		}
		count, err := s.countUserTables(name)
		if err != nil {
			count = 0
		}
		infos = append(infos, model.DatabaseInfo{
			Name:       name,
			SizeBytes:  fi.Size(),
			TableCount: count,
			Default:    name == s.defaultDB,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// CreateDatabase creates a new empty dataset file.
func (s *Store) CreateDatabase(name string) error {
	if !dbNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, err := os.Stat(s.path(name)); err == nil {
		return fmt.Errorf("%w: %s", ErrDatabaseExists, name)
	}
	_, err := s.open(name, true)
	return err
}

// DeleteDatabase removes a dataset file from disk. The default database is
// protected; confirm must be set by the caller.
func (s *Store) DeleteDatabase(name string, confirm bool) error {
	if !confirm {
		return ErrNotConfirmed
	}
	if s.protection[name] {
		return fmt.Errorf("database %q is protected", name)
	}
	path := s.path(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrDatabaseNotFound, name)
	}

	s.mu.Lock()
	if db, ok := s.handles[name]; ok {
		db.Close()
		delete(s.handles, name)
	}
	s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting database %s: %w", name, err)
	}
	// WAL sidecars are best-effort cleanup.
	os.Remove(path + "-wal")
	os.Remove(path + "-shm")
	return nil
}

func (s *Store) countUserTables(name string) (int, error) {
	db, err := s.DB(name)
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		  AND name NOT IN ('table_metadata', 'relationship_configs')`).Scan(&n)
	return n, err
}

// validIdent reports whether name is a safe SQL identifier.
func validIdent(name string) bool {
	return identPattern.MatchString(name)
}

// quoteIdent double-quotes an already validated identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
