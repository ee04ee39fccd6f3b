package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// pragma is a connection setting applied on Open and checked by Check.
type pragma struct {
	name  string
	set   string
	value string // as reported back by PRAGMA <name>
}

var pragmas = []pragma{
	{name: "journal_mode", set: "WAL", value: "wal"},
	{name: "synchronous", set: "NORMAL", value: "1"},
	{name: "busy_timeout", set: "5000", value: "5000"},
	{name: "foreign_keys", set: "ON", value: "1"},
}

// migration upgrades a registry database to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order against databases whose user_version is lower.
var migrations = []migration{
	{
		version: 1,
		name:    "index subject_versions by fingerprint",
		stmt: `CREATE INDEX IF NOT EXISTS idx_subject_versions_fingerprint
			ON subject_versions(fingerprint)`,
	},
}

var currentSchemaVersion = migrations[len(migrations)-1].version

// Store is a SQLite-backed schema registry.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for registry lifecycle and writes.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open creates or opens the registry database at path, applying pragmas
// and pending migrations. Opening an up-to-date database changes nothing.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer and pragmas are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.set)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragma %s: %w", p.name, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	from, err := s.migrate()
	if err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("schema registry opened",
		"path", path,
		"schema_version", currentSchemaVersion,
		"upgraded_from", from)
	return s, nil
}

// migrate runs every migration newer than the stored user_version and
// returns the version found on disk.
func (s *Store) migrate() (int, error) {
	var from int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&from); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= from {
			continue
		}
		if _, err := s.db.Exec(m.stmt); err != nil {
			return from, fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
		s.logger.Debug("registry migrated", "version", m.version, "migration", m.name)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return from, fmt.Errorf("set user_version: %w", err)
	}
	return from, nil
}

// Close closes the database. Closing a closed or zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Check verifies that every connection pragma holds its configured value.
func (s *Store) Check(ctx context.Context) error {
	for _, p := range pragmas {
		var got string
		if err := s.db.QueryRowContext(ctx, "PRAGMA "+p.name).Scan(&got); err != nil {
			return fmt.Errorf("query pragma %s: %w", p.name, err)
		}
		if got != p.value {
			return fmt.Errorf("pragma %s = %q, want %q", p.name, got, p.value)
		}
	}
	return nil
}
