package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/recordkit/internal/record"
)

// ErrNotFound is returned when a subject, version or fingerprint is unknown.
var ErrNotFound = errors.New("not found")

// Version is one registered (subject, version) pair.
type Version struct {
	Subject     string `json:"subject"`
	Version     int    `json:"version"`
	Fingerprint string `json:"fingerprint"`
	Seq         int64  `json:"seq"`
}

// Register stores schema under subject.
//
// If the subject already holds a schema with the same fingerprint, its
// existing version is returned with created=false. Otherwise the schema is
// appended as the subject's next version.
func (s *Store) Register(ctx context.Context, subject string, schema *record.Schema) (Version, bool, error) {
	if subject == "" {
		return Version{}, false, fmt.Errorf("register: subject is required")
	}
	body, err := schema.MarshalJSON()
	if err != nil {
		return Version{}, false, fmt.Errorf("register: %w", err)
	}
	fp, err := schema.Fingerprint()
	if err != nil {
		return Version{}, false, fmt.Errorf("register: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Version{}, false, fmt.Errorf("register: begin: %w", err)
	}
	defer tx.Rollback()

	// Content-addressed: the same body may already exist under another subject.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schemas (fingerprint, body)
		VALUES (?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, fp, string(body)); err != nil {
		return Version{}, false, fmt.Errorf("register: write schema: %w", err)
	}

	existing := Version{Subject: subject, Fingerprint: fp}
	err = tx.QueryRowContext(ctx, `
		SELECT version, seq FROM subject_versions
		WHERE subject = ? AND fingerprint = ?
	`, subject, fp).Scan(&existing.Version, &existing.Seq)
	switch {
	case err == nil:
		return existing, false, tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return Version{}, false, fmt.Errorf("register: lookup: %w", err)
	}

	v := Version{Subject: subject, Fingerprint: fp}
	if err := tx.QueryRowContext(ctx, `
		SELECT
			COALESCE((SELECT MAX(version) FROM subject_versions WHERE subject = ?), 0) + 1,
			COALESCE((SELECT MAX(seq) FROM subject_versions), 0) + 1
	`, subject).Scan(&v.Version, &v.Seq); err != nil {
		return Version{}, false, fmt.Errorf("register: next version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO subject_versions (subject, version, fingerprint, seq)
		VALUES (?, ?, ?, ?)
	`, v.Subject, v.Version, v.Fingerprint, v.Seq); err != nil {
		return Version{}, false, fmt.Errorf("register: write version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Version{}, false, fmt.Errorf("register: commit: %w", err)
	}

	s.logger.Debug("schema registered",
		"subject", v.Subject,
		"version", v.Version,
		"fingerprint", v.Fingerprint)
	return v, true, nil
}

// Get returns the schema registered as version of subject.
func (s *Store) Get(ctx context.Context, subject string, version int) (*record.Schema, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT sc.body
		FROM subject_versions sv
		JOIN schemas sc ON sc.fingerprint = sv.fingerprint
		WHERE sv.subject = ? AND sv.version = ?
	`, subject, version).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s version %d", ErrNotFound, subject, version)
	}
	if err != nil {
		return nil, fmt.Errorf("get schema: %w", err)
	}
	return decodeBody(body)
}

// Latest returns the highest version of subject.
func (s *Store) Latest(ctx context.Context, subject string) (*record.Schema, Version, error) {
	v := Version{Subject: subject}
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT sv.version, sv.fingerprint, sv.seq, sc.body
		FROM subject_versions sv
		JOIN schemas sc ON sc.fingerprint = sv.fingerprint
		WHERE sv.subject = ?
		ORDER BY sv.version DESC
		LIMIT 1
	`, subject).Scan(&v.Version, &v.Fingerprint, &v.Seq, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Version{}, fmt.Errorf("%w: subject %s", ErrNotFound, subject)
	}
	if err != nil {
		return nil, Version{}, fmt.Errorf("latest schema: %w", err)
	}
	schema, err := decodeBody(body)
	if err != nil {
		return nil, Version{}, err
	}
	return schema, v, nil
}

// ByFingerprint returns the schema stored under fp.
func (s *Store) ByFingerprint(ctx context.Context, fp string) (*record.Schema, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM schemas WHERE fingerprint = ?`, fp).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: fingerprint %s", ErrNotFound, fp)
	}
	if err != nil {
		return nil, fmt.Errorf("schema by fingerprint: %w", err)
	}
	return decodeBody(body)
}

// Versions returns the history of subject, oldest first.
// Returns empty slice (not nil) for an unknown subject.
func (s *Store) Versions(ctx context.Context, subject string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject, version, fingerprint, seq
		FROM subject_versions
		WHERE subject = ?
		ORDER BY version ASC
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	return scanVersions(rows)
}

// UsedBy returns every (subject, version) that references fp, in
// registration order.
func (s *Store) UsedBy(ctx context.Context, fp string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject, version, fingerprint, seq
		FROM subject_versions
		WHERE fingerprint = ?
		ORDER BY seq ASC
	`, fp)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return scanVersions(rows)
}

// Subjects returns every subject name in binary order.
func (s *Store) Subjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT subject FROM subject_versions
		ORDER BY subject COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	subjects := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return subjects, nil
}

func scanVersions(rows *sql.Rows) ([]Version, error) {
	defer rows.Close()

	versions := []Version{}
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.Subject, &v.Version, &v.Fingerprint, &v.Seq); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

func decodeBody(body string) (*record.Schema, error) {
	schema, err := record.ParseSchemaJSON([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("decode stored schema: %w", err)
	}
	return schema, nil
}
