package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"apisurface/internal/surface"

	_ "github.com/mattn/go-sqlite3"
)

const (
	renderingNullable  = "nullable"
	renderingOblivious = "oblivious"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ HistoryStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS surfaces (
			library TEXT NOT NULL,
			version TEXT NOT NULL,
			nullable_enable INTEGER NOT NULL,
			recorded_at INTEGER NOT NULL,
			PRIMARY KEY (library, version)
		);`,
		`CREATE TABLE IF NOT EXISTS entries (
			library TEXT NOT NULL,
			version TEXT NOT NULL,
			rendering TEXT NOT NULL,
			entry TEXT NOT NULL,
			PRIMARY KEY (library, version, rendering, entry)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_surfaces_recorded ON surfaces(library, recorded_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveSurface(ctx context.Context, library, version string, sf *surface.Surface) error {
	if library == "" || version == "" {
		return errors.New("library and version are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Replace semantics: drop the previous record first.
	if err := deleteSurface(ctx, tx, library, version); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO surfaces (library, version, nullable_enable, recorded_at)
		VALUES (?, ?, ?, ?)
	`, library, version, sf.HasNullableEnable(), s.now().UnixNano()); err != nil {
		return fmt.Errorf("failed to insert surface: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (library, version, rendering, entry) VALUES (?, ?, ?, ?)
		ON CONFLICT(library, version, rendering, entry) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, set := range []struct {
		rendering string
		entries   []string
	}{
		{renderingNullable, sf.NullableEntries()},
		{renderingOblivious, sf.ObliviousEntries()},
	} {
		for _, e := range set.entries {
			if _, err := stmt.ExecContext(ctx, library, version, set.rendering, e); err != nil {
				return fmt.Errorf("failed to insert entry: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadSurface(ctx context.Context, library, version string) (*surface.Surface, error) {
	var nullableEnable bool
	err := s.db.QueryRowContext(ctx,
		"SELECT nullable_enable FROM surfaces WHERE library = ? AND version = ?",
		library, version).Scan(&nullableEnable)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, library, version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query surface: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT rendering, entry FROM entries WHERE library = ? AND version = ?",
		library, version)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var nullable, oblivious []string
	for rows.Next() {
		var rendering, entry string
		if err := rows.Scan(&rendering, &entry); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		switch rendering {
		case renderingNullable:
			nullable = append(nullable, entry)
		case renderingOblivious:
			oblivious = append(oblivious, entry)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return surface.Restore(nullableEnable, nullable, oblivious), nil
}

func (s *SQLiteStore) ListVersions(ctx context.Context, library string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.library, s.version, s.nullable_enable, s.recorded_at,
			(SELECT COUNT(*) FROM entries e
				WHERE e.library = s.library AND e.version = s.version
				AND e.rendering = CASE WHEN s.nullable_enable THEN ? ELSE ? END)
		FROM surfaces s
		WHERE s.library = ?
		ORDER BY s.recorded_at, s.version
	`, renderingNullable, renderingOblivious, library)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var v Version
		var recorded int64
		if err := rows.Scan(&v.Library, &v.Version, &v.NullableEnable, &recorded, &v.Entries); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		v.RecordedAt = time.Unix(0, recorded)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *SQLiteStore) DeleteSurface(ctx context.Context, library, version string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteSurface(ctx, tx, library, version); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteSurface(ctx context.Context, tx *sql.Tx, library, version string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE library = ? AND version = ?", library, version); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM surfaces WHERE library = ? AND version = ?", library, version); err != nil {
		return fmt.Errorf("failed to delete surface: %w", err)
	}
	return nil
}
