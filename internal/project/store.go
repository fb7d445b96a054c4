// Package project persists session state — source paths, view window,
// timezone selection and annotations — in a SQLite project file, so a
// session can be restored exactly.
package project

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marine-acoustics/hydroscope/internal/annotation"
	"github.com/marine-acoustics/hydroscope/internal/timezone"
)

//go:embed schema.sql
var initSchemaSQL string

const (
	createIndexesSQL = `CREATE INDEX IF NOT EXISTS idx_annotations_start ON annotations(start_time)`

	upsertProjectSQL = `
        INSERT INTO project (id, name, timezone_mode, user_zone, window_start, window_end, updated_at)
        VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT (id) DO UPDATE SET
            name = excluded.name,
            timezone_mode = excluded.timezone_mode,
            user_zone = excluded.user_zone,
            window_start = excluded.window_start,
            window_end = excluded.window_end,
            updated_at = CURRENT_TIMESTAMP`

	selectProjectSQL = `
        SELECT name, timezone_mode, user_zone, window_start, window_end
        FROM project WHERE id = 1`

	insertSourceSQL     = `INSERT INTO source_files (position, path) VALUES (?, ?)`
	selectSourcesSQL    = `SELECT path FROM source_files ORDER BY position`
	insertAnnotationSQL = `INSERT INTO annotations (id, title, notes, start_time, end_time) VALUES (?, ?, ?, ?, ?)`
	selectAnnotationSQL = `SELECT id, title, notes, start_time, end_time FROM annotations ORDER BY start_time, id`
)

// ErrNoProject indicates the project file holds no saved session yet.
var ErrNoProject = errors.New("no saved project")

// Snapshot is the complete persisted session state.
type Snapshot struct {
	Name        string
	Mode        timezone.Mode
	UserZone    string
	WindowStart int
	WindowEnd   int
	Sources     []string
	Annotations []annotation.Annotation
}

// Store handles project file persistence. Connections are opened lazily:
// a WAL write connection for saves and a read-only connection for loads.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewStore creates a project store backed by the SQLite file at dbPath.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// Save writes the snapshot in a single transaction, replacing any previous
// session state.
func (s *Store) Save(ctx context.Context, snap *Snapshot) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	var userZone sql.NullString
	if snap.UserZone != "" {
		userZone = sql.NullString{String: snap.UserZone, Valid: true}
	}

	if _, err = tx.ExecContext(ctx, upsertProjectSQL,
		snap.Name, string(snap.Mode), userZone, snap.WindowStart, snap.WindowEnd); err != nil {
		return fmt.Errorf("saving project row: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM source_files`); err != nil {
		return fmt.Errorf("clearing source files: %w", err)
	}
	for i, path := range snap.Sources {
		if _, err = tx.ExecContext(ctx, insertSourceSQL, i, path); err != nil {
			return fmt.Errorf("saving source file %d: %w", i, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM annotations`); err != nil {
		return fmt.Errorf("clearing annotations: %w", err)
	}
	for _, a := range snap.Annotations {
		var notes sql.NullString
		if a.Notes != "" {
			notes = sql.NullString{String: a.Notes, Valid: true}
		}
		if _, err = tx.ExecContext(ctx, insertAnnotationSQL,
			a.ID, a.Title, notes, a.Start.UTC(), a.End.UTC()); err != nil {
			return fmt.Errorf("saving annotation %s: %w", a.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Load reads the persisted session state.
func (s *Store) Load(ctx context.Context) (snap *Snapshot, err error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	var out Snapshot
	var mode string
	var userZone sql.NullString
	err = db.QueryRowContext(ctx, selectProjectSQL).Scan(
		&out.Name, &mode, &userZone, &out.WindowStart, &out.WindowEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoProject
	}
	if err != nil {
		return nil, fmt.Errorf("loading project row: %w", err)
	}

	if out.Mode, err = timezone.ParseMode(mode); err != nil {
		return nil, fmt.Errorf("loading project row: %w", err)
	}
	if userZone.Valid {
		out.UserZone = userZone.String
	}

	if out.Sources, err = s.loadSources(ctx, db); err != nil {
		return nil, err
	}
	if out.Annotations, err = s.loadAnnotations(ctx, db); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) loadSources(ctx context.Context, db *sql.DB) (sources []string, err error) {
	rows, err := db.QueryContext(ctx, selectSourcesSQL)
	if err != nil {
		return nil, fmt.Errorf("querying source files: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var path string
		if err = rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scanning source file: %w", err)
		}
		sources = append(sources, path)
	}
	return sources, rows.Err()
}

func (s *Store) loadAnnotations(ctx context.Context, db *sql.DB) (annotations []annotation.Annotation, err error) {
	rows, err := db.QueryContext(ctx, selectAnnotationSQL)
	if err != nil {
		return nil, fmt.Errorf("querying annotations: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var a annotation.Annotation
		var notes sql.NullString
		if err = rows.Scan(&a.ID, &a.Title, &notes, &a.Start, &a.End); err != nil {
			return nil, fmt.Errorf("scanning annotation: %w", err)
		}
		if notes.Valid {
			a.Notes = notes.String
		}
		a.Start = a.Start.UTC()
		a.End = a.End.UTC()
		annotations = append(annotations, a)
	}
	return annotations, rows.Err()
}

// Close releases both connections. Indexes are created on close of the
// write connection so bulk saves are not slowed by index maintenance.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, createIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}
