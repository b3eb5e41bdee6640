// Package sqlite provides a SQLite-backed session storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/spar/internal/platform/grpc/pagination"
	sqlitemigrate "github.com/louisbranch/spar/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/spar/internal/services/session/storage"
	"github.com/louisbranch/spar/internal/services/session/storage/sqlite/migrations"
	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/engine"
	"github.com/louisbranch/spar/internal/spar/scene"
	"github.com/louisbranch/spar/internal/spar/state"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists sessions in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite session store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// CreateSession inserts one session.
func (s *Store) CreateSession(ctx context.Context, session storage.Session) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id := strings.TrimSpace(session.ID)
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	createdAt := session.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := session.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	cols, err := encodeSession(session)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sessions (
		   id, name, seed, sequence, generator_type, locale,
		   scene_json, selection_json, state_json, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		strings.TrimSpace(session.Name),
		session.Seed,
		int64(session.Sequence),
		string(session.Generator),
		session.Locale,
		cols.scene,
		cols.selection,
		cols.state,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (storage.Session, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Session{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Session{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, seed, sequence, generator_type, locale,
		        scene_json, selection_json, state_json, created_at, updated_at
		   FROM sessions
		  WHERE id = ?`,
		id,
	)

	var (
		session   storage.Session
		sequence  int64
		generator string
		cols      sessionColumns
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&session.ID,
		&session.Name,
		&session.Seed,
		&sequence,
		&generator,
		&session.Locale,
		&cols.scene,
		&cols.selection,
		&cols.state,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Session{}, storage.ErrNotFound
		}
		return storage.Session{}, fmt.Errorf("get session: %w", err)
	}
	if err := cols.decode(&session); err != nil {
		return storage.Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	session.Sequence = uint64(sequence)
	session.Generator = content.GeneratorType(generator)
	session.CreatedAt = fromMillis(createdAt)
	session.UpdatedAt = fromMillis(updatedAt)
	return session, nil
}

// UpdateSession replaces the mutable fields of a session.
func (s *Store) UpdateSession(ctx context.Context, session storage.Session, expectedSequence uint64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update session: %w", err)
	}
	if err := updateSession(ctx, tx, session, expectedSequence); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update session: %w", err)
	}
	return nil
}

// AppendEvents stores generated events and the advanced session together.
func (s *Store) AppendEvents(ctx context.Context, session storage.Session, expectedSequence uint64, events []storage.EventRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append events: %w", err)
	}
	if err := updateSession(ctx, tx, session, expectedSequence); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, record := range events {
		payload, err := json.Marshal(record.Event)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode event %d: %w", record.Sequence, err)
		}
		createdAt := record.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO session_events (
			   session_id, sequence, event_id, severity, cutoff_applied, event_json, created_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			session.ID,
			int64(record.Sequence),
			record.Event.EventID,
			record.Event.Severity,
			record.Event.CutoffApplied,
			string(payload),
			toMillis(createdAt),
		); err != nil {
			_ = tx.Rollback()
			if isUniqueViolation(err) {
				return storage.ErrConflict
			}
			return fmt.Errorf("insert event %d: %w", record.Sequence, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append events: %w", err)
	}
	return nil
}

// ListEvents returns one page of a session's events ordered by sequence.
// The page token is the last sequence of the previous page.
func (s *Store) ListEvents(ctx context.Context, query storage.ListEventsQuery) (storage.EventPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.EventPage{}, err
	}
	if query.PageSize <= 0 {
		return storage.EventPage{}, fmt.Errorf("page size must be greater than zero")
	}
	sessionID := strings.TrimSpace(query.SessionID)
	if sessionID == "" {
		return storage.EventPage{}, fmt.Errorf("session id is required")
	}

	order, cmp := "ASC", ">"
	if query.Descending {
		order, cmp = "DESC", "<"
	}
	where := "session_id = ?"
	args := []any{sessionID}
	if token := strings.TrimSpace(query.PageToken); token != "" {
		after, err := pagination.DecodeSequenceCursor(token)
		if err != nil {
			return storage.EventPage{}, err
		}
		where += " AND sequence " + cmp + " ?"
		args = append(args, int64(after))
	}
	args = append(args, query.PageSize+1)

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT sequence, event_json, created_at
		   FROM session_events
		  WHERE `+where+`
		  ORDER BY sequence `+order+`
		  LIMIT ?`,
		args...,
	)
	if err != nil {
		return storage.EventPage{}, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	page := storage.EventPage{Events: make([]storage.EventRecord, 0, query.PageSize)}
	for rows.Next() {
		var (
			sequence  int64
			payload   string
			createdAt int64
		)
		if err := rows.Scan(&sequence, &payload, &createdAt); err != nil {
			return storage.EventPage{}, fmt.Errorf("list events: %w", err)
		}
		var event engine.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return storage.EventPage{}, fmt.Errorf("decode event %d: %w", sequence, err)
		}
		page.Events = append(page.Events, storage.EventRecord{
			SessionID: sessionID,
			Sequence:  uint64(sequence),
			Event:     event,
			CreatedAt: fromMillis(createdAt),
		})
	}
	if err := rows.Err(); err != nil {
		return storage.EventPage{}, fmt.Errorf("list events: %w", err)
	}
	if len(page.Events) > query.PageSize {
		page.Events = page.Events[:query.PageSize]
		page.NextPageToken = pagination.EncodeSequenceCursor(page.Events[query.PageSize-1].Sequence)
	}
	return page, nil
}

func updateSession(ctx context.Context, tx *sql.Tx, session storage.Session, expectedSequence uint64) error {
	cols, err := encodeSession(session)
	if err != nil {
		return err
	}
	updatedAt := session.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	result, err := tx.ExecContext(
		ctx,
		`UPDATE sessions
		    SET name = ?, sequence = ?, locale = ?,
		        scene_json = ?, selection_json = ?, state_json = ?, updated_at = ?
		  WHERE id = ? AND sequence = ?`,
		strings.TrimSpace(session.Name),
		int64(session.Sequence),
		session.Locale,
		cols.scene,
		cols.selection,
		cols.state,
		toMillis(updatedAt),
		session.ID,
		int64(expectedSequence),
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if affected == 1 {
		return nil
	}
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, session.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return storage.ErrConflict
}

type sessionColumns struct {
	scene     string
	selection string
	state     string
}

func encodeSession(session storage.Session) (sessionColumns, error) {
	sceneJSON, err := json.Marshal(session.Scene)
	if err != nil {
		return sessionColumns{}, fmt.Errorf("encode scene: %w", err)
	}
	selectionJSON, err := json.Marshal(session.Selection)
	if err != nil {
		return sessionColumns{}, fmt.Errorf("encode selection: %w", err)
	}
	stateJSON, err := state.Marshal(session.State)
	if err != nil {
		return sessionColumns{}, fmt.Errorf("encode state: %w", err)
	}
	return sessionColumns{scene: string(sceneJSON), selection: string(selectionJSON), state: string(stateJSON)}, nil
}

func (c sessionColumns) decode(session *storage.Session) error {
	var sc scene.Context
	if err := json.Unmarshal([]byte(c.scene), &sc); err != nil {
		return fmt.Errorf("decode scene: %w", err)
	}
	var sel scene.Selection
	if err := json.Unmarshal([]byte(c.selection), &sel); err != nil {
		return fmt.Errorf("decode selection: %w", err)
	}
	st, err := state.Unmarshal([]byte(c.state))
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	session.Scene = sc
	session.Selection = sel
	session.State = st
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.SessionStore = (*Store)(nil)
