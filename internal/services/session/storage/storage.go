// Package storage defines persistence contracts for session state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/engine"
	"github.com/louisbranch/spar/internal/spar/scene"
	"github.com/louisbranch/spar/internal/spar/state"
)

var (
	// ErrNotFound indicates a requested session record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a session with the same id already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrConflict indicates the session advanced since it was read.
	ErrConflict = errors.New("record changed concurrently")
)

// Session is one persisted table session: the scene it is running, the
// selection policy, and the state carried between events.
//
// Sequence counts the events generated so far; the next event uses
// Sequence+1 to derive its random seed.
type Session struct {
	ID        string
	Name      string
	Seed      int64
	Sequence  uint64
	Generator content.GeneratorType
	Locale    string
	Scene     scene.Context
	Selection scene.Selection
	State     state.State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventRecord is one generated event in a session's history.
type EventRecord struct {
	SessionID string
	Sequence  uint64
	Event     engine.Event
	CreatedAt time.Time
}

// EventPage is one page of a session's event history.
type EventPage struct {
	Events        []EventRecord
	NextPageToken string
}

// ListEventsQuery selects a page of events. Descending lists newest first.
type ListEventsQuery struct {
	SessionID  string
	PageSize   int
	PageToken  string
	Descending bool
}

// SessionStore persists sessions and their event history.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	// UpdateSession replaces the session's mutable fields. It fails with
	// ErrConflict when the stored sequence differs from expectedSequence.
	UpdateSession(ctx context.Context, session Session, expectedSequence uint64) error
	// AppendEvents stores events and the advanced session in one
	// transaction, under the same sequence check as UpdateSession.
	AppendEvents(ctx context.Context, session Session, expectedSequence uint64, events []EventRecord) error
	ListEvents(ctx context.Context, query ListEventsQuery) (EventPage, error)
}
