// Package session runs persistent complication sessions: it owns the state
// between events and replays deterministically from the session seed.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
	"github.com/louisbranch/spar/internal/platform/otel"
	"github.com/louisbranch/spar/internal/services/session/storage"
	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/engine"
	"github.com/louisbranch/spar/internal/spar/random"
	"github.com/louisbranch/spar/internal/spar/scene"
	"github.com/louisbranch/spar/internal/spar/state"
)

const tracerName = "github.com/louisbranch/spar/internal/services/session"

// MaxEventsPerCall bounds one Generate request.
const MaxEventsPerCall = 50

// CreateRequest describes a new session.
type CreateRequest struct {
	Name      string
	Seed      *int64
	Generator content.GeneratorType
	Locale    string
	Scene     scene.Context
	Selection scene.Selection
	State     *state.State
}

// GenerateRequest asks for one or more events in a session.
type GenerateRequest struct {
	SessionID string
	// Count defaults to 1.
	Count int
	// TicksBefore advances the state before the first event.
	TicksBefore int
	// TicksBetween is floored at engine.DefaultMinTicksBetween.
	TicksBetween int
	// Scene replaces the session scene when set, so a table can move
	// through phases without recreating the session.
	Scene        *scene.Context
	ForceEventID string
}

// GenerateResult is the session after generation and the new events.
type GenerateResult struct {
	Session storage.Session
	Events  []storage.EventRecord
}

// Service coordinates session storage and the engine. Calls on the same
// session are serialized; different sessions proceed in parallel.
type Service struct {
	store   storage.SessionStore
	content *content.Store
	limits  state.Limits
	clock   func() time.Time
	newID   func() string
	newSeed func() (int64, error)
	tracer  trace.Tracer

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock serializes calls on one session. refs counts holders and
// waiters; the entry is removed when it drops to zero.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService creates a session service backed by store and the packs in
// catalog.
func NewService(store storage.SessionStore, catalog *content.Store) *Service {
	return &Service{
		store:   store,
		content: catalog,
		limits:  state.DefaultLimits(),
		clock:   time.Now,
		newID:   uuid.NewString,
		newSeed: random.NewSeed,
		tracer:  otel.Tracer(tracerName),
		locks:   map[string]*sessionLock{},
	}
}

func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.store == nil || s.content == nil {
		return fmt.Errorf("session service is not configured")
	}
	return nil
}

// Create validates and stores a new session.
func (s *Service) Create(ctx context.Context, req CreateRequest) (storage.Session, error) {
	if err := s.ready(); err != nil {
		return storage.Session{}, err
	}
	ctx, span := s.tracer.Start(ctx, "session.Create")
	defer span.End()

	generator, err := content.ParseGeneratorType(string(req.Generator))
	if err != nil {
		return storage.Session{}, fail(span, err)
	}
	sc := req.Scene
	sc.Constraints = sc.Constraints.Clamped()
	if err := sc.Validate(); err != nil {
		return storage.Session{}, fail(span, apperrors.Wrap(apperrors.CodeInvalidScene, "invalid scene", err))
	}
	if err := s.validateSelection(req.Selection); err != nil {
		return storage.Session{}, fail(span, err)
	}

	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	} else {
		generated, err := s.newSeed()
		if err != nil {
			return storage.Session{}, fail(span, fmt.Errorf("generate seed: %w", err))
		}
		seed = generated
	}
	st := state.Default()
	if req.State != nil {
		st = req.State.Clone()
	}

	now := s.now()
	session := storage.Session{
		ID:        s.newID(),
		Name:      strings.TrimSpace(req.Name),
		Seed:      seed,
		Generator: generator,
		Locale:    strings.TrimSpace(req.Locale),
		Scene:     sc,
		Selection: req.Selection,
		State:     st,
		CreatedAt: now,
		UpdatedAt: now,
	}
	span.SetAttributes(attribute.String("session.id", session.ID))
	if err := s.store.CreateSession(ctx, session); err != nil {
		return storage.Session{}, fail(span, fmt.Errorf("create session: %w", err))
	}
	log.Printf("session %s created (generator=%s seed=%d)", session.ID, generator, seed)
	return session, nil
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, id string) (storage.Session, error) {
	if err := s.ready(); err != nil {
		return storage.Session{}, err
	}
	return s.get(ctx, id)
}

func (s *Service) get(ctx context.Context, id string) (storage.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Session{}, apperrors.New(apperrors.CodeSessionIDEmpty, "session id is required")
	}
	session, err := s.store.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Session{}, apperrors.WithMetadata(apperrors.CodeSessionNotFound, "session not found", map[string]string{
			"session_id": id,
		})
	}
	if err != nil {
		return storage.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Generate produces events for a session and persists them together with
// the resulting state.
//
// # Determinism
//
// Event n of a session draws from a source seeded with
// random.Derive(session seed, n), so the same session replays the same
// events given the same scene, selection and packs.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if err := s.ready(); err != nil {
		return GenerateResult{}, err
	}
	ctx, span := s.tracer.Start(ctx, "session.Generate", trace.WithAttributes(
		attribute.String("session.id", req.SessionID),
	))
	defer span.End()

	count := req.Count
	if count == 0 {
		count = 1
	}
	if count < 0 || count > MaxEventsPerCall {
		return GenerateResult{}, fail(span, apperrors.WithMetadata(apperrors.CodeInvalidSelection, "event count out of range", map[string]string{
			"count": fmt.Sprint(req.Count),
			"max":   fmt.Sprint(MaxEventsPerCall),
		}))
	}

	unlock := s.lock(req.SessionID)
	defer unlock()

	session, err := s.get(ctx, req.SessionID)
	if err != nil {
		return GenerateResult{}, fail(span, err)
	}
	if req.Scene != nil {
		session.Scene = *req.Scene
		session.Scene.Constraints = session.Scene.Constraints.Clamped()
	}
	expected := session.Sequence
	current := state.Tick(session.State, req.TicksBefore)
	between := engine.BatchOptions{TicksBetween: req.TicksBetween}.Ticks()
	entries := s.content.EntriesOfType(session.Generator, session.Selection.EnabledPacks...)

	now := s.now()
	records := make([]storage.EventRecord, 0, count)
	for i := 0; i < count; i++ {
		if i > 0 {
			current = state.Tick(current, between)
		}
		sequence := session.Sequence + 1
		rng := random.New(random.Derive(session.Seed, sequence))
		event, err := engine.Generate(engine.Input{
			Scene:        session.Scene,
			State:        current,
			Selection:    session.Selection,
			Entries:      entries,
			Profile:      engine.ProfileFor(session.Generator),
			ForceEventID: req.ForceEventID,
			Locale:       session.Locale,
		}, rng)
		if err != nil {
			return GenerateResult{}, fail(span, err)
		}
		current = state.ApplyDelta(current, event.StateDelta, s.limits)
		session.Sequence = sequence
		records = append(records, storage.EventRecord{
			SessionID: session.ID,
			Sequence:  sequence,
			Event:     event,
			CreatedAt: now,
		})
	}
	session.State = current
	session.UpdatedAt = now

	if err := s.store.AppendEvents(ctx, session, expected, records); err != nil {
		return GenerateResult{}, fail(span, fmt.Errorf("append events: %w", err))
	}
	span.SetAttributes(
		attribute.Int("session.events", len(records)),
		attribute.Int64("session.sequence", int64(session.Sequence)),
	)
	return GenerateResult{Session: session, Events: records}, nil
}

// Tick advances a session's state by n turns without generating.
func (s *Service) Tick(ctx context.Context, id string, n int) (storage.Session, error) {
	if err := s.ready(); err != nil {
		return storage.Session{}, err
	}
	ctx, span := s.tracer.Start(ctx, "session.Tick", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.Int("session.ticks", n),
	))
	defer span.End()

	unlock := s.lock(id)
	defer unlock()

	session, err := s.get(ctx, id)
	if err != nil {
		return storage.Session{}, fail(span, err)
	}
	session.State = state.Tick(session.State, n)
	session.UpdatedAt = s.now()
	if err := s.store.UpdateSession(ctx, session, session.Sequence); err != nil {
		return storage.Session{}, fail(span, fmt.Errorf("tick session: %w", err))
	}
	return session, nil
}

// ListEvents returns one page of a session's history.
func (s *Service) ListEvents(ctx context.Context, query storage.ListEventsQuery) (storage.EventPage, error) {
	if err := s.ready(); err != nil {
		return storage.EventPage{}, err
	}
	if _, err := s.get(ctx, query.SessionID); err != nil {
		return storage.EventPage{}, err
	}
	page, err := s.store.ListEvents(ctx, query)
	if err != nil {
		return storage.EventPage{}, fmt.Errorf("list events: %w", err)
	}
	return page, nil
}

// Packs returns the metadata of every loaded pack.
func (s *Service) Packs() []content.Metadata {
	if s == nil || s.content == nil {
		return nil
	}
	return s.content.Packs()
}

func (s *Service) validateSelection(sel scene.Selection) error {
	if err := sel.Validate(); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidSelection, "invalid selection", err)
	}
	known := map[string]bool{}
	for _, p := range s.content.Packs() {
		known[p.Name] = true
	}
	for _, name := range sel.EnabledPacks {
		if !known[name] {
			return apperrors.WithMetadata(apperrors.CodeInvalidSelection, "unknown pack", map[string]string{
				"pack": name,
			})
		}
	}
	return nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	return err
}
