package sessions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/louisbranch/spar/internal/services/session/storage"
	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/engine"
	"github.com/louisbranch/spar/internal/spar/scene"
	"github.com/louisbranch/spar/internal/spar/state"
)

// Messages travel as google.protobuf.Struct. These types fix their shape.
// 64-bit seeds are strings so they survive the Struct number encoding.

// CreateSessionRequest creates a session.
type CreateSessionRequest struct {
	Name          string          `json:"name,omitempty"`
	Seed          string          `json:"seed,omitempty"`
	GeneratorType string          `json:"generator_type,omitempty"`
	Locale        string          `json:"locale,omitempty"`
	Scene         scene.Context   `json:"scene"`
	Selection     scene.Selection `json:"selection"`
	State         *state.State    `json:"state,omitempty"`
}

// GetSessionRequest reads a session.
type GetSessionRequest struct {
	SessionID string `json:"session_id"`
}

// GenerateRequest generates events in a session.
type GenerateRequest struct {
	SessionID    string         `json:"session_id"`
	Count        int            `json:"count,omitempty"`
	TicksBefore  int            `json:"ticks_before,omitempty"`
	TicksBetween int            `json:"ticks_between,omitempty"`
	Scene        *scene.Context `json:"scene,omitempty"`
	ForceEventID string         `json:"force_event_id,omitempty"`
}

// TickRequest advances a session's state.
type TickRequest struct {
	SessionID string `json:"session_id"`
	Ticks     int    `json:"ticks"`
}

// ListEventsRequest pages through a session's history.
type ListEventsRequest struct {
	SessionID string `json:"session_id"`
	PageSize  int    `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
	OrderBy   string `json:"order_by,omitempty"`
}

// Session is the wire view of a session.
type Session struct {
	SessionID     string          `json:"session_id"`
	Name          string          `json:"name,omitempty"`
	Seed          string          `json:"seed"`
	Sequence      uint64          `json:"sequence"`
	GeneratorType string          `json:"generator_type"`
	Locale        string          `json:"locale,omitempty"`
	Scene         scene.Context   `json:"scene"`
	Selection     scene.Selection `json:"selection"`
	State         state.State     `json:"state"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

// EventRecord is the wire view of one stored event.
type EventRecord struct {
	Sequence  uint64       `json:"sequence"`
	Event     engine.Event `json:"event"`
	CreatedAt string       `json:"created_at"`
}

// SessionResponse carries one session.
type SessionResponse struct {
	Session Session `json:"session"`
}

// GenerateResponse carries the advanced session and new events.
type GenerateResponse struct {
	Session Session       `json:"session"`
	Events  []EventRecord `json:"events"`
}

// ListEventsResponse carries one page of events.
type ListEventsResponse struct {
	Events        []EventRecord `json:"events"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

func sessionToWire(s storage.Session) Session {
	return Session{
		SessionID:     s.ID,
		Name:          s.Name,
		Seed:          strconv.FormatInt(s.Seed, 10),
		Sequence:      s.Sequence,
		GeneratorType: string(s.Generator),
		Locale:        s.Locale,
		Scene:         s.Scene,
		Selection:     s.Selection,
		State:         s.State,
		CreatedAt:     s.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:     s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func eventsToWire(records []storage.EventRecord) []EventRecord {
	out := make([]EventRecord, 0, len(records))
	for _, r := range records {
		out = append(out, EventRecord{
			Sequence:  r.Sequence,
			Event:     r.Event,
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

func parseSeed(value string) (*int64, error) {
	if value == "" {
		return nil, nil
	}
	seed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("seed %q is not an integer", value)
	}
	return &seed, nil
}

func parseGenerator(value string) content.GeneratorType {
	return content.GeneratorType(value)
}

// encode converts a message value to a Struct.
func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return out, nil
}

// decode converts a Struct into a message value. A nil Struct decodes as
// the zero message.
func decode(in *structpb.Struct, v any) error {
	if in == nil {
		return nil
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
