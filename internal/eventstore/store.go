package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a thread/event/invocation lookup misses.
var ErrNotFound = errors.New("eventstore: not found")

// Thread is the top-level conversation container. It carries no other
// state; everything else hangs off thread_id.
type Thread struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a derived, role-scoped view of conversation content -
// what a provider would see reconstructed from events, persisted
// directly so GET /api/threads/{id}/messages doesn't need to replay
// the event log on every read.
type Message struct {
	ID              string
	ThreadID        string
	Role            string
	Content         string
	ContentBlocks   json.RawMessage
	ProviderFormat  string
	Metadata        json.RawMessage
	CreatedAt       time.Time
}

// Event is one row of the append-only conversation_events log. Position
// is monotonic per thread_id and is the sole ordering authority the
// engine and the HTTP/WS front door rely on.
type Event struct {
	ID                    string
	ThreadID              string
	MessageID             *string
	Role                  string
	Kind                  string
	Position              int64
	Content               string
	ToolCallID            *string
	VisibleToModel        bool
	MessageProviderFormat *string
	MessageContentBlocks  json.RawMessage
	CreatedAt             time.Time
}

// ToolInvocation records one tool call's full lifecycle: the assistant
// event that requested it, the event (if any) carrying its result, and
// the request/response/status/error captured along the way.
type ToolInvocation struct {
	ID               string
	ThreadID         string
	AssistantEventID string
	ResultEventID    *string
	ToolName         string
	Input            json.RawMessage
	Status           string
	Output           json.RawMessage
	Error            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Store is the Postgres-backed event store, holding a connection pool
// over the four-table schema: threads, derived messages, ordered
// conversation events, and tool invocation records.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Init creates the schema if it does not already exist.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS threads (
    id UUID PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
    id UUID PRIMARY KEY,
    thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    content_blocks JSONB,
    provider_format TEXT NOT NULL DEFAULT '',
    metadata JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS messages_thread_created_idx ON messages(thread_id, created_at);

CREATE TABLE IF NOT EXISTS conversation_events (
    id UUID PRIMARY KEY,
    thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
    message_id UUID REFERENCES messages(id) ON DELETE SET NULL,
    role TEXT NOT NULL,
    kind TEXT NOT NULL,
    position BIGINT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    tool_call_id TEXT,
    visible_to_model BOOLEAN NOT NULL DEFAULT TRUE,
    message_provider_format TEXT,
    message_content_blocks JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (thread_id, position)
);

CREATE INDEX IF NOT EXISTS conversation_events_thread_position_idx ON conversation_events(thread_id, position);

CREATE TABLE IF NOT EXISTS tool_invocations (
    id UUID PRIMARY KEY,
    thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
    assistant_event_id UUID NOT NULL REFERENCES conversation_events(id) ON DELETE CASCADE,
    result_event_id UUID REFERENCES conversation_events(id) ON DELETE SET NULL,
    tool_name TEXT NOT NULL,
    input JSONB NOT NULL,
    status TEXT NOT NULL,
    output JSONB,
    error TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS tool_invocations_thread_idx ON tool_invocations(thread_id);
`)
	return err
}

// CreateThread inserts a new thread and returns its id.
func (s *Store) CreateThread(ctx context.Context) (Thread, error) {
	id := uuid.New()
	row := s.pool.QueryRow(ctx, `
INSERT INTO threads (id) VALUES ($1)
RETURNING id, created_at, updated_at`, id)
	var t Thread
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Thread{}, fmt.Errorf("eventstore: create thread: %w", err)
	}
	return t, nil
}

// InsertMessage persists a derived message row.
func (s *Store) InsertMessage(ctx context.Context, threadID, role, content string, contentBlocks, metadata json.RawMessage, providerFormat string) (Message, error) {
	id := uuid.New()
	row := s.pool.QueryRow(ctx, `
INSERT INTO messages (id, thread_id, role, content, content_blocks, provider_format, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, thread_id, role, content, content_blocks, provider_format, metadata, created_at`,
		id, threadID, role, content, nullableJSON(contentBlocks), providerFormat, nullableJSON(metadata))
	return scanMessage(row)
}

// AppendEvent assigns the next monotonic position for thread_id and
// inserts the event inside a transaction guarded by a Postgres advisory
// lock scoped to the thread, so concurrent appends (e.g. parallel tool
// results within one turn) never race on position: appends serialize
// per thread_id and (thread_id, position) stays transactionally unique.
func (s *Store) AppendEvent(ctx context.Context, e Event) (Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Event{}, fmt.Errorf("eventstore: begin append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, e.ThreadID); err != nil {
		return Event{}, fmt.Errorf("eventstore: acquire thread lock: %w", err)
	}

	var nextPos int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(position), 0) + 1 FROM conversation_events WHERE thread_id = $1`, e.ThreadID).Scan(&nextPos); err != nil {
		return Event{}, fmt.Errorf("eventstore: compute next position: %w", err)
	}

	id := uuid.New()
	row := tx.QueryRow(ctx, `
INSERT INTO conversation_events
    (id, thread_id, message_id, role, kind, position, content, tool_call_id, visible_to_model, message_provider_format, message_content_blocks)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, thread_id, message_id, role, kind, position, content, tool_call_id, visible_to_model, message_provider_format, message_content_blocks, created_at`,
		id, e.ThreadID, e.MessageID, e.Role, e.Kind, nextPos, e.Content, e.ToolCallID, e.VisibleToModel, e.MessageProviderFormat, nullableJSON(e.MessageContentBlocks))

	out, err := scanEvent(row)
	if err != nil {
		return Event{}, fmt.Errorf("eventstore: insert event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Event{}, fmt.Errorf("eventstore: commit append: %w", err)
	}
	return out, nil
}

// ListEvents returns every event for a thread in position order.
func (s *Store) ListEvents(ctx context.Context, threadID string) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, thread_id, message_id, role, kind, position, content, tool_call_id, visible_to_model, message_provider_format, message_content_blocks, created_at
FROM conversation_events
WHERE thread_id = $1
ORDER BY position ASC`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if out == nil {
		out = make([]Event, 0)
	}
	return out, rows.Err()
}

// ListMessages returns derived messages for a thread, oldest first.
func (s *Store) ListMessages(ctx context.Context, threadID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, thread_id, role, content, content_blocks, provider_format, metadata, created_at
FROM messages
WHERE thread_id = $1
ORDER BY created_at ASC, id ASC`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if out == nil {
		out = make([]Message, 0)
	}
	return out, rows.Err()
}

// CreateToolInvocation records a tool call as soon as it is dispatched.
func (s *Store) CreateToolInvocation(ctx context.Context, threadID, assistantEventID, toolName string, input json.RawMessage) (ToolInvocation, error) {
	id := uuid.New()
	row := s.pool.QueryRow(ctx, `
INSERT INTO tool_invocations (id, thread_id, assistant_event_id, tool_name, input, status)
VALUES ($1, $2, $3, $4, $5, 'running')
RETURNING id, thread_id, assistant_event_id, result_event_id, tool_name, input, status, output, error, created_at, updated_at`,
		id, threadID, assistantEventID, toolName, input)
	return scanToolInvocation(row)
}

// CompleteToolInvocation records the terminal status/output/error and
// links the conversation event that carried the result back to the
// invocation.
func (s *Store) CompleteToolInvocation(ctx context.Context, id, resultEventID, status string, output json.RawMessage, toolErr *string) (ToolInvocation, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE tool_invocations
SET result_event_id = $2, status = $3, output = $4, error = $5, updated_at = NOW()
WHERE id = $1
RETURNING id, thread_id, assistant_event_id, result_event_id, tool_name, input, status, output, error, created_at, updated_at`,
		id, resultEventID, status, nullableJSON(output), toolErr)
	return scanToolInvocation(row)
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	if err := row.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.ContentBlocks, &m.ProviderFormat, &m.Metadata, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}
	return m, nil
}

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	if err := row.Scan(&e.ID, &e.ThreadID, &e.MessageID, &e.Role, &e.Kind, &e.Position, &e.Content, &e.ToolCallID, &e.VisibleToModel, &e.MessageProviderFormat, &e.MessageContentBlocks, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	return e, nil
}

func scanToolInvocation(row pgx.Row) (ToolInvocation, error) {
	var ti ToolInvocation
	if err := row.Scan(&ti.ID, &ti.ThreadID, &ti.AssistantEventID, &ti.ResultEventID, &ti.ToolName, &ti.Input, &ti.Status, &ti.Output, &ti.Error, &ti.CreatedAt, &ti.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ToolInvocation{}, ErrNotFound
		}
		return ToolInvocation{}, err
	}
	return ti, nil
}
