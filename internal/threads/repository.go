// Package threads owns the conversation-thread lifecycle: creation, activity
// tracking, escalation, merging, closure and the append-only audit log. No
// other package writes thread status, escalation or merge fields.
package threads

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

var ErrThreadNotFound = errors.New("thread not found")

// Thread statuses. closed and merged are terminal; escalated stays operable.
const (
	StatusActive    = "active"
	StatusClosing   = "closing"
	StatusEscalated = "escalated"
	StatusClosed    = "closed"
	StatusMerged    = "merged"
)

// Audit event types recorded in conversation_events.
const (
	EventCreated        = "created"
	EventEscalated      = "escalated"
	EventAutoClosed     = "auto_closed"
	EventManuallyClosed = "manually_closed"
	EventReopened       = "reopened"
	EventMerged         = "merged"
)

// Thread is one conversation between a tenant and the virtual manager.
type Thread struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	PropertyID           uuid.UUID
	Subject              string
	Channel              string
	Status               string
	Topic                string
	Subtopic             string
	Summary              string
	IsEscalating         bool
	EscalationConfidence float64
	EscalationReasoning  string
	ClosureConfidence    float64
	ClosureFactors       json.RawMessage
	MergedFrom           []uuid.UUID
	MergedInto           *uuid.UUID
	CreatedAt            time.Time
	LastActivityAt       time.Time
	ClosedAt             *time.Time
}

// Message is one inbound tenant message with the reply that was produced.
type Message struct {
	ID                uuid.UUID
	ThreadID          uuid.UUID
	TenantID          uuid.UUID
	Channel           string
	Body              string
	Reply             string
	Actions           json.RawMessage
	Attachments       json.RawMessage
	ProviderMessageID string
	CreatedAt         time.Time
}

// ConversationEvent is one append-only audit record for a thread.
type ConversationEvent struct {
	ID        uuid.UUID
	ThreadID  uuid.UUID
	TenantID  uuid.UUID
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Relationship links two threads of the same tenant. The pair is stored
// ordered (thread_a < thread_b) so each unordered pair exists at most once.
type Relationship struct {
	ID               uuid.UUID
	ThreadA          uuid.UUID
	ThreadB          uuid.UUID
	RelationshipType string
	Confidence       float64
	CreatedAt        time.Time
}

// Repository provides data access for threads, messages, events and
// relationships.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a threads repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ store = (*Repository)(nil)

const threadColumns = `id, tenant_id, property_id, subject, channel, status, topic, subtopic, summary,
	is_escalating, escalation_confidence, escalation_reasoning,
	closure_confidence, closure_factors, merged_from, merged_into,
	created_at, last_activity_at, closed_at`

func scanThread(row pgx.Row) (Thread, error) {
	var t Thread
	err := row.Scan(
		&t.ID, &t.TenantID, &t.PropertyID, &t.Subject, &t.Channel, &t.Status,
		&t.Topic, &t.Subtopic, &t.Summary,
		&t.IsEscalating, &t.EscalationConfidence, &t.EscalationReasoning,
		&t.ClosureConfidence, &t.ClosureFactors, &t.MergedFrom, &t.MergedInto,
		&t.CreatedAt, &t.LastActivityAt, &t.ClosedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Thread{}, ErrThreadNotFound
	}
	return t, err
}

// CreateThread inserts a new active thread and its created event.
func (r *Repository) CreateThread(ctx context.Context, tenantID, propertyID uuid.UUID, subject, channel string) (Thread, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Thread{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	thread, err := scanThread(tx.QueryRow(ctx, `
		INSERT INTO conversation_threads (tenant_id, property_id, subject, channel)
		VALUES ($1, $2, $3, $4)
		RETURNING `+threadColumns+`
	`, tenantID, propertyID, subject, channel))
	if err != nil {
		return Thread{}, err
	}

	if err := insertEvent(ctx, tx, thread.ID, tenantID, EventCreated, map[string]any{"channel": channel}); err != nil {
		return Thread{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Thread{}, err
	}
	return thread, nil
}

// GetThread retrieves a thread by id.
func (r *Repository) GetThread(ctx context.Context, id uuid.UUID) (Thread, error) {
	return scanThread(r.pool.QueryRow(ctx, `
		SELECT `+threadColumns+` FROM conversation_threads WHERE id = $1
	`, id))
}

// FindOpenThread returns the tenant's most recently active non-terminal
// thread on the given channel, or ErrThreadNotFound.
func (r *Repository) FindOpenThread(ctx context.Context, tenantID uuid.UUID, channel string) (Thread, error) {
	return scanThread(r.pool.QueryRow(ctx, `
		SELECT `+threadColumns+` FROM conversation_threads
		WHERE tenant_id = $1 AND channel = $2 AND status IN ($3, $4, $5)
		ORDER BY last_activity_at DESC
		LIMIT 1
	`, tenantID, channel, StatusActive, StatusClosing, StatusEscalated))
}

// ListThreadsByTenant returns all threads for a tenant, newest activity first.
func (r *Repository) ListThreadsByTenant(ctx context.Context, tenantID uuid.UUID) ([]Thread, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+threadColumns+` FROM conversation_threads
		WHERE tenant_id = $1
		ORDER BY last_activity_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectThreads(rows)
}

// AppendMessage inserts the message and updates the thread's activity in one
// transaction. A thread in closing returns to active because the tenant is
// clearly still engaged.
func (r *Repository) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Message{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `
		INSERT INTO messages (thread_id, tenant_id, channel, body, reply, actions, attachments, provider_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, msg.ThreadID, msg.TenantID, msg.Channel, msg.Body, msg.Reply, msg.Actions, msg.Attachments, msg.ProviderMessageID).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversation_threads
		SET last_activity_at = now(),
		    status = CASE WHEN status = $2 THEN $3 ELSE status END
		WHERE id = $1
	`, msg.ThreadID, StatusClosing, StatusActive)
	if err != nil {
		return Message{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// RecentMessages returns the last limit messages of a thread in
// chronological order.
func (r *Repository) RecentMessages(ctx context.Context, threadID uuid.UUID, limit int) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, thread_id, tenant_id, channel, body, reply, actions, attachments, provider_message_id, created_at
		FROM (
			SELECT id, thread_id, tenant_id, channel, body, reply, actions, attachments, provider_message_id, created_at
			FROM messages
			WHERE thread_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, threadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		err := rows.Scan(
			&m.ID, &m.ThreadID, &m.TenantID, &m.Channel, &m.Body, &m.Reply,
			&m.Actions, &m.Attachments, &m.ProviderMessageID, &m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordEscalation stores the assessment and, when escalate is set, flips an
// active thread to escalated with an audit event. Confidence and reasoning
// are stored regardless so low-confidence signals remain visible.
func (r *Repository) RecordEscalation(ctx context.Context, threadID, tenantID uuid.UUID, isEscalating bool, confidence float64, reasoning string, escalate bool) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		UPDATE conversation_threads
		SET is_escalating = $2, escalation_confidence = $3, escalation_reasoning = $4
		WHERE id = $1
	`, threadID, isEscalating, confidence, reasoning)
	if err != nil {
		return false, err
	}

	escalated := false
	if escalate {
		tag, err := tx.Exec(ctx, `
			UPDATE conversation_threads SET status = $2 WHERE id = $1 AND status = $3
		`, threadID, StatusEscalated, StatusActive)
		if err != nil {
			return false, err
		}
		escalated = tag.RowsAffected() == 1
		if escalated {
			payload := map[string]any{"confidence": confidence, "reasoning": reasoning}
			if err := insertEvent(ctx, tx, threadID, tenantID, EventEscalated, payload); err != nil {
				return false, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return escalated, nil
}

// ListSweepCandidates returns active or closing threads of a property whose
// last activity is older than the cutoff. The status filter is what makes the
// sweep idempotent.
func (r *Repository) ListSweepCandidates(ctx context.Context, propertyID uuid.UUID, cutoff time.Time) ([]Thread, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+threadColumns+` FROM conversation_threads
		WHERE property_id = $1 AND status IN ($2, $3) AND last_activity_at < $4
	`, propertyID, StatusActive, StatusClosing, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectThreads(rows)
}

// AutoClose closes an inactive thread, recording the closure factors and the
// auto_closed event. Returns false when the thread was no longer in a
// closeable state, which makes re-runs harmless.
func (r *Repository) AutoClose(ctx context.Context, threadID, tenantID uuid.UUID, confidence float64, factors map[string]any) (bool, error) {
	factorsJSON, err := json.Marshal(factors)
	if err != nil {
		return false, fmt.Errorf("marshal closure factors: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE conversation_threads
		SET status = $2, closure_confidence = $3, closure_factors = $4, closed_at = now()
		WHERE id = $1 AND status IN ($5, $6)
	`, threadID, StatusClosed, confidence, factorsJSON, StatusActive, StatusClosing)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if err := insertEvent(ctx, tx, threadID, tenantID, EventAutoClosed, factors); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ManualClose closes a thread with an explicit reason and full closure
// confidence.
func (r *Repository) ManualClose(ctx context.Context, threadID, tenantID uuid.UUID, reason string) (Thread, error) {
	factors, err := json.Marshal(map[string]any{"reason": reason, "manual": true})
	if err != nil {
		return Thread{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Thread{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	thread, err := scanThread(tx.QueryRow(ctx, `
		UPDATE conversation_threads
		SET status = $2, closure_confidence = 1.0, closure_factors = $3, closed_at = now()
		WHERE id = $1
		RETURNING `+threadColumns+`
	`, threadID, StatusClosed, factors))
	if err != nil {
		return Thread{}, err
	}

	if err := insertEvent(ctx, tx, threadID, tenantID, EventManuallyClosed, map[string]any{"reason": reason}); err != nil {
		return Thread{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Thread{}, err
	}
	return thread, nil
}

// Reopen returns a closed or closing thread to active and resets its closure
// fields.
func (r *Repository) Reopen(ctx context.Context, threadID, tenantID uuid.UUID) (Thread, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Thread{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	thread, err := scanThread(tx.QueryRow(ctx, `
		UPDATE conversation_threads
		SET status = $2, closure_confidence = 0, closure_factors = NULL, closed_at = NULL, last_activity_at = now()
		WHERE id = $1
		RETURNING `+threadColumns+`
	`, threadID, StatusActive))
	if err != nil {
		return Thread{}, err
	}

	if err := insertEvent(ctx, tx, threadID, tenantID, EventReopened, nil); err != nil {
		return Thread{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Thread{}, err
	}
	return thread, nil
}

// Merge absorbs the source thread into the target: messages move to the
// target, the source becomes terminal with its lineage pointer set, and the
// target records where its extra messages came from. Returns the number of
// messages moved.
func (r *Repository) Merge(ctx context.Context, sourceID, targetID, tenantID uuid.UUID) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		UPDATE messages SET thread_id = $2 WHERE thread_id = $1
	`, sourceID, targetID)
	if err != nil {
		return 0, err
	}
	moved := int(tag.RowsAffected())

	_, err = tx.Exec(ctx, `
		UPDATE conversation_threads
		SET status = $2, merged_into = $3, closed_at = now()
		WHERE id = $1
	`, sourceID, StatusMerged, targetID)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversation_threads
		SET merged_from = array_append(merged_from, $2),
		    last_activity_at = GREATEST(
		        last_activity_at,
		        COALESCE((SELECT MAX(created_at) FROM messages WHERE thread_id = $1), last_activity_at)
		    )
		WHERE id = $1
	`, targetID, sourceID)
	if err != nil {
		return 0, err
	}

	payload := map[string]any{"sourceThreadId": sourceID, "messagesMoved": moved}
	if err := insertEvent(ctx, tx, targetID, tenantID, EventMerged, payload); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return moved, nil
}

// UpdateCategorization writes the topic labels onto the thread.
func (r *Repository) UpdateCategorization(ctx context.Context, threadID uuid.UUID, topic, subtopic string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversation_threads SET topic = $2, subtopic = $3 WHERE id = $1
	`, threadID, topic, subtopic)
	return err
}

// UpdateSummary writes the summary onto the thread.
func (r *Repository) UpdateSummary(ctx context.Context, threadID uuid.UUID, summary string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversation_threads SET summary = $2 WHERE id = $1
	`, threadID, summary)
	return err
}

// ListEvents returns the audit log of a thread in order.
func (r *Repository) ListEvents(ctx context.Context, threadID uuid.UUID) ([]ConversationEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, thread_id, tenant_id, event_type, payload, created_at
		FROM conversation_events
		WHERE thread_id = $1
		ORDER BY created_at ASC
	`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConversationEvent
	for rows.Next() {
		var e ConversationEvent
		if err := rows.Scan(&e.ID, &e.ThreadID, &e.TenantID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListRecentThreads returns the tenant's other threads created within the
// window, for relationship discovery.
func (r *Repository) ListRecentThreads(ctx context.Context, tenantID, excludeID uuid.UUID, since time.Time) ([]Thread, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+threadColumns+` FROM conversation_threads
		WHERE tenant_id = $1 AND id <> $2 AND created_at >= $3
	`, tenantID, excludeID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectThreads(rows)
}

// RelationshipExists reports whether the unordered pair is already linked.
func (r *Repository) RelationshipExists(ctx context.Context, a, b uuid.UUID) (bool, error) {
	first, second := orderPair(a, b)
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM thread_relationships WHERE thread_a = $1 AND thread_b = $2
		)
	`, first, second).Scan(&exists)
	return exists, err
}

// CreateRelationship links two threads. The pair is normalized so the
// ordering constraint holds regardless of argument order.
func (r *Repository) CreateRelationship(ctx context.Context, a, b uuid.UUID, relationshipType string, confidence float64) (Relationship, error) {
	first, second := orderPair(a, b)
	var rel Relationship
	err := r.pool.QueryRow(ctx, `
		INSERT INTO thread_relationships (thread_a, thread_b, relationship_type, confidence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT thread_relationships_pair DO UPDATE SET confidence = thread_relationships.confidence
		RETURNING id, thread_a, thread_b, relationship_type, confidence, created_at
	`, first, second, relationshipType, confidence).
		Scan(&rel.ID, &rel.ThreadA, &rel.ThreadB, &rel.RelationshipType, &rel.Confidence, &rel.CreatedAt)
	return rel, err
}

// ListRelationships returns every relationship touching the thread.
func (r *Repository) ListRelationships(ctx context.Context, threadID uuid.UUID) ([]Relationship, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, thread_a, thread_b, relationship_type, confidence, created_at
		FROM thread_relationships
		WHERE thread_a = $1 OR thread_b = $1
		ORDER BY created_at DESC
	`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Relationship
	for rows.Next() {
		var rel Relationship
		if err := rows.Scan(&rel.ID, &rel.ThreadA, &rel.ThreadB, &rel.RelationshipType, &rel.Confidence, &rel.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func insertEvent(ctx context.Context, tx pgx.Tx, threadID, tenantID uuid.UUID, eventType string, payload map[string]any) error {
	payloadJSON := []byte(`{}`)
	if payload != nil {
		var err error
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO conversation_events (thread_id, tenant_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`, threadID, tenantID, eventType, payloadJSON)
	return err
}

// orderPair returns the two ids with the smaller one first, matching the
// ordering constraint on thread_relationships.
func orderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}

func collectThreads(rows pgx.Rows) ([]Thread, error) {
	var out []Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
