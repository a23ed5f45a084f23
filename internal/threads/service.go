package threads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rental_portal_backend/internal/assistant"
	"rental_portal_backend/internal/directory"
	"rental_portal_backend/internal/events"
	"rental_portal_backend/internal/notify"
	"rental_portal_backend/platform/apperr"
	"rental_portal_backend/platform/logger"
)

// EscalationThreshold is the assessment confidence at or above which an
// active thread becomes escalated.
const EscalationThreshold = 0.7

// relationshipWindow bounds how far back relationship discovery looks for
// candidate threads.
const relationshipWindow = 90 * 24 * time.Hour

// relationshipThreshold is the similarity confidence needed to persist a
// relationship.
const relationshipThreshold = 0.7

// escalationMessageWindow is how many recent messages the escalation
// assessment sees.
const escalationMessageWindow = 10

// analyzer is the slice of the assistant the lifecycle manager uses.
type analyzer interface {
	AssessEscalation(ctx context.Context, messages []string) (assistant.EscalationAssessment, error)
	Categorize(ctx context.Context, messages []string) (assistant.Categorization, error)
	Summarize(ctx context.Context, messages []string) (string, error)
	ScoreSimilarity(ctx context.Context, a, b string) (assistant.SimilarityScore, error)
}

// notifier dispatches owner notifications.
type notifier interface {
	Dispatch(ctx context.Context, req notify.Request) (notify.Notification, error)
}

// propertyReader resolves property context for notifications.
type propertyReader interface {
	GetProperty(ctx context.Context, id uuid.UUID) (directory.Property, error)
	GetTenant(ctx context.Context, id uuid.UUID) (directory.Tenant, error)
}

// store is the persistence surface of the lifecycle manager, satisfied by
// *Repository.
type store interface {
	CreateThread(ctx context.Context, tenantID, propertyID uuid.UUID, subject, channel string) (Thread, error)
	GetThread(ctx context.Context, id uuid.UUID) (Thread, error)
	FindOpenThread(ctx context.Context, tenantID uuid.UUID, channel string) (Thread, error)
	ListThreadsByTenant(ctx context.Context, tenantID uuid.UUID) ([]Thread, error)
	AppendMessage(ctx context.Context, msg Message) (Message, error)
	RecentMessages(ctx context.Context, threadID uuid.UUID, limit int) ([]Message, error)
	RecordEscalation(ctx context.Context, threadID, tenantID uuid.UUID, isEscalating bool, confidence float64, reasoning string, escalate bool) (bool, error)
	ListSweepCandidates(ctx context.Context, propertyID uuid.UUID, cutoff time.Time) ([]Thread, error)
	AutoClose(ctx context.Context, threadID, tenantID uuid.UUID, confidence float64, factors map[string]any) (bool, error)
	ManualClose(ctx context.Context, threadID, tenantID uuid.UUID, reason string) (Thread, error)
	Reopen(ctx context.Context, threadID, tenantID uuid.UUID) (Thread, error)
	Merge(ctx context.Context, sourceID, targetID, tenantID uuid.UUID) (int, error)
	UpdateCategorization(ctx context.Context, threadID uuid.UUID, topic, subtopic string) error
	UpdateSummary(ctx context.Context, threadID uuid.UUID, summary string) error
	ListEvents(ctx context.Context, threadID uuid.UUID) ([]ConversationEvent, error)
	ListRecentThreads(ctx context.Context, tenantID, excludeID uuid.UUID, since time.Time) ([]Thread, error)
	RelationshipExists(ctx context.Context, a, b uuid.UUID) (bool, error)
	CreateRelationship(ctx context.Context, a, b uuid.UUID, relationshipType string, confidence float64) (Relationship, error)
	ListRelationships(ctx context.Context, threadID uuid.UUID) ([]Relationship, error)
}

// Service is the Thread Lifecycle Manager.
type Service struct {
	repo      store
	analyzer  analyzer
	notifier  notifier
	directory propertyReader
	bus       events.Bus
	log       *logger.Logger
}

// NewService wires the lifecycle manager. analyzer may be nil when no
// assistant is configured; analysis operations then degrade to no-ops.
func NewService(repo store, an analyzer, no notifier, dir propertyReader, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, analyzer: an, notifier: no, directory: dir, bus: bus, log: log}
}

// SetAnalyzer injects the assistant after construction. The composition root
// calls it only when an assistant is configured.
func (s *Service) SetAnalyzer(an analyzer) { s.analyzer = an }

// Get returns a thread.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Thread, error) {
	thread, err := s.repo.GetThread(ctx, id)
	if errors.Is(err, ErrThreadNotFound) {
		return Thread{}, apperr.NotFound("thread not found")
	}
	return thread, err
}

// ListByTenant returns a tenant's threads.
func (s *Service) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Thread, error) {
	return s.repo.ListThreadsByTenant(ctx, tenantID)
}

// EnsureThread returns the tenant's open thread on the given channel,
// creating a new active one when none exists. Threads are keyed per channel,
// so an emailing tenant with an open SMS thread still gets a fresh email
// thread. The second return reports whether a thread was created.
func (s *Service) EnsureThread(ctx context.Context, tenantID, propertyID uuid.UUID, subject, channel string) (Thread, bool, error) {
	thread, err := s.repo.FindOpenThread(ctx, tenantID, channel)
	if err == nil {
		return thread, false, nil
	}
	if !errors.Is(err, ErrThreadNotFound) {
		return Thread{}, false, err
	}

	thread, err = s.repo.CreateThread(ctx, tenantID, propertyID, subject, channel)
	if err != nil {
		return Thread{}, false, fmt.Errorf("create thread: %w", err)
	}
	return thread, true, nil
}

// AppendMessage persists an inbound message and touches the thread's
// activity atomically.
func (s *Service) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	return s.repo.AppendMessage(ctx, msg)
}

// RecentMessages returns the last limit messages in chronological order.
func (s *Service) RecentMessages(ctx context.Context, threadID uuid.UUID, limit int) ([]Message, error) {
	return s.repo.RecentMessages(ctx, threadID, limit)
}

// Events returns the thread's audit log.
func (s *Service) Events(ctx context.Context, threadID uuid.UUID) ([]ConversationEvent, error) {
	return s.repo.ListEvents(ctx, threadID)
}

// CheckEscalation assesses the thread's recent messages and escalates it when
// the confidence reaches the threshold. The assessment is stored either way.
// Assistant failures degrade to "not escalating" so the message path never
// blocks on a stuck model call.
func (s *Service) CheckEscalation(ctx context.Context, threadID uuid.UUID) (assistant.EscalationAssessment, error) {
	if s.analyzer == nil {
		return assistant.EscalationAssessment{}, nil
	}

	thread, err := s.Get(ctx, threadID)
	if err != nil {
		return assistant.EscalationAssessment{}, err
	}
	if thread.Status != StatusActive {
		return assistant.EscalationAssessment{
			IsEscalating: thread.IsEscalating,
			Confidence:   thread.EscalationConfidence,
			Reasoning:    thread.EscalationReasoning,
		}, nil
	}

	messages, err := s.repo.RecentMessages(ctx, threadID, escalationMessageWindow)
	if err != nil {
		return assistant.EscalationAssessment{}, err
	}
	if len(messages) == 0 {
		return assistant.EscalationAssessment{}, nil
	}

	assessment, err := s.analyzer.AssessEscalation(ctx, messageBodies(messages))
	if err != nil {
		s.log.Warn("escalation assessment unavailable", "threadId", threadID, "error", err)
		return assistant.EscalationAssessment{}, nil
	}

	escalate := assessment.IsEscalating && assessment.Confidence >= EscalationThreshold
	escalated, err := s.repo.RecordEscalation(ctx, threadID, thread.TenantID, assessment.IsEscalating, assessment.Confidence, assessment.Reasoning, escalate)
	if err != nil {
		return assessment, fmt.Errorf("record escalation: %w", err)
	}

	if escalated {
		s.notifyEscalation(ctx, thread, assessment)
		if s.bus != nil {
			s.bus.Publish(ctx, events.ThreadEscalated{
				BaseEvent:  events.NewBaseEvent(),
				ThreadID:   threadID,
				TenantID:   thread.TenantID,
				Confidence: assessment.Confidence,
				Reasoning:  assessment.Reasoning,
			})
		}
	}
	return assessment, nil
}

func (s *Service) notifyEscalation(ctx context.Context, thread Thread, assessment assistant.EscalationAssessment) {
	if s.notifier == nil || s.directory == nil {
		return
	}

	property, err := s.directory.GetProperty(ctx, thread.PropertyID)
	if err != nil {
		s.log.Error("escalation notification skipped: property lookup failed", "threadId", thread.ID, "error", err)
		return
	}
	tenantName := ""
	if tenant, err := s.directory.GetTenant(ctx, thread.TenantID); err == nil {
		tenantName = tenant.FullName()
	}

	if _, err := s.notifier.Dispatch(ctx, notify.Request{
		Kind:            notify.KindEscalation,
		OwnerName:       property.OwnerName,
		OwnerPhone:      property.OwnerPhone,
		OwnerEmail:      property.OwnerEmail,
		PropertyAddress: property.Address,
		TenantName:      tenantName,
		Message:         assessment.Reasoning,
		Priority:        notify.PriorityUrgent,
	}); err != nil {
		s.log.Error("escalation notification failed", "threadId", thread.ID, "error", err)
	}
}

// Close closes a thread manually with an explicit reason.
func (s *Service) Close(ctx context.Context, threadID uuid.UUID, reason string) (Thread, error) {
	thread, err := s.Get(ctx, threadID)
	if err != nil {
		return Thread{}, err
	}
	if !canClose(thread.Status) {
		return Thread{}, apperr.Conflict("thread is " + thread.Status + " and cannot be closed")
	}
	return s.repo.ManualClose(ctx, threadID, thread.TenantID, reason)
}

// Reopen returns a closed or closing thread to active. Reopening an active
// thread is an invalid-state error, and merged threads stay merged.
func (s *Service) Reopen(ctx context.Context, threadID uuid.UUID) (Thread, error) {
	thread, err := s.Get(ctx, threadID)
	if err != nil {
		return Thread{}, err
	}
	if !canReopen(thread.Status) {
		return Thread{}, apperr.Conflict("thread is " + thread.Status + " and cannot be reopened")
	}
	return s.repo.Reopen(ctx, threadID, thread.TenantID)
}

// Merge absorbs the source thread into the target. Both must belong to the
// same tenant and be in a non-terminal state; a second merge attempt on an
// already-merged source fails on the status check.
func (s *Service) Merge(ctx context.Context, sourceID, targetID uuid.UUID) (int, error) {
	if sourceID == targetID {
		return 0, apperr.Validation("cannot merge a thread into itself")
	}

	source, err := s.Get(ctx, sourceID)
	if err != nil {
		return 0, err
	}
	target, err := s.Get(ctx, targetID)
	if err != nil {
		return 0, err
	}

	if source.TenantID != target.TenantID {
		return 0, apperr.Validation("threads belong to different tenants")
	}
	if !canMerge(source.Status) {
		return 0, apperr.Conflict("source thread is " + source.Status + " and cannot be merged")
	}
	if !canMerge(target.Status) {
		return 0, apperr.Conflict("target thread is " + target.Status + " and cannot absorb a merge")
	}

	moved, err := s.repo.Merge(ctx, sourceID, targetID, source.TenantID)
	if err != nil {
		return 0, fmt.Errorf("merge threads: %w", err)
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.ThreadsMerged{
			BaseEvent:     events.NewBaseEvent(),
			TargetID:      targetID,
			SourceID:      sourceID,
			TenantID:      source.TenantID,
			MessagesMoved: moved,
		})
	}
	return moved, nil
}

// Categorize labels the thread from its messages. It never changes status.
func (s *Service) Categorize(ctx context.Context, threadID uuid.UUID) (assistant.Categorization, error) {
	if s.analyzer == nil {
		return assistant.Categorization{}, nil
	}

	messages, err := s.repo.RecentMessages(ctx, threadID, escalationMessageWindow)
	if err != nil {
		return assistant.Categorization{}, err
	}
	if len(messages) == 0 {
		return assistant.Categorization{}, nil
	}

	categorization, err := s.analyzer.Categorize(ctx, messageBodies(messages))
	if err != nil {
		s.log.Warn("categorization unavailable", "threadId", threadID, "error", err)
		return assistant.Categorization{}, nil
	}

	if err := s.repo.UpdateCategorization(ctx, threadID, categorization.Topic, categorization.Subtopic); err != nil {
		return categorization, fmt.Errorf("store categorization: %w", err)
	}
	return categorization, nil
}

// Summarize writes a short summary onto the thread. It never changes status.
func (s *Service) Summarize(ctx context.Context, threadID uuid.UUID) (string, error) {
	if s.analyzer == nil {
		return "", nil
	}

	messages, err := s.repo.RecentMessages(ctx, threadID, escalationMessageWindow)
	if err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", nil
	}

	summary, err := s.analyzer.Summarize(ctx, messageBodies(messages))
	if err != nil {
		s.log.Warn("summarization unavailable", "threadId", threadID, "error", err)
		return "", nil
	}

	if err := s.repo.UpdateSummary(ctx, threadID, summary); err != nil {
		return summary, fmt.Errorf("store summary: %w", err)
	}
	return summary, nil
}

// DiscoverRelationships compares the thread against the tenant's other
// threads from the last 90 days and persists links scoring at or above the
// threshold. Pairs that are already linked are skipped without a model call.
func (s *Service) DiscoverRelationships(ctx context.Context, threadID uuid.UUID) ([]Relationship, error) {
	if s.analyzer == nil {
		return nil, nil
	}

	thread, err := s.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}

	ownSummary := thread.Summary
	if ownSummary == "" {
		ownSummary, err = s.Summarize(ctx, threadID)
		if err != nil || ownSummary == "" {
			return nil, err
		}
	}

	since := time.Now().Add(-relationshipWindow)
	candidates, err := s.repo.ListRecentThreads(ctx, thread.TenantID, threadID, since)
	if err != nil {
		return nil, err
	}

	var created []Relationship
	for _, candidate := range candidates {
		exists, err := s.repo.RelationshipExists(ctx, threadID, candidate.ID)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		otherSummary := candidate.Summary
		if otherSummary == "" {
			otherSummary = candidate.Subject
		}
		if otherSummary == "" {
			continue
		}

		score, err := s.analyzer.ScoreSimilarity(ctx, ownSummary, otherSummary)
		if err != nil {
			s.log.Warn("similarity scoring unavailable", "threadId", threadID, "otherId", candidate.ID, "error", err)
			continue
		}
		if score.Confidence < relationshipThreshold {
			continue
		}

		rel, err := s.repo.CreateRelationship(ctx, threadID, candidate.ID, score.Relationship, score.Confidence)
		if err != nil {
			return created, fmt.Errorf("create relationship: %w", err)
		}
		created = append(created, rel)
	}
	return created, nil
}

// Relationships lists the thread's persisted relationships.
func (s *Service) Relationships(ctx context.Context, threadID uuid.UUID) ([]Relationship, error) {
	return s.repo.ListRelationships(ctx, threadID)
}

func canClose(status string) bool {
	switch status {
	case StatusActive, StatusClosing, StatusEscalated:
		return true
	}
	return false
}

func canReopen(status string) bool {
	switch status {
	case StatusClosed, StatusClosing:
		return true
	}
	return false
}

func canMerge(status string) bool {
	switch status {
	case StatusActive, StatusClosing, StatusEscalated:
		return true
	}
	return false
}

func messageBodies(messages []Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Body)
	}
	return out
}
