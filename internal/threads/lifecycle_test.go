package threads

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"rental_portal_backend/internal/directory"
	"rental_portal_backend/platform/apperr"
	"rental_portal_backend/platform/logger"
)

// fakeStore is an in-memory store mirroring the repository's status guards,
// so lifecycle flows can be driven end to end without Postgres.
type fakeStore struct {
	threads        map[uuid.UUID]*Thread
	messages       []*Message
	autoCloseCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{threads: map[uuid.UUID]*Thread{}}
}

func (f *fakeStore) addThread(t Thread) uuid.UUID {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	f.threads[t.ID] = &t
	return t.ID
}

func (f *fakeStore) addMessage(threadID uuid.UUID, createdAt time.Time) {
	f.messages = append(f.messages, &Message{ID: uuid.New(), ThreadID: threadID, CreatedAt: createdAt})
}

func (f *fakeStore) GetThread(_ context.Context, id uuid.UUID) (Thread, error) {
	t, ok := f.threads[id]
	if !ok {
		return Thread{}, ErrThreadNotFound
	}
	return *t, nil
}

func (f *fakeStore) ListSweepCandidates(_ context.Context, propertyID uuid.UUID, cutoff time.Time) ([]Thread, error) {
	var out []Thread
	for _, t := range f.threads {
		if t.PropertyID != propertyID {
			continue
		}
		if t.Status != StatusActive && t.Status != StatusClosing {
			continue
		}
		if !t.LastActivityAt.Before(cutoff) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeStore) AutoClose(_ context.Context, threadID, _ uuid.UUID, confidence float64, _ map[string]any) (bool, error) {
	f.autoCloseCalls++
	t, ok := f.threads[threadID]
	if !ok || (t.Status != StatusActive && t.Status != StatusClosing) {
		return false, nil
	}
	now := time.Now()
	t.Status = StatusClosed
	t.ClosureConfidence = confidence
	t.ClosedAt = &now
	return true, nil
}

func (f *fakeStore) Merge(_ context.Context, sourceID, targetID, _ uuid.UUID) (int, error) {
	source := f.threads[sourceID]
	target := f.threads[targetID]

	moved := 0
	for _, m := range f.messages {
		if m.ThreadID == sourceID {
			m.ThreadID = targetID
			moved++
		}
		if m.ThreadID == targetID && m.CreatedAt.After(target.LastActivityAt) {
			target.LastActivityAt = m.CreatedAt
		}
	}

	now := time.Now()
	source.Status = StatusMerged
	source.MergedInto = &targetID
	source.ClosedAt = &now
	target.MergedFrom = append(target.MergedFrom, sourceID)
	return moved, nil
}

func (f *fakeStore) CreateThread(_ context.Context, tenantID, propertyID uuid.UUID, subject, channel string) (Thread, error) {
	t := Thread{ID: uuid.New(), TenantID: tenantID, PropertyID: propertyID, Subject: subject, Channel: channel, Status: StatusActive, LastActivityAt: time.Now()}
	f.threads[t.ID] = &t
	return t, nil
}

func (f *fakeStore) FindOpenThread(_ context.Context, tenantID uuid.UUID, channel string) (Thread, error) {
	for _, t := range f.threads {
		if t.TenantID != tenantID || t.Channel != channel {
			continue
		}
		switch t.Status {
		case StatusActive, StatusClosing, StatusEscalated:
			return *t, nil
		}
	}
	return Thread{}, ErrThreadNotFound
}

func (f *fakeStore) ListThreadsByTenant(context.Context, uuid.UUID) ([]Thread, error) { return nil, nil }

func (f *fakeStore) AppendMessage(_ context.Context, msg Message) (Message, error) { return msg, nil }

func (f *fakeStore) RecentMessages(context.Context, uuid.UUID, int) ([]Message, error) {
	return nil, nil
}

func (f *fakeStore) RecordEscalation(context.Context, uuid.UUID, uuid.UUID, bool, float64, string, bool) (bool, error) {
	return false, nil
}

func (f *fakeStore) ManualClose(_ context.Context, threadID, _ uuid.UUID, _ string) (Thread, error) {
	return f.GetThread(context.Background(), threadID)
}

func (f *fakeStore) Reopen(_ context.Context, threadID, _ uuid.UUID) (Thread, error) {
	return f.GetThread(context.Background(), threadID)
}

func (f *fakeStore) UpdateCategorization(context.Context, uuid.UUID, string, string) error {
	return nil
}

func (f *fakeStore) UpdateSummary(context.Context, uuid.UUID, string) error { return nil }

func (f *fakeStore) ListEvents(context.Context, uuid.UUID) ([]ConversationEvent, error) {
	return nil, nil
}

func (f *fakeStore) ListRecentThreads(context.Context, uuid.UUID, uuid.UUID, time.Time) ([]Thread, error) {
	return nil, nil
}

func (f *fakeStore) RelationshipExists(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, nil
}

func (f *fakeStore) CreateRelationship(context.Context, uuid.UUID, uuid.UUID, string, float64) (Relationship, error) {
	return Relationship{}, nil
}

func (f *fakeStore) ListRelationships(context.Context, uuid.UUID) ([]Relationship, error) {
	return nil, nil
}

type fakePropertyLister struct {
	properties []directory.Property
}

func (f *fakePropertyLister) ListProperties(context.Context) ([]directory.Property, error) {
	return f.properties, nil
}

func TestSweepSecondRunClosesNothing(t *testing.T) {
	store := newFakeStore()
	propertyID := uuid.New()
	tenantID := uuid.New()

	stale1 := store.addThread(Thread{TenantID: tenantID, PropertyID: propertyID, Status: StatusActive, LastActivityAt: time.Now().Add(-100 * time.Hour)})
	stale2 := store.addThread(Thread{TenantID: tenantID, PropertyID: propertyID, Status: StatusClosing, LastActivityAt: time.Now().Add(-200 * time.Hour)})
	fresh := store.addThread(Thread{TenantID: tenantID, PropertyID: propertyID, Status: StatusActive, LastActivityAt: time.Now().Add(-1 * time.Hour)})

	svc := NewService(store, nil, nil, nil, nil, logger.NewNop())
	lister := &fakePropertyLister{properties: []directory.Property{{ID: propertyID, InactivityThresholdHours: 72}}}
	sweeper := NewSweeper(svc, lister, nil, logger.NewNop(), time.Hour, 72)

	stats, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if stats.Closed != 2 {
		t.Fatalf("first sweep closed = %d, want 2", stats.Closed)
	}
	for _, id := range []uuid.UUID{stale1, stale2} {
		if store.threads[id].Status != StatusClosed {
			t.Fatalf("thread %s status = %q, want closed", id, store.threads[id].Status)
		}
	}
	if store.threads[fresh].Status != StatusActive {
		t.Fatalf("fresh thread status = %q, want active", store.threads[fresh].Status)
	}

	stats, err = sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if stats.Processed != 0 || stats.Closed != 0 {
		t.Fatalf("second sweep reported work: %+v", stats)
	}
	if store.autoCloseCalls != 2 {
		t.Fatalf("auto-close calls = %d, want 2 (closed threads must not be re-closed)", store.autoCloseCalls)
	}
}

func TestMergeReassignsMessagesAndActivity(t *testing.T) {
	store := newFakeStore()
	tenantID := uuid.New()
	propertyID := uuid.New()

	targetActivity := time.Now().Add(-48 * time.Hour)
	targetID := store.addThread(Thread{TenantID: tenantID, PropertyID: propertyID, Status: StatusActive, LastActivityAt: targetActivity})
	sourceID := store.addThread(Thread{TenantID: tenantID, PropertyID: propertyID, Status: StatusActive, LastActivityAt: time.Now().Add(-24 * time.Hour)})

	sourceNewest := time.Now().Add(-24 * time.Hour)
	store.addMessage(targetID, time.Now().Add(-72*time.Hour))
	store.addMessage(sourceID, time.Now().Add(-96*time.Hour))
	store.addMessage(sourceID, sourceNewest)

	svc := NewService(store, nil, nil, nil, nil, logger.NewNop())

	moved, err := svc.Merge(context.Background(), sourceID, targetID)
	if err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}
	if moved != 2 {
		t.Fatalf("moved = %d, want 2", moved)
	}

	for _, m := range store.messages {
		if m.ThreadID != targetID {
			t.Fatalf("message %s still belongs to thread %s", m.ID, m.ThreadID)
		}
	}

	source := store.threads[sourceID]
	if source.Status != StatusMerged || source.MergedInto == nil || *source.MergedInto != targetID {
		t.Fatalf("source after merge = %+v", source)
	}

	target := store.threads[targetID]
	if len(target.MergedFrom) != 1 || target.MergedFrom[0] != sourceID {
		t.Fatalf("target lineage = %v, want [%s]", target.MergedFrom, sourceID)
	}
	if !target.LastActivityAt.Equal(sourceNewest) {
		t.Fatalf("target activity = %v, want newest absorbed message time %v", target.LastActivityAt, sourceNewest)
	}

	// An absorbed thread is no longer addressable for another merge.
	if _, err := svc.Merge(context.Background(), sourceID, targetID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("re-merge error = %v, want conflict", err)
	}
}

func TestEnsureThreadKeyedByChannel(t *testing.T) {
	store := newFakeStore()
	tenantID := uuid.New()
	propertyID := uuid.New()

	smsID := store.addThread(Thread{TenantID: tenantID, PropertyID: propertyID, Channel: "sms", Status: StatusActive, LastActivityAt: time.Now()})
	svc := NewService(store, nil, nil, nil, nil, logger.NewNop())

	thread, created, err := svc.EnsureThread(context.Background(), tenantID, propertyID, "leaky faucet", "sms")
	if err != nil {
		t.Fatalf("EnsureThread(sms): %v", err)
	}
	if created || thread.ID != smsID {
		t.Fatalf("sms message should reuse the open sms thread, got created=%v id=%s", created, thread.ID)
	}

	// The same tenant writing in by email starts a fresh thread; the open
	// sms conversation is a different channel.
	thread, created, err = svc.EnsureThread(context.Background(), tenantID, propertyID, "leaky faucet", "email")
	if err != nil {
		t.Fatalf("EnsureThread(email): %v", err)
	}
	if !created || thread.ID == smsID {
		t.Fatalf("email message must open a new thread, got created=%v id=%s", created, thread.ID)
	}
}

func TestMergeKeepsTargetActivityWhenLater(t *testing.T) {
	store := newFakeStore()
	tenantID := uuid.New()

	targetActivity := time.Now().Add(-1 * time.Hour)
	targetID := store.addThread(Thread{TenantID: tenantID, Status: StatusActive, LastActivityAt: targetActivity})
	sourceID := store.addThread(Thread{TenantID: tenantID, Status: StatusActive, LastActivityAt: time.Now().Add(-80 * time.Hour)})
	store.addMessage(sourceID, time.Now().Add(-80*time.Hour))

	svc := NewService(store, nil, nil, nil, nil, logger.NewNop())
	if _, err := svc.Merge(context.Background(), sourceID, targetID); err != nil {
		t.Fatalf("Merge returned error: %v", err)
	}

	if !store.threads[targetID].LastActivityAt.Equal(targetActivity) {
		t.Fatalf("target activity = %v, want its own later %v", store.threads[targetID].LastActivityAt, targetActivity)
	}
}
