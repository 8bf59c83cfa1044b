package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bibliora/library-system/internal/core/domain"
)

type memStore struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	done   chan struct{}
	want   int
}

func newMemStore(want int) *memStore {
	return &memStore{done: make(chan struct{}), want: want}
}

func (s *memStore) InsertEvent(_ context.Context, e *domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	if len(s.events) == s.want {
		close(s.done)
	}
	return nil
}

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemDedup() *memDedup {
	return &memDedup{seen: make(map[string]bool)}
}

func (d *memDedup) key(e domain.AuditEvent) string {
	return e.EntityID + ":" + e.Action + ":" + e.OccurredAt.String()
}

func (d *memDedup) Seen(_ context.Context, e domain.AuditEvent) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[d.key(e)], nil
}

func (d *memDedup) Mark(_ context.Context, e domain.AuditEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[d.key(e)] = true
	return nil
}

func TestDispatcher_DeliversEvents(t *testing.T) {
	store := newMemStore(3)
	d := NewDispatcher(2, store, newMemDedup(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	now := time.Now().UTC()
	for i, id := range []string{"copy-1", "copy-2", "card-1"} {
		d.Publish(domain.AuditEvent{
			Action:     domain.AuditUpdate,
			EntityType: domain.EntityBookCopy,
			EntityID:   id,
			Actor:      "kc-staff",
			OccurredAt: now.Add(time.Duration(i) * time.Second),
		})
	}

	select {
	case <-store.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("events not delivered: got %d", len(store.events))
	}
}

func TestDispatcher_SkipsDuplicates(t *testing.T) {
	store := newMemStore(1)
	dedup := newMemDedup()
	d := NewDispatcher(1, store, dedup, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	event := domain.AuditEvent{
		Action:     domain.AuditCreate,
		EntityType: domain.EntityLibraryCard,
		EntityID:   "card-1",
		Actor:      "kc-staff",
		OccurredAt: time.Now().UTC(),
	}
	d.Publish(event)

	select {
	case <-store.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("first publish not delivered")
	}

	// The identical event again: the dedup key is already marked, so the
	// store must not receive a second insert.
	d.Publish(event)
	time.Sleep(100 * time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.events) != 1 {
		t.Fatalf("duplicate event was recorded: %d inserts", len(store.events))
	}
}

func TestDispatcher_SameEntityShardsTogether(t *testing.T) {
	d := NewDispatcher(4, newMemStore(0), newMemDedup(), zerolog.Nop())

	first := d.shardIndex("copy-42")
	for i := 0; i < 10; i++ {
		if d.shardIndex("copy-42") != first {
			t.Fatalf("shard index not deterministic")
		}
	}
}
