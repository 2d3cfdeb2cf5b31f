// internal/testutil/memory.go
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dalemusser/hearthgate/internal/domain/models"
)

// MemoryCache is an in-memory stand-in for the response-cache store. It
// satisfies the strategy, lifecycle, and status interfaces so handler and
// worker tests run without a database.
type MemoryCache struct {
	mu        sync.Mutex
	instances map[string]map[string]*models.CachedResponse
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{instances: make(map[string]map[string]*models.CachedResponse)}
}

func (m *MemoryCache) Get(ctx context.Context, instance, key string) (*models.CachedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.instances[instance][key]
	if !ok {
		return nil, nil
	}
	cp := *entry
	return &cp, nil
}

func (m *MemoryCache) Put(ctx context.Context, instance string, entry *models.CachedResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.instances[instance] == nil {
		m.instances[instance] = make(map[string]*models.CachedResponse)
	}
	cp := *entry
	m.instances[instance][entry.Key] = &cp
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, instance, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances[instance], key)
	return nil
}

func (m *MemoryCache) Count(ctx context.Context, instance string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.instances[instance])), nil
}

func (m *MemoryCache) EnsureInstance(ctx context.Context, instance string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.instances[instance] == nil {
		m.instances[instance] = make(map[string]*models.CachedResponse)
	}
	return nil
}

func (m *MemoryCache) ListInstances(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.instances))
	for name := range m.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryCache) DropInstance(ctx context.Context, instance string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances, instance)
	return nil
}

// MemoryMarker is an in-memory generation control marker.
type MemoryMarker struct {
	mu      sync.Mutex
	version string
}

func (m *MemoryMarker) Controlling(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version, nil
}

func (m *MemoryMarker) SetControlling(ctx context.Context, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = version
	return nil
}

// MemoryQueue is an in-memory stand-in for the pending-action store,
// satisfying both the gateway's enqueue slice and the replay worker's
// queue interface.
type MemoryQueue struct {
	mu      sync.Mutex
	records []*models.PendingAction
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, action *models.PendingAction) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.EnqueuedAt.IsZero() {
		action.EnqueuedAt = time.Now().UTC()
	}
	action.NextAttemptAt = action.EnqueuedAt
	cp := *action
	q.records = append(q.records, &cp)
	return nil
}

func (q *MemoryQueue) Due(ctx context.Context, now time.Time) ([]models.PendingAction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []models.PendingAction
	for _, r := range q.records {
		if !r.Dead && !r.NextAttemptAt.After(now) {
			due = append(due, *r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].EnqueuedAt.Before(due[j].EnqueuedAt) })
	return due, nil
}

func (q *MemoryQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, r := range q.records {
		if r.ID == id {
			q.records = append(q.records[:i], q.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *MemoryQueue) RecordFailure(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, r := range q.records {
		if r.ID == id {
			r.Attempts = attempts
			r.LastError = lastErr
			r.NextAttemptAt = now.Add(models.ReplayBackoff(attempts))
			return nil
		}
	}
	return fmt.Errorf("record %s not found", id)
}

func (q *MemoryQueue) MarkDead(ctx context.Context, id, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, r := range q.records {
		if r.ID == id {
			r.Dead = true
			r.LastError = reason
			return nil
		}
	}
	return fmt.Errorf("record %s not found", id)
}

func (q *MemoryQueue) Counts(ctx context.Context) (pending, dead int64, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, r := range q.records {
		if r.Dead {
			dead++
		} else {
			pending++
		}
	}
	return pending, dead, nil
}

// Records returns a snapshot of everything in the queue, in insert order.
func (q *MemoryQueue) Records() []models.PendingAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.PendingAction, 0, len(q.records))
	for _, r := range q.records {
		out = append(out, *r)
	}
	return out
}

// MemoryNotifications is an in-memory stand-in for the notification store.
type MemoryNotifications struct {
	mu    sync.Mutex
	items []*models.Notification
}

// NewMemoryNotifications creates an empty MemoryNotifications.
func NewMemoryNotifications() *MemoryNotifications {
	return &MemoryNotifications{}
}

func (s *MemoryNotifications) Save(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	cp := *n
	s.items = append(s.items, &cp)
	return nil
}

func (s *MemoryNotifications) Pending(ctx context.Context) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []models.Notification
	for _, n := range s.items {
		if !n.Delivered {
			pending = append(pending, *n)
		}
	}
	return pending, nil
}

func (s *MemoryNotifications) Ack(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acked := make(map[string]bool, len(ids))
	for _, id := range ids {
		acked[id] = true
	}
	for _, n := range s.items {
		if acked[n.ID] {
			n.Delivered = true
		}
	}
	return nil
}

func (s *MemoryNotifications) Interact(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.items {
		if n.ID == id {
			now := time.Now().UTC()
			n.InteractedAt = &now
			return n.Target, nil
		}
	}
	return "", mongo.ErrNoDocuments
}
