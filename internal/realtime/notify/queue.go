// Package notify holds the bounded queue of active toast notifications.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hirelink/realtime-gateway/internal/domain/model"
)

// Queue is an ordered, bounded collection of active notifications. Oldest
// entries are evicted on overflow. Removal is manual (dismissal or navigation
// to the related conversation); timed expiry applies only when a TTL is
// explicitly configured.
type Queue struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration // 0 means manual dismissal only
	items    []model.Notification
	now      func() time.Time
}

type Option func(*Queue)

// WithTTL enables automatic expiry after the given display duration.
func WithTTL(d time.Duration) Option {
	return func(q *Queue) { q.ttl = d }
}

func New(capacity int, opts ...Option) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	q := &Queue{
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SetTTL changes the display duration live (config hot reload). Zero
// disables timed expiry; the next queue access applies the new setting.
func (q *Queue) SetTTL(d time.Duration) {
	q.mu.Lock()
	if d < 0 {
		d = 0
	}
	q.ttl = d
	q.mu.Unlock()
}

// Push appends the notification, evicting the oldest entry when full.
func (q *Queue) Push(n model.Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.expireLocked()
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
	}
	q.items = append(q.items, n)
}

// Dismiss removes one notification by id. Returns false when it was already
// gone (double-dismiss is not an error).
func (q *Queue) Dismiss(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// DismissConversation drops every notification tied to the conversation,
// the "open related conversation" navigation path. Returns the count removed.
func (q *Queue) DismissConversation(peerID int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	removed := 0
	for _, n := range q.items {
		if n.ConversationID == peerID && peerID != 0 {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	q.items = kept
	return removed
}

// Active returns the current notifications in insertion order.
func (q *Queue) Active() []model.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.expireLocked()
	out := make([]model.Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Len reports the number of active notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLocked()
	return len(q.items)
}

// expireLocked drops entries past their display duration when a TTL is set.
func (q *Queue) expireLocked() {
	if q.ttl <= 0 || len(q.items) == 0 {
		return
	}
	cutoff := q.now().Add(-q.ttl)
	kept := q.items[:0]
	for _, n := range q.items {
		if n.CreatedAt.After(cutoff) {
			kept = append(kept, n)
		}
	}
	q.items = kept
}
