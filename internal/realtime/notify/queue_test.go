package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hirelink/realtime-gateway/internal/domain/model"
)

func note(peerID int64, body string) model.Notification {
	return model.Notification{
		ID:             uuid.New(),
		Kind:           model.NotifyMessage,
		ConversationID: peerID,
		Body:           body,
		CreatedAt:      time.Now(),
	}
}

func TestPushAndDismiss(t *testing.T) {
	q := New(8)

	a := note(1, "a")
	b := note(2, "b")
	q.Push(a)
	q.Push(b)

	if q.Len() != 2 {
		t.Fatalf("len = %d, want 2", q.Len())
	}

	if !q.Dismiss(a.ID) {
		t.Error("dismiss of existing notification returned false")
	}
	if q.Dismiss(a.ID) {
		t.Error("double dismiss returned true")
	}

	active := q.Active()
	if len(active) != 1 || active[0].ID != b.ID {
		t.Errorf("unexpected queue after dismiss: %+v", active)
	}
}

func TestBoundedEvictsOldest(t *testing.T) {
	q := New(3)

	first := note(1, "first")
	q.Push(first)
	q.Push(note(2, "second"))
	q.Push(note(3, "third"))
	q.Push(note(4, "fourth")) // overflows, evicts "first"

	active := q.Active()
	if len(active) != 3 {
		t.Fatalf("len = %d, want 3", len(active))
	}
	for _, n := range active {
		if n.ID == first.ID {
			t.Error("oldest notification survived overflow")
		}
	}
	if active[len(active)-1].Body != "fourth" {
		t.Errorf("insertion order broken: %+v", active)
	}
}

func TestDismissConversation(t *testing.T) {
	q := New(8)

	q.Push(note(7, "one"))
	q.Push(note(7, "two"))
	q.Push(note(9, "other"))
	// System notification with no related conversation must never match.
	q.Push(model.Notification{ID: uuid.New(), Kind: model.NotifySystem, CreatedAt: time.Now()})

	if removed := q.DismissConversation(7); removed != 2 {
		t.Errorf("removed %d, want 2", removed)
	}
	if q.Len() != 2 {
		t.Errorf("len = %d, want 2", q.Len())
	}

	// Peer id 0 matches nothing, even the system entry.
	if removed := q.DismissConversation(0); removed != 0 {
		t.Errorf("conversation 0 removed %d entries", removed)
	}
}

func TestTTLExpiry(t *testing.T) {
	q := New(8, WithTTL(time.Minute))

	current := time.Now()
	q.now = func() time.Time { return current }

	stale := note(1, "stale")
	stale.CreatedAt = current.Add(-2 * time.Minute)
	fresh := note(2, "fresh")
	fresh.CreatedAt = current

	q.Push(stale)
	q.Push(fresh)

	active := q.Active()
	if len(active) != 1 || active[0].ID != fresh.ID {
		t.Fatalf("expiry failed: %+v", active)
	}
}

func TestSetTTLAppliesLive(t *testing.T) {
	q := New(8)

	current := time.Now()
	q.now = func() time.Time { return current }

	old := note(1, "old")
	old.CreatedAt = current.Add(-time.Hour)
	q.Push(old)
	if q.Len() != 1 {
		t.Fatal("manual-only queue expired a notification")
	}

	// Reload turns expiry on; the existing entry is past the new window.
	q.SetTTL(time.Minute)
	if q.Len() != 0 {
		t.Error("re-tuned TTL not applied to existing entries")
	}

	// And back off again: zero disables expiry for new entries.
	q.SetTTL(0)
	stale := note(2, "stale")
	stale.CreatedAt = current.Add(-time.Hour)
	q.Push(stale)
	if q.Len() != 1 {
		t.Error("disabled TTL still expiring")
	}
}

func TestNoExpiryWithoutTTL(t *testing.T) {
	q := New(8)

	old := note(1, "old")
	old.CreatedAt = time.Now().Add(-24 * time.Hour)
	q.Push(old)

	if q.Len() != 1 {
		t.Error("manual-only queue expired a notification")
	}
}
