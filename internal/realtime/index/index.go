// Package index maintains the per-peer conversation projection: last message
// and unread count for every thread the viewer participates in.
package index

import (
	"sort"
	"sync"

	"github.com/hirelink/realtime-gateway/internal/domain/model"
)

// thread is the mutable backing state for one conversation, keyed by peer id.
type thread struct {
	peer        model.PeerSummary
	lastMessage *model.Message

	// unread holds the ids of peer-sent messages not yet acknowledged.
	// Keeping the ids (not a counter) makes unreadCount exactly the count of
	// such messages by construction: duplicates collapse, and mark-as-read
	// clears the set instead of guessing a decrement.
	unread map[int64]struct{}

	// baseUnread is the server-reported unread count as of the last
	// authoritative snapshot; ids in unread arrived live after it. The
	// thread's unread count is the sum of both.
	baseUnread int
}

func (th *thread) unreadCount() int {
	return th.baseUnread + len(th.unread)
}

// Index is mutated only by the event router and by explicit user actions
// (mark-as-read); both arrive serialized through the session's single receive
// discipline, the mutex covers the UI snapshot reads.
type Index struct {
	mu       sync.RWMutex
	viewerID int64
	threads  map[int64]*thread
}

func New(viewerID int64) *Index {
	return &Index{
		viewerID: viewerID,
		threads:  make(map[int64]*thread),
	}
}

// Apply upserts the conversation for msg and returns the peer id it landed
// in. lastMessage only moves forward (newer sentAt, greater id on ties);
// out-of-order arrivals update unread state but never regress the preview.
func (x *Index) Apply(msg *model.Message) (peerID int64, viewerIsRecipient bool) {
	viewerIsRecipient = msg.RecipientID == x.viewerID
	if viewerIsRecipient {
		peerID = msg.SenderID
	} else {
		peerID = msg.RecipientID
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	th := x.threads[peerID]
	if th == nil {
		th = &thread{
			peer:   model.PeerSummary{ID: peerID},
			unread: make(map[int64]struct{}),
		}
		x.threads[peerID] = th
	}

	if msg.NewerThan(th.lastMessage) {
		th.lastMessage = msg
	}

	if viewerIsRecipient && msg.Unread() {
		th.unread[msg.ID] = struct{}{}
	}

	return peerID, viewerIsRecipient
}

// SetBaseline applies an authoritative conversation snapshot: peer summary,
// last message (forward only, live messages may already be newer) and the
// server's unread count. The live id-set restarts on top of the baseline; the
// server count already covers every message it had seen, and redelivered ids
// are deduplicated before they reach the index.
func (x *Index) SetBaseline(c model.Conversation) {
	peerID := c.PeerID
	if peerID == 0 {
		peerID = c.Peer.ID
	}
	if peerID == 0 {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	th := x.threads[peerID]
	if th == nil {
		th = &thread{unread: make(map[int64]struct{})}
		x.threads[peerID] = th
	}
	if c.Peer.ID != 0 {
		th.peer = c.Peer
	}
	if c.LastMessage != nil && c.LastMessage.NewerThan(th.lastMessage) {
		th.lastMessage = c.LastMessage
	}
	th.baseUnread = c.UnreadCount
	th.unread = make(map[int64]struct{})
}

// Peer returns the stored summary for a peer, if the thread exists.
func (x *Index) Peer(peerID int64) (model.PeerSummary, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if th, ok := x.threads[peerID]; ok {
		return th.peer, true
	}
	return model.PeerSummary{}, false
}

// MarkRead clears the unread set for the conversation and returns how many
// messages were acknowledged.
func (x *Index) MarkRead(peerID int64) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	th, ok := x.threads[peerID]
	if !ok {
		return 0
	}
	n := th.unreadCount()
	th.baseUnread = 0
	th.unread = make(map[int64]struct{})
	return n
}

// UnreadCount returns the exact unread count for one conversation.
func (x *Index) UnreadCount(peerID int64) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if th, ok := x.threads[peerID]; ok {
		return th.unreadCount()
	}
	return 0
}

// TotalUnread sums unread counts across all conversations (badge view).
func (x *Index) TotalUnread() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	total := 0
	for _, th := range x.threads {
		total += th.unreadCount()
	}
	return total
}

// Snapshot returns read-only conversation views, most recent activity first.
func (x *Index) Snapshot() []model.Conversation {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]model.Conversation, 0, len(x.threads))
	for peerID, th := range x.threads {
		out = append(out, model.Conversation{
			PeerID:      peerID,
			Peer:        th.peer,
			LastMessage: th.lastMessage,
			UnreadCount: th.unreadCount(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		li, lj := out[i].LastMessage, out[j].LastMessage
		switch {
		case li == nil:
			return false
		case lj == nil:
			return true
		default:
			return li.NewerThan(lj)
		}
	})
	return out
}
