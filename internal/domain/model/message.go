package model

// PeerSummary carries the display facts the UI needs about the other side of a
// conversation. Enriched lazily from the platform API and cached.
type PeerSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Message is the core conversation element. Immutable once created on the
// server; ReadAt is the only field that changes, set exactly once when the
// recipient acknowledges.
type Message struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	SenderID    int64  `json:"sender_id"`
	RecipientID int64  `json:"recipient_id"`
	SentAt      int64  `json:"sent_at"` // unix millis, server clock
	ReadAt      *int64 `json:"read_at,omitempty"`
}

// NewerThan orders messages by SentAt, ties broken by the greater ID.
// The server assigns monotonically increasing ids, so the tie-break keeps
// same-millisecond bursts stable.
func (m *Message) NewerThan(other *Message) bool {
	if other == nil {
		return true
	}
	if m.SentAt != other.SentAt {
		return m.SentAt > other.SentAt
	}
	return m.ID > other.ID
}

// Unread reports whether the recipient has not acknowledged the message yet.
func (m *Message) Unread() bool {
	return m.ReadAt == nil
}
