package model

// Conversation is the aggregate thread state between the viewer and one peer,
// as exposed to UI consumers. A read-only snapshot; the conversation index
// owns the mutable backing state.
type Conversation struct {
	PeerID      int64       `json:"peer_id"`
	Peer        PeerSummary `json:"peer"`
	LastMessage *Message    `json:"last_message,omitempty"`
	UnreadCount int         `json:"unread_count"`
}

// LikeState is the authoritative like projection for one publication,
// optimistically mutated on toggle.
type LikeState struct {
	PublicationID int64 `json:"publication_id"`
	HasLiked      bool  `json:"has_liked"`
	LikesCount    int64 `json:"likes_count"`
}

// Toggled returns the local transition applied before the server confirms.
func (s LikeState) Toggled() LikeState {
	next := s
	next.HasLiked = !s.HasLiked
	if next.HasLiked {
		next.LikesCount++
	} else if next.LikesCount > 0 {
		next.LikesCount--
	}
	return next
}
