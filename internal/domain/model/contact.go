package model

// PeerContact is the raw contact record of a counterpart as returned by the
// platform. Raw means unredacted: the visibility policy decides per viewer
// which fields leave the gateway intact.
type PeerContact struct {
	PeerID int64  `json:"peer_id"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	TaxID  string `json:"tax_id"`

	// ActiveRelation reports an accepted engagement between the viewer and
	// this peer, as judged by the platform for the requesting token.
	ActiveRelation bool `json:"active_relation"`
}
