package model

import (
	"encoding/json"
	"fmt"
)

type EventKind int16

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED DATA
	KindMessage           EventKind = iota + 1 // [BUSINESS] new chat message
	KindApplicationUpdate                      // [BUSINESS] application state change
	KindSystem                                 // [SYSTEM] platform notice
)

func (k EventKind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindApplicationUpdate:
		return "application_update"
	case KindSystem:
		return "system"
	default:
		return fmt.Sprintf("EventKind(%d)", int16(k))
	}
}

// ApplicationUpdate describes a state change on a job application the viewer
// participates in. PendingTotal, when non-negative, is the authoritative count
// of outstanding applications and overrides any locally tracked delta.
type ApplicationUpdate struct {
	ApplicationID int64  `json:"application_id"`
	PublicationID int64  `json:"publication_id"`
	Status        string `json:"status"`
	PendingTotal  int64  `json:"pending_total"`
}

// UnmarshalJSON defaults PendingTotal to -1 (unknown) so a payload that
// omits the field is not mistaken for an authoritative zero.
func (a *ApplicationUpdate) UnmarshalJSON(data []byte) error {
	type alias ApplicationUpdate
	tmp := alias{PendingTotal: -1}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*a = ApplicationUpdate(tmp)
	return nil
}

const (
	ApplicationPending  = "PENDING"
	ApplicationAccepted = "ACCEPTED"
	ApplicationRejected = "REJECTED"
)

// SystemNotice is a free-form platform announcement.
type SystemNotice struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

// InboundEvent is the tagged union consumed once by the event router.
// Exactly one payload pointer is set, matching Kind.
type InboundEvent struct {
	Kind        EventKind          `json:"-"`
	Message     *Message           `json:"message,omitempty"`
	Application *ApplicationUpdate `json:"application,omitempty"`
	System      *SystemNotice      `json:"system,omitempty"`
}

// wireEvent is the JSON envelope both transports deliver.
type wireEvent struct {
	Kind        string             `json:"kind"`
	Message     *Message           `json:"message,omitempty"`
	Application *ApplicationUpdate `json:"application,omitempty"`
	System      *SystemNotice      `json:"system,omitempty"`
}

// DecodeInboundEvent parses one raw transport frame into the tagged union.
// Any shape the union cannot hold comes back as ErrMalformedEvent; the caller
// drops and logs, it never crashes the pipeline.
func DecodeInboundEvent(data []byte) (InboundEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return InboundEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch w.Kind {
	case "message":
		if w.Message == nil || w.Message.ID <= 0 {
			return InboundEvent{}, fmt.Errorf("%w: message payload missing or unidentified", ErrMalformedEvent)
		}
		return InboundEvent{Kind: KindMessage, Message: w.Message}, nil

	case "application_update":
		if w.Application == nil {
			return InboundEvent{}, fmt.Errorf("%w: application payload missing", ErrMalformedEvent)
		}
		return InboundEvent{Kind: KindApplicationUpdate, Application: w.Application}, nil

	case "system":
		if w.System == nil {
			return InboundEvent{}, fmt.Errorf("%w: system payload missing", ErrMalformedEvent)
		}
		return InboundEvent{Kind: KindSystem, System: w.System}, nil

	default:
		return InboundEvent{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, w.Kind)
	}
}
