package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type NotificationKind int16

const (
	NotifyMessage NotificationKind = iota + 1
	NotifyApplication
	NotifySystem
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyMessage:
		return "message"
	case NotifyApplication:
		return "application"
	case NotifySystem:
		return "system"
	default:
		return fmt.Sprintf("NotificationKind(%d)", int16(k))
	}
}

// Notification is one ephemeral toast-style alert. Lifecycle: created by the
// event router on a qualifying inbound event, destroyed on explicit dismissal,
// on navigation to the related conversation, or by TTL expiry when a display
// duration is configured.
type Notification struct {
	ID             uuid.UUID        `json:"id"`
	Kind           NotificationKind `json:"kind"`
	ConversationID int64            `json:"conversation_id,omitempty"` // peer id, 0 when unrelated to a thread
	Title          string           `json:"title"`
	Body           string           `json:"body"`
	Message        *Message         `json:"message,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

func NewMessageNotification(msg *Message, sender PeerSummary) Notification {
	return Notification{
		ID:             uuid.New(),
		Kind:           NotifyMessage,
		ConversationID: msg.SenderID,
		Title:          sender.Name,
		Body:           msg.Content,
		Message:        msg,
		CreatedAt:      time.Now(),
	}
}

func NewApplicationNotification(upd *ApplicationUpdate) Notification {
	return Notification{
		ID:        uuid.New(),
		Kind:      NotifyApplication,
		Title:     "Application " + upd.Status,
		Body:      "",
		CreatedAt: time.Now(),
	}
}

func NewSystemNotification(notice *SystemNotice) Notification {
	return Notification{
		ID:        uuid.New(),
		Kind:      NotifySystem,
		Title:     notice.Code,
		Body:      notice.Text,
		CreatedAt: time.Now(),
	}
}
