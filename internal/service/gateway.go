// Package service exposes the session facade the UI consumes: conversation
// and notification reads, focus tracking, optimistic actions, and the
// connection state. One Gateway instance is bound to one signed-in identity;
// its lifecycle runs from login to logout, never process start to exit.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/hirelink/realtime-gateway/internal/adapter/platform"
	"github.com/hirelink/realtime-gateway/internal/domain/model"
	"github.com/hirelink/realtime-gateway/internal/optimistic"
	"github.com/hirelink/realtime-gateway/internal/realtime/conn"
	"github.com/hirelink/realtime-gateway/internal/realtime/index"
	"github.com/hirelink/realtime-gateway/internal/realtime/notify"
	"github.com/hirelink/realtime-gateway/internal/realtime/router"
	"github.com/hirelink/realtime-gateway/internal/visibility"
)

// Gateway wires the connection core to the UI-facing read API.
type Gateway struct {
	logger   *slog.Logger
	identity model.Identity

	manager  *conn.Manager
	router   *router.Router
	index    *index.Index
	queue    *notify.Queue
	platform *platform.Client
	mutator  *optimistic.Mutator

	// focus is shared with the router, which suppresses toasts for the
	// thread currently on screen.
	focus *FocusTracker

	likesMu sync.Mutex
	likes   map[int64]*optimistic.State[model.LikeState]
}

type Deps struct {
	Logger   *slog.Logger
	Identity model.Identity
	Focus    *FocusTracker
	Index    *index.Index
	Queue    *notify.Queue
	Router   *router.Router
	Platform *platform.Client
	Mutator  *optimistic.Mutator
}

func NewGateway(d Deps) *Gateway {
	return &Gateway{
		logger:   d.Logger.With(slog.String("component", "gateway")),
		identity: d.Identity,
		focus:    d.Focus,
		router:   d.Router,
		index:    d.Index,
		queue:    d.Queue,
		platform: d.Platform,
		mutator:  d.Mutator,
		likes:    make(map[int64]*optimistic.State[model.LikeState]),
	}
}

// BindManager attaches the connection manager after construction; the
// manager's sink is the router, which in turn reads the focus state.
func (g *Gateway) BindManager(m *conn.Manager) {
	g.manager = m
}

// Start seeds projections from the authoritative fetches and opens the live
// session. Errors on the seed are logged, not fatal: the reconciler repairs
// cache views and the stream fills the index as events arrive.
func (g *Gateway) Start(ctx context.Context) error {
	if conversations, err := g.platform.Conversations(ctx); err != nil {
		g.logger.Warn("SEED_CONVERSATIONS_FAILED", slog.Any("err", err))
	} else {
		for _, c := range conversations {
			g.index.SetBaseline(c)
		}
	}

	if g.manager == nil {
		return fmt.Errorf("gateway: connection manager not bound")
	}
	return g.manager.Connect()
}

// Stop tears the session down: live transport first, then in-flight
// optimistic mutations (discarded as failed, never flushed).
func (g *Gateway) Stop() {
	if g.manager != nil {
		g.manager.Disconnect()
	}
	g.mutator.Close()
}

// Conversations returns the thread list, most recent first.
func (g *Gateway) Conversations() []model.Conversation {
	return g.index.Snapshot()
}

// Notifications returns the active toast queue in insertion order.
func (g *Gateway) Notifications() []model.Notification {
	return g.queue.Active()
}

// Dismiss removes one notification by id.
func (g *Gateway) Dismiss(id uuid.UUID) bool {
	return g.queue.Dismiss(id)
}

// OpenConversation focuses the thread, clears its unread count, and drops
// its related notifications (the navigation dismissal path).
func (g *Gateway) OpenConversation(peerID int64) {
	g.focus.Set(peerID)

	acked := g.index.MarkRead(peerID)
	dropped := g.queue.DismissConversation(peerID)
	g.logger.Debug("CONVERSATION_OPENED",
		slog.Int64("peer_id", peerID),
		slog.Int("acked", acked),
		slog.Int("notifications_dropped", dropped),
	)
}

// CloseConversation releases focus so new messages notify again.
func (g *Gateway) CloseConversation() {
	g.focus.Clear()
}

// ConnectionState exposes the manager's externally visible state.
func (g *Gateway) ConnectionState() conn.State {
	if g.manager == nil {
		return conn.StateDisconnected
	}
	return g.manager.State()
}

// FirstConnection lets the UI distinguish first-load from recovery.
func (g *Gateway) FirstConnection() bool {
	if g.manager == nil {
		return true
	}
	return g.manager.FirstConnection()
}

// PendingApplications returns the badge counter cache view.
func (g *Gateway) PendingApplications() int64 {
	return g.router.PendingApplications()
}

// ToggleLike optimistically flips the like on a publication. The local state
// updates before the confirmation call; a failure reverts it exactly and
// surfaces as a typed error for the caller's toast.
func (g *Gateway) ToggleLike(ctx context.Context, current model.LikeState) (model.LikeState, error) {
	st := g.likeState(current)
	key := fmt.Sprintf("like:%d", current.PublicationID)

	return optimistic.Apply(ctx, g.mutator, key, st, st.Get().Toggled(),
		func(ctx context.Context) (model.LikeState, error) {
			return g.platform.ToggleLike(ctx, current.PublicationID)
		})
}

// LikeStateFor returns the tracked (possibly optimistic) like projection.
func (g *Gateway) LikeStateFor(current model.LikeState) model.LikeState {
	return g.likeState(current).Get()
}

// likeState returns the per-publication optimistic wrapper, creating it from
// the caller-supplied server snapshot on first use.
func (g *Gateway) likeState(current model.LikeState) *optimistic.State[model.LikeState] {
	g.likesMu.Lock()
	defer g.likesMu.Unlock()
	st, ok := g.likes[current.PublicationID]
	if !ok {
		st = optimistic.NewState(current)
		g.likes[current.PublicationID] = st
	}
	return st
}

// PeerContact fetches a counterpart's contact record and redacts it for the
// signed-in viewer. Administrative roles, record owners, peers with an active
// engagement and internal callers see full values; everyone else gets the
// per-field masks.
func (g *Gateway) PeerContact(ctx context.Context, peerID int64) (model.PeerContact, error) {
	raw, err := g.platform.PeerContact(ctx, peerID)
	if err != nil {
		return model.PeerContact{}, err
	}

	vc := visibility.Context{
		Viewer:         g.identity,
		OwnerID:        raw.PeerID,
		ActiveRelation: raw.ActiveRelation,
	}
	raw.Email = visibility.Reveal(visibility.FieldEmail, raw.Email, vc)
	raw.Phone = visibility.Reveal(visibility.FieldPhone, raw.Phone, vc)
	raw.TaxID = visibility.Reveal(visibility.FieldTaxID, raw.TaxID, vc)
	return raw, nil
}

// SendMessage is the quick-apply path: fire the create-message call with no
// local counter to revert, reporting only success or failure for the toast.
func (g *Gateway) SendMessage(ctx context.Context, recipientID int64, content string) (*model.Message, error) {
	key := fmt.Sprintf("send:%d", recipientID)
	msg, err := optimistic.Fire(ctx, g.mutator, key,
		func(ctx context.Context) (*model.Message, error) {
			return g.platform.CreateMessage(ctx, recipientID, content)
		})
	if err != nil {
		return nil, err
	}

	// Reflect our own message in the thread preview immediately; the echoed
	// stream event deduplicates by id.
	g.router.Route(model.InboundEvent{Kind: model.KindMessage, Message: msg})
	return msg, nil
}
