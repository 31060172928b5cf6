// Package router classifies raw inbound events and feeds the two downstream
// projections: the conversation index and the notification queue.
package router

import (
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hirelink/realtime-gateway/internal/domain/model"
	"github.com/hirelink/realtime-gateway/internal/realtime/index"
	"github.com/hirelink/realtime-gateway/internal/realtime/notify"
)

// FocusFunc reports which conversation the UI has open, if any. Focus state
// is owned by the caller (the service facade), not the router.
type FocusFunc func() (peerID int64, focused bool)

const defaultSeenSize = 8192

type Router struct {
	logger *slog.Logger
	viewer model.Identity
	index  *index.Index
	queue  *notify.Queue
	focus  FocusFunc

	// seen deduplicates message ids across the whole session. An LRU keeps
	// the window bounded; the stream redelivers recent ids, not ancient ones.
	seen *lru.Cache[int64, struct{}]

	// pendingApplications is a cache view of the authoritative outstanding
	// count, adjusted by live deltas and corrected by the reconciler.
	pendingApplications atomic.Int64
}

func New(logger *slog.Logger, viewer model.Identity, idx *index.Index, queue *notify.Queue, focus FocusFunc) *Router {
	seen, _ := lru.New[int64, struct{}](defaultSeenSize)
	return &Router{
		logger: logger.With(slog.String("component", "router")),
		viewer: viewer,
		index:  idx,
		queue:  queue,
		focus:  focus,
		seen:   seen,
	}
}

// Route consumes one inbound event. Called from the connection manager's
// single receive loop, so updates within one invocation are atomic with
// respect to other events; per-conversation arrival order is preserved.
func (r *Router) Route(ev model.InboundEvent) {
	switch ev.Kind {
	case model.KindMessage:
		r.routeMessage(ev.Message)
	case model.KindApplicationUpdate:
		r.routeApplication(ev.Application)
	case model.KindSystem:
		r.routeSystem(ev.System)
	default:
		r.logger.Warn("EVENT_DROPPED",
			slog.Any("err", model.ErrMalformedEvent),
			slog.String("kind", ev.Kind.String()),
		)
	}
}

func (r *Router) routeMessage(msg *model.Message) {
	if msg == nil || msg.ID <= 0 {
		r.logger.Warn("EVENT_DROPPED", slog.Any("err", model.ErrMalformedEvent))
		return
	}

	// Redelivered id: already applied to the index, a strict no-op.
	if _, dup := r.seen.Get(msg.ID); dup {
		r.logger.Debug("MESSAGE_DEDUPLICATED", slog.Int64("msg_id", msg.ID))
		return
	}
	r.seen.Add(msg.ID, struct{}{})

	peerID, viewerIsRecipient := r.index.Apply(msg)

	if !viewerIsRecipient || !msg.Unread() {
		return
	}
	if focusedPeer, focused := r.focus(); focused && focusedPeer == peerID {
		// Conversation is on screen: no toast, the thread view shows it.
		return
	}

	sender, ok := r.index.Peer(peerID)
	if !ok {
		sender = model.PeerSummary{ID: peerID}
	}
	r.queue.Push(model.NewMessageNotification(msg, sender))
}

func (r *Router) routeApplication(upd *model.ApplicationUpdate) {
	if upd == nil {
		r.logger.Warn("EVENT_DROPPED", slog.Any("err", model.ErrMalformedEvent))
		return
	}

	// The event carries the authoritative outstanding total when the server
	// can compute it; otherwise fall back to a delta and let the periodic
	// reconciliation correct any drift.
	if upd.PendingTotal >= 0 {
		r.pendingApplications.Store(upd.PendingTotal)
	} else if upd.Status == model.ApplicationPending {
		r.pendingApplications.Add(1)
	} else if n := r.pendingApplications.Add(-1); n < 0 {
		r.pendingApplications.Store(0)
	}

	r.queue.Push(model.NewApplicationNotification(upd))
}

func (r *Router) routeSystem(notice *model.SystemNotice) {
	if notice == nil {
		r.logger.Warn("EVENT_DROPPED", slog.Any("err", model.ErrMalformedEvent))
		return
	}
	r.queue.Push(model.NewSystemNotification(notice))
}

// PendingApplications exposes the badge counter cache view.
func (r *Router) PendingApplications() int64 {
	return r.pendingApplications.Load()
}

// ReconcilePending overwrites the counter with the authoritative count from
// a fresh fetch. The live feed is best-effort; this is the correction path.
func (r *Router) ReconcilePending(total int64) {
	if total < 0 {
		total = 0
	}
	prev := r.pendingApplications.Swap(total)
	if prev != total {
		r.logger.Debug("PENDING_COUNTER_CORRECTED",
			slog.Int64("was", prev),
			slog.Int64("now", total),
		)
	}
}
