package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hirelink/realtime-gateway/internal/adapter/platform"
	"github.com/hirelink/realtime-gateway/internal/realtime/index"
	"github.com/hirelink/realtime-gateway/internal/realtime/router"
)

// Reconciler periodically re-fetches the authoritative lists and corrects
// the badge counters the live feed maintains best-effort. Deliberately
// independent of the event-driven path: drift correction, not delivery.
type Reconciler struct {
	logger   *slog.Logger
	platform *platform.Client
	router   *router.Router
	index    *index.Index
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewReconciler(logger *slog.Logger, client *platform.Client, r *router.Router, idx *index.Index, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Reconciler{
		logger:   logger.With(slog.String("component", "reconciler")),
		platform: client,
		router:   r,
		index:    idx,
		interval: interval,
	}
}

func (r *Reconciler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.runOnce(ctx)
			}
		}
	}()
}

func (r *Reconciler) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

// runOnce fetches both baselines concurrently; either failing is logged and
// retried on the next tick, never escalated.
func (r *Reconciler) runOnce(ctx context.Context) {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		total, err := r.platform.PendingApplications(gCtx)
		if err != nil {
			return err
		}
		r.router.ReconcilePending(total)
		return nil
	})

	g.Go(func() error {
		conversations, err := r.platform.Conversations(gCtx)
		if err != nil {
			return err
		}
		authoritative := 0
		for _, c := range conversations {
			authoritative += c.UnreadCount
		}
		if local := r.index.TotalUnread(); local != authoritative {
			r.logger.Info("UNREAD_DRIFT_DETECTED",
				slog.Int("local", local),
				slog.Int("authoritative", authoritative),
			)
		}
		// The server is the source of truth either way: replace every
		// thread's baseline with the fresh snapshot.
		for _, c := range conversations {
			r.index.SetBaseline(c)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		r.logger.Warn("RECONCILE_PASS_FAILED", slog.Any("err", err))
	}
}
