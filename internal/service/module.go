package service

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/hirelink/realtime-gateway/config"
	"github.com/hirelink/realtime-gateway/internal/adapter/platform"
	"github.com/hirelink/realtime-gateway/internal/domain/model"
	"github.com/hirelink/realtime-gateway/internal/optimistic"
	"github.com/hirelink/realtime-gateway/internal/realtime/conn"
	"github.com/hirelink/realtime-gateway/internal/realtime/index"
	"github.com/hirelink/realtime-gateway/internal/realtime/notify"
	"github.com/hirelink/realtime-gateway/internal/realtime/router"
)

var Module = fx.Module("service",
	fx.Provide(
		provideIdentity,
		NewFocusTracker,
		provideIndex,
		provideQueue,
		provideRouter,
		provideMutator,
		provideManager,
		provideGateway,
		provideReconciler,
	),
	fx.Invoke(registerLifecycle),
)

func provideIdentity(cfg *config.Config) (model.Identity, error) {
	return model.NewIdentity(cfg.Auth.UserID, cfg.Auth.Roles)
}

func provideIndex(identity model.Identity) *index.Index {
	return index.New(identity.ID)
}

func provideQueue(cfg *config.Config) *notify.Queue {
	var opts []notify.Option
	if cfg.Notifications.TTL > 0 {
		opts = append(opts, notify.WithTTL(cfg.Notifications.TTL))
	}
	return notify.New(cfg.Notifications.Capacity, opts...)
}

func provideRouter(logger *slog.Logger, identity model.Identity, idx *index.Index, queue *notify.Queue, focus *FocusTracker) *router.Router {
	return router.New(logger, identity, idx, queue, focus.Current)
}

func provideMutator(logger *slog.Logger) *optimistic.Mutator {
	return optimistic.NewMutator(logger)
}

func provideManager(logger *slog.Logger, transport conn.Transport, cfg *config.Config, r *router.Router) *conn.Manager {
	return conn.NewManager(logger, transport, cfg.Auth.Token, r.Route, conn.Config{
		HeartbeatInterval: cfg.Heartbeat.Interval,
		HeartbeatTimeout:  cfg.Heartbeat.Timeout,
		MaxRetries:        cfg.Reconnect.MaxRetries,
		InitialBackoff:    cfg.Reconnect.InitialDelay,
		MaxBackoff:        cfg.Reconnect.MaxDelay,
	})
}

func provideGateway(logger *slog.Logger, identity model.Identity, focus *FocusTracker, idx *index.Index, queue *notify.Queue, r *router.Router, client *platform.Client, m *optimistic.Mutator) *Gateway {
	return NewGateway(Deps{
		Logger:   logger,
		Identity: identity,
		Focus:    focus,
		Index:    idx,
		Queue:    queue,
		Router:   r,
		Platform: client,
		Mutator:  m,
	})
}

func provideReconciler(logger *slog.Logger, client *platform.Client, r *router.Router, idx *index.Index, cfg *config.Config) *Reconciler {
	return NewReconciler(logger, client, r, idx, cfg.Reconcile.Interval)
}

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, g *Gateway, m *conn.Manager, q *notify.Queue, rec *Reconciler) {
	// Live-tunable knobs follow the config file without a restart.
	cfg.OnReload(func(next *config.Config) {
		m.Tune(next.Heartbeat.Interval, next.Heartbeat.Timeout)
		q.SetTTL(next.Notifications.TTL)
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			g.BindManager(m)
			if err := g.Start(ctx); err != nil {
				return err
			}
			rec.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			rec.Stop()
			g.Stop()
			return nil
		},
	})
}
