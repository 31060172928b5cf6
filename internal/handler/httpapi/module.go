package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/hirelink/realtime-gateway/config"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewHandler),
	fx.Invoke(registerServer),
)

func registerServer(lc fx.Lifecycle, logger *slog.Logger, cfg *config.Config, h *Handler) {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("HTTP_API_LISTENING", slog.String("addr", cfg.Listen))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP_API_FAILED", slog.Any("err", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
