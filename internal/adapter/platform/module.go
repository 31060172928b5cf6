package platform

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/hirelink/realtime-gateway/config"
)

var Module = fx.Module("platform",
	fx.Provide(func(logger *slog.Logger, cfg *config.Config) *Client {
		return NewClient(logger, Config{
			BaseURL: cfg.Platform.BaseURL,
			Token:   cfg.Auth.Token,
			Timeout: cfg.Platform.Timeout,
		})
	}),
)
