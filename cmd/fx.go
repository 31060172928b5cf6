package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/hirelink/realtime-gateway/config"
	"github.com/hirelink/realtime-gateway/internal/adapter/platform"
	"github.com/hirelink/realtime-gateway/internal/domain/model"
	"github.com/hirelink/realtime-gateway/internal/handler/httpapi"
	"github.com/hirelink/realtime-gateway/internal/realtime/conn"
	"github.com/hirelink/realtime-gateway/internal/service"
	"github.com/hirelink/realtime-gateway/internal/transport/amqp"
	"github.com/hirelink/realtime-gateway/internal/transport/ws"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideTransport,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
		platform.Module,
		service.Module,
		httpapi.Module,
	)
}

func ProvideLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})).With(
		slog.String("service", ServiceName),
		slog.String("namespace", ServiceNamespace),
		slog.String("version", version),
	)
	slog.SetDefault(logger)
	return logger
}

// ProvideTransport selects the event stream flavor: the websocket edge for
// remote deployments, a direct exchange subscription when the gateway sits
// next to the broker.
func ProvideTransport(logger *slog.Logger, cfg *config.Config, identity model.Identity) (conn.Transport, error) {
	switch cfg.Stream.Mode {
	case "ws":
		return ws.New(logger, cfg.Stream.URL), nil
	case "amqp":
		return amqp.New(logger, cfg.Stream.AMQPURI, cfg.Stream.Exchange, identity), nil
	default:
		return nil, fmt.Errorf("unknown stream mode %q", cfg.Stream.Mode)
	}
}
