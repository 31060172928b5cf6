package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hirelink/realtime-gateway/config"
	"github.com/hirelink/realtime-gateway/internal/tui"
)

const (
	ServiceName      = "realtime-gateway"
	ServiceNamespace = "hirelink"
)

var (
	version = "0.0.0"
	commit  = "hash"
	branch  = "branch"
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Realtime session gateway for the Hirelink marketplace",
		Version: version,
		Commands: []*cli.Command{
			serverCmd(),
			dashboardCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the gateway daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			flags := config.Flags()
			if err := flags.Parse(c.Args().Slice()); err != nil {
				return err
			}
			cfg, err := config.Load(c.String("config_file"), flags)
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			return app.Stop(context.Background())
		},
	}
}

func dashboardCmd() *cli.Command {
	return &cli.Command{
		Name:    "dashboard",
		Aliases: []string{"d"},
		Usage:   "Attach a terminal dashboard to a running gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: "http://127.0.0.1:8090",
				Usage: "Base URL of the gateway HTTP API",
			},
		},
		Action: func(c *cli.Context) error {
			logger := ProvideLogger()
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return tui.New(logger, c.String("addr")).Run(ctx)
		},
	}
}
