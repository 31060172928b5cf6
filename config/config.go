// Package config loads the gateway configuration from file, environment and
// command-line flags, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Listen string `mapstructure:"listen"`

	Auth struct {
		Token  string   `mapstructure:"token"`
		UserID int64    `mapstructure:"user_id"`
		Roles  []string `mapstructure:"roles"`
	} `mapstructure:"auth"`

	Platform struct {
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"platform"`

	Stream struct {
		// Mode selects the live transport: "ws" dials the websocket edge,
		// "amqp" consumes the platform event exchange directly.
		Mode     string `mapstructure:"mode"`
		URL      string `mapstructure:"url"`
		AMQPURI  string `mapstructure:"amqp_uri"`
		Exchange string `mapstructure:"exchange"`
	} `mapstructure:"stream"`

	Heartbeat struct {
		Interval time.Duration `mapstructure:"interval"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"heartbeat"`

	Reconnect struct {
		MaxRetries   int           `mapstructure:"max_retries"`
		InitialDelay time.Duration `mapstructure:"initial_delay"`
		MaxDelay     time.Duration `mapstructure:"max_delay"`
	} `mapstructure:"reconnect"`

	Notifications struct {
		Capacity int `mapstructure:"capacity"`
		// TTL enables timed auto-expiry; zero keeps the manual-dismissal
		// default.
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"notifications"`

	Reconcile struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"reconcile"`

	reload *reloadHub `mapstructure:"-"`
}

// reloadHub fans validated config snapshots out to subscribers.
type reloadHub struct {
	mu   sync.Mutex
	subs []func(*Config)
}

// OnReload registers fn to run with every validated snapshot the file watcher
// picks up. Snapshots are fresh values; the Config returned by Load is never
// mutated after construction, so construction-time reads stay race-free.
func (c *Config) OnReload(fn func(*Config)) {
	if c.reload == nil {
		return
	}
	c.reload.mu.Lock()
	c.reload.subs = append(c.reload.subs, fn)
	c.reload.mu.Unlock()
}

func (c *Config) broadcast(next *Config) {
	if c.reload == nil {
		return
	}
	c.reload.mu.Lock()
	subs := append(([]func(*Config))(nil), c.reload.subs...)
	c.reload.mu.Unlock()
	for _, fn := range subs {
		fn(next)
	}
}

// Flags returns the pflag set bound into viper by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("realtime-gateway", pflag.ContinueOnError)
	fs.String("listen", ":8090", "local API listen address")
	fs.String("stream.mode", "ws", "live transport: ws or amqp")
	fs.String("platform.base_url", "http://localhost:8080", "platform REST base URL")
	return fs
}

// Load reads the configuration. An empty path falls back to ./config.yaml
// when present; the file itself is optional, env and defaults carry a dev
// setup on their own.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen", ":8090")
	v.SetDefault("platform.timeout", 10*time.Second)
	v.SetDefault("stream.mode", "ws")
	v.SetDefault("stream.exchange", "mk_events")
	v.SetDefault("heartbeat.interval", 25*time.Second)
	v.SetDefault("heartbeat.timeout", 10*time.Second)
	v.SetDefault("reconnect.max_retries", 8)
	v.SetDefault("reconnect.initial_delay", time.Second)
	v.SetDefault("reconnect.max_delay", 30*time.Second)
	v.SetDefault("notifications.capacity", 64)
	v.SetDefault("notifications.ttl", 0)
	v.SetDefault("reconcile.interval", 2*time.Minute)

	v.SetEnvPrefix("HIRELINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Hot reload for live-tunable knobs (heartbeat timing, notification TTL).
	// Each change produces a fresh, validated snapshot handed to OnReload
	// subscribers; structural settings (transport mode, listen address) still
	// need a restart. The original Config is never touched.
	cfg.reload = &reloadHub{}
	v.OnConfigChange(func(e fsnotify.Event) {
		next := &Config{}
		if err := v.Unmarshal(next); err != nil {
			slog.Warn("CONFIG_RELOAD_FAILED", slog.Any("err", err))
			return
		}
		if err := next.validate(); err != nil {
			slog.Warn("CONFIG_RELOAD_REJECTED", slog.Any("err", err))
			return
		}
		slog.Info("CONFIG_RELOADED", slog.String("file", e.Name), slog.String("op", e.Op.String()))
		cfg.broadcast(next)
	})
	v.WatchConfig()

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.UserID <= 0 {
		return fmt.Errorf("config: auth.user_id is required")
	}
	if c.Auth.Token == "" {
		return fmt.Errorf("config: auth.token is required")
	}
	switch c.Stream.Mode {
	case "ws":
		if c.Stream.URL == "" {
			return fmt.Errorf("config: stream.url is required in ws mode")
		}
	case "amqp":
		if c.Stream.AMQPURI == "" {
			return fmt.Errorf("config: stream.amqp_uri is required in amqp mode")
		}
	default:
		return fmt.Errorf("config: unknown stream.mode %q", c.Stream.Mode)
	}
	return nil
}
