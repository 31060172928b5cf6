package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  token: "tkn"
  user_id: 7
stream:
  url: "wss://edge.example/events"
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Listen != ":8090" {
		t.Errorf("listen default = %q", cfg.Listen)
	}
	if cfg.Stream.Mode != "ws" {
		t.Errorf("stream mode default = %q", cfg.Stream.Mode)
	}
	if cfg.Heartbeat.Interval != 25*time.Second {
		t.Errorf("heartbeat interval default = %s", cfg.Heartbeat.Interval)
	}
	if cfg.Notifications.TTL != 0 {
		t.Errorf("notifications must default to manual dismissal, ttl = %s", cfg.Notifications.TTL)
	}
	if cfg.Auth.UserID != 7 || cfg.Auth.Token != "tkn" {
		t.Errorf("auth not read: %+v", cfg.Auth)
	}
}

func TestLoadRejectsIncompleteAuth(t *testing.T) {
	path := writeConfig(t, `
auth:
  user_id: 7
stream:
  url: "wss://edge.example/events"
`)

	if _, err := Load(path, nil); err == nil {
		t.Error("missing auth.token must fail validation")
	}
}

func TestLoadRejectsModeWithoutEndpoint(t *testing.T) {
	path := writeConfig(t, `
auth:
  token: "tkn"
  user_id: 7
stream:
  mode: "amqp"
`)

	if _, err := Load(path, nil); err == nil {
		t.Error("amqp mode without amqp_uri must fail validation")
	}
}

func TestReloadBroadcastsSnapshots(t *testing.T) {
	cfg := &Config{reload: &reloadHub{}}

	var got []*Config
	cfg.OnReload(func(next *Config) { got = append(got, next) })

	next := &Config{}
	next.Heartbeat.Interval = 5 * time.Second
	cfg.broadcast(next)

	if len(got) != 1 || got[0].Heartbeat.Interval != 5*time.Second {
		t.Fatalf("snapshot not delivered: %+v", got)
	}
	// The original config stays untouched; consumers re-tune from the
	// snapshot, they do not share mutable state.
	if cfg.Heartbeat.Interval != 0 {
		t.Errorf("reload mutated the original config: %s", cfg.Heartbeat.Interval)
	}
}
