package conn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hirelink/realtime-gateway/internal/domain/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		HeartbeatInterval: 10 * time.Millisecond,
		HeartbeatTimeout:  5 * time.Millisecond,
		MaxRetries:        3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
	}
}

type fakeSession struct {
	events chan model.InboundEvent

	mu      sync.Mutex
	pingErr error
	closed  bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan model.InboundEvent, 16)}
}

func (s *fakeSession) Recv() <-chan model.InboundEvent { return s.events }

func (s *fakeSession) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

func (s *fakeSession) failPings() {
	s.mu.Lock()
	s.pingErr = errors.New("no heartbeat ack")
	s.mu.Unlock()
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

type fakeTransport struct {
	mu       sync.Mutex
	attempts int
	failAll  bool
	sessions []*fakeSession
}

func (t *fakeTransport) Open(ctx context.Context, token string) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	if t.failAll {
		return nil, &model.TransportError{Op: "open", Err: errors.New("refused")}
	}
	s := newFakeSession()
	t.sessions = append(t.sessions, s)
	return s, nil
}

func (t *fakeTransport) openCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

func (t *fakeTransport) lastSession() *fakeSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sessions) == 0 {
		return nil
	}
	return t.sessions[len(t.sessions)-1]
}

func waitState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for m.State() != want {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s, stuck in %s", want, m.State())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestConnectEstablishesSession(t *testing.T) {
	tr := &fakeTransport{}
	var mu sync.Mutex
	var received []model.InboundEvent
	sink := func(ev model.InboundEvent) {
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
	}

	m := NewManager(testLogger(), tr, "token", sink, testConfig())
	defer m.Disconnect()

	if m.State() != StateDisconnected {
		t.Fatalf("initial state = %s", m.State())
	}
	if err := m.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, m, StateConnected)

	if !m.FirstConnection() {
		t.Error("expected first connection flag")
	}

	tr.lastSession().events <- model.InboundEvent{Kind: model.KindSystem, System: &model.SystemNotice{Code: "HELLO"}}

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("event never reached sink")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestConnectInvalidWhileActive(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(testLogger(), tr, "token", func(model.InboundEvent) {}, testConfig())
	defer m.Disconnect()

	if err := m.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, m, StateConnected)

	if err := m.Connect(); err == nil {
		t.Error("second connect from CONNECTED must be rejected")
	}
}

func TestHeartbeatTimeoutTriggersReconnect(t *testing.T) {
	tr := &fakeTransport{}
	m := NewManager(testLogger(), tr, "token", func(model.InboundEvent) {}, testConfig())
	defer m.Disconnect()

	states := m.Subscribe()

	if err := m.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, m, StateConnected)

	// Silent failure: pings stop being acknowledged, no transport error.
	tr.lastSession().failPings()

	sawReconnecting := false
	deadline := time.After(2 * time.Second)
	for !sawReconnecting {
		select {
		case s := <-states:
			if s == StateReconnecting {
				sawReconnecting = true
			}
			if s == StateDisconnected {
				t.Fatal("heartbeat timeout must not go straight to DISCONNECTED")
			}
		case <-deadline:
			t.Fatal("never observed RECONNECTING after heartbeat timeout")
		}
	}

	// A fresh session comes up and the machine recovers.
	waitState(t, m, StateConnected)
	if m.FirstConnection() {
		t.Error("recovery must clear the first-connection flag")
	}
	if tr.openCount() < 2 {
		t.Errorf("expected a reconnect attempt, got %d opens", tr.openCount())
	}
}

func TestRetriesExhaustedEndsDisconnected(t *testing.T) {
	tr := &fakeTransport{failAll: true}
	cfg := testConfig()
	cfg.MaxRetries = 2
	m := NewManager(testLogger(), tr, "token", func(model.InboundEvent) {}, cfg)

	if err := m.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, m, StateDisconnected)

	// Initial attempt plus the retry budget, nothing more.
	if got := tr.openCount(); got != 3 {
		t.Errorf("expected 3 open attempts (1 + 2 retries), got %d", got)
	}
}

func TestDisconnectFromAnyState(t *testing.T) {
	// From CONNECTED.
	tr := &fakeTransport{}
	m := NewManager(testLogger(), tr, "token", func(model.InboundEvent) {}, testConfig())
	if err := m.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, m, StateConnected)
	m.Disconnect()
	waitState(t, m, StateDisconnected)

	// From RECONNECTING: transport refuses, manager is mid-backoff.
	tr2 := &fakeTransport{failAll: true}
	cfg := testConfig()
	cfg.InitialBackoff = time.Hour // park the retry so Disconnect races it
	cfg.MaxBackoff = time.Hour
	m2 := NewManager(testLogger(), tr2, "token", func(model.InboundEvent) {}, cfg)
	if err := m2.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, m2, StateReconnecting)
	m2.Disconnect()
	waitState(t, m2, StateDisconnected)

	// From DISCONNECTED: a no-op, still terminal.
	m2.Disconnect()
	if m2.State() != StateDisconnected {
		t.Errorf("state after double disconnect = %s", m2.State())
	}
}

// blockingTransport parks Open until released, so tests can race Disconnect
// against an in-flight dial.
type blockingTransport struct {
	fakeTransport
	enterOnce sync.Once
	entered   chan struct{}
	release   chan struct{}
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (t *blockingTransport) Open(ctx context.Context, token string) (Session, error) {
	t.enterOnce.Do(func() { close(t.entered) })
	<-t.release
	return t.fakeTransport.Open(ctx, token)
}

func TestDisconnectDuringDialStaysDisconnected(t *testing.T) {
	tr := newBlockingTransport()
	m := NewManager(testLogger(), tr, "token", func(model.InboundEvent) {}, testConfig())

	if err := m.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	<-tr.entered
	m.Disconnect()
	close(tr.release)

	// The dial still completes and hands back a session; it must be closed
	// and must never drag the machine out of Disconnected.
	deadline := time.After(2 * time.Second)
	for tr.lastSession() == nil {
		select {
		case <-deadline:
			t.Fatal("dial never completed")
		case <-time.After(time.Millisecond):
		}
	}
	sess := tr.lastSession()
	for !sess.isClosed() {
		select {
		case <-deadline:
			t.Fatal("raced session never closed")
		case <-time.After(time.Millisecond):
		}
	}
	if got := m.State(); got != StateDisconnected {
		t.Fatalf("state after disconnect = %s, want %s", got, StateDisconnected)
	}

	// The machine is reusable: a fresh Connect is a valid transition again.
	if err := m.Connect(); err != nil {
		t.Fatalf("reconnect after raced dial: %v", err)
	}
	m.Disconnect()
}

// recordingHandler captures log messages so tests can assert on what was
// (not) reported.
type recordingHandler struct {
	mu   sync.Mutex
	msgs []string
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.msgs = append(h.msgs, r.Message)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) has(msg string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.msgs {
		if m == msg {
			return true
		}
	}
	return false
}

func TestTuneShortensHeartbeatLive(t *testing.T) {
	tr := &fakeTransport{}
	cfg := testConfig()
	cfg.HeartbeatInterval = time.Hour // effectively no heartbeat until re-tuned
	m := NewManager(testLogger(), tr, "token", func(model.InboundEvent) {}, cfg)
	defer m.Disconnect()

	states := m.Subscribe()
	if err := m.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, m, StateConnected)

	// The session is silently dead; only a heartbeat can notice. Re-tuning
	// must take effect now, not after the parked hour-long timer fires.
	tr.lastSession().failPings()
	m.Tune(5*time.Millisecond, 5*time.Millisecond)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-states:
			if s == StateReconnecting {
				return
			}
		case <-deadline:
			t.Fatal("re-tuned heartbeat never detected the dead session")
		}
	}
}

func TestDisconnectDuringBackoffIsNotOffline(t *testing.T) {
	rec := &recordingHandler{}
	tr := &fakeTransport{failAll: true}
	cfg := testConfig()
	cfg.InitialBackoff = time.Hour // park the retry so Disconnect lands mid-sleep
	cfg.MaxBackoff = time.Hour
	m := NewManager(slog.New(rec), tr, "token", func(model.InboundEvent) {}, cfg)

	if err := m.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, m, StateReconnecting)
	m.Disconnect()
	waitState(t, m, StateDisconnected)

	// Give the run loop time to observe the cancellation and exit.
	time.Sleep(50 * time.Millisecond)
	if rec.has("SESSION_OFFLINE") {
		t.Error("clean logout during backoff must not be reported as offline")
	}
}

func TestAuthExpiredIsTerminal(t *testing.T) {
	tr := &authExpiredTransport{}
	m := NewManager(testLogger(), tr, "stale", func(model.InboundEvent) {}, testConfig())

	if err := m.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitState(t, m, StateDisconnected)

	if tr.attempts != 1 {
		t.Errorf("expired token must not be retried, got %d attempts", tr.attempts)
	}
}

type authExpiredTransport struct {
	attempts int
}

func (t *authExpiredTransport) Open(ctx context.Context, token string) (Session, error) {
	t.attempts++
	return nil, model.ErrAuthExpired
}
