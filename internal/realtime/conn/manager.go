// Package conn owns the lifecycle of the live transport session: connect,
// heartbeat, reconnect with backoff, disconnect. One explicit state machine
// with a single run loop owning every transition; transport implementations
// are injected so the machine is testable without real network I/O.
package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hirelink/realtime-gateway/internal/domain/model"
)

// Sink receives every inbound event, in delivery order. The run loop calls it
// from a single goroutine, so downstream routing is serialized per session.
type Sink func(model.InboundEvent)

type Config struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 8
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	return c
}

// Manager drives the session state machine:
//
//	Disconnected -> Connecting -> Connected -> Reconnecting -> ... -> Disconnected
//
// Reconnect attempts are internally a connecting sub-state but reported
// externally as Reconnecting. Transport failures are fully contained here;
// only the terminal Disconnected state crosses the boundary ("offline").
type Manager struct {
	logger    *slog.Logger
	transport Transport
	token     string
	sink      Sink
	cfg       Config

	mu            sync.Mutex
	state         State
	retries       int
	connects      int // successful connections since construction
	subs          []chan State
	sessionCancel context.CancelFunc

	// tuned wakes the pump so a re-tuned heartbeat interval applies without
	// waiting out the previous timer.
	tuned chan struct{}
}

func NewManager(logger *slog.Logger, transport Transport, token string, sink Sink, cfg Config) *Manager {
	return &Manager{
		logger:    logger.With(slog.String("component", "conn")),
		transport: transport,
		token:     token,
		sink:      sink,
		cfg:       cfg.withDefaults(),
		state:     StateDisconnected,
		tuned:     make(chan struct{}, 1),
	}
}

// Tune adjusts the heartbeat timing live (config hot reload). Zero or
// negative values leave the current setting in place.
func (m *Manager) Tune(interval, timeout time.Duration) {
	m.mu.Lock()
	if interval > 0 {
		m.cfg.HeartbeatInterval = interval
	}
	if timeout > 0 {
		m.cfg.HeartbeatTimeout = timeout
	}
	m.mu.Unlock()

	select {
	case m.tuned <- struct{}{}:
	default:
	}
}

func (m *Manager) heartbeat() (interval, timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.HeartbeatInterval, m.cfg.HeartbeatTimeout
}

// Connect starts the session. Valid only from Disconnected.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		defer m.mu.Unlock()
		return fmt.Errorf("connect: invalid transition from %s", m.state)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.sessionCancel = cancel
	m.retries = 0
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	go m.run(ctx)
	return nil
}

// Disconnect (logout) is valid from any state, always ends in Disconnected,
// and cancels any pending reconnect attempt.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cancel := m.sessionCancel
	m.sessionCancel = nil
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// State returns the externally visible connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// FirstConnection is true while the most recent successful connection is the
// first since app start, letting the UI distinguish first-load from recovery.
func (m *Manager) FirstConnection() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects <= 1
}

// Subscribe returns a channel of state changes. Slow observers lose
// intermediate transitions, never block the machine.
func (m *Manager) Subscribe() <-chan State {
	ch := make(chan State, 8)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// run is the single owner of all transitions past Connecting.
func (m *Manager) run(ctx context.Context) {
	bo := m.newBackoff()

	for {
		sess, err := m.transport.Open(ctx, m.token)
		if err != nil {
			if ctx.Err() != nil {
				return // Disconnect() already settled the state
			}
			if errors.Is(err, model.ErrAuthExpired) {
				// Fatal to the session: no retry can fix a dead token.
				m.logger.Error("SESSION_AUTH_EXPIRED")
				m.settle()
				return
			}
			m.logger.Warn("CONNECT_ATTEMPT_FAILED", slog.Any("err", err))
			if !m.scheduleRetry(ctx, bo) {
				if ctx.Err() == nil {
					m.settle()
				}
				return
			}
			continue
		}

		// Disconnect() can land while the dial is in flight; the session it
		// raced must not resurrect the machine out of Disconnected.
		if ctx.Err() != nil {
			_ = sess.Close()
			return
		}

		m.mu.Lock()
		m.retries = 0
		m.connects++
		first := m.connects == 1
		m.setStateLocked(StateConnected)
		m.mu.Unlock()
		bo.Reset()
		m.logger.Info("SESSION_ESTABLISHED", slog.Bool("first", first))

		reason := m.pump(ctx, sess)
		_ = sess.Close()

		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("SESSION_LOST", slog.String("reason", reason))
		if !m.scheduleRetry(ctx, bo) {
			// A cancelled context here is a clean logout already settled by
			// Disconnect(), not retry exhaustion.
			if ctx.Err() == nil {
				m.settle()
			}
			return
		}
	}
}

// pump forwards inbound events and probes liveness until the session dies.
// The heartbeat catches silent failure: a connection that stopped answering
// without a transport-level error transitions to Reconnecting proactively.
func (m *Manager) pump(ctx context.Context, sess Session) string {
	interval, _ := m.heartbeat()
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "closed"

		case ev, ok := <-sess.Recv():
			if !ok {
				return "stream closed by transport"
			}
			m.sink(ev)

		case <-m.tuned:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			interval, _ = m.heartbeat()
			timer.Reset(interval)

		case <-timer.C:
			_, timeout := m.heartbeat()
			pctx, cancel := context.WithTimeout(ctx, timeout)
			err := sess.Ping(pctx)
			cancel()
			if err != nil {
				return "heartbeat timeout"
			}
			interval, _ = m.heartbeat()
			timer.Reset(interval)
		}
	}
}

// scheduleRetry moves to Reconnecting and sleeps the next backoff interval.
// Returns false when the retry budget is exhausted or the session was closed.
func (m *Manager) scheduleRetry(ctx context.Context, bo *backoff.ExponentialBackOff) bool {
	m.mu.Lock()
	m.retries++
	retries := m.retries
	if retries > m.cfg.MaxRetries {
		m.mu.Unlock()
		return false
	}
	m.setStateLocked(StateReconnecting)
	m.mu.Unlock()

	delay := bo.NextBackOff()
	m.logger.Info("RECONNECT_SCHEDULED",
		slog.Int("attempt", retries),
		slog.Duration("delay", delay),
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// settle reports the terminal offline state after the budget is spent.
func (m *Manager) settle() {
	m.mu.Lock()
	cancel := m.sessionCancel
	m.sessionCancel = nil
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.logger.Error("SESSION_OFFLINE", slog.Any("err", model.ErrOffline))
}

func (m *Manager) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.InitialBackoff
	bo.MaxInterval = m.cfg.MaxBackoff
	bo.RandomizationFactor = 0.4
	bo.Multiplier = 2.0
	return bo
}

// setStateLocked records the transition and fans it out without blocking.
func (m *Manager) setStateLocked(next State) {
	if m.state == next {
		return
	}
	m.state = next
	for _, ch := range m.subs {
		select {
		case ch <- next:
		default: // observer lagging, skip
		}
	}
}
