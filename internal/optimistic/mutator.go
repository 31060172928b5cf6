// Package optimistic implements the local-first mutation engine: UI actions
// apply their state transition immediately, the remote confirmation call runs
// in the background, and the entity either reconciles to the authoritative
// server value or rolls back to the pre-transition snapshot.
package optimistic

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hirelink/realtime-gateway/internal/domain/model"
)

// RemoteCall issues the confirmation request and returns the authoritative
// entity state. The remote value always wins on conflict.
type RemoteCall[T any] func(ctx context.Context) (T, error)

// State wraps one logical entity value with its pending-confirmation flag and
// the previous value kept for rollback.
//
// Invariant: at most one remote call is outstanding per State at a time; the
// mutator enforces it through the entity key.
type State[T any] struct {
	mu      sync.Mutex
	value   T
	prev    T
	pending bool
}

func NewState[T any](initial T) *State[T] {
	return &State[T]{value: initial}
}

// Get returns the current (possibly optimistic) value.
func (s *State[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Pending reports whether a confirmation call is in flight.
func (s *State[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *State[T]) stage(next T) {
	s.mu.Lock()
	s.prev = s.value
	s.value = next
	s.pending = true
	s.mu.Unlock()
}

func (s *State[T]) commit(authoritative T) {
	s.mu.Lock()
	s.value = authoritative
	s.pending = false
	s.mu.Unlock()
}

func (s *State[T]) rollback() {
	s.mu.Lock()
	s.value = s.prev
	s.pending = false
	s.mu.Unlock()
}

// Mutator coordinates single-flight per entity key. Shared by all optimistic
// call sites of one session; Close binds its lifetime to logout.
type Mutator struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}

	// Session-scoped context. Cancelled on Close so that every in-flight
	// confirmation call fails and rolls back; a logout mid-flight must
	// report the mutation as failed, never leave it half-applied.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewMutator(logger *slog.Logger) *Mutator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Mutator{
		logger:  logger.With(slog.String("component", "optimistic")),
		pending: make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Close fails all future and in-flight mutations. Idempotent.
func (m *Mutator) Close() {
	m.cancel()
}

// begin claims the entity key, rejecting concurrent attempts outright.
// Never queued, never dispatched twice: rapid repeated input on the same
// entity must not produce a toggle storm.
func (m *Mutator) begin(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.pending[key]; busy {
		return model.ErrMutationInFlight
	}
	m.pending[key] = struct{}{}
	return nil
}

func (m *Mutator) end(key string) {
	m.mu.Lock()
	delete(m.pending, key)
	m.mu.Unlock()
}

// Apply runs one optimistic mutation end to end:
//
//  1. reject with ErrMutationInFlight if the key is already pending;
//  2. stage the local transition synchronously so the UI reflects it now;
//  3. invoke the remote call under the caller's ctx joined with the session;
//  4. on success commit the authoritative value, on failure roll back.
//
// The returned value is the entity state after resolution. Methods cannot be
// generic, so Apply is a package-level function over the shared Mutator.
func Apply[T any](ctx context.Context, m *Mutator, key string, st *State[T], next T, call RemoteCall[T]) (T, error) {
	if err := m.begin(key); err != nil {
		m.logger.Debug("MUTATION_REJECTED_BUSY", slog.String("entity", key))
		return st.Get(), err
	}
	defer m.end(key)

	st.stage(next)

	callCtx, cancel := joinSession(ctx, m.ctx)
	defer cancel()

	authoritative, err := call(callCtx)
	if err != nil {
		st.rollback()
		m.logger.Warn("MUTATION_ROLLED_BACK",
			slog.String("entity", key),
			slog.Any("err", err),
		)
		return st.Get(), err
	}

	st.commit(authoritative)
	return authoritative, nil
}

// Fire runs a mutation that has no local counter to revert (e.g. quick-apply
// message send): single-flight and session cancellation still apply, the
// outcome surfaces only as a success/failure result for the caller's toast.
func Fire[T any](ctx context.Context, m *Mutator, key string, call RemoteCall[T]) (T, error) {
	var zero T
	if err := m.begin(key); err != nil {
		return zero, err
	}
	defer m.end(key)

	callCtx, cancel := joinSession(ctx, m.ctx)
	defer cancel()

	return call(callCtx)
}

// joinSession derives a context cancelled by either the caller's deadline or
// the session shutdown.
func joinSession(ctx, session context.Context) (context.Context, context.CancelFunc) {
	joined, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(session, cancel)
	return joined, func() {
		stop()
		cancel()
	}
}
