package conn

import (
	"context"

	"github.com/hirelink/realtime-gateway/internal/domain/model"
)

// Transport opens one live session against the platform event stream.
// Production implementations live in internal/transport (websocket, AMQP);
// tests inject fakes so the state machine runs without network I/O.
type Transport interface {
	Open(ctx context.Context, token string) (Session, error)
}

// Session is one established bidirectional channel.
type Session interface {
	// Recv yields decoded inbound events in delivery order. The channel is
	// closed when the transport fails or the peer closes cleanly.
	Recv() <-chan model.InboundEvent

	// Ping probes liveness. An error (or ctx expiry) means the connection
	// is silently dead even though no transport error has surfaced yet.
	Ping(ctx context.Context) error

	// Close releases the underlying channel. Idempotent.
	Close() error
}
