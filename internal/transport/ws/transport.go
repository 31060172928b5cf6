// Package ws dials the platform's websocket edge and adapts it to the
// connection manager's Transport contract.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hirelink/realtime-gateway/internal/domain/model"
	"github.com/hirelink/realtime-gateway/internal/realtime/conn"
)

// Interface guard
var _ conn.Transport = (*Transport)(nil)

const recvBuffer = 64

type Transport struct {
	logger *slog.Logger
	url    string
	dialer *websocket.Dialer
}

func New(logger *slog.Logger, url string) *Transport {
	return &Transport{
		logger: logger.With(slog.String("component", "ws")),
		url:    url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
	}
}

func (t *Transport) Open(ctx context.Context, token string) (conn.Session, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := t.dialer.DialContext(ctx, t.url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, model.ErrAuthExpired
		}
		return nil, &model.TransportError{Op: "dial", Err: err}
	}

	s := &session{
		logger: t.logger,
		ws:     ws,
		events: make(chan model.InboundEvent, recvBuffer),
		pong:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	// Pong frames are only processed while a read is in progress, so the
	// read loop must stay hot for Ping to ever resolve.
	ws.SetPongHandler(func(string) error {
		select {
		case s.pong <- struct{}{}:
		default:
		}
		return nil
	})

	go s.readLoop()
	return s, nil
}

type session struct {
	logger *slog.Logger
	ws     *websocket.Conn
	events chan model.InboundEvent
	pong   chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

func (s *session) Recv() <-chan model.InboundEvent { return s.events }

// Ping writes a control frame and waits for the pong. An error here means
// silent failure: the peer stopped answering without closing the socket.
func (s *session) Ping(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	if err := s.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		return &model.TransportError{Op: "ping", Err: err}
	}

	select {
	case <-s.pong:
		return nil
	case <-ctx.Done():
		return &model.TransportError{Op: "ping", Err: ctx.Err()}
	case <-s.done:
		return &model.TransportError{Op: "ping", Err: context.Canceled}
	}
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.ws.Close()
	})
	return nil
}

// readLoop decodes frames into inbound events until the socket dies. The
// events channel closing is the failure signal upstream.
func (s *session) readLoop() {
	defer close(s.events)

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			select {
			case <-s.done: // clean close, no noise
			default:
				s.logger.Warn("WS_READ_FAILED", slog.Any("err", err))
			}
			return
		}

		ev, err := model.DecodeInboundEvent(data)
		if err != nil {
			// Poison frame: drop it, never kill the stream over one payload.
			s.logger.Warn("WS_FRAME_DROPPED", slog.Any("err", err))
			continue
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}
