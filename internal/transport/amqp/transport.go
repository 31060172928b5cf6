// Package amqp consumes the platform event exchange directly over
// watermill-amqp, for deployments that sit next to the broker instead of
// behind the websocket edge.
package amqp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	wmamqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"

	"github.com/hirelink/realtime-gateway/internal/domain/model"
	"github.com/hirelink/realtime-gateway/internal/realtime/conn"
)

// Interface guard
var _ conn.Transport = (*Transport)(nil)

const recvBuffer = 64

type Transport struct {
	logger   *slog.Logger
	uri      string
	exchange string
	viewer   model.Identity
}

func New(logger *slog.Logger, uri, exchange string, viewer model.Identity) *Transport {
	return &Transport{
		logger:   logger.With(slog.String("component", "amqp")),
		uri:      uri,
		exchange: exchange,
		viewer:   viewer,
	}
}

// Open builds a per-session subscriber with its own queue. The token is
// unused: broker credentials live in the AMQP URI, identity only scopes the
// locality filter.
func (t *Transport) Open(ctx context.Context, _ string) (conn.Session, error) {
	cfg := wmamqp.NewDurablePubSubConfig(
		t.uri,
		wmamqp.GenerateQueueNameTopicNameWithSuffix("realtime-gateway"),
	)

	sub, err := wmamqp.NewSubscriber(cfg, watermill.NewSlogLogger(t.logger))
	if err != nil {
		return nil, &model.TransportError{Op: "amqp subscribe", Err: err}
	}

	subCtx, cancel := context.WithCancel(context.Background())
	msgs, err := sub.Subscribe(subCtx, t.exchange)
	if err != nil {
		cancel()
		_ = sub.Close()
		return nil, &model.TransportError{Op: "amqp subscribe", Err: err}
	}

	s := &session{
		logger: t.logger,
		sub:    sub,
		cancel: cancel,
		events: make(chan model.InboundEvent, recvBuffer),
		done:   make(chan struct{}),
	}
	go s.consume(msgs, t.viewer)
	return s, nil
}

type session struct {
	logger *slog.Logger
	sub    *wmamqp.Subscriber
	cancel context.CancelFunc
	events chan model.InboundEvent

	closeOnce sync.Once
	done      chan struct{}
}

func (s *session) Recv() <-chan model.InboundEvent { return s.events }

// Ping is a no-op: the AMQP client maintains broker heartbeats itself and a
// dead connection closes the subscription channel, which the manager treats
// as a transport failure.
func (s *session) Ping(ctx context.Context) error { return nil }

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		_ = s.sub.Close()
	})
	return nil
}

// consume decodes and acks the exchange feed, keeping only events addressed
// to this viewer. The exchange fans out to every gateway instance; the
// filter is what scopes a session to its user.
func (s *session) consume(msgs <-chan *message.Message, viewer model.Identity) {
	defer close(s.events)

	for msg := range msgs {
		ev, err := model.DecodeInboundEvent(msg.Payload)
		if err != nil {
			s.logger.Warn("AMQP_FRAME_DROPPED",
				slog.Any("err", err),
				slog.String("msg_id", msg.UUID),
			)
			msg.Ack() // poison payload, do not redeliver
			continue
		}

		if !addressedTo(ev, viewer.ID) {
			msg.Ack()
			continue
		}

		select {
		case s.events <- ev:
			msg.Ack()
		case <-s.done:
			msg.Nack()
			return
		}
	}
}

func addressedTo(ev model.InboundEvent, userID int64) bool {
	switch ev.Kind {
	case model.KindMessage:
		return ev.Message.RecipientID == userID || ev.Message.SenderID == userID
	default:
		// Application and system events are already scoped by the exchange.
		return true
	}
}
