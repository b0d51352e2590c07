package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	queueGroup     = "miou"
	handleTimeout  = 30 * time.Second
	pendingMsgsCap = 1024
)

// Reply is the response sent back to the chat bridge.
type Reply struct {
	Reply   string `json:"reply"`
	Ignored bool   `json:"ignored,omitempty"`
}

// NATSConsumer receives chat messages as NATS requests and answers them.
type NATSConsumer struct {
	nc      *nats.Conn
	subject string
	handler *Handler
	sub     *nats.Subscription
}

func NewNATSConsumer(nc *nats.Conn, subject string, handler *Handler) *NATSConsumer {
	return &NATSConsumer{nc: nc, subject: subject, handler: handler}
}

// Run subscribes and blocks until ctx is cancelled, then drains the
// subscription.
func (c *NATSConsumer) Run(ctx context.Context) error {
	sub, err := c.nc.QueueSubscribe(c.subject, queueGroup, func(msg *nats.Msg) {
		c.handleMsg(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.subject, err)
	}
	if err := sub.SetPendingLimits(pendingMsgsCap, -1); err != nil {
		log.Warn().Err(err).Msg("failed to set pending limits")
	}
	c.sub = sub

	log.Info().Str("subject", c.subject).Str("queue", queueGroup).Msg("command consumer started")

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		log.Error().Err(err).Msg("failed to drain command subscription")
	}
	log.Info().Msg("command consumer stopped")
	return nil
}

func (c *NATSConsumer) handleMsg(ctx context.Context, msg *nats.Msg) {
	data, err := c.process(ctx, msg.Data)
	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to process command message")
	}
	if msg.Reply == "" || data == nil {
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to send command reply")
	}
}

// process decodes a request and encodes the reply.
func (c *NATSConsumer) process(ctx context.Context, payload []byte) ([]byte, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("unmarshal command: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	text, ok := c.handler.Handle(ctx, req)
	data, err := json.Marshal(Reply{Reply: text, Ignored: !ok})
	if err != nil {
		return nil, fmt.Errorf("marshal reply: %w", err)
	}
	return data, nil
}
