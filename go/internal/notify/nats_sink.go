package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	natsMaxReconnects = -1
	natsReconnectWait = 2 * time.Second
)

// Connect opens a NATS connection with the reconnect and logging options
// shared by the notification sink and the command consumer.
func Connect(url, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSSink publishes each notification as JSON on <prefix>.<room>, where the
// chat bridge picks it up.
type NATSSink struct {
	pub    Publisher
	prefix string
}

func NewNATSSink(pub Publisher, subjectPrefix string) *NATSSink {
	return &NATSSink{pub: pub, prefix: strings.TrimSuffix(subjectPrefix, ".")}
}

func (s *NATSSink) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return AsDeliveryError(msg.RoomID, err)
	}

	m, err := s.encode(msg)
	if err != nil {
		return AsDeliveryError(msg.RoomID, err)
	}
	if err := s.pub.PublishMsg(m); err != nil {
		return AsDeliveryError(msg.RoomID, fmt.Errorf("publish to %s: %w", m.Subject, err))
	}

	log.Debug().
		Str("subject", m.Subject).
		Str("notification_id", msg.ID.String()).
		Int("size", len(m.Data)).
		Msg("published notification")
	return nil
}

func (s *NATSSink) encode(msg Message) (*nats.Msg, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	m := nats.NewMsg(s.Subject(msg.RoomID))
	m.Data = data
	m.Header.Set(nats.MsgIdHdr, msg.ID.String())
	return m, nil
}

// Subject returns the subject a room's notifications are published on.
func (s *NATSSink) Subject(roomID string) string {
	return s.prefix + "." + SanitizeToken(roomID)
}

// SanitizeToken turns an arbitrary room id into a single NATS subject token.
func SanitizeToken(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '.' || r == '*' || r == '>' || r <= ' ' || r == 0x7f:
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
