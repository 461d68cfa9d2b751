// Package notifications delivers best-effort email and SMS messages off the
// request path. Delivery is stubbed: senders log the message and hand back a
// synthetic id.
package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is one outbound notification. Event names the library event that
// produced it, if any.
type Message struct {
	Channel Channel
	To      string
	Subject string
	Body    string
	Event   string
}

// Sender delivers a message on one channel and returns the provider's id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// StubSender pretends to deliver. It never fails.
type StubSender struct {
	channel Channel
	logger  *zap.Logger
}

func NewEmailSender(logger *zap.Logger) *StubSender {
	return &StubSender{channel: ChannelEmail, logger: logger}
}

func NewSMSSender(logger *zap.Logger) *StubSender {
	return &StubSender{channel: ChannelSMS, logger: logger}
}

func (s *StubSender) Send(_ context.Context, msg Message) (string, error) {
	id := fmt.Sprintf("%s-%s", s.channel, uuid.NewString())
	s.logger.Info("notification sent",
		zap.String("channel", string(s.channel)),
		zap.String("message_id", id),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("event", msg.Event),
	)
	return id, nil
}
