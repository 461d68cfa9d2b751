package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"communitylibrary/internal/notifications"
)

// SendResult is what the stub providers report back.
type SendResult struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// NotificationService sends ad hoc messages on behalf of staff. Delivery is
// synchronous against the configured senders.
type NotificationService interface {
	SendEmail(ctx context.Context, to, subject, message string) (*SendResult, error)
	SendSMS(ctx context.Context, to, message string) (*SendResult, error)
}

type notificationService struct {
	options
	email notifications.Sender
	sms   notifications.Sender
}

func NewNotificationService(email, sms notifications.Sender, opts ...Option) NotificationService {
	return &notificationService{options: buildOptions(opts), email: email, sms: sms}
}

func (s *notificationService) SendEmail(ctx context.Context, to, subject, message string) (*SendResult, error) {
	to = strings.TrimSpace(to)
	switch {
	case to == "":
		return nil, invalid("to", "is required")
	case !strings.Contains(to, "@"):
		return nil, invalid("to", "is not an email address")
	case strings.TrimSpace(subject) == "":
		return nil, invalid("subject", "is required")
	case strings.TrimSpace(message) == "":
		return nil, invalid("message", "is required")
	}
	return s.send(ctx, s.email, notifications.Message{
		Channel: notifications.ChannelEmail,
		To:      to,
		Subject: subject,
		Body:    message,
	})
}

func (s *notificationService) SendSMS(ctx context.Context, to, message string) (*SendResult, error) {
	to = strings.TrimSpace(to)
	switch {
	case to == "":
		return nil, invalid("to", "is required")
	case strings.TrimSpace(message) == "":
		return nil, invalid("message", "is required")
	}
	return s.send(ctx, s.sms, notifications.Message{
		Channel: notifications.ChannelSMS,
		To:      to,
		Body:    message,
	})
}

func (s *notificationService) send(ctx context.Context, sender notifications.Sender, msg notifications.Message) (*SendResult, error) {
	id, err := sender.Send(ctx, msg)
	if err != nil {
		s.logger.Error("send notification failed", zap.String("channel", string(msg.Channel)), zap.Error(err))
		return nil, err
	}
	return &SendResult{MessageID: id, Status: "sent"}, nil
}
