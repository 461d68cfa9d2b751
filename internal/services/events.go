package services

import (
	"fmt"

	"go.uber.org/zap"

	"communitylibrary/internal/models"
	"communitylibrary/internal/notifications"
)

const (
	EventBookBorrowed         = "book_borrowed"
	EventBookReturned         = "book_returned"
	EventReservationAvailable = "reservation_available"
	EventReservationReady     = "reservation_ready"
)

// event is a person-facing notification produced by a committed transition.
type event struct {
	name    string
	person  *models.Person
	subject string
	body    string
}

func borrowedEvent(p *models.Person, b *models.Book, br *models.Borrowing) event {
	return event{
		name:    EventBookBorrowed,
		person:  p,
		subject: "Book borrowed: " + b.Title,
		body:    fmt.Sprintf("You borrowed %q. Please return it by %s.", b.Title, br.DueDate.Format("2006-01-02")),
	}
}

func returnedEvent(p *models.Person, b *models.Book, br *models.Borrowing) event {
	body := fmt.Sprintf("Thank you for returning %q.", b.Title)
	if br.FineAmount.IsPositive() {
		body += fmt.Sprintf(" An overdue fine of %s applies.", br.FineAmount.StringFixed(2))
	}
	return event{
		name:    EventBookReturned,
		person:  p,
		subject: "Book returned: " + b.Title,
		body:    body,
	}
}

func reservationEvent(name string, p *models.Person, b *models.Book) event {
	ev := event{name: name, person: p}
	switch name {
	case EventReservationReady:
		ev.subject = "Reservation ready for pickup: " + b.Title
		ev.body = fmt.Sprintf("Your reservation for %q is ready. Please collect it at the desk.", b.Title)
	default:
		ev.subject = "Reserved book available: " + b.Title
		ev.body = fmt.Sprintf("%q has been returned and is being held for you.", b.Title)
	}
	return ev
}

// publish enqueues ev on every channel enabled in cfg for which the person
// has an address. It runs after commit and never fails the caller.
func (o options) publish(cfg models.NotificationConfig, ev event) {
	if o.notifier == nil || ev.person == nil {
		return
	}

	var msgs []notifications.Message
	if cfg.EmailEnabled && ev.person.Email != "" {
		msgs = append(msgs, notifications.Message{
			Channel: notifications.ChannelEmail,
			To:      ev.person.Email,
			Subject: ev.subject,
			Body:    ev.body,
			Event:   ev.name,
		})
	}
	if cfg.SMSEnabled && ev.person.Phone != "" {
		msgs = append(msgs, notifications.Message{
			Channel: notifications.ChannelSMS,
			To:      ev.person.Phone,
			Body:    ev.body,
			Event:   ev.name,
		})
	}

	for _, msg := range msgs {
		if !o.notifier.Enqueue(msg) {
			o.logger.Warn("notification not queued",
				zap.String("event", ev.name),
				zap.String("channel", string(msg.Channel)),
				zap.Stringer("person_id", ev.person.ID))
		}
	}
}
