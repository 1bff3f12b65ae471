package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skillswap/backend/internal/logging"
)

// Message is a rendered email ready for a transport.
type Message struct {
	To      string
	Subject string
	Type    EventType
	HTML    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher renders notifications and hands them to a Sender.
type Dispatcher struct {
	sender  Sender
	siteURL string
}

// NewDispatcher constructs a dispatcher. A nil sender logs messages instead
// of sending them.
func NewDispatcher(sender Sender, siteURL string) *Dispatcher {
	if sender == nil {
		sender = LogSender{}
	}
	return &Dispatcher{sender: sender, siteURL: siteURL}
}

// Dispatch validates, renders and sends n, returning the rendered preview.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) (Outcome, error) {
	if err := n.Validate(); err != nil {
		return Outcome{}, err
	}

	html, err := Render(n, d.siteURL)
	if err != nil {
		return Outcome{}, err
	}

	if err := d.sender.Send(ctx, Message{To: n.To, Subject: n.Subject, Type: n.Type, HTML: html}); err != nil {
		return Outcome{Preview: html}, fmt.Errorf("send %s notification: %w", n.Type, err)
	}

	logging.FromContext(ctx).Info("notification dispatched",
		slog.String("type", string(n.Type)),
		slog.String("to", n.To),
	)
	return Outcome{Preview: html}, nil
}
