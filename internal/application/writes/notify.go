package writes

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"outreach/internal/adapters/email"
	domain "outreach/internal/domain/outbox"
)

// EmailOperator returns a FailureHandler that emails the operator a
// summary of failed writes. An empty address disables the email.
func EmailOperator(sender email.Sender, to string) FailureHandler {
	return func(ctx context.Context, failed []domain.Entry) {
		if to == "" || len(failed) == 0 {
			return
		}
		msg := failureMessage(to, failed)
		if _, err := sender.Send(ctx, msg); err != nil {
			slog.Error("write_event", "event", "operator_notify_failed", "to", to, "error", err)
		}
	}
}

// Chain runs each handler in order.
func Chain(handlers ...FailureHandler) FailureHandler {
	return func(ctx context.Context, failed []domain.Entry) {
		for _, h := range handlers {
			if h != nil {
				h(ctx, failed)
			}
		}
	}
}

func failureMessage(to string, failed []domain.Entry) email.Message {
	var text, body strings.Builder
	body.WriteString("<p>These writes could not be saved and were dropped. The console has reloaded from the store.</p><ul>")
	for _, e := range failed {
		fmt.Fprintf(&text, "- %s (%d attempts): %s\n", e.Key(), e.Attempts, e.ErrorMessage)
		fmt.Fprintf(&body, "<li><code>%s</code> (%d attempts): %s</li>",
			html.EscapeString(e.Key()), e.Attempts, html.EscapeString(e.ErrorMessage))
	}
	body.WriteString("</ul>")

	subject := "Outreach: 1 write failed"
	if len(failed) > 1 {
		subject = fmt.Sprintf("Outreach: %d writes failed", len(failed))
	}
	return email.Message{
		To:      []string{to},
		Subject: subject,
		HTML:    body.String(),
		Text:    text.String(),
	}
}
