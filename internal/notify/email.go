package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/evcraddock/house-deals/internal/email"
	"github.com/evcraddock/house-deals/internal/money"
)

// EmailNotifier mails deal events to a fixed list of recipients.
type EmailNotifier struct {
	cfg  email.SMTPConfig
	send func(cfg email.SMTPConfig, subject, body string) error
}

// NewEmailNotifier creates an email notifier. It is disabled unless cfg is complete.
func NewEmailNotifier(cfg email.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, send: email.Send}
}

// Enabled reports whether events are delivered.
func (n *EmailNotifier) Enabled() bool {
	return n.cfg.IsConfigured()
}

// Notify implements Notifier.
func (n *EmailNotifier) Notify(_ context.Context, e Event) error {
	if !n.Enabled() {
		return nil
	}

	title := eventTitle(e.Type)
	subject := fmt.Sprintf("[house-deals] %s on deal %s", title, e.DealID)
	if err := n.send(n.cfg, subject, formatPlainEvent(title, e)); err != nil {
		return fmt.Errorf("emailing event for deal %s: %w", e.DealID, err)
	}
	return nil
}

func formatPlainEvent(title string, e Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", title)
	fmt.Fprintf(&b, "Deal:     %s\n", e.DealID)
	if e.PropertyID != "" {
		fmt.Fprintf(&b, "Property: %s\n", e.PropertyID)
	}
	if e.OfferID != "" {
		fmt.Fprintf(&b, "Offer:    %s\n", e.OfferID)
	}
	if e.Amount > 0 {
		fmt.Fprintf(&b, "Amount:   %s\n", money.Format(e.Amount, e.Currency))
	}
	if e.ActorID != "" {
		fmt.Fprintf(&b, "By:       %s\n", e.ActorID)
	}
	if e.RecipientID != "" {
		fmt.Fprintf(&b, "For:      %s\n", e.RecipientID)
	}
	return b.String()
}
