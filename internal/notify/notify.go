// Package notify delivers deal events to the parties after a negotiation
// action has committed.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/evcraddock/house-deals/internal/money"
)

// EventType names what happened in a deal.
type EventType string

const (
	OfferSubmitted EventType = "offer_submitted"
	OfferCountered EventType = "offer_countered"
	OfferAccepted  EventType = "offer_accepted"
	OfferRejected  EventType = "offer_rejected"
	OfferWithdrawn EventType = "offer_withdrawn"
	DealCancelled  EventType = "deal_cancelled"
	DealExpired    EventType = "deal_expired"
)

// Event describes one committed negotiation action.
type Event struct {
	Type        EventType
	DealID      string
	OfferID     string
	PropertyID  string
	ActorID     string
	RecipientID string
	Amount      int64
	Currency    money.Currency
}

// Notifier delivers events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// LogNotifier writes events to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, e Event) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "deal event",
		"type", string(e.Type),
		"deal_id", e.DealID,
		"offer_id", e.OfferID,
		"property_id", e.PropertyID,
		"actor", e.ActorID,
		"recipient", e.RecipientID,
		"amount", e.Amount,
		"currency", string(e.Currency),
	)
	return nil
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Event) error { return nil }
