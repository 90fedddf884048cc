// Package offer is the offer ledger: immutable offer versions chained by
// parent links. Only an offer's status changes after it is written.
package offer

import (
	"time"
)

// Status is the negotiation state of a single offer version.
type Status string

const (
	PendingReview Status = "pending_review"
	Accepted      Status = "accepted"
	Rejected      Status = "rejected"
	Withdrawn     Status = "withdrawn"
	Countered     Status = "countered"
)

// Statuses is the set of offer statuses.
var Statuses = []Status{PendingReview, Accepted, Rejected, Withdrawn, Countered}

// IsValid checks if a status is recognized.
func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsOpen reports whether the offer still awaits a response.
func (s Status) IsOpen() bool {
	return s == PendingReview
}

// IsTerminal reports whether the offer ended the negotiation on its chain.
// A countered offer is closed but not terminal: its child carries the chain.
func (s Status) IsTerminal() bool {
	return s == Accepted || s == Rejected || s == Withdrawn
}

// Label returns a human-readable label for the status.
func (s Status) Label() string {
	switch s {
	case PendingReview:
		return "Pending review"
	case Accepted:
		return "Accepted"
	case Rejected:
		return "Rejected"
	case Withdrawn:
		return "Withdrawn"
	case Countered:
		return "Countered"
	default:
		return string(s)
	}
}

// DateLayout is the format of every calendar date in offer terms.
const DateLayout = "2006-01-02"

// Offer is one immutable version in a negotiation chain.
type Offer struct {
	ID            string    `json:"id"`
	DealID        string    `json:"deal_id"`
	PropertyID    string    `json:"property_id"`
	UserID        string    `json:"user_id"`
	ParentOfferID *string   `json:"parent_offer_id"`
	Version       int       `json:"version"`
	Status        Status    `json:"status"`
	Terms         Payload   `json:"terms"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsRoot reports whether the offer starts a chain.
func (o *Offer) IsRoot() bool {
	return o.ParentOfferID == nil
}

// Lapsed reports whether the offer's validity date is before now's date.
// Offers without a validity date never lapse.
func (o *Offer) Lapsed(now time.Time) bool {
	if o.Terms.ValidUntil == "" {
		return false
	}
	return now.UTC().Format(DateLayout) > o.Terms.ValidUntil
}
