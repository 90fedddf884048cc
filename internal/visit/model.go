// Package visit provides property visits and the visit gate that guards
// first offers.
package visit

import "time"

// Status is where a visit is in its lifecycle.
type Status string

const (
	Scheduled Status = "scheduled"
	Completed Status = "completed"
	Cancelled Status = "cancelled"
)

// ValidStatuses is the set of allowed visit statuses.
var ValidStatuses = []Status{Scheduled, Completed, Cancelled}

// IsValid checks if a visit status is recognized.
func (s Status) IsValid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == Completed || s == Cancelled
}

// Label returns a human-readable label for the status.
func (s Status) Label() string {
	switch s {
	case Scheduled:
		return "Scheduled"
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// DateLayout is the format of visit dates.
const DateLayout = "2006-01-02"

// Visit represents a visit by a prospective buyer to a property.
type Visit struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	UserID     string    `json:"user_id"`
	VisitDate  string    `json:"visit_date"` // YYYY-MM-DD
	Status     Status    `json:"status"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
