package visit

import (
	"context"

	"github.com/evcraddock/house-deals/internal/apperr"
)

// CompletedVisitLookup answers whether a user has completed a visit to a property.
type CompletedVisitLookup interface {
	HasCompletedVisit(ctx context.Context, propertyID, userID string) (bool, error)
}

// Gate enforces that a buyer has visited a property before a first offer.
// It fails closed: a lookup error blocks the offer.
type Gate struct {
	visits CompletedVisitLookup
}

// NewGate creates a visit gate over the given lookup.
func NewGate(visits CompletedVisitLookup) *Gate {
	return &Gate{visits: visits}
}

// Check returns nil when userID has a completed visit to propertyID and a
// Precondition error otherwise.
func (g *Gate) Check(ctx context.Context, propertyID, userID string) error {
	ok, err := g.visits.HasCompletedVisit(ctx, propertyID, userID)
	if err != nil {
		return apperr.Wrap(apperr.Precondition, err, "could not verify a completed visit")
	}
	if !ok {
		return apperr.Preconditionf("a completed visit to property %s is required before making an offer", propertyID)
	}
	return nil
}
