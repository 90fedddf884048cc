package negotiation

import (
	"context"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/deal"
	"github.com/evcraddock/house-deals/internal/money"
	"github.com/evcraddock/house-deals/internal/offer"
)

// ParentSummary is the offer a counter replied to, as shown next to it.
type ParentSummary struct {
	ID          string         `json:"id"`
	Version     int            `json:"version"`
	UserID      string         `json:"user_id"`
	Status      offer.Status   `json:"status"`
	TotalAmount int64          `json:"total_amount"`
	Currency    money.Currency `json:"currency"`
}

// OfferView is an offer with its resolved parent and the terms it changed.
type OfferView struct {
	*offer.Offer
	Parent  *ParentSummary `json:"parent,omitempty"`
	Changes []offer.Change `json:"changes,omitempty"`
}

// DealView is a deal with the chain of its current offer and its full history.
type DealView struct {
	Deal *deal.Deal `json:"deal"`
	// Chain runs from the current offer back to its root, newest first.
	Chain []*OfferView `json:"chain"`
	// Offers is every offer in the deal, newest first, across all chains.
	Offers []*OfferView `json:"offers"`
}

// newOfferView wraps o and resolves its parent from byID.
func newOfferView(o *offer.Offer, byID map[string]*offer.Offer) *OfferView {
	v := &OfferView{Offer: o}
	if o.ParentOfferID == nil {
		return v
	}
	parent, ok := byID[*o.ParentOfferID]
	if !ok {
		return v
	}
	v.Parent = &ParentSummary{
		ID:          parent.ID,
		Version:     parent.Version,
		UserID:      parent.UserID,
		Status:      parent.Status,
		TotalAmount: parent.Terms.TotalAmount,
		Currency:    parent.Terms.Currency,
	}
	v.Changes = offer.Diff(parent, o)
	return v
}

// GetDeal returns a deal with its offers. Only the buyer and the seller may read it.
func (e *Engine) GetDeal(ctx context.Context, callerID, dealID string) (*DealView, error) {
	d, err := deal.NewRepository(e.db).Get(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !d.IsParty(callerID) {
		return nil, apperr.Forbiddenf("user %s is not a party to deal %s", callerID, dealID)
	}

	ledger := offer.NewLedger(e.db)
	all, err := ledger.ListByDeal(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*offer.Offer, len(all))
	for _, o := range all {
		byID[o.ID] = o
	}

	view := &DealView{Deal: d, Chain: []*OfferView{}, Offers: make([]*OfferView, 0, len(all))}
	for _, o := range all {
		view.Offers = append(view.Offers, newOfferView(o, byID))
	}

	if d.CurrentOfferID != nil {
		chain, err := ledger.Chain(ctx, *d.CurrentOfferID)
		if err != nil {
			return nil, err
		}
		for _, o := range chain {
			view.Chain = append(view.Chain, newOfferView(o, byID))
		}
	}

	return view, nil
}

// GetOffer returns one offer. Only the deal's parties may read it.
func (e *Engine) GetOffer(ctx context.Context, callerID, offerID string) (*OfferView, error) {
	ledger := offer.NewLedger(e.db)
	o, err := ledger.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}
	d, err := deal.NewRepository(e.db).Get(ctx, o.DealID)
	if err != nil {
		return nil, err
	}
	if !d.IsParty(callerID) {
		return nil, apperr.Forbiddenf("user %s is not a party to deal %s", callerID, d.ID)
	}

	byID := map[string]*offer.Offer{}
	if o.ParentOfferID != nil {
		parent, err := ledger.Get(ctx, *o.ParentOfferID)
		if err != nil && !apperr.IsKind(err, apperr.NotFound) {
			return nil, err
		}
		if parent != nil {
			byID[parent.ID] = parent
		}
	}
	return newOfferView(o, byID), nil
}

// ListDeals returns the caller's deals as buyer or seller.
func (e *Engine) ListDeals(ctx context.Context, callerID string) ([]*deal.Summary, error) {
	return deal.NewRepository(e.db).ListForUser(ctx, callerID)
}
