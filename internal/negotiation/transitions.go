// Package negotiation applies buyer and seller actions to deals and their
// offer chains. Every action runs in one transaction and is checked against
// the transition table below.
package negotiation

import (
	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/deal"
	"github.com/evcraddock/house-deals/internal/notify"
	"github.com/evcraddock/house-deals/internal/offer"
)

// Action is a negotiation step.
type Action string

const (
	Submit   Action = "submit"
	Counter  Action = "counter"
	Accept   Action = "accept"
	Reject   Action = "reject"
	Withdraw Action = "withdraw"
	Cancel   Action = "cancel"
	Expire   Action = "expire"
)

// role is who may perform an action.
type role int

const (
	// roleBuyer is anyone except the property owner.
	roleBuyer role = iota
	// roleAuthor is the author of the target offer.
	roleAuthor
	// roleCounterparty is the deal party that did not author the target offer.
	roleCounterparty
	// roleParty is either deal party.
	roleParty
	// roleSystem is the expiry sweep.
	roleSystem
)

type transition struct {
	role role
	// from is the status the target offer must have; empty when the action has no target offer.
	from offer.Status
	// to is the status the target offer moves to; empty leaves it alone.
	to offer.Status
	// closes is the final deal status; empty keeps the deal active.
	closes deal.Status
	// noPending requires that no offer in the deal awaits a response.
	noPending bool
	event     notify.EventType
}

var transitions = map[Action]transition{
	Submit:   {role: roleBuyer, noPending: true, event: notify.OfferSubmitted},
	Counter:  {role: roleCounterparty, from: offer.PendingReview, to: offer.Countered, event: notify.OfferCountered},
	Accept:   {role: roleCounterparty, from: offer.PendingReview, to: offer.Accepted, closes: deal.Completed, event: notify.OfferAccepted},
	Reject:   {role: roleCounterparty, from: offer.PendingReview, to: offer.Rejected, event: notify.OfferRejected},
	Withdraw: {role: roleAuthor, from: offer.PendingReview, to: offer.Withdrawn, event: notify.OfferWithdrawn},
	Cancel:   {role: roleParty, noPending: true, closes: deal.Cancelled, event: notify.DealCancelled},
	Expire:   {role: roleSystem, from: offer.PendingReview, closes: deal.Expired, event: notify.DealExpired},
}

// authorize checks that callerID may perform a on deal d and target offer o.
// o is nil for actions without a target offer. pending is the number of
// offers in the deal still awaiting a response.
func authorize(a Action, d *deal.Deal, o *offer.Offer, callerID string, pending int) error {
	t, ok := transitions[a]
	if !ok {
		return apperr.Validationf("unknown action %q", a)
	}

	switch t.role {
	case roleBuyer:
		if callerID == d.SellerID {
			return apperr.Forbiddenf("sellers cannot make offers on their own property")
		}
		if callerID != d.BuyerID {
			return apperr.Forbiddenf("user %s is not the buyer in deal %s", callerID, d.ID)
		}
	case roleAuthor, roleCounterparty, roleParty:
		if !d.IsParty(callerID) {
			return apperr.Forbiddenf("user %s is not a party to deal %s", callerID, d.ID)
		}
	}

	if o != nil {
		switch {
		case t.role == roleAuthor && o.UserID != callerID:
			return apperr.Forbiddenf("only the author can %s offer %s", a, o.ID)
		case t.role == roleCounterparty && o.UserID == callerID:
			return apperr.Forbiddenf("you cannot %s your own offer", a)
		}
	}

	if d.Status != deal.Active {
		return apperr.Conflictf("deal %s is %s", d.ID, d.Status)
	}

	if o != nil && t.from != "" && o.Status != t.from {
		return apperr.Conflictf("offer %s is %s, not %s", o.ID, o.Status, t.from)
	}

	if t.noPending && pending > 0 {
		return apperr.Conflictf("deal %s already has an offer awaiting a response", d.ID)
	}

	return nil
}
