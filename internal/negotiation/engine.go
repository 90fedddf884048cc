package negotiation

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/db"
	"github.com/evcraddock/house-deals/internal/deal"
	"github.com/evcraddock/house-deals/internal/idempotency"
	"github.com/evcraddock/house-deals/internal/notify"
	"github.com/evcraddock/house-deals/internal/offer"
	"github.com/evcraddock/house-deals/internal/property"
	"github.com/evcraddock/house-deals/internal/visit"
)

// Caller identifies who performs an action. IdempotencyKey is optional.
type Caller struct {
	UserID         string
	IdempotencyKey string
}

// Result is the state of the deal and the affected offer after an action.
type Result struct {
	Offer *offer.Offer `json:"offer,omitempty"`
	Deal  *deal.Deal   `json:"deal"`
	// Replayed is set when the result comes from an earlier request with the same idempotency key.
	Replayed bool `json:"-"`
}

// VisitLookupFunc builds the visit lookup used by the gate for a transaction.
type VisitLookupFunc func(q db.Querier) visit.CompletedVisitLookup

// Engine runs negotiation actions.
type Engine struct {
	db       *sql.DB
	notifier notify.Notifier
	logger   *slog.Logger
	visits   VisitLookupFunc
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets where committed events are sent.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithVisitLookup replaces the completed-visit lookup consulted on submit.
func WithVisitLookup(f VisitLookupFunc) Option {
	return func(e *Engine) { e.visits = f }
}

// New creates an engine over database.
func New(database *sql.DB, opts ...Option) *Engine {
	e := &Engine{
		db:       database,
		notifier: notify.Nop{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.visits == nil {
		e.visits = func(q db.Querier) visit.CompletedVisitLookup {
			return visit.NewRepository(q).WithClock(e.now)
		}
	}
	return e
}

// repos are the repositories bound to one transaction.
type repos struct {
	properties *property.Repository
	deals      *deal.Repository
	ledger     *offer.Ledger
	keys       *idempotency.Store
	gate       *visit.Gate
}

func (e *Engine) bind(tx *sql.Tx) repos {
	return repos{
		properties: property.NewRepository(tx),
		deals:      deal.NewRepository(tx).WithClock(e.now),
		ledger:     offer.NewLedger(tx).WithClock(e.now),
		keys:       idempotency.NewStore(tx),
		gate:       visit.NewGate(e.visits(tx)),
	}
}

// mutation runs fn in a transaction under the caller's idempotency key and
// notifies after commit. A repeated key replays the stored result when the
// action, target and body all match; otherwise it conflicts.
func (e *Engine) mutation(ctx context.Context, c Caller, a Action, targetID string, body interface{},
	fn func(r repos) (*Result, notify.Event, error),
) (*Result, error) {
	if c.UserID == "" {
		return nil, apperr.Validationf("caller is required")
	}
	var requestHash string
	if c.IdempotencyKey != "" {
		if err := idempotency.ValidateKey(c.IdempotencyKey); err != nil {
			return nil, err
		}
		var err error
		if requestHash, err = idempotency.HashRequest(body); err != nil {
			return nil, err
		}
	}

	var res *Result
	var event notify.Event
	err := db.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		r := e.bind(tx)

		if c.IdempotencyKey != "" {
			rec, err := r.keys.Lookup(ctx, c.UserID, c.IdempotencyKey)
			if err != nil {
				return err
			}
			if rec != nil {
				switch {
				case rec.Action != string(a) || rec.TargetID != targetID:
					return apperr.Conflictf("idempotency key %q was used for %s %s", c.IdempotencyKey, rec.Action, rec.TargetID)
				case !rec.Matches(string(a), targetID, requestHash):
					return apperr.Conflictf("idempotency key %q was used with a different request body", c.IdempotencyKey)
				}
				res, err = replay(ctx, r, rec)
				return err
			}
		}

		var err error
		res, event, err = fn(r)
		if err != nil {
			return err
		}

		if c.IdempotencyKey != "" {
			rec := idempotency.Record{
				UserID:      c.UserID,
				Key:         c.IdempotencyKey,
				Action:      string(a),
				TargetID:    targetID,
				RequestHash: requestHash,
				DealID:      res.Deal.ID,
			}
			if res.Offer != nil {
				rec.OfferID = res.Offer.ID
			}
			return r.keys.Save(ctx, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Replayed {
		e.logger.InfoContext(ctx, "replayed negotiation action", "action", string(a), "user", c.UserID, "deal_id", res.Deal.ID)
		return res, nil
	}

	e.logger.InfoContext(ctx, "negotiation action", "action", string(a), "user", c.UserID, "deal_id", res.Deal.ID)
	e.notify(ctx, event)
	return res, nil
}

func replay(ctx context.Context, r repos, rec *idempotency.Record) (*Result, error) {
	res := &Result{Replayed: true}
	var err error
	if rec.OfferID != "" {
		if res.Offer, err = r.ledger.Get(ctx, rec.OfferID); err != nil {
			return nil, err
		}
	}
	if res.Deal, err = r.deals.Get(ctx, rec.DealID); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) notify(ctx context.Context, ev notify.Event) {
	if err := e.notifier.Notify(ctx, ev); err != nil {
		e.logger.WarnContext(ctx, "notification failed", "type", string(ev.Type), "deal_id", ev.DealID, "error", err)
	}
}

func offerEvent(a Action, d *deal.Deal, o *offer.Offer, actorID string) notify.Event {
	return notify.Event{
		Type:        transitions[a].event,
		DealID:      d.ID,
		OfferID:     o.ID,
		PropertyID:  d.PropertyID,
		ActorID:     actorID,
		RecipientID: d.Counterparty(actorID),
		Amount:      o.Terms.TotalAmount,
		Currency:    o.Terms.Currency,
	}
}

// Submit opens a new offer chain from a buyer on propertyID. The deal is
// created on the buyer's first offer. The buyer needs a completed visit and
// no offer may be pending in the deal.
func (e *Engine) Submit(ctx context.Context, c Caller, propertyID string, terms offer.Payload) (*Result, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	return e.mutation(ctx, c, Submit, propertyID, terms, func(r repos) (*Result, notify.Event, error) {
		prop, err := r.properties.GetByID(ctx, propertyID)
		if err != nil {
			return nil, notify.Event{}, err
		}
		if prop.OwnerID == c.UserID {
			return nil, notify.Event{}, apperr.Forbiddenf("sellers cannot make offers on their own property")
		}

		if err := r.gate.Check(ctx, propertyID, c.UserID); err != nil {
			return nil, notify.Event{}, err
		}

		d, _, err := r.deals.FindOrCreateActive(ctx, propertyID, c.UserID, prop.OwnerID)
		if err != nil {
			return nil, notify.Event{}, err
		}
		pending, err := r.ledger.PendingInDeal(ctx, d.ID)
		if err != nil {
			return nil, notify.Event{}, err
		}
		if err := authorize(Submit, d, nil, c.UserID, len(pending)); err != nil {
			return nil, notify.Event{}, err
		}

		o, err := r.ledger.Create(ctx, d.ID, propertyID, c.UserID, "", terms)
		if err != nil {
			return nil, notify.Event{}, err
		}
		if d, err = r.deals.SetCurrentOffer(ctx, d.ID, o.ID); err != nil {
			return nil, notify.Event{}, err
		}

		return &Result{Offer: o, Deal: d}, offerEvent(Submit, d, o, c.UserID), nil
	})
}

// loadTarget reads an offer and write-locks its deal.
func loadTarget(ctx context.Context, r repos, offerID string) (*offer.Offer, *deal.Deal, error) {
	o, err := r.ledger.Get(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}
	d, err := r.deals.Lock(ctx, o.DealID)
	if err != nil {
		return nil, nil, err
	}
	return o, d, nil
}

// Counter replaces a pending offer with a new version from the other party.
// The parent becomes countered and the child becomes the deal's current offer.
func (e *Engine) Counter(ctx context.Context, c Caller, parentOfferID string, terms offer.Payload) (*Result, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	return e.mutation(ctx, c, Counter, parentOfferID, terms, func(r repos) (*Result, notify.Event, error) {
		parent, d, err := loadTarget(ctx, r, parentOfferID)
		if err != nil {
			return nil, notify.Event{}, err
		}
		if err := authorize(Counter, d, parent, c.UserID, 0); err != nil {
			return nil, notify.Event{}, err
		}

		if _, err := r.ledger.MarkStatus(ctx, parent.ID, c.UserID, offer.Countered); err != nil {
			return nil, notify.Event{}, err
		}
		child, err := r.ledger.Create(ctx, d.ID, d.PropertyID, c.UserID, parent.ID, terms)
		if err != nil {
			return nil, notify.Event{}, err
		}
		if d, err = r.deals.SetCurrentOffer(ctx, d.ID, child.ID); err != nil {
			return nil, notify.Event{}, err
		}

		return &Result{Offer: child, Deal: d}, offerEvent(Counter, d, child, c.UserID), nil
	})
}

// Accept accepts a pending offer from the other party and completes the
// deal at the offer's total amount.
func (e *Engine) Accept(ctx context.Context, c Caller, offerID string) (*Result, error) {
	return e.respond(ctx, c, Accept, offerID)
}

// Reject declines a pending offer from the other party. The deal stays
// active so the buyer can open a new chain.
func (e *Engine) Reject(ctx context.Context, c Caller, offerID string) (*Result, error) {
	return e.respond(ctx, c, Reject, offerID)
}

// Withdraw retracts the caller's own pending offer. The deal stays active.
func (e *Engine) Withdraw(ctx context.Context, c Caller, offerID string) (*Result, error) {
	return e.respond(ctx, c, Withdraw, offerID)
}

func (e *Engine) respond(ctx context.Context, c Caller, a Action, offerID string) (*Result, error) {
	t := transitions[a]
	return e.mutation(ctx, c, a, offerID, nil, func(r repos) (*Result, notify.Event, error) {
		o, d, err := loadTarget(ctx, r, offerID)
		if err != nil {
			return nil, notify.Event{}, err
		}
		if err := authorize(a, d, o, c.UserID, 0); err != nil {
			return nil, notify.Event{}, err
		}
		if a == Accept && o.Lapsed(e.now()) {
			return nil, notify.Event{}, apperr.Conflictf("offer %s lapsed on %s", o.ID, o.Terms.ValidUntil)
		}

		if o, err = r.ledger.MarkStatus(ctx, o.ID, c.UserID, t.to); err != nil {
			return nil, notify.Event{}, err
		}
		if t.closes != "" {
			var price *int64
			if t.closes == deal.Completed {
				price = &o.Terms.TotalAmount
			}
			if d, err = r.deals.Close(ctx, d.ID, t.closes, price); err != nil {
				return nil, notify.Event{}, err
			}
		} else if d, err = r.deals.Get(ctx, d.ID); err != nil {
			return nil, notify.Event{}, err
		}

		return &Result{Offer: o, Deal: d}, offerEvent(a, d, o, c.UserID), nil
	})
}

// CancelDeal closes an active deal on request of either party. No offer may
// be pending; withdraw or reject it first.
func (e *Engine) CancelDeal(ctx context.Context, c Caller, dealID string) (*Result, error) {
	return e.mutation(ctx, c, Cancel, dealID, nil, func(r repos) (*Result, notify.Event, error) {
		d, err := r.deals.Lock(ctx, dealID)
		if err != nil {
			return nil, notify.Event{}, err
		}
		pending, err := r.ledger.PendingInDeal(ctx, d.ID)
		if err != nil {
			return nil, notify.Event{}, err
		}
		if err := authorize(Cancel, d, nil, c.UserID, len(pending)); err != nil {
			return nil, notify.Event{}, err
		}

		if d, err = r.deals.Close(ctx, d.ID, deal.Cancelled, nil); err != nil {
			return nil, notify.Event{}, err
		}

		ev := notify.Event{
			Type:        transitions[Cancel].event,
			DealID:      d.ID,
			PropertyID:  d.PropertyID,
			ActorID:     c.UserID,
			RecipientID: d.Counterparty(c.UserID),
		}
		return &Result{Deal: d}, ev, nil
	})
}

// ExpireLapsed closes every active deal whose current offer is pending past
// its validity date. It returns the expired deals.
func (e *Engine) ExpireLapsed(ctx context.Context) ([]*deal.Deal, error) {
	now := e.now()
	lapsed, err := offer.NewLedger(e.db).ListLapsed(ctx, now)
	if err != nil {
		return nil, err
	}

	var expired []*deal.Deal
	for _, candidate := range lapsed {
		var d *deal.Deal
		var o *offer.Offer
		err := db.WithTx(ctx, e.db, func(tx *sql.Tx) error {
			r := e.bind(tx)
			var err error
			o, d, err = loadTarget(ctx, r, candidate.ID)
			if err != nil {
				return err
			}
			if d.CurrentOfferID == nil || *d.CurrentOfferID != o.ID || !o.Lapsed(now) {
				d = nil
				return nil
			}
			if err := authorize(Expire, d, o, "", 0); err != nil {
				d = nil
				if apperr.IsKind(err, apperr.Conflict) {
					return nil
				}
				return err
			}
			d, err = r.deals.Close(ctx, d.ID, deal.Expired, nil)
			return err
		})
		if err != nil {
			return expired, err
		}
		if d == nil {
			continue
		}

		e.logger.InfoContext(ctx, "deal expired", "deal_id", d.ID, "offer_id", o.ID, "valid_until", o.Terms.ValidUntil)
		e.notify(ctx, notify.Event{
			Type:       transitions[Expire].event,
			DealID:     d.ID,
			OfferID:    o.ID,
			PropertyID: d.PropertyID,
			Amount:     o.Terms.TotalAmount,
			Currency:   o.Terms.Currency,
		})
		expired = append(expired, d)
	}

	return expired, nil
}
