package negotiation

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/db"
	"github.com/evcraddock/house-deals/internal/deal"
	"github.com/evcraddock/house-deals/internal/money"
	"github.com/evcraddock/house-deals/internal/notify"
	"github.com/evcraddock/house-deals/internal/offer"
	"github.com/evcraddock/house-deals/internal/visit"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const (
	buyer    = "buyer"
	seller   = "seller"
	stranger = "stranger"
	propID   = "prop-1"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (r *recorder) Notify(_ context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) types() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type env struct {
	db     *sql.DB
	engine *Engine
	events *recorder
}

func setup(t *testing.T, opts ...Option) env {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "deals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	_, err = d.Exec(`INSERT INTO properties (id, owner_id, title, price, currency, created_at, updated_at)
		VALUES (?, ?, 'Casa Laureles', 320000000, 'COP', ?, ?)`, propID, seller, fixedNow, fixedNow)
	require.NoError(t, err)
	completeVisit(t, d, buyer)

	rec := &recorder{}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithNotifier(rec)}, opts...)
	return env{db: d, engine: New(d, opts...), events: rec}
}

func completeVisit(t *testing.T, d *sql.DB, userID string) {
	t.Helper()
	_, err := d.Exec(`INSERT INTO visits (id, property_id, user_id, visit_date, status, created_at, updated_at)
		VALUES (?, ?, ?, '2026-02-20', 'completed', ?, ?)`, "visit-"+userID, propID, userID, fixedNow, fixedNow)
	require.NoError(t, err)
}

func cop(amount int64) offer.Payload {
	return offer.Payload{TotalAmount: amount, Currency: money.COP, Payment: offer.FullPayment{}}
}

func as(userID string) Caller {
	return Caller{UserID: userID}
}

func count(t *testing.T, d *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, d.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSubmitCreatesDealAndFirstVersion(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	res, err := e.engine.Submit(ctx, as(buyer), propID, cop(300000000))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Offer.Version)
	assert.Nil(t, res.Offer.ParentOfferID)
	assert.Equal(t, offer.PendingReview, res.Offer.Status)
	assert.Equal(t, deal.Active, res.Deal.Status)
	assert.Equal(t, buyer, res.Deal.BuyerID)
	assert.Equal(t, seller, res.Deal.SellerID)
	require.NotNil(t, res.Deal.CurrentOfferID)
	assert.Equal(t, res.Offer.ID, *res.Deal.CurrentOfferID)

	assert.Equal(t, []notify.EventType{notify.OfferSubmitted}, e.events.types())
	assert.Equal(t, seller, e.events.events[0].RecipientID)
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name     string
		caller   string
		property string
		terms    offer.Payload
		want     apperr.Kind
	}{
		{"seller on own property", seller, propID, cop(1), apperr.Forbidden},
		{"no completed visit", stranger, propID, cop(1), apperr.Precondition},
		{"unknown property", buyer, "nope", cop(1), apperr.NotFound},
		{"invalid amount", buyer, propID, cop(0), apperr.Validation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			_, err := e.engine.Submit(context.Background(), as(tt.caller), tt.property, tt.terms)
			assert.Equal(t, tt.want, apperr.KindOf(err), "err = %v", err)
			assert.Zero(t, count(t, e.db, "deals"))
			assert.Zero(t, count(t, e.db, "offers"))
			assert.Empty(t, e.events.types())
		})
	}
}

type failingLookup struct{}

func (failingLookup) HasCompletedVisit(context.Context, string, string) (bool, error) {
	return false, errors.New("visits store unavailable")
}

func TestSubmitVisitLookupFailureWritesNothing(t *testing.T) {
	e := setup(t, WithVisitLookup(func(db.Querier) visit.CompletedVisitLookup { return failingLookup{} }))

	_, err := e.engine.Submit(context.Background(), as(buyer), propID, cop(300000000))
	assert.Equal(t, apperr.Precondition, apperr.KindOf(err))
	assert.Zero(t, count(t, e.db, "deals"))
	assert.Zero(t, count(t, e.db, "offers"))
}

func TestSubmitWhilePendingConflicts(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.engine.Submit(ctx, as(buyer), propID, cop(300000000))
	require.NoError(t, err)

	_, err = e.engine.Submit(ctx, as(buyer), propID, cop(305000000))
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, 1, count(t, e.db, "offers"))
}

func TestCounter(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, err := e.engine.Submit(ctx, as(buyer), propID, cop(300000000))
	require.NoError(t, err)

	_, err = e.engine.Counter(ctx, as(buyer), first.Offer.ID, cop(301000000))
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err), "author cannot counter own offer")

	_, err = e.engine.Counter(ctx, as(stranger), first.Offer.ID, cop(301000000))
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err), "non-party cannot counter")

	res, err := e.engine.Counter(ctx, as(seller), first.Offer.ID, cop(310000000))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Offer.Version)
	require.NotNil(t, res.Offer.ParentOfferID)
	assert.Equal(t, first.Offer.ID, *res.Offer.ParentOfferID)
	assert.Equal(t, offer.PendingReview, res.Offer.Status)
	assert.Equal(t, res.Offer.ID, *res.Deal.CurrentOfferID)
	assert.Equal(t, first.Deal.ID, res.Deal.ID)

	parent, err := offer.NewLedger(e.db).Get(ctx, first.Offer.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.Countered, parent.Status)

	_, err = e.engine.Counter(ctx, as(seller), first.Offer.ID, cop(315000000))
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err), "countered offer cannot be countered again")
}

func TestCounterIsAtomic(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, err := e.engine.Submit(ctx, as(buyer), propID, cop(300000000))
	require.NoError(t, err)

	_, err = e.db.Exec(`CREATE TRIGGER reject_offers BEFORE INSERT ON offers
		BEGIN SELECT RAISE(ABORT, 'insert refused'); END`)
	require.NoError(t, err)

	_, err = e.engine.Counter(ctx, as(seller), first.Offer.ID, cop(310000000))
	require.Error(t, err)

	parent, err := offer.NewLedger(e.db).Get(ctx, first.Offer.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.PendingReview, parent.Status)

	d, err := deal.NewRepository(e.db).Get(ctx, first.Deal.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Offer.ID, *d.CurrentOfferID)
	assert.Equal(t, 1, count(t, e.db, "offers"))
}

func TestConcurrentCounters(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, err := e.engine.Submit(ctx, as(buyer), propID, cop(300000000))
	require.NoError(t, err)

	const workers = 2
	errs := make([]error, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = e.engine.Counter(ctx, as(seller), first.Offer.ID, cop(int64(310000000+i)))
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.IsKind(err, apperr.Conflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 2, count(t, e.db, "offers"))
}

func TestAcceptCompletesDealOnce(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, err := e.engine.Submit(ctx, as(buyer), propID, cop(300000000))
	require.NoError(t, err)

	_, err = e.engine.Accept(ctx, as(buyer), first.Offer.ID)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err), "author cannot accept own offer")

	res, err := e.engine.Accept(ctx, as(seller), first.Offer.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.Accepted, res.Offer.Status)
	assert.Equal(t, deal.Completed, res.Deal.Status)
	require.NotNil(t, res.Deal.FinalPrice)
	assert.Equal(t, int64(300000000), *res.Deal.FinalPrice)
	assert.NotNil(t, res.Deal.CompletedAt)

	_, err = e.engine.Accept(ctx, as(seller), first.Offer.ID)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	_, err = e.engine.Counter(ctx, as(seller), first.Offer.ID, cop(1))
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	_, err = e.engine.Submit(ctx, as(buyer), propID, cop(1))
	require.NoError(t, err, "a completed deal does not block a new negotiation")
}

func TestRejectKeepsDealActive(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, err := e.engine.Submit(ctx, as(buyer), propID, cop(250000000))
	require.NoError(t, err)

	res, err := e.engine.Reject(ctx, as(seller), first.Offer.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.Rejected, res.Offer.Status)
	assert.Equal(t, deal.Active, res.Deal.Status)

	again, err := e.engine.Submit(ctx, as(buyer), propID, cop(280000000))
	require.NoError(t, err)
	assert.Equal(t, first.Deal.ID, again.Deal.ID)
	assert.Equal(t, 1, again.Offer.Version)
	assert.Nil(t, again.Offer.ParentOfferID)

	view, err := e.engine.GetDeal(ctx, buyer, first.Deal.ID)
	require.NoError(t, err)
	assert.Len(t, view.Chain, 1)
	assert.Len(t, view.Offers, 2)
}

func TestWithdraw(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, err := e.engine.Submit(ctx, as(buyer), propID, cop(300000000))
	require.NoError(t, err)

	_, err = e.engine.Withdraw(ctx, as(seller), first.Offer.ID)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	res, err := e.engine.Withdraw(ctx, as(buyer), first.Offer.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.Withdrawn, res.Offer.Status)
	assert.Equal(t, deal.Active, res.Deal.Status)

	_, err = e.engine.Withdraw(ctx, as(buyer), first.Offer.ID)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestCancelDeal(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, err := e.engine.Submit(ctx, as(buyer), propID, cop(300000000))
	require.NoError(t, err)

	_, err = e.engine.CancelDeal(ctx, as(seller), first.Deal.ID)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err), "pending offer blocks cancel")

	_, err = e.engine.Withdraw(ctx, as(buyer), first.Offer.ID)
	require.NoError(t, err)

	_, err = e.engine.CancelDeal(ctx, as(stranger), first.Deal.ID)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	res, err := e.engine.CancelDeal(ctx, as(seller), first.Deal.ID)
	require.NoError(t, err)
	assert.Equal(t, deal.Cancelled, res.Deal.Status)
	assert.Nil(t, res.Offer)

	_, err = e.engine.CancelDeal(ctx, as(buyer), first.Deal.ID)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	next, err := e.engine.Submit(ctx, as(buyer), propID, cop(290000000))
	require.NoError(t, err)
	assert.NotEqual(t, first.Deal.ID, next.Deal.ID)
}

func TestChainRoundTrip(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	res, err := e.engine.Submit(ctx, as(buyer), propID, cop(300000000))
	require.NoError(t, err)
	ids := []string{res.Offer.ID}

	parties := []string{seller, buyer, seller, buyer, seller}
	for i, p := range parties {
		res, err = e.engine.Counter(ctx, as(p), res.Offer.ID, cop(int64(300000000+(i+1)*1000000)))
		require.NoError(t, err)
		ids = append(ids, res.Offer.ID)
	}

	view, err := e.engine.GetDeal(ctx, seller, res.Deal.ID)
	require.NoError(t, err)
	require.Len(t, view.Chain, len(ids))
	for i, v := range view.Chain {
		assert.Equal(t, ids[len(ids)-1-i], v.ID)
		assert.Equal(t, len(ids)-i, v.Version)
	}
	assert.Equal(t, offer.PendingReview, view.Chain[0].Status)
	for _, v := range view.Chain[1:] {
		assert.Equal(t, offer.Countered, v.Status)
	}
	assert.Nil(t, view.Chain[len(ids)-1].Parent)
}

func TestNegotiationScenario(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, err := e.engine.Submit(ctx, as(buyer), propID, cop(300000000))
	require.NoError(t, err)
	counter, err := e.engine.Counter(ctx, as(seller), first.Offer.ID, cop(310000000))
	require.NoError(t, err)
	done, err := e.engine.Accept(ctx, as(buyer), counter.Offer.ID)
	require.NoError(t, err)

	assert.Equal(t, deal.Completed, done.Deal.Status)
	assert.Equal(t, int64(310000000), *done.Deal.FinalPrice)

	view, err := e.engine.GetDeal(ctx, buyer, done.Deal.ID)
	require.NoError(t, err)
	require.Len(t, view.Chain, 2)

	head, root := view.Chain[0], view.Chain[1]
	assert.Equal(t, offer.Accepted, head.Status)
	assert.Equal(t, 2, head.Version)
	assert.Equal(t, offer.Countered, root.Status)
	assert.Equal(t, 1, root.Version)

	require.NotNil(t, head.Parent)
	assert.Equal(t, root.ID, head.Parent.ID)
	assert.Equal(t, int64(300000000), head.Parent.TotalAmount)
	require.Len(t, head.Changes, 1)
	assert.Equal(t, offer.Change{Field: "total_amount", From: "COP 300,000,000", To: "COP 310,000,000"}, head.Changes[0])

	assert.Equal(t,
		[]notify.EventType{notify.OfferSubmitted, notify.OfferCountered, notify.OfferAccepted},
		e.events.types())
}

func TestGetDealRequiresParty(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	res, err := e.engine.Submit(ctx, as(buyer), propID, cop(300000000))
	require.NoError(t, err)

	_, err = e.engine.GetDeal(ctx, stranger, res.Deal.ID)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
	_, err = e.engine.GetOffer(ctx, stranger, res.Offer.ID)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
	_, err = e.engine.GetDeal(ctx, buyer, "missing")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	v, err := e.engine.GetOffer(ctx, seller, res.Offer.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Offer.ID, v.ID)

	deals, err := e.engine.ListDeals(ctx, seller)
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, 1, deals[0].PendingCount)
}

func TestIdempotentAccept(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, err := e.engine.Submit(ctx, as(buyer), propID, cop(300000000))
	require.NoError(t, err)

	c := Caller{UserID: seller, IdempotencyKey: "accept-1"}
	res, err := e.engine.Accept(ctx, c, first.Offer.ID)
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	again, err := e.engine.Accept(ctx, c, first.Offer.ID)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, res.Offer.ID, again.Offer.ID)
	assert.Equal(t, deal.Completed, again.Deal.Status)

	_, err = e.engine.Reject(ctx, c, first.Offer.ID)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err), "key reused for another action")

	assert.Equal(t, []notify.EventType{notify.OfferSubmitted, notify.OfferAccepted}, e.events.types())
}

func TestIdempotentSubmit(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	c := Caller{UserID: buyer, IdempotencyKey: "submit-1"}
	res, err := e.engine.Submit(ctx, c, propID, cop(300000000))
	require.NoError(t, err)
	again, err := e.engine.Submit(ctx, c, propID, cop(300000000))
	require.NoError(t, err)

	assert.Equal(t, res.Offer.ID, again.Offer.ID)
	assert.Equal(t, 1, count(t, e.db, "offers"))

	_, err = e.engine.Submit(ctx, c, propID, cop(999))
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err), "key reused with different terms")
	assert.ErrorContains(t, err, "different request body")
	assert.Equal(t, 1, count(t, e.db, "offers"))

	_, err = e.engine.Submit(ctx, Caller{UserID: buyer, IdempotencyKey: " "}, propID, cop(1))
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestLapsedOffers(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	terms := cop(300000000)
	terms.ValidUntil = "2026-02-27"
	first, err := e.engine.Submit(ctx, as(buyer), propID, terms)
	require.NoError(t, err)

	_, err = e.engine.Accept(ctx, as(seller), first.Offer.ID)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	expired, err := e.engine.ExpireLapsed(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, deal.Expired, expired[0].Status)
	assert.Equal(t, first.Deal.ID, expired[0].ID)

	expired, err = e.engine.ExpireLapsed(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)

	assert.Contains(t, e.events.types(), notify.DealExpired)
}

func TestExpireSkipsValidOffers(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	terms := cop(300000000)
	terms.ValidUntil = "2026-03-01"
	_, err := e.engine.Submit(ctx, as(buyer), propID, terms)
	require.NoError(t, err)

	expired, err := e.engine.ExpireLapsed(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestNotificationFailureDoesNotFailAction(t *testing.T) {
	e := setup(t)
	e.events.err = errors.New("telegram down")

	res, err := e.engine.Submit(context.Background(), as(buyer), propID, cop(300000000))
	require.NoError(t, err)
	assert.NotNil(t, res.Offer)
	assert.Equal(t, 1, count(t, e.db, "offers"))
}
