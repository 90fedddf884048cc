package offer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/db"
	"github.com/evcraddock/house-deals/internal/money"
)

// Ledger reads and appends offer versions.
type Ledger struct {
	db  db.Querier
	now func() time.Time
}

// NewLedger creates a ledger over q, which may be a *sql.DB or a *sql.Tx.
func NewLedger(q db.Querier) *Ledger {
	return &Ledger{db: q, now: time.Now}
}

// WithClock returns a copy of the ledger that reads the current time from now.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	return &Ledger{db: l.db, now: now}
}

const selectColumns = `id, deal_id, property_id, user_id, parent_offer_id, version, status,
	total_amount, currency, payment_structure, installments_json, offer_validity_date,
	other_conditions, deeds_signing_date, registration_fees_arrangement,
	physical_delivery_date, request_promesa, request_option_contract,
	created_at, updated_at`

func scanOffer(row interface{ Scan(...interface{}) error }) (*Offer, error) {
	var o Offer
	var parent, validUntil, deeds, delivery sql.NullString
	var status, currency, structure, installments string
	err := row.Scan(
		&o.ID, &o.DealID, &o.PropertyID, &o.UserID, &parent, &o.Version, &status,
		&o.Terms.TotalAmount, &currency, &structure, &installments, &validUntil,
		&o.Terms.OtherConditions, &deeds, &o.Terms.RegistrationFeesArrangement,
		&delivery, &o.Terms.RequestPromesa, &o.Terms.RequestOptionContract,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parent.Valid {
		o.ParentOfferID = &parent.String
	}
	o.Status = Status(status)
	o.Terms.Currency = money.Currency(currency)
	o.Terms.ValidUntil = validUntil.String
	o.Terms.DeedsSigningDate = deeds.String
	o.Terms.PhysicalDeliveryDate = delivery.String

	w := paymentWire{Structure: PaymentStructure(structure)}
	if err := json.Unmarshal([]byte(installments), &w.Installments); err != nil {
		return nil, apperr.Wrap(apperr.DataIntegrity, err, fmt.Sprintf("offer %s has unreadable installments", o.ID))
	}
	terms, err := decodePayment(w)
	if err != nil {
		return nil, apperr.Wrap(apperr.DataIntegrity, err, fmt.Sprintf("offer %s has inconsistent payment terms", o.ID))
	}
	o.Terms.Payment = terms

	return &o, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Create appends a new pending offer. A non-empty parentOfferID makes it a
// counter of that offer, one version above it, in the same deal.
func (l *Ledger) Create(ctx context.Context, dealID, propertyID, userID, parentOfferID string, terms Payload) (*Offer, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validationf("user is required")
	}
	if terms.Payment == nil {
		terms.Payment = FullPayment{}
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	version := 1
	if parentOfferID != "" {
		parent, err := l.Get(ctx, parentOfferID)
		if err != nil {
			return nil, err
		}
		if parent.DealID != dealID {
			return nil, apperr.Conflictf("offer %s belongs to deal %s, not %s", parent.ID, parent.DealID, dealID)
		}
		version = parent.Version + 1
	}

	installments, err := marshalInstallments(terms.Payment)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := l.now().UTC()
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO offers (
			id, deal_id, property_id, user_id, parent_offer_id, version, status,
			total_amount, currency, payment_structure, installments_json, offer_validity_date,
			other_conditions, deeds_signing_date, registration_fees_arrangement,
			physical_delivery_date, request_promesa, request_option_contract,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, dealID, propertyID, userID, nullable(parentOfferID), version, string(PendingReview),
		terms.TotalAmount, string(terms.Currency), string(terms.Payment.Structure()), installments,
		nullable(terms.ValidUntil), terms.OtherConditions, nullable(terms.DeedsSigningDate),
		terms.RegistrationFeesArrangement, nullable(terms.PhysicalDeliveryDate),
		terms.RequestPromesa, terms.RequestOptionContract, now, now,
	)
	if db.IsUniqueViolation(err) {
		return nil, apperr.Conflictf("offer %s has already been countered", parentOfferID)
	}
	if err != nil {
		return nil, fmt.Errorf("inserting offer: %w", err)
	}

	return l.Get(ctx, id)
}

// Get returns an offer by ID.
func (l *Ledger) Get(ctx context.Context, id string) (*Offer, error) {
	query := fmt.Sprintf("SELECT %s FROM offers WHERE id = ?", selectColumns)
	o, err := scanOffer(l.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("offer %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading offer %s: %w", id, err)
	}
	return o, nil
}

// roleFor returns whether newStatus must be set by the author of the offer.
func roleFor(newStatus Status) (authorOnly bool, err error) {
	switch newStatus {
	case Withdrawn:
		return true, nil
	case Accepted, Rejected, Countered:
		return false, nil
	default:
		return false, apperr.Validationf("cannot move an offer to %q", newStatus)
	}
}

// MarkStatus closes a pending offer. Withdrawing is reserved for the author;
// accepting, rejecting and countering for the other party.
func (l *Ledger) MarkStatus(ctx context.Context, offerID, callerID string, newStatus Status) (*Offer, error) {
	authorOnly, err := roleFor(newStatus)
	if err != nil {
		return nil, err
	}

	o, err := l.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}

	isAuthor := o.UserID == callerID
	switch {
	case authorOnly && !isAuthor:
		return nil, apperr.Forbiddenf("only the author of offer %s can withdraw it", offerID)
	case !authorOnly && isAuthor:
		return nil, apperr.Forbiddenf("the author of offer %s cannot mark it %s", offerID, newStatus)
	}

	if o.Status != PendingReview {
		return nil, apperr.Conflictf("offer %s is %s, not pending review", offerID, o.Status)
	}

	result, err := l.db.ExecContext(ctx,
		"UPDATE offers SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(newStatus), l.now().UTC(), offerID, string(PendingReview),
	)
	if err != nil {
		return nil, fmt.Errorf("updating offer status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperr.Conflictf("offer %s is no longer pending review", offerID)
	}

	return l.Get(ctx, offerID)
}

// Chain walks parent links from offerID back to the root and returns the
// offers newest first.
func (l *Ledger) Chain(ctx context.Context, offerID string) ([]*Offer, error) {
	head, err := l.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}

	chain := []*Offer{head}
	seen := map[string]bool{head.ID: true}
	cur := head
	for cur.ParentOfferID != nil {
		parentID := *cur.ParentOfferID
		if seen[parentID] {
			return nil, apperr.DataIntegrityf("offer chain of %s has a cycle at %s", offerID, parentID)
		}

		parent, err := l.Get(ctx, parentID)
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.DataIntegrityf("offer %s points to missing parent %s", cur.ID, parentID)
		}
		if err != nil {
			return nil, err
		}
		if parent.Version != cur.Version-1 {
			return nil, apperr.DataIntegrityf("offer %s is version %d but its parent %s is version %d",
				cur.ID, cur.Version, parent.ID, parent.Version)
		}

		seen[parentID] = true
		chain = append(chain, parent)
		cur = parent
	}

	if cur.Version != 1 {
		return nil, apperr.DataIntegrityf("offer chain of %s starts at version %d", offerID, cur.Version)
	}

	return chain, nil
}

// ListByDeal returns every offer in a deal, newest first.
func (l *Ledger) ListByDeal(ctx context.Context, dealID string) ([]*Offer, error) {
	return l.list(ctx, "deal_id = ? ORDER BY created_at DESC, version DESC", dealID)
}

// PendingInDeal returns the offers in a deal still awaiting a response.
func (l *Ledger) PendingInDeal(ctx context.Context, dealID string) ([]*Offer, error) {
	return l.list(ctx, "deal_id = ? AND status = ? ORDER BY created_at DESC", dealID, string(PendingReview))
}

// ListLapsed returns pending offers in active deals whose validity date is
// before now's date.
func (l *Ledger) ListLapsed(ctx context.Context, now time.Time) ([]*Offer, error) {
	return l.list(ctx,
		`status = ? AND offer_validity_date IS NOT NULL AND offer_validity_date < ?
		 AND deal_id IN (SELECT id FROM deals WHERE status = 'active')
		 ORDER BY offer_validity_date`,
		string(PendingReview), now.UTC().Format(DateLayout),
	)
}

func (l *Ledger) list(ctx context.Context, where string, args ...interface{}) (offers []*Offer, err error) {
	query := fmt.Sprintf("SELECT %s FROM offers WHERE %s", selectColumns, where)
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing offers: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning offer: %w", err)
		}
		offers = append(offers, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating offers: %w", err)
	}

	return offers, nil
}
