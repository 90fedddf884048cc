package deal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/db"
)

// Repository provides data access for deals.
type Repository struct {
	db  db.Querier
	now func() time.Time
}

// NewRepository creates a deal repository over q.
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q, now: time.Now}
}

// WithClock returns a copy of the repository that reads the current time from now.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	return &Repository{db: r.db, now: now}
}

const selectColumns = `d.id, d.property_id, d.buyer_id, d.seller_id, d.status, d.current_offer_id,
	d.final_price, d.created_at, d.updated_at, d.completed_at`

func scanDeal(row interface{ Scan(...interface{}) error }, extra ...interface{}) (*Deal, error) {
	var d Deal
	var status string
	var current sql.NullString
	var price sql.NullInt64
	var completed sql.NullTime
	dest := append([]interface{}{
		&d.ID, &d.PropertyID, &d.BuyerID, &d.SellerID, &status, &current,
		&price, &d.CreatedAt, &d.UpdatedAt, &completed,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	d.Status = Status(status)
	if current.Valid {
		d.CurrentOfferID = &current.String
	}
	if price.Valid {
		d.FinalPrice = &price.Int64
	}
	if completed.Valid {
		d.CompletedAt = &completed.Time
	}
	return &d, nil
}

// Get returns a deal by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Deal, error) {
	query := fmt.Sprintf("SELECT %s FROM deals d WHERE d.id = ?", selectColumns)
	d, err := scanDeal(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("deal %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading deal %s: %w", id, err)
	}
	return d, nil
}

// Lock takes the write lock for the deal and returns its current state.
// Inside an immediate transaction the lock is already held from BEGIN; the
// no-op update makes the intent explicit and fails with NotFound early.
func (r *Repository) Lock(ctx context.Context, id string) (*Deal, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE deals SET id = id WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("locking deal %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperr.NotFoundf("deal %s not found", id)
	}
	return r.Get(ctx, id)
}

func (r *Repository) findActive(ctx context.Context, propertyID, buyerID string) (*Deal, error) {
	query := fmt.Sprintf("SELECT %s FROM deals d WHERE d.property_id = ? AND d.buyer_id = ? AND d.status = ?", selectColumns)
	d, err := scanDeal(r.db.QueryRowContext(ctx, query, propertyID, buyerID, string(Active)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding active deal: %w", err)
	}
	return d, nil
}

// FindOrCreateActive returns the active deal between buyerID and sellerID on
// propertyID, creating it when none exists. If a concurrent writer created
// it first, that deal is returned.
func (r *Repository) FindOrCreateActive(ctx context.Context, propertyID, buyerID, sellerID string) (*Deal, bool, error) {
	if buyerID == "" || sellerID == "" {
		return nil, false, apperr.Validationf("buyer and seller are required")
	}
	if buyerID == sellerID {
		return nil, false, apperr.Forbiddenf("a seller cannot make offers on their own property")
	}

	existing, err := r.findActive(ctx, propertyID, buyerID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	id := uuid.NewString()
	now := r.now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO deals (id, property_id, buyer_id, seller_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, propertyID, buyerID, sellerID, string(Active), now, now,
	)
	if db.IsUniqueViolation(err) {
		winner, err := r.findActive(ctx, propertyID, buyerID)
		if err != nil {
			return nil, false, err
		}
		if winner == nil {
			return nil, false, apperr.Conflictf("active deal for property %s changed concurrently", propertyID)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("inserting deal: %w", err)
	}

	d, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

// SetCurrentOffer moves the deal's head pointer to offerID.
func (r *Repository) SetCurrentOffer(ctx context.Context, dealID, offerID string) (*Deal, error) {
	if _, err := r.Get(ctx, dealID); err != nil {
		return nil, err
	}

	var offerDeal string
	err := r.db.QueryRowContext(ctx, "SELECT deal_id FROM offers WHERE id = ?", offerID).Scan(&offerDeal)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("offer %s not found", offerID)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up offer %s: %w", offerID, err)
	}
	if offerDeal != dealID {
		return nil, apperr.Conflictf("offer %s belongs to deal %s, not %s", offerID, offerDeal, dealID)
	}

	_, err = r.db.ExecContext(ctx,
		"UPDATE deals SET current_offer_id = ?, updated_at = ? WHERE id = ?",
		offerID, r.now().UTC(), dealID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating current offer: %w", err)
	}

	return r.Get(ctx, dealID)
}

// Close moves an active deal to a final status. finalPrice is recorded for
// completed deals.
func (r *Repository) Close(ctx context.Context, dealID string, final Status, finalPrice *int64) (*Deal, error) {
	if !final.IsFinal() {
		return nil, apperr.Validationf("cannot close deal with status %q", final)
	}

	d, err := r.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if d.Status != Active {
		return nil, apperr.Conflictf("deal %s is already %s", dealID, d.Status)
	}

	now := r.now().UTC()
	var completedAt interface{}
	if final == Completed {
		completedAt = now
	}
	var price interface{}
	if finalPrice != nil {
		price = *finalPrice
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE deals SET status = ?, final_price = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(final), price, completedAt, now, dealID, string(Active),
	)
	if err != nil {
		return nil, fmt.Errorf("closing deal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperr.Conflictf("deal %s is no longer active", dealID)
	}

	return r.Get(ctx, dealID)
}

// ListForUser returns the deals where userID is buyer or seller, most
// recently updated first, with offer counts per status. Only active deals
// count pending offers.
func (r *Repository) ListForUser(ctx context.Context, userID string) (summaries []*Summary, err error) {
	query := fmt.Sprintf(`SELECT %s, COALESCE(p.title, ''),
		COUNT(o.id),
		COALESCE(SUM(o.status = 'pending_review' AND d.status = 'active'), 0),
		COALESCE(SUM(o.status = 'accepted'), 0),
		COALESCE(SUM(o.status = 'rejected'), 0)
		FROM deals d
		LEFT JOIN properties p ON p.id = d.property_id
		LEFT JOIN offers o ON o.deal_id = d.id
		WHERE d.buyer_id = ? OR d.seller_id = ?
		GROUP BY d.id
		ORDER BY d.updated_at DESC`, selectColumns)

	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing deals: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		var s Summary
		d, err := scanDeal(rows, &s.PropertyTitle, &s.OfferCount, &s.PendingCount, &s.AcceptedCount, &s.RejectedCount)
		if err != nil {
			return nil, fmt.Errorf("scanning deal: %w", err)
		}
		s.Deal = *d
		s.Role = "buyer"
		if d.SellerID == userID {
			s.Role = "seller"
		}
		summaries = append(summaries, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deals: %w", err)
	}

	return summaries, nil
}
