package visit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/db"
)

// Repository provides data access and lifecycle transitions for visits.
type Repository struct {
	db  db.Querier
	now func() time.Time
}

// NewRepository creates a visit repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q, now: time.Now}
}

// WithClock returns a copy of the repository that reads the current time from now.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	return &Repository{db: r.db, now: now}
}

const selectColumns = `id, property_id, user_id, visit_date, status, notes, created_at, updated_at`

func scanVisit(row interface{ Scan(...interface{}) error }) (*Visit, error) {
	var v Visit
	var status string
	if err := row.Scan(&v.ID, &v.PropertyID, &v.UserID, &v.VisitDate, &status, &v.Notes, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.Status = Status(status)
	return &v, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, apperr.Validationf("invalid date format (use YYYY-MM-DD): %q", s)
	}
	return d, nil
}

// upcomingDate parses a date a visit is booked for. Today is the earliest allowed.
func (r *Repository) upcomingDate(s string) error {
	d, err := parseDate(s)
	if err != nil {
		return err
	}
	if today := r.now().UTC().Format(DateLayout); d.Format(DateLayout) < today {
		return apperr.Validationf("visit date %s is in the past", s)
	}
	return nil
}

// Schedule books a visit to a property for userID.
// Owners cannot book visits to their own listing.
func (r *Repository) Schedule(ctx context.Context, propertyID, userID, visitDate, notes string) (*Visit, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validationf("user is required")
	}
	if err := r.upcomingDate(visitDate); err != nil {
		return nil, err
	}

	var ownerID string
	err := r.db.QueryRowContext(ctx, "SELECT owner_id FROM properties WHERE id = ?", propertyID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("property %s not found", propertyID)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up property: %w", err)
	}
	if ownerID == userID {
		return nil, apperr.Forbiddenf("owners cannot schedule visits to their own property")
	}

	id := uuid.NewString()
	now := r.now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO visits (id, property_id, user_id, visit_date, status, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, propertyID, userID, visitDate, string(Scheduled), notes, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting visit: %w", err)
	}

	return r.Get(ctx, id)
}

// Get returns a visit by ID.
func (r *Repository) Get(ctx context.Context, id string) (*Visit, error) {
	query := fmt.Sprintf("SELECT %s FROM visits WHERE id = ?", selectColumns)
	v, err := scanVisit(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("visit %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading visit %s: %w", id, err)
	}
	return v, nil
}

// ListByUser returns a visitor's visits, newest date first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]*Visit, error) {
	return r.list(ctx, "user_id = ?", userID)
}

// ListByPropertyID returns all visits to a property, newest date first.
func (r *Repository) ListByPropertyID(ctx context.Context, propertyID string) ([]*Visit, error) {
	return r.list(ctx, "property_id = ?", propertyID)
}

func (r *Repository) list(ctx context.Context, where string, arg interface{}) (visits []*Visit, err error) {
	query := fmt.Sprintf("SELECT %s FROM visits WHERE %s ORDER BY visit_date DESC, created_at DESC", selectColumns, where)
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("listing visits: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning visit: %w", err)
		}
		visits = append(visits, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visits: %w", err)
	}

	return visits, nil
}

// loadOwned fetches a visit and checks it belongs to callerID and is still scheduled.
func (r *Repository) loadOwned(ctx context.Context, id, callerID string) (*Visit, error) {
	v, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.UserID != callerID {
		return nil, apperr.Forbiddenf("only the visitor can change visit %s", id)
	}
	if v.Status.IsTerminal() {
		return nil, apperr.Conflictf("visit %s is already %s", id, v.Status)
	}
	return v, nil
}

// update applies a conditional write that only succeeds while the visit is scheduled.
func (r *Repository) update(ctx context.Context, id, set string, args ...interface{}) (*Visit, error) {
	args = append(args, r.now().UTC(), id, string(Scheduled))
	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE visits SET %s, updated_at = ? WHERE id = ? AND status = ?", set),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("updating visit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperr.Conflictf("visit %s is no longer scheduled", id)
	}

	return r.Get(ctx, id)
}

// Cancel moves a scheduled visit to cancelled.
func (r *Repository) Cancel(ctx context.Context, id, callerID string) (*Visit, error) {
	if _, err := r.loadOwned(ctx, id, callerID); err != nil {
		return nil, err
	}
	return r.update(ctx, id, "status = ?", string(Cancelled))
}

// Reschedule moves a scheduled visit to a new date.
func (r *Repository) Reschedule(ctx context.Context, id, callerID, visitDate string) (*Visit, error) {
	if err := r.upcomingDate(visitDate); err != nil {
		return nil, err
	}
	if _, err := r.loadOwned(ctx, id, callerID); err != nil {
		return nil, err
	}
	return r.update(ctx, id, "visit_date = ?", visitDate)
}

// Complete marks a scheduled visit as completed with the visitor's notes.
// A visit can only be completed on or after its date.
func (r *Repository) Complete(ctx context.Context, id, callerID, notes string) (*Visit, error) {
	v, err := r.loadOwned(ctx, id, callerID)
	if err != nil {
		return nil, err
	}

	date, err := parseDate(v.VisitDate)
	if err != nil {
		return nil, err
	}
	today := r.now().UTC().Format(DateLayout)
	if date.Format(DateLayout) > today {
		return nil, apperr.Preconditionf("visit %s is on %s and cannot be completed before then", id, v.VisitDate)
	}

	return r.update(ctx, id, "status = ?, notes = ?", string(Completed), notes)
}

// HasCompletedVisit reports whether userID has completed any visit to propertyID.
func (r *Repository) HasCompletedVisit(ctx context.Context, propertyID, userID string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM visits WHERE property_id = ? AND user_id = ? AND status = ?)",
		propertyID, userID, string(Completed),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking completed visits: %w", err)
	}
	return exists == 1, nil
}
