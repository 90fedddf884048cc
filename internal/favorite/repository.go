package favorite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/db"
)

// Repository provides data access for saved listings.
type Repository struct {
	db  db.Querier
	now func() time.Time
}

// NewRepository creates a favorites repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q, now: time.Now}
}

// WithClock returns a copy of the repository that reads the current time from now.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	return &Repository{db: r.db, now: now}
}

const selectColumns = `f.user_id, f.property_id, p.owner_id, p.title, p.address, p.price, p.currency, f.created_at`

// Add saves propertyID for userID. Saving a listing twice keeps the first entry.
func (r *Repository) Add(ctx context.Context, userID, propertyID string) (*Favorite, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validationf("user is required")
	}

	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM properties WHERE id = ?", propertyID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("property %s not found", propertyID)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up property %s: %w", propertyID, err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO favorites (user_id, property_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, property_id) DO NOTHING`,
		userID, propertyID, r.now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("saving favorite: %w", err)
	}

	return r.Get(ctx, userID, propertyID)
}

// Get returns one saved listing.
func (r *Repository) Get(ctx context.Context, userID, propertyID string) (*Favorite, error) {
	query := fmt.Sprintf(`SELECT %s FROM favorites f JOIN properties p ON p.id = f.property_id
		WHERE f.user_id = ? AND f.property_id = ?`, selectColumns)
	f, err := scanFavorite(r.db.QueryRowContext(ctx, query, userID, propertyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("property %s is not in your favorites", propertyID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying favorite: %w", err)
	}
	return f, nil
}

// IsFavorite reports whether userID saved propertyID.
func (r *Repository) IsFavorite(ctx context.Context, userID, propertyID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM favorites WHERE user_id = ? AND property_id = ?",
		userID, propertyID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking favorite: %w", err)
	}
	return n > 0, nil
}

// Remove drops propertyID from userID's favorites.
func (r *Repository) Remove(ctx context.Context, userID, propertyID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM favorites WHERE user_id = ? AND property_id = ?", userID, propertyID)
	if err != nil {
		return fmt.Errorf("removing favorite: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFoundf("property %s is not in your favorites", propertyID)
	}
	return nil
}

// ListByUser returns userID's saved listings, most recently saved first.
func (r *Repository) ListByUser(ctx context.Context, userID string) (favs []*Favorite, err error) {
	query := fmt.Sprintf(`SELECT %s FROM favorites f JOIN properties p ON p.id = f.property_id
		WHERE f.user_id = ? ORDER BY f.created_at DESC, p.title`, selectColumns)
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning favorite: %w", err)
		}
		favs = append(favs, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating favorites: %w", err)
	}

	return favs, nil
}
