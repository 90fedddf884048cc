// Package favorite keeps the listings a user has saved for later.
package favorite

import (
	"database/sql"
	"time"

	"github.com/evcraddock/house-deals/internal/money"
)

// Favorite is a listing saved by a user, with the listing fields a
// shortlist shows.
type Favorite struct {
	UserID     string         `json:"user_id"`
	PropertyID string         `json:"property_id"`
	OwnerID    string         `json:"owner_id"`
	Title      string         `json:"title"`
	Address    string         `json:"address"`
	Price      *int64         `json:"price,omitempty"`
	Currency   money.Currency `json:"currency"`
	CreatedAt  time.Time      `json:"created_at"`
}

func scanFavorite(row interface{ Scan(...interface{}) error }) (*Favorite, error) {
	var f Favorite
	var price sql.NullInt64
	var currency string

	err := row.Scan(&f.UserID, &f.PropertyID, &f.OwnerID, &f.Title, &f.Address, &price, &currency, &f.CreatedAt)
	if err != nil {
		return nil, err
	}

	if price.Valid {
		f.Price = &price.Int64
	}
	f.Currency = money.Currency(currency)

	return &f, nil
}
