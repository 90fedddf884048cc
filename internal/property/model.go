// Package property provides the listing model and data access.
// Listings are the property store the negotiation core consults for owners.
package property

import (
	"database/sql"
	"strings"
	"time"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/money"
)

// Property represents a listed house. Its owner is the seller in every deal on it.
type Property struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"owner_id"`
	Title     string         `json:"title"`
	Address   string         `json:"address"`
	Price     *int64         `json:"price,omitempty"`
	Currency  money.Currency `json:"currency"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Validate checks the fields required to list a property.
func (p *Property) Validate() error {
	if strings.TrimSpace(p.OwnerID) == "" {
		return apperr.Validationf("owner is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return apperr.Validationf("title is required")
	}
	if p.Currency == "" {
		p.Currency = money.COP
	}
	if !p.Currency.IsValid() {
		return apperr.Validationf("invalid currency: %q", p.Currency)
	}
	if p.Price != nil && *p.Price <= 0 {
		return apperr.Validationf("price must be positive, got %d", *p.Price)
	}
	return nil
}

// scanProperty scans a property from a database row.
func scanProperty(row interface{ Scan(...interface{}) error }) (*Property, error) {
	var p Property
	var price sql.NullInt64
	var currency string

	err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Address, &price, &currency, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if price.Valid {
		p.Price = &price.Int64
	}
	p.Currency = money.Currency(currency)

	return &p, nil
}
