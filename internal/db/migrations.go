package db

import (
	"database/sql"
	"fmt"
)

// migrations is an ordered list of SQL statements to run.
// All of them run inside a single transaction and are idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS properties (
		id         TEXT    PRIMARY KEY,
		owner_id   TEXT    NOT NULL,
		title      TEXT    NOT NULL,
		address    TEXT    NOT NULL DEFAULT '',
		price      INTEGER CHECK (price IS NULL OR price > 0),
		currency   TEXT    NOT NULL DEFAULT 'COP',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS properties_owner ON properties(owner_id)`,
	`CREATE TABLE IF NOT EXISTS visits (
		id          TEXT PRIMARY KEY,
		property_id TEXT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		user_id     TEXT NOT NULL,
		visit_date  TEXT NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('scheduled', 'completed', 'cancelled')),
		notes       TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS visits_property_user ON visits(property_id, user_id, status)`,
	`CREATE TABLE IF NOT EXISTS deals (
		id               TEXT    PRIMARY KEY,
		property_id      TEXT    NOT NULL REFERENCES properties(id),
		buyer_id         TEXT    NOT NULL,
		seller_id        TEXT    NOT NULL,
		status           TEXT    NOT NULL CHECK (status IN ('active', 'completed', 'cancelled', 'expired')),
		current_offer_id TEXT    REFERENCES offers(id),
		final_price      INTEGER,
		created_at       DATETIME NOT NULL,
		updated_at       DATETIME NOT NULL,
		completed_at     DATETIME,
		CHECK (buyer_id <> seller_id)
	)`,
	// At most one active deal per (property, buyer).
	`CREATE UNIQUE INDEX IF NOT EXISTS deals_one_active
		ON deals(property_id, buyer_id) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS deals_seller ON deals(seller_id)`,
	`CREATE TABLE IF NOT EXISTS offers (
		id                            TEXT    PRIMARY KEY,
		deal_id                       TEXT    NOT NULL REFERENCES deals(id),
		property_id                   TEXT    NOT NULL REFERENCES properties(id),
		user_id                       TEXT    NOT NULL,
		parent_offer_id               TEXT    REFERENCES offers(id),
		version                       INTEGER NOT NULL CHECK (version >= 1),
		status                        TEXT    NOT NULL CHECK (status IN ('pending_review', 'accepted', 'rejected', 'withdrawn', 'countered')),
		total_amount                  INTEGER NOT NULL CHECK (total_amount > 0),
		currency                      TEXT    NOT NULL,
		payment_structure             TEXT    NOT NULL CHECK (payment_structure IN ('full', 'installments')),
		installments_json             TEXT    NOT NULL DEFAULT '[]',
		offer_validity_date           TEXT,
		other_conditions              TEXT    NOT NULL DEFAULT '',
		deeds_signing_date            TEXT,
		registration_fees_arrangement TEXT    NOT NULL DEFAULT '',
		physical_delivery_date        TEXT,
		request_promesa               INTEGER NOT NULL DEFAULT 0,
		request_option_contract       INTEGER NOT NULL DEFAULT 0,
		created_at                    DATETIME NOT NULL,
		updated_at                    DATETIME NOT NULL
	)`,
	// A parent can be countered once; the chain never forks.
	`CREATE UNIQUE INDEX IF NOT EXISTS offers_one_child
		ON offers(parent_offer_id) WHERE parent_offer_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS offers_deal_status ON offers(deal_id, status)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		user_id    TEXT NOT NULL,
		key        TEXT NOT NULL,
		action     TEXT NOT NULL,
		target_id    TEXT NOT NULL,
		request_hash TEXT NOT NULL DEFAULT '',
		offer_id   TEXT NOT NULL DEFAULT '',
		deal_id    TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		user_id     TEXT NOT NULL,
		property_id TEXT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		created_at  DATETIME NOT NULL,
		PRIMARY KEY (user_id, property_id)
	)`,
}

// migrate runs all migrations in order.
func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration: %w", err)
	}

	for i, m := range migrations {
		if _, err := tx.Exec(m); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("migration %d: %w (also failed to roll back: %v)", i, err, rbErr)
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migrations: %w", err)
	}
	return nil
}
