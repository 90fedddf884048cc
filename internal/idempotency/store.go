// Package idempotency remembers the outcome of keyed mutations so a retried
// request replays the first result instead of writing again.
package idempotency

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/db"
)

// MaxKeyLength bounds client supplied keys.
const MaxKeyLength = 255

// Record is the stored outcome of one keyed request.
type Record struct {
	UserID      string
	Key         string
	Action      string
	TargetID    string
	RequestHash string // empty for bodiless actions
	OfferID     string
	DealID      string
	CreatedAt   time.Time
}

// Matches reports whether a repeat request is the same operation, with the
// same body, as the recorded one.
func (r *Record) Matches(action, targetID, requestHash string) bool {
	return r.Action == action && r.TargetID == targetID && r.RequestHash == requestHash
}

// HashRequest fingerprints a request body by its JSON encoding. A nil body
// hashes to the empty string.
func HashRequest(body interface{}) (string, error) {
	if body == nil {
		return "", nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding request body: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Store reads and writes idempotency records.
type Store struct {
	db  db.Querier
	now func() time.Time
}

// NewStore creates a store over q. Use the same transaction as the mutation
// so the record and the writes it describes commit together.
func NewStore(q db.Querier) *Store {
	return &Store{db: q, now: time.Now}
}

// ValidateKey checks a client supplied key.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) != key || key == "" {
		return apperr.Validationf("idempotency key must be non-empty without surrounding spaces")
	}
	if len(key) > MaxKeyLength {
		return apperr.Validationf("idempotency key is longer than %d characters", MaxKeyLength)
	}
	return nil
}

// Lookup returns the record for (userID, key), or nil if the key is unused.
func (s *Store) Lookup(ctx context.Context, userID, key string) (*Record, error) {
	var r Record
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, key, action, target_id, request_hash, offer_id, deal_id, created_at
		 FROM idempotency_keys WHERE user_id = ? AND key = ?`,
		userID, key,
	).Scan(&r.UserID, &r.Key, &r.Action, &r.TargetID, &r.RequestHash, &r.OfferID, &r.DealID, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading idempotency key: %w", err)
	}
	return &r, nil
}

// Save records the outcome of a keyed request.
func (s *Store) Save(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (user_id, key, action, target_id, request_hash, offer_id, deal_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.Key, r.Action, r.TargetID, r.RequestHash, r.OfferID, r.DealID, s.now().UTC(),
	)
	if db.IsUniqueViolation(err) {
		return apperr.Conflictf("idempotency key %q was already used", r.Key)
	}
	if err != nil {
		return fmt.Errorf("saving idempotency key: %w", err)
	}
	return nil
}

// Purge deletes records created before cutoff and returns how many were removed.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM idempotency_keys WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purging idempotency keys: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
