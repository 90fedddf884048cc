// Package deal tracks one negotiation between a buyer and a property's owner.
package deal

import "time"

// Status is the lifecycle state of a deal.
type Status string

const (
	Active    Status = "active"
	Completed Status = "completed"
	Cancelled Status = "cancelled"
	Expired   Status = "expired"
)

// IsValid checks if a status is recognized.
func (s Status) IsValid() bool {
	switch s {
	case Active, Completed, Cancelled, Expired:
		return true
	}
	return false
}

// IsFinal reports whether a deal in this status is closed.
func (s Status) IsFinal() bool {
	return s == Completed || s == Cancelled || s == Expired
}

// Deal is a negotiation for one property between one buyer and the seller.
type Deal struct {
	ID             string     `json:"id"`
	PropertyID     string     `json:"property_id"`
	BuyerID        string     `json:"buyer_id"`
	SellerID       string     `json:"seller_id"`
	Status         Status     `json:"status"`
	CurrentOfferID *string    `json:"current_offer_id"`
	FinalPrice     *int64     `json:"final_price"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// IsParty reports whether userID is the buyer or the seller.
func (d *Deal) IsParty(userID string) bool {
	return userID != "" && (userID == d.BuyerID || userID == d.SellerID)
}

// Counterparty returns the other party of userID in the deal.
func (d *Deal) Counterparty(userID string) string {
	if userID == d.BuyerID {
		return d.SellerID
	}
	return d.BuyerID
}

// Summary is a deal with its offer counts, as listed on a user's deals page.
type Summary struct {
	Deal
	PropertyTitle string `json:"property_title"`
	Role          string `json:"role"`
	OfferCount    int    `json:"offer_count"`
	PendingCount  int    `json:"pending_count"`
	AcceptedCount int    `json:"accepted_count"`
	RejectedCount int    `json:"rejected_count"`
}
