// Package client provides an HTTP client for the house-deals REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/deal"
	"github.com/evcraddock/house-deals/internal/favorite"
	"github.com/evcraddock/house-deals/internal/money"
	"github.com/evcraddock/house-deals/internal/negotiation"
	"github.com/evcraddock/house-deals/internal/offer"
	"github.com/evcraddock/house-deals/internal/property"
	"github.com/evcraddock/house-deals/internal/visit"
)

// Client is an HTTP client for the house-deals API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new API client that authenticates with a bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// ListProperties returns listings. With mine set, only the caller's own.
func (c *Client) ListProperties(ctx context.Context, mine bool) ([]*property.Property, error) {
	path := "/api/properties"
	if mine {
		path += "?owner=me"
	}
	var props []*property.Property
	if err := c.get(ctx, path, &props); err != nil {
		return nil, err
	}
	return props, nil
}

// GetProperty returns one listing.
func (c *Client) GetProperty(ctx context.Context, id string) (*property.Property, error) {
	var p property.Property
	if err := c.get(ctx, "/api/properties/"+url.PathEscape(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddPropertyRequest is the body of POST /api/properties.
type AddPropertyRequest struct {
	Title    string         `json:"title"`
	Address  string         `json:"address,omitempty"`
	Price    *int64         `json:"price,omitempty"`
	Currency money.Currency `json:"currency,omitempty"`
}

// AddProperty lists a property owned by the caller.
func (c *Client) AddProperty(ctx context.Context, req AddPropertyRequest) (*property.Property, error) {
	var p property.Property
	if err := c.post(ctx, "/api/properties", "", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddFavorite saves a listing to the caller's favorites.
func (c *Client) AddFavorite(ctx context.Context, propertyID string) (*favorite.Favorite, error) {
	var f favorite.Favorite
	if err := c.post(ctx, "/api/properties/"+url.PathEscape(propertyID)+"/favorite", "", nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// RemoveFavorite drops a listing from the caller's favorites.
func (c *Client) RemoveFavorite(ctx context.Context, propertyID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/api/properties/"+url.PathEscape(propertyID)+"/favorite", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, nil)
}

// ListFavorites returns the caller's saved listings.
func (c *Client) ListFavorites(ctx context.Context) ([]*favorite.Favorite, error) {
	var favs []*favorite.Favorite
	if err := c.get(ctx, "/api/favorites", &favs); err != nil {
		return nil, err
	}
	return favs, nil
}

// ScheduleVisit books a visit to a property.
func (c *Client) ScheduleVisit(ctx context.Context, propertyID, visitDate, notes string) (*visit.Visit, error) {
	body := map[string]string{"visit_date": visitDate, "notes": notes}
	var v visit.Visit
	if err := c.post(ctx, "/api/properties/"+url.PathEscape(propertyID)+"/visits", "", body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVisits returns the caller's visits.
func (c *Client) ListVisits(ctx context.Context) ([]*visit.Visit, error) {
	var visits []*visit.Visit
	if err := c.get(ctx, "/api/visits", &visits); err != nil {
		return nil, err
	}
	return visits, nil
}

// CancelVisit cancels a scheduled visit.
func (c *Client) CancelVisit(ctx context.Context, id string) (*visit.Visit, error) {
	return c.visitAction(ctx, id, "cancel", nil)
}

// CompleteVisit marks a visit as done with notes.
func (c *Client) CompleteVisit(ctx context.Context, id, notes string) (*visit.Visit, error) {
	return c.visitAction(ctx, id, "complete", map[string]string{"notes": notes})
}

// RescheduleVisit moves a scheduled visit to a new date.
func (c *Client) RescheduleVisit(ctx context.Context, id, visitDate string) (*visit.Visit, error) {
	return c.visitAction(ctx, id, "reschedule", map[string]string{"visit_date": visitDate})
}

func (c *Client) visitAction(ctx context.Context, id, action string, body interface{}) (*visit.Visit, error) {
	var v visit.Visit
	if err := c.post(ctx, "/api/visits/"+url.PathEscape(id)+"/"+action, "", body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SubmitOffer opens a new offer chain on a property. key is an optional idempotency key.
func (c *Client) SubmitOffer(ctx context.Context, propertyID string, terms offer.Payload, key string) (*negotiation.Result, error) {
	var res negotiation.Result
	if err := c.post(ctx, "/api/deals/"+url.PathEscape(propertyID)+"/offers", key, terms, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CounterOffer replies to a pending offer with new terms.
func (c *Client) CounterOffer(ctx context.Context, offerID string, terms offer.Payload, key string) (*negotiation.Result, error) {
	return c.offerAction(ctx, offerID, "counter", terms, key)
}

// AcceptOffer accepts a pending offer.
func (c *Client) AcceptOffer(ctx context.Context, offerID, key string) (*negotiation.Result, error) {
	return c.offerAction(ctx, offerID, "accept", nil, key)
}

// RejectOffer rejects a pending offer.
func (c *Client) RejectOffer(ctx context.Context, offerID, key string) (*negotiation.Result, error) {
	return c.offerAction(ctx, offerID, "reject", nil, key)
}

// WithdrawOffer withdraws the caller's pending offer.
func (c *Client) WithdrawOffer(ctx context.Context, offerID, key string) (*negotiation.Result, error) {
	return c.offerAction(ctx, offerID, "withdraw", nil, key)
}

func (c *Client) offerAction(ctx context.Context, offerID, action string, body interface{}, key string) (*negotiation.Result, error) {
	var res negotiation.Result
	if err := c.post(ctx, "/api/offers/"+url.PathEscape(offerID)+"/"+action, key, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetOffer returns one offer with its parent summary.
func (c *Client) GetOffer(ctx context.Context, offerID string) (*negotiation.OfferView, error) {
	var v negotiation.OfferView
	if err := c.get(ctx, "/api/offers/"+url.PathEscape(offerID), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListDeals returns the caller's deals.
func (c *Client) ListDeals(ctx context.Context) ([]*deal.Summary, error) {
	var deals []*deal.Summary
	if err := c.get(ctx, "/api/deals", &deals); err != nil {
		return nil, err
	}
	return deals, nil
}

// GetDeal returns a deal with its offer chain and history.
func (c *Client) GetDeal(ctx context.Context, dealID string) (*negotiation.DealView, error) {
	var v negotiation.DealView
	if err := c.get(ctx, "/api/deals/"+url.PathEscape(dealID), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// CancelDeal closes an active deal with nothing pending.
func (c *Client) CancelDeal(ctx context.Context, dealID, key string) (*negotiation.Result, error) {
	var res negotiation.Result
	if err := c.post(ctx, "/api/deals/"+url.PathEscape(dealID)+"/cancel", key, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// get performs a GET request and decodes the response.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

// post performs a POST request with an optional JSON body and decodes the response.
func (c *Client) post(ctx context.Context, path, idempotencyKey string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	return c.do(req, result)
}

// do executes an HTTP request with auth header and handles errors.
// Error responses carrying a kind come back as *apperr.Error.
func (c *Client) do(req *http.Request, result interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			if errResp.Kind != "" {
				return &apperr.Error{Kind: apperr.Kind(errResp.Kind), Msg: errResp.Error}
			}
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("server error: %s", http.StatusText(resp.StatusCode))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
