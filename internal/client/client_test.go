package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/deal"
	"github.com/evcraddock/house-deals/internal/favorite"
	"github.com/evcraddock/house-deals/internal/money"
	"github.com/evcraddock/house-deals/internal/offer"
	"github.com/evcraddock/house-deals/internal/property"
)

func TestListProperties(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/properties", r.URL.Path)
		assert.Equal(t, "me", r.URL.Query().Get("owner"))
		assert.Equal(t, "Bearer testtoken", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]*property.Property{{ID: "p1", Title: "Casa"}})
	}))
	defer srv.Close()

	props, err := New(srv.URL, "testtoken").ListProperties(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "Casa", props[0].Title)
}

func TestFavorites(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			_ = json.NewEncoder(w).Encode(favorite.Favorite{PropertyID: "p1", Title: "Casa"})
		default:
			_ = json.NewEncoder(w).Encode([]*favorite.Favorite{{PropertyID: "p1", Title: "Casa"}})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "t")
	ctx := context.Background()

	f, err := c.AddFavorite(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Casa", f.Title)

	favs, err := c.ListFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, favs, 1)

	require.NoError(t, c.RemoveFavorite(ctx, "p1"))

	assert.Equal(t, []string{
		"POST /api/properties/p1/favorite",
		"GET /api/favorites",
		"DELETE /api/properties/p1/favorite",
	}, calls)
}

func TestSubmitOfferSendsPayloadAndKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/deals/p1/offers", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "installments", body["payment_structure"])
		assert.EqualValues(t, 300000000, body["total_amount"])

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"offer":{"id":"o1","version":1,"status":"pending_review",
			"terms":{"total_amount":300000000,"currency":"COP","payment_structure":"full"}},
			"deal":{"id":"d1","status":"active"}}`)
	}))
	defer srv.Close()

	terms := offer.Payload{
		TotalAmount: 300000000,
		Currency:    money.COP,
		Payment: offer.Installments{
			{Date: "2026-04-01", Amount: 300000000, Currency: money.COP, PaymentMethod: offer.Wire},
		},
	}
	res, err := New(srv.URL, "t").SubmitOffer(context.Background(), "p1", terms, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "o1", res.Offer.ID)
	assert.Equal(t, offer.FullPayment{}, res.Offer.Terms.Payment)
	assert.Equal(t, deal.Active, res.Deal.Status)
}

func TestOfferActionsUsePaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		_, _ = io.WriteString(w, `{"deal":{"id":"d1","status":"active"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, "t")
	ctx := context.Background()
	_, err := c.AcceptOffer(ctx, "o1", "")
	require.NoError(t, err)
	_, err = c.RejectOffer(ctx, "o1", "")
	require.NoError(t, err)
	_, err = c.WithdrawOffer(ctx, "o1", "")
	require.NoError(t, err)
	_, err = c.CancelDeal(ctx, "d1", "")
	require.NoError(t, err)
	_, err = c.CompleteVisit(ctx, "v1", "nice")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"POST /api/offers/o1/accept",
		"POST /api/offers/o1/reject",
		"POST /api/offers/o1/withdraw",
		"POST /api/deals/d1/cancel",
		"POST /api/visits/v1/complete",
	}, paths)
}

func TestGetDeal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/deals/d1", r.URL.Path)
		_, _ = io.WriteString(w, `{"deal":{"id":"d1","status":"completed","final_price":310000000},
			"chain":[{"id":"o2","version":2,"status":"accepted","terms":{"total_amount":310000000,"currency":"COP"},
				"parent":{"id":"o1","version":1,"total_amount":300000000,"currency":"COP"},
				"changes":[{"field":"total_amount","from":"COP 300,000,000","to":"COP 310,000,000"}]}],
			"offers":[]}`)
	}))
	defer srv.Close()

	view, err := New(srv.URL, "t").GetDeal(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, deal.Completed, view.Deal.Status)
	require.Len(t, view.Chain, 1)
	assert.Equal(t, "o2", view.Chain[0].ID)
	require.NotNil(t, view.Chain[0].Parent)
	assert.Equal(t, int64(300000000), view.Chain[0].Parent.TotalAmount)
	assert.Len(t, view.Chain[0].Changes, 1)
}

func TestErrorKinds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":"offer o1 is accepted, not pending_review","kind":"conflict"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "t").AcceptOffer(context.Background(), "o1", "")
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Equal(t, "offer o1 is accepted, not pending_review", err.Error())
}

func TestServerErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "bad").ListDeals(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}
