// Package web provides the JSON HTTP API for house-deals.
package web

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/evcraddock/house-deals/internal/auth"
	"github.com/evcraddock/house-deals/internal/favorite"
	"github.com/evcraddock/house-deals/internal/logging"
	"github.com/evcraddock/house-deals/internal/negotiation"
	"github.com/evcraddock/house-deals/internal/property"
	"github.com/evcraddock/house-deals/internal/visit"
)

// Server is the API HTTP server.
type Server struct {
	db         *sql.DB
	engine     *negotiation.Engine
	properties *property.Repository
	visits     *visit.Repository
	favorites  *favorite.Repository
	logger     *slog.Logger
	mux        *http.ServeMux
	handler    http.Handler
}

// NewServer creates an API server over database. Requests under /api/ are
// authenticated with tokens checked by verifier.
func NewServer(database *sql.DB, engine *negotiation.Engine, verifier *auth.Verifier) *Server {
	s := &Server{
		db:         database,
		engine:     engine,
		properties: property.NewRepository(database),
		visits:     visit.NewRepository(database),
		favorites:  favorite.NewRepository(database),
		logger:     slog.Default(),
		mux:        http.NewServeMux(),
	}

	s.routes()
	s.handler = logging.RequestLogger(auth.NewMiddleware(verifier).RequireUser(s.mux))

	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/properties", s.apiListProperties)
	s.mux.HandleFunc("POST /api/properties", s.apiAddProperty)
	s.mux.HandleFunc("GET /api/properties/{id}", s.apiGetProperty)
	s.mux.HandleFunc("POST /api/properties/{id}/visits", s.apiScheduleVisit)
	s.mux.HandleFunc("POST /api/properties/{id}/favorite", s.apiAddFavorite)
	s.mux.HandleFunc("DELETE /api/properties/{id}/favorite", s.apiRemoveFavorite)
	s.mux.HandleFunc("GET /api/favorites", s.apiListFavorites)

	s.mux.HandleFunc("GET /api/visits", s.apiListVisits)
	s.mux.HandleFunc("POST /api/visits/{id}/cancel", s.apiCancelVisit)
	s.mux.HandleFunc("POST /api/visits/{id}/complete", s.apiCompleteVisit)
	s.mux.HandleFunc("POST /api/visits/{id}/reschedule", s.apiRescheduleVisit)

	s.mux.HandleFunc("GET /api/deals", s.apiListDeals)
	s.mux.HandleFunc("GET /api/deals/{dealId}", s.apiGetDeal)
	s.mux.HandleFunc("POST /api/deals/{propertyId}/offers", s.apiSubmitOffer)
	s.mux.HandleFunc("POST /api/deals/{dealId}/cancel", s.apiCancelDeal)

	s.mux.HandleFunc("GET /api/offers/{offerId}", s.apiGetOffer)
	s.mux.HandleFunc("POST /api/offers/{offerId}/counter", s.apiCounterOffer)
	s.mux.HandleFunc("POST /api/offers/{offerId}/accept", s.apiRespond(negotiation.Accept))
	s.mux.HandleFunc("POST /api/offers/{offerId}/reject", s.apiRespond(negotiation.Reject))
	s.mux.HandleFunc("POST /api/offers/{offerId}/withdraw", s.apiRespond(negotiation.Withdraw))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		apiJSON(w, map[string]string{"status": "unavailable"}, http.StatusServiceUnavailable)
		return
	}
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
