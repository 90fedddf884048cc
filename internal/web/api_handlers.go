package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/evcraddock/house-deals/internal/apperr"
	"github.com/evcraddock/house-deals/internal/auth"
	"github.com/evcraddock/house-deals/internal/favorite"
	"github.com/evcraddock/house-deals/internal/logging"
	"github.com/evcraddock/house-deals/internal/money"
	"github.com/evcraddock/house-deals/internal/negotiation"
	"github.com/evcraddock/house-deals/internal/offer"
	"github.com/evcraddock/house-deals/internal/property"
)

// IdempotencyKeyHeader carries the client's idempotency key on mutating requests.
const IdempotencyKeyHeader = "Idempotency-Key"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, kind apperr.Kind, code int) {
	apiJSON(w, map[string]string{"error": msg, "kind": string(kind)}, code)
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Precondition:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Unclassified errors are logged and
// reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	code := statusFor(kind)
	if code == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"request_id", logging.RequestID(r.Context()),
			"path", r.URL.Path,
			"kind", string(kind),
			"error", err,
		)
		if kind == "" {
			apiError(w, "internal error", "internal", code)
			return
		}
	}
	apiError(w, err.Error(), kind, code)
}

// decode reads a JSON body into v. An empty body leaves v unchanged.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return ae
		}
		return apperr.Wrap(apperr.Validation, err, "invalid JSON body")
	}
	return nil
}

func callerFrom(r *http.Request) negotiation.Caller {
	return negotiation.Caller{
		UserID:         auth.UserIDFromContext(r.Context()),
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	}
}

// apiListProperties returns listings, optionally only the caller's (?owner=me).
func (s *Server) apiListProperties(w http.ResponseWriter, r *http.Request) {
	opts := property.ListOptions{}
	switch owner := r.URL.Query().Get("owner"); owner {
	case "":
	case "me":
		opts.OwnerID = auth.UserIDFromContext(r.Context())
	default:
		opts.OwnerID = owner
	}

	props, err := s.properties.List(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if props == nil {
		props = []*property.Property{}
	}
	apiJSON(w, props, http.StatusOK)
}

// apiAddProperty lists a property owned by the caller.
func (s *Server) apiAddProperty(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string         `json:"title"`
		Address  string         `json:"address"`
		Price    *int64         `json:"price"`
		Currency money.Currency `json:"currency"`
	}
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	p, err := s.properties.Insert(r.Context(), &property.Property{
		OwnerID:  auth.UserIDFromContext(r.Context()),
		Title:    req.Title,
		Address:  req.Address,
		Price:    req.Price,
		Currency: req.Currency,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apiJSON(w, p, http.StatusCreated)
}

func (s *Server) apiGetProperty(w http.ResponseWriter, r *http.Request) {
	p, err := s.properties.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apiJSON(w, p, http.StatusOK)
}

// apiScheduleVisit books a visit for the caller.
func (s *Server) apiScheduleVisit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VisitDate string `json:"visit_date"`
		Notes     string `json:"notes"`
	}
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	v, err := s.visits.Schedule(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()),
		strings.TrimSpace(req.VisitDate), req.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apiJSON(w, v, http.StatusCreated)
}

// apiAddFavorite saves a listing to the caller's favorites.
func (s *Server) apiAddFavorite(w http.ResponseWriter, r *http.Request) {
	f, err := s.favorites.Add(r.Context(), auth.UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apiJSON(w, f, http.StatusOK)
}

func (s *Server) apiRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	if err := s.favorites.Remove(r.Context(), auth.UserIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) apiListFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := s.favorites.ListByUser(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if favs == nil {
		favs = []*favorite.Favorite{}
	}
	apiJSON(w, favs, http.StatusOK)
}

func (s *Server) apiListVisits(w http.ResponseWriter, r *http.Request) {
	visits, err := s.visits.ListByUser(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if visits == nil {
		apiJSON(w, []struct{}{}, http.StatusOK)
		return
	}
	apiJSON(w, visits, http.StatusOK)
}

func (s *Server) apiCancelVisit(w http.ResponseWriter, r *http.Request) {
	v, err := s.visits.Cancel(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apiJSON(w, v, http.StatusOK)
}

func (s *Server) apiCompleteVisit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	v, err := s.visits.Complete(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()), req.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apiJSON(w, v, http.StatusOK)
}

func (s *Server) apiRescheduleVisit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VisitDate string `json:"visit_date"`
	}
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	v, err := s.visits.Reschedule(r.Context(), r.PathValue("id"), auth.UserIDFromContext(r.Context()),
		strings.TrimSpace(req.VisitDate))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apiJSON(w, v, http.StatusOK)
}

func (s *Server) apiListDeals(w http.ResponseWriter, r *http.Request) {
	deals, err := s.engine.ListDeals(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if deals == nil {
		apiJSON(w, []struct{}{}, http.StatusOK)
		return
	}
	apiJSON(w, deals, http.StatusOK)
}

func (s *Server) apiGetDeal(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.GetDeal(r.Context(), auth.UserIDFromContext(r.Context()), r.PathValue("dealId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apiJSON(w, view, http.StatusOK)
}

func (s *Server) apiGetOffer(w http.ResponseWriter, r *http.Request) {
	v, err := s.engine.GetOffer(r.Context(), auth.UserIDFromContext(r.Context()), r.PathValue("offerId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	apiJSON(w, v, http.StatusOK)
}

// writeResult writes a negotiation result. Replays answer 200 since nothing new was created.
func writeResult(w http.ResponseWriter, res *negotiation.Result, created bool) {
	code := http.StatusOK
	if created && !res.Replayed {
		code = http.StatusCreated
	}
	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	apiJSON(w, res, code)
}

// apiSubmitOffer opens a new offer chain on a property.
func (s *Server) apiSubmitOffer(w http.ResponseWriter, r *http.Request) {
	var terms offer.Payload
	if err := decode(w, r, &terms); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.engine.Submit(r.Context(), callerFrom(r), r.PathValue("propertyId"), terms)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, res, true)
}

func (s *Server) apiCounterOffer(w http.ResponseWriter, r *http.Request) {
	var terms offer.Payload
	if err := decode(w, r, &terms); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.engine.Counter(r.Context(), callerFrom(r), r.PathValue("offerId"), terms)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, res, true)
}

// apiRespond handles accept, reject and withdraw, which take no body.
func (s *Server) apiRespond(a negotiation.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			res *negotiation.Result
			err error
		)
		c := callerFrom(r)
		offerID := r.PathValue("offerId")
		switch a {
		case negotiation.Accept:
			res, err = s.engine.Accept(r.Context(), c, offerID)
		case negotiation.Reject:
			res, err = s.engine.Reject(r.Context(), c, offerID)
		case negotiation.Withdraw:
			res, err = s.engine.Withdraw(r.Context(), c, offerID)
		default:
			err = apperr.Validationf("unsupported action %q", a)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeResult(w, res, false)
	}
}

func (s *Server) apiCancelDeal(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.CancelDeal(r.Context(), callerFrom(r), r.PathValue("dealId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeResult(w, res, false)
}
