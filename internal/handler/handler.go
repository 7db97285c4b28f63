// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/session-booking/internal/model"
	"github.com/Shivanand-hulikatti/session-booking/internal/notify"
	"github.com/Shivanand-hulikatti/session-booking/internal/service"
)

// Pinger reports whether storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BookingHandler holds all HTTP handlers for the booking API.
type BookingHandler struct {
	ledger *service.Ledger
	desk   *service.Desk
	emails *notify.Log
	db     Pinger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(ledger *service.Ledger, desk *service.Desk, emails *notify.Log, db Pinger) *BookingHandler {
	return &BookingHandler{ledger: ledger, desk: desk, emails: emails, db: db}
}

// Routes mounts the API on r.
func (h *BookingHandler) Routes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Get("/catalog", h.Catalog)

	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", h.CreateBooking)
		r.Get("/", h.ListBookings)
		r.Get("/{id}", h.GetBooking)
		r.Delete("/{id}", h.CancelBooking)
	})

	r.Route("/availability", func(r chi.Router) {
		r.Get("/", h.QueryAvailability)
		r.Get("/candidates", h.Candidates)
	})

	r.Route("/unavailability", func(r chi.Router) {
		r.Post("/", h.RecordUnavailability)
		r.Get("/", h.ListUnavailability)
		r.Delete("/{id}", h.DeleteUnavailability)
	})

	r.Route("/email-events", func(r chi.Router) {
		r.Get("/", h.ListEmailEvents)
		r.Post("/{id}/resend", h.ResendEmail)
	})
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

// writeServiceError maps a ledger error kind to its HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	resp := model.ErrorResponse{Error: err.Error(), Kind: model.KindOf(err)}

	var ve *model.ValidationError
	var ce *model.ConflictError
	switch {
	case errors.As(err, &ve):
		resp.Field = ve.Field
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.As(err, &ce):
		resp.Key = ce.Key
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, resp)
	case errors.Is(err, model.ErrStorage):
		resp.Error = "storage unavailable, try again"
		writeJSON(w, http.StatusServiceUnavailable, resp)
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// ─── Bookings ─────────────────────────────────────────────────────────────────

// CreateBooking handles POST /bookings
// An empty teacher is assigned from the roster.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	b, err := h.desk.Book(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// ListBookings handles GET /bookings
// Query parameters salesperson_email, school_name, subject, teacher and
// date narrow the result.
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bookings, err := h.ledger.ListBookings(r.Context(), model.BookingFilter{
		SalespersonEmail: q.Get("salesperson_email"),
		SchoolName:       q.Get("school_name"),
		Subject:          q.Get("subject"),
		Teacher:          q.Get("teacher"),
		Date:             q.Get("date"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

// GetBooking handles GET /bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	b, err := h.ledger.GetBooking(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// CancelBooking handles DELETE /bookings/{id}
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	b, err := h.desk.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ─── Availability ─────────────────────────────────────────────────────────────

// QueryAvailability handles GET /availability?teacher=&date=&slot=
func (h *BookingHandler) QueryAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var slot *string
	if q.Has("slot") {
		s := q.Get("slot")
		slot = &s
	}
	a, err := h.ledger.QueryAvailability(r.Context(), q.Get("teacher"), q.Get("date"), slot)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Candidates handles GET /availability/candidates?subject=&date=&slot=
func (h *BookingHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.desk.Candidates(r.Context(), q.Get("subject"), q.Get("date"), q.Get("slot"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// RecordUnavailability handles POST /unavailability
func (h *BookingHandler) RecordUnavailability(w http.ResponseWriter, r *http.Request) {
	var req model.UnavailabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	u, err := h.ledger.RecordUnavailability(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// ListUnavailability handles GET /unavailability
func (h *BookingHandler) ListUnavailability(w http.ResponseWriter, r *http.Request) {
	out, err := h.ledger.ListUnavailability(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if out == nil {
		out = []model.Unavailability{}
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteUnavailability handles DELETE /unavailability/{id}
func (h *BookingHandler) DeleteUnavailability(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid unavailability id")
		return
	}
	if err := h.ledger.DeleteUnavailability(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Email log ────────────────────────────────────────────────────────────────

// ListEmailEvents handles GET /email-events?limit=
func (h *BookingHandler) ListEmailEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := strings.TrimSpace(r.URL.Query().Get("limit")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events, err := h.emails.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if events == nil {
		events = []model.EmailEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ResendEmail handles POST /email-events/{id}/resend
func (h *BookingHandler) ResendEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid email event id")
		return
	}
	ev, err := h.emails.Resend(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// ─── Catalog & health ─────────────────────────────────────────────────────────

// Catalog handles GET /catalog
func (h *BookingHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.desk.Catalog())
}

// HealthCheck handles GET /health
func (h *BookingHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
