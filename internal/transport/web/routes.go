package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/avstrong/hotel/internal/document"
	"github.com/avstrong/hotel/internal/draft"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/promo"
	"github.com/avstrong/hotel/internal/settlement"
	"github.com/avstrong/hotel/internal/stay"
)

const draftWaitTimeout = 5 * time.Second

// stayRequest is the shape shared by quotes and bookings. Dates are calendar days,
// promotions arrive in whatever shape the client has and are normalised here.
type stayRequest struct {
	RoomID    string              `json:"room_id"`
	CheckIn   string              `json:"check_in"`
	CheckOut  string              `json:"check_out"`
	RoomCount int                 `json:"room_count"`
	Services  []pricing.Selection `json:"services"`
	Promo     map[string]any      `json:"promo,omitempty"`
	Override  *int64              `json:"override,omitempty"`
}

func (s *Server) parseStay(req stayRequest) (stay.Window, *promo.Promotion, error) {
	inputErr := apperr.NewValidationError()

	var w stay.Window

	if req.CheckIn != "" {
		t, err := stay.ParseDate(req.CheckIn, s.conf.Location)
		if err != nil {
			inputErr.Add("check_in", "use YYYY-MM-DD")
		}

		w.CheckIn = t
	}

	if req.CheckOut != "" {
		t, err := stay.ParseDate(req.CheckOut, s.conf.Location)
		if err != nil {
			inputErr.Add("check_out", "use YYYY-MM-DD")
		}

		w.CheckOut = t
	}

	var p *promo.Promotion

	if len(req.Promo) != 0 {
		normalized, err := promo.Normalize(req.Promo, s.conf.Location)
		if err != nil {
			inputErr.Add("promo", err.Error())
		} else {
			p = &normalized
		}
	}

	return w, p, inputErr.OrNil()
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.badRequest(w, "malformed JSON body")

		return false
	}

	return true
}

func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	var req stayRequest
	if !s.decode(w, r, &req) {
		return
	}

	window, p, err := s.parseStay(req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	quote, err := s.quotes.Quote(r.Context(), pricing.QuoteInput{
		RoomID:    req.RoomID,
		Window:    window,
		RoomCount: req.RoomCount,
		Services:  req.Services,
		Promo:     p,
		Override:  req.Override,
	})
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, quote)
}

type bookingRequest struct {
	stayRequest
	Guest      settlement.Guest `json:"guest"`
	Guests     int              `json:"guests"`
	Prepayment *ledger.Method   `json:"prepayment_method,omitempty"`
}

func (s *Server) createBookingHandler(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		s.writeError(w, apperr.ErrIdempotencyKey)

		return
	}

	var req bookingRequest
	if !s.decode(w, r, &req) {
		return
	}

	window, p, err := s.parseStay(req.stayRequest)
	if err != nil {
		s.writeError(w, err)

		return
	}

	ctx := settlement.NewContextWithIdempotencyKey(r.Context(), idempotencyKey)

	out, err := s.bookings.CreateBooking(ctx, &settlement.BookInput{
		Guest:      req.Guest,
		RoomID:     req.RoomID,
		Window:     window,
		Guests:     req.Guests,
		RoomCount:  req.RoomCount,
		Services:   req.Services,
		Promo:      p,
		Override:   req.Override,
		Prepayment: req.Prepayment,
	})
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, out)
}

func (s *Server) bookingAction(
	action func(ctx context.Context, bookingID string) (*settlement.Booking, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := action(r.Context(), r.PathValue("id"))
		if err != nil {
			s.writeError(w, err)

			return
		}

		s.writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) addServiceHandler(w http.ResponseWriter, r *http.Request) {
	var sel pricing.Selection
	if !s.decode(w, r, &sel) {
		return
	}

	out, err := s.bookings.AddService(r.Context(), r.PathValue("id"), sel)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

type checkoutRequest struct {
	ActualCheckout *time.Time `json:"actual_checkout,omitempty"`
}

func (s *Server) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest

	// The body is optional; an empty one means the guest is leaving now.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(w, "malformed JSON body")

		return
	}

	actual := s.conf.Now()
	if req.ActualCheckout != nil {
		actual = *req.ActualCheckout
	}

	out, err := s.bookings.ConfirmCheckout(r.Context(), r.PathValue("id"), actual)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var in settlement.PaymentInput
	if !s.decode(w, r, &in) {
		return
	}

	ctx := r.Context()
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		ctx = settlement.NewContextWithIdempotencyKey(ctx, key)
	}

	receipt, err := s.bookings.RecordPayment(ctx, r.PathValue("id"), in)
	if err != nil {
		s.writeError(w, err)

		return
	}

	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}

	s.writeJSON(w, status, receipt)
}

func (s *Server) documentHandler(w http.ResponseWriter, r *http.Request) {
	body, b, err := s.bookings.GenerateInvoiceDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)

		return
	}

	w.Header().Set("Content-Type", document.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.xlsx"`, b.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(body); err != nil {
		s.l.LogErrorf("Could not write invoice document: %v", err.Error())
	}
}

func (s *Server) pendingCheckoutsHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.bookings.PendingCheckouts(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

type draftPatchRequest struct {
	Room       *draft.RoomRef       `json:"room,omitempty"`
	RoomID     *string              `json:"room_id,omitempty"`
	CheckIn    *string              `json:"check_in,omitempty"`
	CheckOut   *string              `json:"check_out,omitempty"`
	Guests     *int                 `json:"guests,omitempty"`
	RoomCount  *int                 `json:"room_count,omitempty"`
	Services   *[]pricing.Selection `json:"services,omitempty"`
	Promo      map[string]any       `json:"promo,omitempty"`
	ClearPromo bool                 `json:"clear_promo,omitempty"`
}

func (s *Server) toPatch(req draftPatchRequest) (draft.Patch, error) {
	inputErr := apperr.NewValidationError()

	//nolint:exhaustruct
	p := draft.Patch{
		Room:       req.Room,
		RoomID:     req.RoomID,
		Guests:     req.Guests,
		RoomCount:  req.RoomCount,
		ClearPromo: req.ClearPromo,
	}

	if req.Services != nil {
		p.Services = append(make([]pricing.Selection, 0, len(*req.Services)), *req.Services...)
	}

	if req.CheckIn != nil {
		t, err := stay.ParseDate(*req.CheckIn, s.conf.Location)
		if err != nil {
			inputErr.Add("check_in", "use YYYY-MM-DD")
		}

		p.CheckIn = &t
	}

	if req.CheckOut != nil {
		t, err := stay.ParseDate(*req.CheckOut, s.conf.Location)
		if err != nil {
			inputErr.Add("check_out", "use YYYY-MM-DD")
		}

		p.CheckOut = &t
	}

	if len(req.Promo) != 0 {
		normalized, err := promo.Normalize(req.Promo, s.conf.Location)
		if err != nil {
			inputErr.Add("promo", err.Error())
		} else {
			p.Promo = &normalized
		}
	}

	return p, inputErr.OrNil()
}

func (s *Server) getDraftHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.drafts.Get(r.Context(), r.PathValue("session"))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, d)
}

// updateDraftHandler answers with the merged draft straight away. With ?wait=true it
// holds the response until promotion matching for the new room has finished.
func (s *Server) updateDraftHandler(w http.ResponseWriter, r *http.Request) {
	var req draftPatchRequest
	if !s.decode(w, r, &req) {
		return
	}

	patch, err := s.toPatch(req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	d, task, err := s.drafts.Update(r.Context(), r.PathValue("session"), patch)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if task != nil && r.URL.Query().Get("wait") == "true" {
		ctx, cancel := context.WithTimeout(r.Context(), draftWaitTimeout)
		defer cancel()

		if matched, applied := task.Wait(ctx); applied {
			d = matched
		}
	}

	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) resetDraftHandler(w http.ResponseWriter, r *http.Request) {
	d, err := s.drafts.Reset(r.Context(), r.PathValue("session"))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addRoutes(r *http.ServeMux) {
	routes := map[string]http.Handler{
		"POST /api/quotes/v1":                       http.HandlerFunc(s.quoteHandler),
		"GET /api/drafts/v1/{session}":              http.HandlerFunc(s.getDraftHandler),
		"PATCH /api/drafts/v1/{session}":            http.HandlerFunc(s.updateDraftHandler),
		"POST /api/drafts/v1/{session}/reset":       http.HandlerFunc(s.resetDraftHandler),
		"POST /api/bookings/v1":                     http.HandlerFunc(s.createBookingHandler),
		"POST /api/bookings/v1/{id}/check-in":       s.bookingAction(s.bookings.CheckIn),
		"POST /api/bookings/v1/{id}/cancel":         s.bookingAction(s.bookings.Cancel),
		"POST /api/bookings/v1/{id}/services":       http.HandlerFunc(s.addServiceHandler),
		"POST /api/bookings/v1/{id}/checkout":       http.HandlerFunc(s.checkoutHandler),
		"GET /api/bookings/v1/{id}/invoice":         s.bookingAction(s.bookings.GetInvoice),
		"POST /api/bookings/v1/{id}/payments":       http.HandlerFunc(s.recordPaymentHandler),
		"GET /api/bookings/v1/{id}/document":        http.HandlerFunc(s.documentHandler),
		"GET /api/checkouts/v1/pending":             http.HandlerFunc(s.pendingCheckoutsHandler),
	}

	routes[fmt.Sprintf("GET %s", s.conf.LivenessEndpoint)] = http.HandlerFunc(s.livenessHandler)

	if s.metrics != nil {
		routes["GET /metrics"] = s.metrics
	}

	for pattern, h := range routes {
		r.Handle(pattern, s.applyMiddlewares(h, s.loggerMiddleware(), s.recoverMiddleware()))
	}
}
