package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avstrong/hotel/internal/document"
	"github.com/avstrong/hotel/internal/draft"
	"github.com/avstrong/hotel/internal/idgen/simple"
	"github.com/avstrong/hotel/internal/latefee"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/metrics"
	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/promo"
	"github.com/avstrong/hotel/internal/settlement"
	"github.com/avstrong/hotel/internal/storage/memory"
	"github.com/avstrong/hotel/internal/transport/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 4, 16, 0, 0, 0, time.UTC)

func newHandler(t *testing.T) http.Handler {
	t.Helper()

	ctx := context.Background()
	l := logger.Discard()
	db := memory.New(memory.Config{L: l})

	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.SaveRoom(ctx, pricing.Room{ID: "r-101", Name: "101", Category: "Deluxe", RatePerNight: 1000000}))
	require.NoError(t, db.SaveService(ctx, pricing.Service{ID: "spa", Name: "Spa", UnitPrice: 200000}))
	require.NoError(t, db.SavePromotion(ctx, "r-101", promo.Promotion{
		ID: "summer", Title: "Summer", Kind: promo.KindPercent, Value: 10,
		StartDate: &start, EndDate: &end, Status: promo.StatusActive,
	}))

	reg := metrics.New()
	clock := func() time.Time { return now }
	calc := pricing.New(l, db, nil, reg, time.UTC)

	manager := settlement.New(
		l,
		db,
		simple.New("id-"),
		calc,
		document.NewRenderer(time.UTC),
		settlement.Config{LateFee: latefee.DefaultPolicy(), CheckoutHour: 12, Location: time.UTC},
		settlement.WithObserver(reg),
		settlement.WithClock(clock),
	)

	drafts := draft.NewService(l, draft.NewMemoryStore(), db, draft.Config{Location: time.UTC, Now: clock})

	srv, err := web.New(ctx, web.Conf{L: l, Location: time.UTC, Now: clock}, manager, calc, drafts, reg.Handler())
	require.NoError(t, err)

	return srv.Srv().Handler
}

func do(t *testing.T, h http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	return out
}

func bookingBody() map[string]any {
	return map[string]any{
		"guest":      map[string]any{"name": "Jane Doe", "email": "jane@example.com"},
		"room_id":    "r-101",
		"check_in":   "2025-06-01",
		"check_out":  "2025-06-04",
		"guests":     2,
		"room_count": 1,
	}
}

func TestQuote(t *testing.T) {
	h := newHandler(t)

	body := bookingBody()
	body["services"] = []map[string]any{{"service_id": "spa", "quantity": 1}}
	body["promo"] = map[string]any{
		"id": "summer", "name": "Summer", "discountPercent": 10,
		"startDate": "2025-05-01", "endDate": "2025-06-30", "isActive": true,
	}

	rec := do(t, h, http.MethodPost, "/api/quotes/v1", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	quote := decode[pricing.Quote](t, rec)
	assert.Equal(t, 3, quote.Breakdown.Nights)
	assert.EqualValues(t, 3000000, quote.Breakdown.RoomSubtotal)
	assert.EqualValues(t, 200000, quote.Breakdown.ServiceSubtotal)
	assert.EqualValues(t, 320000, quote.Breakdown.Discount)
	assert.EqualValues(t, 2880000, quote.Breakdown.GrandTotal)
}

func TestQuoteRejectsBadDates(t *testing.T) {
	h := newHandler(t)

	body := bookingBody()
	body["check_in"] = "first of june"

	rec := do(t, h, http.MethodPost, "/api/quotes/v1", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	out := decode[map[string]any](t, rec)
	assert.Contains(t, out["fields"], "check_in")
}

func TestCreateBookingRequiresIdempotencyKey(t *testing.T) {
	h := newHandler(t)

	rec := do(t, h, http.MethodPost, "/api/bookings/v1", bookingBody())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutFlow(t *testing.T) {
	h := newHandler(t)

	rec := do(t, h, http.MethodPost, "/api/bookings/v1", bookingBody(), "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	b := decode[settlement.Booking](t, rec)
	base := "/api/bookings/v1/" + b.ID

	again := do(t, h, http.MethodPost, "/api/bookings/v1", bookingBody(), "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, b.ID, decode[settlement.Booking](t, again).ID)

	rec = do(t, h, http.MethodPost, base+"/checkout", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/check-in", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, base+"/checkout", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	b = decode[settlement.Booking](t, rec)
	assert.Equal(t, settlement.StatusCheckoutConfirmed, b.Status)
	assert.EqualValues(t, 400000, b.Invoice.LateFee)
	assert.EqualValues(t, 3400000, b.Invoice.Total)

	rec = do(t, h, http.MethodPost, base+"/payments", map[string]any{"method": "cash", "amount": 3400001})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 3400000, decode[map[string]any](t, rec)["remaining"])

	rec = do(t, h, http.MethodPost, base+"/payments", map[string]any{"method": "card", "amount": 3400000}, "Idempotency-Key", "p-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	receipt := decode[settlement.Receipt](t, rec)
	assert.Zero(t, receipt.Remaining)
	assert.Equal(t, settlement.StatusSettled, receipt.Booking.Status)

	rec = do(t, h, http.MethodPost, base+"/payments", map[string]any{"method": "card", "amount": 3400000}, "Idempotency-Key", "p-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[settlement.Receipt](t, rec).Replayed)

	rec = do(t, h, http.MethodGet, "/api/checkouts/v1/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]settlement.Booking](t, rec), 1)

	rec = do(t, h, http.MethodGet, base+"/document", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, document.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), b.ID)
	assert.NotZero(t, rec.Body.Len())

	rec = do(t, h, http.MethodGet, base+"/invoice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, settlement.StatusInvoiced, decode[settlement.Booking](t, rec).Status)

	rec = do(t, h, http.MethodGet, "/api/checkouts/v1/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]settlement.Booking](t, rec))
}

func TestUnknownBooking(t *testing.T) {
	h := newHandler(t)

	rec := do(t, h, http.MethodGet, "/api/bookings/v1/nope/invoice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDraftRoomChangeMatchesPromotion(t *testing.T) {
	h := newHandler(t)

	rec := do(t, h, http.MethodGet, "/api/drafts/v1/s-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	d := decode[draft.Draft](t, rec)
	assert.Equal(t, draft.DefaultGuests, d.Guests)
	assert.Empty(t, d.RoomID)

	patch := map[string]any{"room": "r-101", "check_in": "2025-06-01", "check_out": "2025-06-04"}

	rec = do(t, h, http.MethodPatch, "/api/drafts/v1/s-1?wait=true", patch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	d = decode[draft.Draft](t, rec)
	assert.Equal(t, "r-101", d.RoomID)
	assert.Equal(t, "2025-06-01", d.CheckInDate)
	require.NotNil(t, d.Promo)
	assert.Equal(t, "summer", d.Promo.ID)

	rec = do(t, h, http.MethodPatch, "/api/drafts/v1/s-1", map[string]any{"check_out": "2025-07-10", "check_in": "2025-07-05"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[draft.Draft](t, rec).Promo)

	rec = do(t, h, http.MethodPost, "/api/drafts/v1/s-1/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[draft.Draft](t, rec).RoomID)
}

func TestMetricsAndLiveness(t *testing.T) {
	h := newHandler(t)

	rec := do(t, h, http.MethodGet, "/liveness", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	do(t, h, http.MethodPost, "/api/quotes/v1", bookingBody())

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "hotel_quotes_total"))
}
