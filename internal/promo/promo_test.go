package promo

import (
	"testing"
	"time"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/avstrong/hotel/internal/stay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(month time.Month, d int) *time.Time {
	t := time.Date(2025, month, d, 0, 0, 0, 0, time.UTC)

	return &t
}

func window(inMonth time.Month, in int, outMonth time.Month, out int) stay.Window {
	return stay.Window{CheckIn: *day(inMonth, in), CheckOut: *day(outMonth, out)}
}

func TestIsApplicable(t *testing.T) {
	june1to10 := Promotion{ID: "p", Status: StatusActive, StartDate: day(6, 1), EndDate: day(6, 10)}

	tests := []struct {
		name string
		p    Promotion
		w    stay.Window
		want bool
	}{
		{"stay inside promo", june1to10, window(6, 3, 6, 5), true},
		{"check-in on promo end day", june1to10, window(6, 10, 6, 12), true},
		{"check-in after promo end", june1to10, window(6, 11, 6, 12), false},
		{"check-out on promo start", june1to10, window(5, 28, 6, 1), false},
		{"check-out after promo start", june1to10, window(5, 28, 6, 2), true},
		{"inactive ignores dates", Promotion{Status: StatusInactive, StartDate: day(1, 1), EndDate: day(12, 31)}, window(6, 3, 6, 5), false},
		{"only start before check-out", Promotion{Status: StatusActive, StartDate: day(6, 4)}, window(6, 3, 6, 5), true},
		{"only start on check-out", Promotion{Status: StatusActive, StartDate: day(6, 5)}, window(6, 3, 6, 5), false},
		{"only end on check-in", Promotion{Status: StatusActive, EndDate: day(6, 3)}, window(6, 3, 6, 5), true},
		{"only end before check-in", Promotion{Status: StatusActive, EndDate: day(6, 2)}, window(6, 3, 6, 5), false},
		{"no dates", Promotion{Status: StatusActive}, window(6, 3, 6, 5), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsApplicable(tt.p, tt.w))
		})
	}
}

func TestInactiveNeverApplicable(t *testing.T) {
	p := Promotion{Status: StatusInactive, StartDate: day(1, 1), EndDate: day(12, 31)}

	for in := 1; in < 28; in++ {
		assert.False(t, IsApplicable(p, window(3, in, 3, in+1)))
	}
}

func TestDiscountFor(t *testing.T) {
	tests := []struct {
		name string
		p    Promotion
		base int64
		want int64
	}{
		{"ten percent", Promotion{Kind: KindPercent, Value: 10}, 3000000, 300000},
		{"percent rounds", Promotion{Kind: KindPercent, Value: 12.5}, 1001, 125},
		{"fixed", Promotion{Kind: KindFixed, Value: 50000}, 3000000, 50000},
		{"fixed clamped to base", Promotion{Kind: KindFixed, Value: 500}, 300, 300},
		{"negative clamped to zero", Promotion{Kind: KindFixed, Value: -10}, 300, 0},
		{"zero base", Promotion{Kind: KindPercent, Value: 50}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DiscountFor(tt.p, tt.base))
		})
	}
}

func TestDiscountForPercentBounds(t *testing.T) {
	for _, base := range []int64{0, 1, 7, 999, 1000000, 123456789} {
		for p := 0.0; p <= 100; p += 2.5 {
			got := DiscountFor(Promotion{Kind: KindPercent, Value: p}, base)
			assert.GreaterOrEqual(t, got, int64(0))
			assert.LessOrEqual(t, got, base)
		}
	}
}

func TestMatch(t *testing.T) {
	w := window(6, 3, 6, 5)
	candidates := []Promotion{
		{ID: "inactive", Status: StatusInactive},
		{ID: "upcoming", Status: StatusUpcoming},
		{ID: "expired-dates", Status: StatusActive, EndDate: day(5, 1)},
		{ID: "suite-only", Status: StatusActive, Condition: "Only for Suite rooms"},
		{ID: "deluxe", Status: StatusActive, Condition: "Áp dụng cho phòng DELUXE"},
		{ID: "all", Status: StatusActive, Condition: "all"},
	}

	got, ok := Match(candidates, w, "Deluxe")
	require.True(t, ok)
	assert.Equal(t, "deluxe", got.ID)

	got, ok = Match(candidates, w, "Standard")
	require.True(t, ok)
	assert.Equal(t, "all", got.ID)

	_, ok = Match(candidates[:4], w, "Standard")
	assert.False(t, ok)

	got, ok = Match([]Promotion{{ID: "open", Status: StatusActive}}, w, "")
	require.True(t, ok)
	assert.Equal(t, "open", got.ID)
}

func TestNormalize(t *testing.T) {
	loc := time.UTC

	p, err := Normalize(map[string]any{
		"_id":             "summer",
		"name":            "Summer sale",
		"discountPercent": "10",
		"startDate":       "2025-06-01",
		"end_date":        "2025-06-10T00:00:00Z",
		"roomType":        "Deluxe",
		"isActive":        true,
	}, loc)
	require.NoError(t, err)
	assert.Equal(t, "summer", p.ID)
	assert.Equal(t, "Summer sale", p.Title)
	assert.Equal(t, KindPercent, p.Kind)
	assert.InDelta(t, 10, p.Value, 0.0001)
	assert.Equal(t, *day(6, 1), *p.StartDate)
	assert.True(t, day(6, 10).Equal(*p.EndDate))
	assert.Equal(t, "Deluxe", p.Condition)
	assert.Equal(t, StatusActive, p.Status)

	p, err = Normalize(map[string]any{
		"id":            7,
		"discount_type": "fixed_amount",
		"discountValue": 50000,
		"status":        "Disabled",
	}, loc)
	require.NoError(t, err)
	assert.Equal(t, "7", p.ID)
	assert.Equal(t, KindFixed, p.Kind)
	assert.Equal(t, StatusInactive, p.Status)

	p, err = Normalize(map[string]any{"discount": 15, "active": false}, loc)
	require.NoError(t, err)
	assert.Equal(t, KindPercent, p.Kind)
	assert.Equal(t, StatusInactive, p.Status)

	_, err = Normalize(map[string]any{"discountPercent": 150, "startDate": "soon"}, loc)
	require.Error(t, err)

	fields := apperr.IsValidationError(err).Fields()
	assert.Contains(t, fields, "discount_value")
	assert.Contains(t, fields, "start_date")
}
