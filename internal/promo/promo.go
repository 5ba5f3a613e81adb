package promo

import (
	"math"
	"strings"
	"time"

	"github.com/avstrong/hotel/internal/stay"
)

type Kind string

const (
	KindPercent Kind = "percent"
	KindFixed   Kind = "fixed"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
	StatusUpcoming Status = "upcoming"
)

type Promotion struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Kind      Kind       `json:"discount_kind"`
	Value     float64    `json:"discount_value"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Condition string     `json:"condition,omitempty"`
	Status    Status     `json:"status"`
}

var wildcardConditions = map[string]struct{}{
	"":          {},
	"*":         {},
	"all":       {},
	"all rooms": {},
	"tất cả":    {},
}

// IsApplicable reports whether p can discount a stay in w. Promotion dates cover whole
// days in the window's location; the stay occupies [check-in, check-out).
func IsApplicable(p Promotion, w stay.Window) bool {
	if p.Status == StatusInactive {
		return false
	}

	loc := w.CheckIn.Location()

	if p.StartDate != nil && !stay.DayStart(*p.StartDate, loc).Before(w.CheckOut) {
		return false
	}

	if p.EndDate != nil && stay.DayEnd(*p.EndDate, loc).Before(w.CheckIn) {
		return false
	}

	return true
}

// DiscountFor is clamped to [0, base].
func DiscountFor(p Promotion, base int64) int64 {
	if base <= 0 {
		return 0
	}

	var discount int64

	switch p.Kind {
	case KindPercent:
		discount = int64(math.Round(float64(base) * p.Value / 100)) //nolint:gomnd
	case KindFixed:
		discount = int64(math.Round(p.Value))
	}

	if discount < 0 {
		return 0
	}

	if discount > base {
		return base
	}

	return discount
}

// Match returns the first active candidate overlapping w whose condition fits category.
// There is no scoring: order of candidates decides.
func Match(candidates []Promotion, w stay.Window, category string) (Promotion, bool) {
	for _, p := range candidates {
		if p.Status != StatusActive {
			continue
		}

		if !IsApplicable(p, w) {
			continue
		}

		if !conditionMatches(p.Condition, category) {
			continue
		}

		return p, true
	}

	return Promotion{}, false
}

func conditionMatches(condition, category string) bool {
	c := strings.ToLower(strings.TrimSpace(condition))
	if _, ok := wildcardConditions[c]; ok {
		return true
	}

	cat := strings.ToLower(strings.TrimSpace(category))
	if cat == "" {
		return false
	}

	return strings.Contains(c, cat) || strings.Contains(cat, c)
}
