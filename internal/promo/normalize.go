package promo

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/avstrong/hotel/internal/apperr"
)

var (
	idKeys        = []string{"id", "_id", "promotionId", "promotion_id", "promoId"}
	titleKeys     = []string{"title", "name", "promotionName"}
	kindKeys      = []string{"discountKind", "discount_kind", "discountType", "discount_type", "type"}
	valueKeys     = []string{"discountValue", "discount_value", "value", "amount"}
	percentKeys   = []string{"discountPercent", "discount_percent", "percent", "percentage"}
	startKeys     = []string{"startDate", "start_date", "from", "validFrom"}
	endKeys       = []string{"endDate", "end_date", "to", "validTo", "validUntil"}
	conditionKeys = []string{"condition", "conditions", "roomType", "room_type"}
	statusKeys    = []string{"status", "state"}
	activeKeys    = []string{"isActive", "is_active", "active", "enabled"}
)

// Normalize turns the loosely shaped promotion payloads seen on the wire into a Promotion.
func Normalize(raw map[string]any, loc *time.Location) (Promotion, error) {
	if loc == nil {
		loc = time.Local
	}

	inputErr := apperr.NewValidationError()

	var p Promotion

	if v, ok := first(raw, idKeys); ok {
		p.ID = cast.ToString(v)
	}

	if v, ok := first(raw, titleKeys); ok {
		p.Title = cast.ToString(v)
	}

	if v, ok := first(raw, conditionKeys); ok {
		p.Condition = cast.ToString(v)
	}

	if v, ok := first(raw, percentKeys); ok {
		percent, err := cast.ToFloat64E(v)
		if err != nil {
			inputErr.Add("discount_percent", "must be a number")
		}

		p.Kind = KindPercent
		p.Value = percent
	} else if v, ok := first(raw, valueKeys); ok {
		value, err := cast.ToFloat64E(v)
		if err != nil {
			inputErr.Add("discount_value", "must be a number")
		}

		p.Value = value
		p.Kind = KindPercent

		if k, ok := first(raw, kindKeys); ok {
			kind, err := parseKind(cast.ToString(k))
			if err != nil {
				inputErr.Add("discount_kind", err.Error())
			}

			p.Kind = kind
		}
	} else if v, ok := raw["discount"]; ok {
		value, err := cast.ToFloat64E(v)
		if err != nil {
			inputErr.Add("discount", "must be a number")
		}

		p.Kind = KindPercent
		p.Value = value
	}

	if p.Kind == KindPercent && (p.Value < 0 || p.Value > 100) { //nolint:gomnd
		inputErr.Add("discount_value", "percent must be within [0, 100]")
	}

	if p.Kind == KindFixed && p.Value < 0 {
		inputErr.Add("discount_value", "fixed amount must not be negative")
	}

	if v, ok := first(raw, startKeys); ok {
		t, err := toDate(v, loc)
		if err != nil {
			inputErr.Add("start_date", "must be an ISO-8601 date")
		} else {
			p.StartDate = t
		}
	}

	if v, ok := first(raw, endKeys); ok {
		t, err := toDate(v, loc)
		if err != nil {
			inputErr.Add("end_date", "must be an ISO-8601 date")
		} else {
			p.EndDate = t
		}
	}

	p.Status = StatusActive

	if v, ok := first(raw, statusKeys); ok {
		p.Status = parseStatus(cast.ToString(v))
	}

	if v, ok := first(raw, activeKeys); ok && !cast.ToBool(v) {
		p.Status = StatusInactive
	}

	if err := inputErr.OrNil(); err != nil {
		return Promotion{}, err
	}

	return p, nil
}

func first(raw map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}

	return nil, false
}

func parseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percent", "percentage", "%":
		return KindPercent, nil
	case "fixed", "fixed_amount", "fixedamount", "amount", "vnd":
		return KindFixed, nil
	}

	return "", fmt.Errorf("unknown discount kind %q", s)
}

func parseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusInactive, "disabled":
		return StatusInactive
	case StatusExpired:
		return StatusExpired
	case StatusUpcoming:
		return StatusUpcoming
	default:
		return StatusActive
	}
}

func toDate(v any, loc *time.Location) (*time.Time, error) {
	if s, ok := v.(string); ok {
		if s == "" {
			return nil, nil //nolint:nilnil
		}

		if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
			return &t, nil
		}
	}

	t, err := cast.ToTimeInDefaultLocationE(v, loc)
	if err != nil {
		return nil, fmt.Errorf("cast to time: %w", err)
	}

	return &t, nil
}
