package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/promo"
)

type storage interface {
	SaveRoom(ctx context.Context, room pricing.Room) error
	SaveService(ctx context.Context, service pricing.Service) error
	SavePromotion(ctx context.Context, roomID string, p promo.Promotion) error
}

type roomPromotion struct {
	roomID string
	raw    map[string]any
}

// Up seeds a demo catalog. Promotions are written in the loose shapes the front desk
// exports and go through promo.Normalize like any other ingested promotion.
func Up(ctx context.Context, l *logger.Logger, storage storage, now time.Time, loc *time.Location) error {
	rooms := []pricing.Room{
		{ID: "r-101", Name: "101", Category: "Deluxe", RatePerNight: 1000000},
		{ID: "r-102", Name: "102", Category: "Standard", RatePerNight: 600000},
		{ID: "r-201", Name: "201", Category: "Suite", RatePerNight: 2500000},
	}

	services := []pricing.Service{
		{ID: "breakfast", Name: "Breakfast", UnitPrice: 150000},
		{ID: "spa", Name: "Spa", UnitPrice: 500000},
		{ID: "airport", Name: "Airport transfer", UnitPrice: 300000},
		{ID: "laundry", Name: "Laundry", UnitPrice: 80000},
	}

	from := now.AddDate(0, 0, -30).Format(time.DateOnly) //nolint:gomnd
	to := now.AddDate(0, 3, 0).Format(time.DateOnly)     //nolint:gomnd

	promotions := []roomPromotion{
		{roomID: "r-101", raw: map[string]any{
			"id": "deluxe-season", "name": "Deluxe season", "discountPercent": 10,
			"startDate": from, "endDate": to, "roomType": "Deluxe", "isActive": true,
		}},
		{roomID: "r-102", raw: map[string]any{
			"id": "standard-fixed", "title": "Weekday saver", "type": "fixed", "value": "100000",
			"from": from, "to": to, "conditions": "all rooms", "status": "active",
		}},
		{roomID: "r-201", raw: map[string]any{
			"id": "suite-paused", "title": "Suite launch", "discount_percent": 15,
			"start_date": from, "end_date": to, "status": "disabled",
		}},
	}

	for _, r := range rooms {
		if err := storage.SaveRoom(ctx, r); err != nil {
			return fmt.Errorf("save room %v: %w", r.ID, err)
		}
	}

	for _, s := range services {
		if err := storage.SaveService(ctx, s); err != nil {
			return fmt.Errorf("save service %v: %w", s.ID, err)
		}
	}

	for _, rp := range promotions {
		p, err := promo.Normalize(rp.raw, loc)
		if err != nil {
			return fmt.Errorf("normalize promotion for room %v: %w", rp.roomID, err)
		}

		if err := storage.SavePromotion(ctx, rp.roomID, p); err != nil {
			return fmt.Errorf("save promotion %v: %w", p.ID, err)
		}
	}

	l.LogInfo("Seeded %d rooms, %d services and %d promotions", len(rooms), len(services), len(promotions))

	return nil
}
