package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/promo"
	"github.com/avstrong/hotel/internal/stay"
	"github.com/avstrong/hotel/internal/validation"
)

type Room struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	RatePerNight int64  `json:"rate_per_night"`
}

type Service struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
}

type Selection struct {
	ServiceID string `json:"service_id" validate:"required"`
	Quantity  int    `json:"quantity"   validate:"min=1"`
}

type catalog interface {
	GetRoom(ctx context.Context, roomID string) (*Room, error)
	GetService(ctx context.Context, serviceID string) (*Service, error)
}

type PriceRequest struct {
	RoomID      string        `json:"room_id"`
	CheckIn     time.Time     `json:"check_in"`
	CheckOut    time.Time     `json:"check_out"`
	RoomCount   int           `json:"room_count"`
	Services    []ServiceLine `json:"services"`
	PromotionID string        `json:"promotion_id,omitempty"`
}

// Authority is the backend that computes prices authoritatively.
type Authority interface {
	FetchServerPrice(ctx context.Context, req PriceRequest) (Breakdown, error)
}

type observer interface {
	QuoteComputed(source string)
}

type QuoteInput struct {
	RoomID    string           `json:"room_id"    validate:"required"`
	Window    stay.Window      `json:"window"`
	RoomCount int              `json:"room_count" validate:"min=1"`
	Services  []Selection      `json:"services"   validate:"dive"`
	Promo     *promo.Promotion `json:"promo,omitempty"`
	Override  *int64           `json:"override,omitempty"`
}

type Quote struct {
	Room         Room             `json:"room"`
	Window       stay.Window      `json:"window"`
	Services     []ServiceLine    `json:"services"`
	Promo        *promo.Promotion `json:"promo,omitempty"`
	PromoDropped bool             `json:"promo_dropped"`
	Breakdown    Breakdown        `json:"breakdown"`
}

type Calculator struct {
	l         *logger.Logger
	catalog   catalog
	authority Authority
	observer  observer
	loc       *time.Location
}

// New accepts a nil authority, in which case every quote is computed locally.
func New(l *logger.Logger, catalog catalog, authority Authority, observer observer, loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.Local
	}

	return &Calculator{
		l:         l,
		catalog:   catalog,
		authority: authority,
		observer:  observer,
		loc:       loc,
	}
}

func (in *QuoteInput) validate() error {
	inputErr := apperr.NewValidationError()

	if err := validation.Struct(in); err != nil {
		if apperr.IsValidationError(err) == nil {
			return err //nolint:wrapcheck
		}

		validation.Merge(inputErr, err)
	}

	validation.Merge(inputErr, in.Window.Validate())

	return inputErr.OrNil()
}

// ServiceLines resolves selections against the catalog's current unit prices.
func (c *Calculator) ServiceLines(ctx context.Context, selections []Selection) ([]ServiceLine, error) {
	lines := make([]ServiceLine, 0, len(selections))

	for _, sel := range selections {
		svc, err := c.catalog.GetService(ctx, sel.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("get service %v: %w", sel.ServiceID, err)
		}

		lines = append(lines, ServiceLine{
			ServiceID: svc.ID,
			Name:      svc.Name,
			UnitPrice: svc.UnitPrice,
			Quantity:  sel.Quantity,
		})
	}

	return lines, nil
}

func (c *Calculator) Quote(ctx context.Context, in QuoteInput) (*Quote, error) {
	in.Window = stay.Normalize(in.Window, c.loc)

	if err := in.validate(); err != nil {
		return nil, err
	}

	room, err := c.catalog.GetRoom(ctx, in.RoomID)
	if err != nil {
		return nil, fmt.Errorf("get room %v: %w", in.RoomID, err)
	}

	lines, err := c.ServiceLines(ctx, in.Services)
	if err != nil {
		return nil, err
	}

	q := &Quote{
		Room:     *room,
		Window:   in.Window,
		Services: lines,
	}

	if in.Promo != nil {
		if promo.IsApplicable(*in.Promo, in.Window) {
			p := *in.Promo
			q.Promo = &p
		} else {
			q.PromoDropped = true
		}
	}

	local := ComputeBreakdown(room.RatePerNight, in.Window.Nights(), in.RoomCount, lines, q.Promo)
	q.Breakdown = c.preferServer(ctx, in, q, local)

	if in.Override != nil {
		if q.Breakdown, err = WithOverride(q.Breakdown, *in.Override); err != nil {
			return nil, err
		}
	}

	if c.observer != nil {
		c.observer.QuoteComputed(string(q.Breakdown.Source))
	}

	return q, nil
}

func (c *Calculator) preferServer(ctx context.Context, in QuoteInput, q *Quote, local Breakdown) Breakdown {
	if c.authority == nil {
		return local
	}

	req := PriceRequest{
		RoomID:    in.RoomID,
		CheckIn:   in.Window.CheckIn,
		CheckOut:  in.Window.CheckOut,
		RoomCount: in.RoomCount,
		Services:  q.Services,
	}

	if q.Promo != nil {
		req.PromotionID = q.Promo.ID
	}

	server, err := c.authority.FetchServerPrice(ctx, req)
	if err != nil {
		if apperr.IsTransientIOError(err) == nil {
			c.l.LogErrorf("Pricing backend rejected quote for room %v: %v", in.RoomID, err.Error())
		} else {
			c.l.LogWarnf("Pricing backend unreachable, using local quote for room %v: %v", in.RoomID, err.Error())
		}

		return local
	}

	server = server.completeFrom(local)
	server.Source = SourceServer
	server.Override = nil

	if server.Nights != local.Nights || server.RoomCount != local.RoomCount || !server.consistent(q.Services, q.Promo) {
		c.l.LogWarnf(
			"Server breakdown for room %v does not add up (room %d, services %d, discount %d, total %d), using local quote",
			in.RoomID,
			server.RoomSubtotal,
			server.ServiceSubtotal,
			server.Discount,
			server.GrandTotal,
		)

		return local
	}

	if server.GrandTotal != local.GrandTotal {
		c.l.LogInfo(
			"Server total %d differs from local total %d for room %v",
			server.GrandTotal,
			local.GrandTotal,
			in.RoomID,
		)
	}

	return server
}
