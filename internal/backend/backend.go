package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/avstrong/hotel/internal/pricing"
)

const (
	quotePath      = "/api/pricing/v1/quote"
	maxErrorBody   = 512
	defaultTimeout = 3 * time.Second
)

type Config struct {
	URL     string
	Timeout time.Duration
}

// Client asks the pricing backend for the authoritative breakdown.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(conf Config) *Client {
	if conf.Timeout <= 0 {
		conf.Timeout = defaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(conf.URL, "/"),
		httpClient: &http.Client{Timeout: conf.Timeout}, //nolint:exhaustruct
	}
}

type quoteRequest struct {
	RoomID      string                `json:"room_id"`
	CheckIn     string                `json:"check_in"`
	CheckOut    string                `json:"check_out"`
	RoomCount   int                   `json:"room_count"`
	Services    []pricing.ServiceLine `json:"services"`
	PromotionID string                `json:"promotion_id,omitempty"`
}

type quoteResponse struct {
	Nights          int   `json:"nights"`
	RatePerNight    int64 `json:"rate_per_night"`
	RoomCount       int   `json:"room_count"`
	RoomSubtotal    int64 `json:"room_subtotal"`
	ServiceSubtotal int64 `json:"service_subtotal"`
	Discount        int64 `json:"discount"`
	GrandTotal      int64 `json:"grand_total"`
}

// FetchServerPrice reports network failures, timeouts and 5xx answers as TransientIOError.
func (c *Client) FetchServerPrice(ctx context.Context, req pricing.PriceRequest) (pricing.Breakdown, error) {
	body, err := json.Marshal(quoteRequest{
		RoomID:      req.RoomID,
		CheckIn:     req.CheckIn.Format(time.RFC3339),
		CheckOut:    req.CheckOut.Format(time.RFC3339),
		RoomCount:   req.RoomCount,
		Services:    req.Services,
		PromotionID: req.PromotionID,
	})
	if err != nil {
		return pricing.Breakdown{}, fmt.Errorf("marshal quote request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+quotePath, bytes.NewReader(body))
	if err != nil {
		return pricing.Breakdown{}, fmt.Errorf("create quote request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pricing.Breakdown{}, apperr.NewTransientIOError("fetch server price", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return pricing.Breakdown{}, apperr.NewTransientIOError(
			"fetch server price",
			fmt.Errorf("backend answered %d: %s", resp.StatusCode, bytes.TrimSpace(msg)),
		)
	}

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return pricing.Breakdown{}, fmt.Errorf("backend rejected quote with %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return pricing.Breakdown{}, fmt.Errorf("decode quote response: %w", err)
	}

	//nolint:exhaustruct
	return pricing.Breakdown{
		Nights:          out.Nights,
		RatePerNight:    out.RatePerNight,
		RoomCount:       out.RoomCount,
		RoomSubtotal:    out.RoomSubtotal,
		ServiceSubtotal: out.ServiceSubtotal,
		Discount:        out.Discount,
		GrandTotal:      out.GrandTotal,
		Source:          pricing.SourceServer,
	}, nil
}
