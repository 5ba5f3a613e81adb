package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/avstrong/hotel/internal/draft"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/settlement"
)

type bookingManager interface {
	CreateBooking(ctx context.Context, input *settlement.BookInput) (*settlement.Booking, error)
	CheckIn(ctx context.Context, bookingID string) (*settlement.Booking, error)
	Cancel(ctx context.Context, bookingID string) (*settlement.Booking, error)
	AddService(ctx context.Context, bookingID string, sel pricing.Selection) (*settlement.Booking, error)
	ConfirmCheckout(ctx context.Context, bookingID string, actual time.Time) (*settlement.Booking, error)
	RecordPayment(ctx context.Context, bookingID string, in settlement.PaymentInput) (*settlement.Receipt, error)
	GetInvoice(ctx context.Context, bookingID string) (*settlement.Booking, error)
	GenerateInvoiceDocument(ctx context.Context, bookingID string) ([]byte, *settlement.Booking, error)
	PendingCheckouts(ctx context.Context) ([]*settlement.Booking, error)
}

type quoter interface {
	Quote(ctx context.Context, in pricing.QuoteInput) (*pricing.Quote, error)
}

type draftService interface {
	Get(ctx context.Context, sessionID string) (draft.Draft, error)
	Update(ctx context.Context, sessionID string, p draft.Patch) (draft.Draft, *draft.Task, error)
	Reset(ctx context.Context, sessionID string) (draft.Draft, error)
}

type Server struct {
	srv      *http.Server
	router   *http.ServeMux
	l        *logger.Logger
	conf     Conf
	bookings bookingManager
	quotes   quoter
	drafts   draftService
	metrics  http.Handler
}

type Conf struct {
	L                 *logger.Logger
	ServerLogger      *log.Logger
	Host              string
	Port              string
	ReadHeaderTimeout time.Duration
	LivenessEndpoint  string
	Location          *time.Location
	Now               func() time.Time
}

// New wires the HTTP API. A nil metrics handler leaves /metrics unregistered.
func New(
	ctx context.Context,
	conf Conf,
	bookings bookingManager,
	quotes quoter,
	drafts draftService,
	metrics http.Handler,
) (*Server, error) {
	if conf.Location == nil {
		conf.Location = time.Local
	}

	if conf.LivenessEndpoint == "" {
		conf.LivenessEndpoint = "/liveness"
	}

	if conf.Now == nil {
		conf.Now = time.Now
	}

	mux := http.NewServeMux()

	//nolint:exhaustruct
	srv := &http.Server{
		Addr:              net.JoinHostPort(conf.Host, conf.Port),
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		ErrorLog:          conf.ServerLogger,
		Handler:           mux,
		BaseContext: func(listener net.Listener) context.Context {
			return ctx
		},
	}

	server := &Server{
		srv:      srv,
		router:   mux,
		l:        conf.L,
		conf:     conf,
		bookings: bookings,
		quotes:   quotes,
		drafts:   drafts,
		metrics:  metrics,
	}

	server.addRoutes(mux)

	return server, nil
}

func (s *Server) Srv() *http.Server {
	return s.srv
}
