package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/avstrong/hotel/internal/archive"
	"github.com/avstrong/hotel/internal/backend"
	"github.com/avstrong/hotel/internal/config"
	"github.com/avstrong/hotel/internal/document"
	"github.com/avstrong/hotel/internal/draft"
	"github.com/avstrong/hotel/internal/idgen/random"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/metrics"
	"github.com/avstrong/hotel/internal/migration"
	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/promo"
	"github.com/avstrong/hotel/internal/settlement"
	"github.com/avstrong/hotel/internal/storage/memory"
	"github.com/avstrong/hotel/internal/storage/postgres"
	"github.com/avstrong/hotel/internal/transport/web"
)

// storage is everything the services need from a storage driver.
type storage interface {
	BeginTransaction(ctx context.Context, level string) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
	SaveBooking(ctx context.Context, booking *settlement.Booking) error
	SaveEvent(ctx context.Context, event *settlement.Event) error
	GetBooking(ctx context.Context, bookingID string) (*settlement.Booking, error)
	GetBookingByIdempotencyKey(ctx context.Context) (*settlement.Booking, error)
	ListBookingsByStatus(ctx context.Context, statuses ...settlement.Status) ([]*settlement.Booking, error)
	SaveRoom(ctx context.Context, room pricing.Room) error
	SaveService(ctx context.Context, service pricing.Service) error
	SavePromotion(ctx context.Context, roomID string, p promo.Promotion) error
	GetRoom(ctx context.Context, roomID string) (*pricing.Room, error)
	GetService(ctx context.Context, serviceID string) (*pricing.Service, error)
	GetPromotionsForRoom(ctx context.Context, roomID string) ([]promo.Promotion, error)
}

func openStorage(ctx context.Context, l *logger.Logger, conf config.Config, loc *time.Location) (storage, func(), error) {
	if conf.Storage.Driver == "postgres" {
		db, err := postgres.New(ctx, postgres.Config{L: l, DSN: conf.Postgres.DSN})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}

		if err := db.Migrate(ctx); err != nil {
			db.Close()

			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}

		l.LogInfo("Postgres schema is up to date")

		return db, db.Close, nil
	}

	db := memory.New(memory.Config{L: l})
	if err := migration.Up(ctx, l, db, time.Now(), loc); err != nil {
		return nil, nil, fmt.Errorf("seed demo catalog: %w", err)
	}

	l.LogInfo("Demo catalog has been seeded into memory storage")

	return db, func() {}, nil
}

func openDraftStore(ctx context.Context, l *logger.Logger, conf config.Config) (draft.Store, func(), error) {
	if conf.Redis.Addr == "" {
		return draft.NewMemoryStore(), func() {}, nil
	}

	store, err := draft.NewRedisStore(ctx, draft.RedisConfig{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
		TTL:      conf.Redis.DraftTTL,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	l.LogInfo("Drafts are kept in redis at %v", conf.Redis.Addr)

	return store, func() {
		if err := store.Close(); err != nil {
			l.LogWarnf("Failed to close redis client: %v", err.Error())
		}
	}, nil
}

//nolint:funlen
func Run(l *logger.Logger, conf config.Config) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	loc, err := conf.Location()
	if err != nil {
		return err //nolint:wrapcheck
	}

	store, closeStorage, err := openStorage(ctx, l, conf, loc)
	if err != nil {
		return err
	}
	defer closeStorage()

	drafts, closeDrafts, err := openDraftStore(ctx, l, conf)
	if err != nil {
		return err
	}
	defer closeDrafts()

	reg := metrics.New()

	var authority pricing.Authority
	if conf.Backend.URL != "" {
		authority = backend.New(backend.Config{URL: conf.Backend.URL, Timeout: conf.Backend.Timeout})
	}

	calc := pricing.New(l, store, authority, reg, loc)

	opts := []settlement.Option{settlement.WithObserver(reg)}

	if conf.Archive.S3Bucket != "" {
		s3, err := archive.New(ctx, archive.Config{
			Region:   conf.Archive.S3Region,
			Bucket:   conf.Archive.S3Bucket,
			Prefix:   conf.Archive.S3Prefix,
			Endpoint: conf.Archive.S3Endpoint,
		})
		if err != nil {
			return fmt.Errorf("init invoice archive: %w", err)
		}

		opts = append(opts, settlement.WithArchive(s3))
	}

	manager := settlement.New(
		l,
		store,
		random.New(""),
		calc,
		document.NewRenderer(loc),
		settlement.Config{
			LateFee:             conf.LateFee,
			CorrectionTolerance: conf.Invoice.CorrectionTolerance,
			CheckoutHour:        conf.Checkout.Hour,
			Location:            loc,
		},
		opts...,
	)

	draftService := draft.NewService(l, drafts, store, draft.Config{Location: loc}) //nolint:exhaustruct

	var metricsHandler http.Handler
	if conf.Metrics.Enabled {
		metricsHandler = reg.Handler()
	}

	//nolint:exhaustruct
	webConf := web.Conf{
		L:                 l,
		ServerLogger:      l.Std(),
		Host:              conf.HTTP.Host,
		Port:              conf.HTTP.Port,
		ReadHeaderTimeout: conf.HTTP.ReadHeaderTimeout,
		LivenessEndpoint:  conf.HTTP.LivenessEndpoint,
		Location:          loc,
	}

	srv, err := web.New(ctx, webConf, manager, calc, draftService, metricsHandler)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	//nolint:contextcheck
	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*4) //nolint:gomnd
		defer cancel()

		if err := srv.Srv().Shutdown(ctx); err != nil {
			l.LogErrorf("Failed to stop http server: %v", err.Error())
		}
	}()

	l.LogInfo("Application is running on %v:%v (env %v)...", webConf.Host, webConf.Port, conf.App.Env)

	if err := srv.Srv().ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		l.LogErrorf("Failed to run http server: %v", err.Error())

		cancel()
	}

	l.LogInfo("Application stopped gracefully")

	return nil
}
