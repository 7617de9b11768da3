package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/booking"
	"github.com/iliyamo/class-booking/internal/cart"
	"github.com/iliyamo/class-booking/internal/catalog"
	"github.com/iliyamo/class-booking/internal/config"
	"github.com/iliyamo/class-booking/internal/handler"
	"github.com/iliyamo/class-booking/internal/middleware"
	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/queue"
	"github.com/iliyamo/class-booking/internal/repository"
	"github.com/iliyamo/class-booking/internal/router"
	"github.com/iliyamo/class-booking/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the order consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.cfg.RequireServe(); err != nil {
				return err
			}
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg, log := a.cfg, a.log

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	} else {
		log.Warn("redis unavailable; carts kept in memory, cache and rate limit disabled")
	}

	sessions := repository.NewSessionRepo(a.db, a.dialect)
	completions := repository.NewCompletionRepo(a.db, a.dialect)

	var linker booking.CatalogLinker
	if cfg.CatalogURL != "" {
		linker = catalog.NewClient(cfg.CatalogURL, cfg.CatalogToken, cfg.CatalogTimeout, log)
	}
	var events booking.EventPublisher
	if cfg.AMQP.EventsEnabled {
		events = service.NewPublisher(cfg.AMQP.URL, cfg.AMQP.EventQueue, log)
	}

	loc := cfg.Location()
	sessionSvc := booking.NewSessionService(sessions, linker, log, time.Now, loc)
	ledger := booking.NewLedger(sessions, log)
	availability := booking.NewAvailabilityService(sessions, time.Now, loc)
	workflow := booking.NewWorkflow(sessions, completions, ledger, newCartStore(cfg, rdb), events, log, time.Now, loc)

	cache := middleware.NewResponseCache(cfg.Cache, rdb)
	limiter := middleware.NewTokenBucket(cfg.RateLimit, rdb, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, handler.NewHealthHandler(a.db, rdb))
	router.RegisterPublic(e, handler.NewAvailabilityHandler(availability, log), limiter, cache.Middleware())
	router.RegisterOperator(e, handler.NewSessionHandler(sessionSvc, ledger, cache, log), cfg.JWTSecret)
	router.RegisterCustomer(e,
		handler.NewCartHandler(workflow, log),
		handler.NewReserveHandler(workflow, cfg.CheckoutURL, cfg.BookingPageURL, cfg.CartTTL, cfg.IsProduction(), log),
		limiter)
	router.RegisterIntegration(e, handler.NewOrderHandler(workflow, cache, log), cfg.IntegrationKeyHash)

	var wg sync.WaitGroup
	if cfg.AMQP.ConsumerEnabled {
		consumer := queue.NewConsumer(cfg.AMQP.URL, cfg.AMQP.OrderQueue, invalidating{workflow, cache}, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("order consumer stopped", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	wg.Wait()
	return err
}

// newCartStore keeps carts in Redis when it is available so every instance
// sees the same cart.
func newCartStore(cfg config.Config, rdb *redis.Client) cart.Store {
	if rdb != nil {
		return cart.NewRedisStore(rdb, cfg.CartPrefix, cfg.CartTTL)
	}
	return cart.NewMemoryStore(cfg.CartTTL)
}

// invalidating drops cached availability after the consumer applies an order.
type invalidating struct {
	wf    *booking.Workflow
	cache *middleware.ResponseCache
}

func (i invalidating) HandleOrderCompleted(ctx context.Context, ev queue.OrderCompletedEvent) ([]model.LineOutcome, error) {
	out, err := i.wf.HandleOrderCompleted(ctx, ev)
	for _, o := range out {
		if o.Status == model.LineApplied {
			i.cache.Invalidate(ctx)
			break
		}
	}
	return out, err
}
