package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/rental-marketplace/internal/config"
	"github.com/iliyamo/rental-marketplace/internal/database"
	"github.com/iliyamo/rental-marketplace/internal/handler"
	"github.com/iliyamo/rental-marketplace/internal/queue"
	"github.com/iliyamo/rental-marketplace/internal/repository"
	"github.com/iliyamo/rental-marketplace/internal/router"
	"github.com/iliyamo/rental-marketplace/internal/scheduler"
	"github.com/iliyamo/rental-marketplace/internal/service"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		if v, err := database.Version(ctx, db); err == nil {
			log.Printf("schema at version %d", v)
		}
	}

	// Booking events are optional. The publisher is only passed when a
	// broker is configured so the service sees a nil interface otherwise.
	var events service.EventPublisher
	var consumer *queue.Consumer
	if cfg.AMQPURL != "" {
		events = queue.NewPublisher(cfg.AMQPURL)
		consumer = queue.NewConsumer(cfg.AMQPURL)
		consumer.LogPath = cfg.BookingLogPath
	} else {
		log.Println("RABBITMQ_URL not set, booking events disabled")
	}

	store := repository.NewStore(db)
	clock := service.SystemClock{}
	listings := service.NewListingService(store, clock)
	bookings := service.NewBookingService(store, clock, events)
	reviews := service.NewReviewService(store, clock)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	cacheCfg := config.LoadCacheConfig()
	rdb := config.NewRedisClient(ctx)
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Validator = handler.NewValidator()
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterListings(e, handler.NewListingHandler(listings), handler.NewReviewHandler(reviews), cfg.JWTSecret, cacheCfg, rdb)
	router.RegisterBookings(e, handler.NewBookingHandler(bookings), cfg.JWTSecret)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return scheduler.NewTokenPurger(tokens, cfg.TokenPurgeSpec).Run(gctx)
	})
	if consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Println("server stopped")
}
