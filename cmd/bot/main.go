package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tradebazaar/bazaarbot/internal/config"
	"github.com/tradebazaar/bazaarbot/internal/httpx"
	kafkax "github.com/tradebazaar/bazaarbot/internal/kafka"
	"github.com/tradebazaar/bazaarbot/internal/logging"
	"github.com/tradebazaar/bazaarbot/internal/market"
	"github.com/tradebazaar/bazaarbot/internal/postgres"
	"github.com/tradebazaar/bazaarbot/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, sync := logging.New(os.Getenv("APP_ENV") == "production")
	defer func() { _ = sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for outbound notifications
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	// Stores
	listings := &market.ListingRepo{DB: db}
	events := &market.EventRepo{DB: db}
	ratings := &market.RatingRepo{DB: db, Redis: rdb}

	// Core
	agg := &market.Aggregator{Store: ratings}
	coord := market.NewCoordinator(listings, events, prod, log, cfg.ServiceName)
	mod := market.NewModerator(coord, ratings, events, agg, prod, log, cfg.ServiceName, cfg.RatingThresholdDefault)
	sched := market.NewScheduler(listings, events, coord, prod, log, cfg.ServiceName,
		cfg.PollInterval, cfg.ReminderLookahead, cfg.RatingPromptDelay)
	sched.Start(ctx)

	// HTTP command surface
	router := httpx.NewRouter()
	bh := &httpx.BazaarHandler{
		Coord:     coord,
		Moderator: mod,
		Scheduler: sched,
		Agg:       agg,
		Listings:  listings,
		Redis:     rdb,
		Log:       log,
	}
	bh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	cancel()           // stop scheduler loop and producer
	sched.WaitClosed() // let an in-flight poll tick finish
	prod.WaitClosed()  // flush remaining outbound events
}
