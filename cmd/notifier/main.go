package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tradebazaar/bazaarbot/internal/config"
	kafkax "github.com/tradebazaar/bazaarbot/internal/kafka"
	"github.com/tradebazaar/bazaarbot/internal/logging"
	"github.com/tradebazaar/bazaarbot/internal/market"
	"github.com/tradebazaar/bazaarbot/internal/notify"
	"github.com/tradebazaar/bazaarbot/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, sync := logging.New(os.Getenv("APP_ENV") == "production")
	defer func() { _ = sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &notify.Service{
		Notifier: &notify.LogNotifier{Log: log},
		Redis:    rdb,
		Log:      log,
	}

	topics := []string{market.TopicNotifyUser, market.TopicNotifyChannel, market.TopicViewRefresh}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, topics, cfg.NotifierWorkers, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("notifier consumer started",
			zap.String("group", cfg.NotifierGroup),
			zap.Strings("topics", topics),
			zap.Int("workers", cfg.NotifierWorkers))
		if err := cons.Start(ctx, svc.HandleEvent); err != nil {
			log.Error("consumer exit", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("shutting down notifier...")
		cancel()
	case <-done:
	}
	<-done // workers have drained once Start returns
}
