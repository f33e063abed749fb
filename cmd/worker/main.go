package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/swiftcart/backend/internal/cart"
	"github.com/swiftcart/backend/internal/config"
	kafkax "github.com/swiftcart/backend/internal/kafka"
	"github.com/swiftcart/backend/internal/orders"
	"github.com/swiftcart/backend/internal/postgres"
	"github.com/swiftcart/backend/internal/redisx"
	"github.com/swiftcart/backend/internal/settlement"
)

const consumerGroup = "settlement-worker"

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", consumerGroup).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &settlement.Service{
		Orders: &orders.PostgresRepo{DB: db},
		Cart:   &cart.PostgresStore{DB: db},
		Redis:  rdb,
		Log:    log,
		Name:   consumerGroup,
	}

	captured := kafkax.NewConsumer(cfg.KafkaBrokers, consumerGroup, orders.TopicPaymentCaptured, 4, log)
	failed := kafkax.NewConsumer(cfg.KafkaBrokers, consumerGroup, orders.TopicPaymentFailed, 4, log)

	go func() {
		if err := captured.Start(ctx, svc.HandleCaptured); err != nil {
			log.Fatal().Err(err).Msg("captured consumer stopped")
		}
	}()
	go func() {
		if err := failed.Start(ctx, svc.HandleFailed); err != nil {
			log.Fatal().Err(err).Msg("failed consumer stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")
	cancel()
}
