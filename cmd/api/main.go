package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/swiftcart/backend/internal/auth"
	"github.com/swiftcart/backend/internal/cart"
	"github.com/swiftcart/backend/internal/catalog"
	"github.com/swiftcart/backend/internal/config"
	"github.com/swiftcart/backend/internal/httpx"
	kafkax "github.com/swiftcart/backend/internal/kafka"
	"github.com/swiftcart/backend/internal/metrics"
	"github.com/swiftcart/backend/internal/orders"
	"github.com/swiftcart/backend/internal/payment"
	"github.com/swiftcart/backend/internal/postgres"
	"github.com/swiftcart/backend/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	orderRepo := &orders.PostgresRepo{DB: db}
	catalogRepo := &catalog.PostgresRepo{DB: db}

	srv := &httpx.Server{
		Log:      log,
		Auth:     auth.NewHTTPVerifier(cfg.IdentityBaseURL),
		Catalog:  catalogRepo,
		Cart:     &cart.PostgresStore{DB: db},
		Orders:   orderRepo,
		Factory:  &orders.Factory{Catalog: catalogRepo, Repo: orderRepo},
		Gateway:  payment.NewClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret),
		Verifier: payment.NewVerifier(cfg.GatewayKeySecret),
		Producer: prod,
		Redis:    rdb,
		Metrics:  metrics.New("storefront"),
		Service:  cfg.ServiceName,
		Currency: cfg.Currency,
	}

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Router()}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	prod.Close()
	cancel()
	prod.WaitClosed()
}
