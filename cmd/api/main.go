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

	"github.com/ariefcatur/go-checkout/internal/catalog"
	"github.com/ariefcatur/go-checkout/internal/checkout"
	"github.com/ariefcatur/go-checkout/internal/config"
	"github.com/ariefcatur/go-checkout/internal/httpx"
	kafkax "github.com/ariefcatur/go-checkout/internal/kafka"
	"github.com/ariefcatur/go-checkout/internal/logging"
	"github.com/ariefcatur/go-checkout/internal/orders"
	"github.com/ariefcatur/go-checkout/internal/postgres"
	"github.com/ariefcatur/go-checkout/internal/redisx"
	"github.com/ariefcatur/go-checkout/internal/wompi"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName)
	defer func() { _ = log.Sync() }()

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

	// Kafka producers: one topic per settlement outcome
	pApproved := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentApproved, 1024)
	pApproved.Start(ctx)
	pDeclined := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentDeclined, 1024)
	pDeclined.Start(ctx)

	// Adapters + service; the service only sees the interfaces
	gateway := wompi.NewClient(cfg.WompiBaseURL, cfg.WompiPublicKey, cfg.WompiPrivateKey, cfg.WompiIntegrityKey, cfg.GatewayTimeout)
	svc := &checkout.Service{
		Store:          &orders.Repo{DB: db},
		Catalog:        &catalog.Repo{DB: db},
		Gateway:        gateway,
		ApprovedEvents: pApproved,
		DeclinedEvents: pDeclined,
		Log:            log,
		ServiceName:    cfg.ServiceName,
	}

	router := httpx.NewRouter()
	h := &httpx.Handler{Service: svc, Redis: rdb, Log: log}
	h.Register(router)

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
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pApproved.Close() // close inbox -> flush & close writer
	pDeclined.Close()
	pApproved.WaitClosed()
	pDeclined.WaitClosed()
}
