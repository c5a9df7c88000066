package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-checkout-core.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-core.git/internal/config"
	"github.com/ariefcatur/go-checkout-core.git/internal/gateway"
	"github.com/ariefcatur/go-checkout-core.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-checkout-core.git/internal/kafka"
	"github.com/ariefcatur/go-checkout-core.git/internal/postgres"
	"github.com/ariefcatur/go-checkout-core.git/internal/reconcile"
	"github.com/ariefcatur/go-checkout-core.git/internal/redisx"
	"github.com/ariefcatur/go-checkout-core.git/internal/sweeper"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers
	pInit := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicCheckoutInitiated, 1024)
	pInit.Start(ctx)
	pFinal := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicTransactionFinalized, 1024)
	pFinal.Start(ctx)
	pReleased := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicStockReleased, 1024)
	pReleased.Start(ctx)

	// Komponen dirakit eksplisit di sini,tidak ada registry global.
	repo := &checkout.Repo{DB: db}
	stockRepo := &checkout.StockRepo{DB: db}
	gw := gateway.NewClient(cfg.PaymentBaseURL, cfg.PaymentPublicKey, cfg.PaymentPrivateKey)

	svc := &checkout.Service{
		Ledger:         repo,
		Gateway:        gw,
		MinAmountCents: cfg.PaymentMinAmountCents,
	}
	engine := &reconcile.Engine{
		Ledger:       repo,
		Gateway:      gw,
		Producer:     pFinal,
		EventsSecret: cfg.PaymentEventsSecret,
		ServiceName:  cfg.ServiceName,
	}
	swp := &sweeper.Sweeper{
		Stock:             stockRepo,
		ProducerReleased:  pReleased,
		ProducerFinalized: pFinal,
		ServiceName:       cfg.ServiceName,
		BatchSize:         cfg.SweepBatchSize,
	}

	router := httpx.NewRouter()
	(&httpx.CheckoutHandler{Service: svc, Repo: repo, Producer: pInit, Redis: rdb, Name: cfg.ServiceName}).Register(router)
	(&httpx.WebhookHandler{Engine: engine, Events: repo}).Register(router)
	(&httpx.TransactionsHandler{Repo: repo, Engine: engine, Redis: rdb}).Register(router)
	(&httpx.StockHandler{Sweeper: swp}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	pInit.Close()
	pFinal.Close()
	pReleased.Close()
	pInit.WaitClosed()
	pFinal.WaitClosed()
	pReleased.WaitClosed()
	cancel()
}
