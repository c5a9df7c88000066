package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-checkout-core.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-core.git/internal/config"
	kafkax "github.com/ariefcatur/go-checkout-core.git/internal/kafka"
	"github.com/ariefcatur/go-checkout-core.git/internal/postgres"
	"github.com/ariefcatur/go-checkout-core.git/internal/sweeper"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	pReleased := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicStockReleased, 1024)
	pReleased.Start(ctx)
	pFinal := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicTransactionFinalized, 1024)
	pFinal.Start(ctx)

	swp := &sweeper.Sweeper{
		Stock:             &checkout.StockRepo{DB: db},
		ProducerReleased:  pReleased,
		ProducerFinalized: pFinal,
		ServiceName:       cfg.ServiceName + "-sweeper",
		BatchSize:         cfg.SweepBatchSize,
	}

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	go func() {
		log.Printf("sweeper started: interval=%s batch=%d", cfg.SweepInterval, cfg.SweepBatchSize)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runCtx, runCancel := context.WithTimeout(ctx, 30*time.Second)
				report, err := swp.ReleaseExpired(runCtx)
				runCancel()
				if err != nil {
					log.Printf("sweep: %v", err)
					continue
				}
				if report.ReleasedCount > 0 {
					log.Printf("sweep: released=%d failed_tx=%d",
						report.ReleasedCount, len(report.TouchedTransactionIDs))
				}
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down sweeper...")
	pReleased.Close()
	pFinal.Close()
	pReleased.WaitClosed()
	pFinal.WaitClosed()
	cancel()
}
