package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leettrack/internal/config"
	"leettrack/internal/events"
	"leettrack/internal/store"
	"leettrack/internal/tracker"
)

var recomputes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "leettrack_ledger_recomputes_total",
	Help: "Ledger recomputations triggered by store changes.",
}, []string{"collection"})

// Worker subscribes to the change feed and recomputes the affected
// student's ledger after every write, keeping a live view of fines
// and balances without the API paying for it on the hot path.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var feed events.Feed
	if cfg.FeedBackend == "memory" {
		feed = events.NewMemoryFeed()
	} else {
		feed = events.NewRedisFeed(redisClient.Client, "leettrack:changes")
	}

	svc := tracker.NewService(tracker.NewPostgresStore(db.Client), nil, nil)

	go func() {
		log.Printf("metrics on :%s/metrics", cfg.MetricsPort)
		if err := http.ListenAndServe(":"+cfg.MetricsPort, promhttp.Handler()); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	changes, unsubscribe, err := feed.Subscribe(ctx)
	if err != nil {
		log.Fatalf("feed subscribe failed: %v", err)
	}
	defer unsubscribe()

	log.Println("worker started, waiting for changes...")
	for {
		select {
		case <-ctx.Done():
			log.Println("worker stopped")
			return
		case ch, ok := <-changes:
			if !ok {
				log.Println("feed closed, worker stopped")
				return
			}
			if ch.UserID == "" || ch.Collection == "users" {
				continue
			}
			recomputes.WithLabelValues(ch.Collection).Inc()

			sum, err := svc.Summarize(ctx, ch.UserID)
			if err != nil {
				log.Printf("recompute for %s failed: %v", ch.UserID, err)
				continue
			}
			log.Printf("user %s: %s %s -> fine=%d available=%d bonuses=%d",
				ch.UserID, ch.Collection, ch.Action, sum.Fine, sum.AvailableLeaves, sum.BonusLeaves)
		}
	}
}
