package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"minimart/internal/config"
	"minimart/internal/seeder"
	"minimart/internal/telemetry"
	"minimart/pkg/marketdata"
)

func main() {
	configPath := flag.String("config", "", "optional YAML configuration overlay")
	listenAddr := flag.String("telemetry-addr", "", "override telemetry.listen_addr from config")
	flag.Parse()

	// ---------------- Configuration ----------------

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
		cfg = loaded
	}
	if *listenAddr != "" {
		cfg.Telemetry.ListenAddr = *listenAddr
	}

	// ---------------- Core ----------------

	store := marketdata.NewStore(marketdata.DefaultStoreCapacity)
	gen := marketdata.NewGenerator(marketdata.DefaultStoreCapacity, cfg.GeneratorConfig(), nil)
	feed := marketdata.NewFeed(gen, store, cfg.FeedConfig())

	fallback := cfg.Generator.BasePrice
	feed.SetBasePriceLookup(func(id marketdata.SecurityId) float64 {
		return seeder.BasePrice(id.String(), fallback)
	})

	// ---------------- Seeded subscriptions ----------------

	for _, id := range seeder.TestSecurityIds() {
		if !feed.Subscribe(id) {
			log.Printf("warning: failed to subscribe %s", id)
		}
	}

	if !feed.Start() {
		log.Fatalf("feed failed to start")
	}
	defer feed.Stop()

	fmt.Printf("minimart feed running, %d securities subscribed\n", len(feed.ListSubscribed()))

	// ---------------- Telemetry ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exporter := telemetry.New("minimart", feed)
	go exporter.Run(ctx, time.Second)
	go func() {
		if err := exporter.ListenAndServe(ctx, cfg.Telemetry.ListenAddr); err != nil {
			log.Printf("telemetry listener error: %v", err)
		}
	}()

	// ---------------- Stats printer ----------------

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := feed.Statistics()
			fmt.Printf("produced=%d consumed=%d ring_full=%d avg_latency_ns=%.0f utilization=%.2f\n",
				stats.MessagesProduced, stats.MessagesConsumed, stats.RingFullEvents,
				stats.AverageLatencyNs(), feed.RingUtilization())
		}
	}()

	// ---------------- Shutdown ----------------

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("shutting down")
}
