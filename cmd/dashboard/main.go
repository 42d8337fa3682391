package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ReversalFlow/internal/cache"
	"ReversalFlow/internal/collector"
	"ReversalFlow/internal/config"
	"ReversalFlow/internal/dashboard"
	"ReversalFlow/internal/metrics"
	"ReversalFlow/internal/scheduler"
	"ReversalFlow/internal/store"
	"ReversalFlow/internal/strategy"
)

func main() {
	mock := flag.Bool("mock", false, "use generated bars instead of the Polygon API")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] reversal dashboard starting...")

	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		return
	}
	if err := cfg.Validate(); err != nil && !(*mock && errors.Is(err, config.ErrPlaceholderAPIKey)) {
		fmt.Printf("Configuration error: %v\n", err)
		if errors.Is(err, config.ErrPlaceholderAPIKey) {
			fmt.Println("Get a free API key at https://polygon.io and set POLYGON_API_KEY in .env")
		}
		return
	}

	st, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		fmt.Printf("Storage error: %v\n", err)
		return
	}
	defer st.Close()

	m := metrics.NewMetrics()
	engine := strategy.NewEngine(cfg.StrategyParams())

	var fetcher collector.Fetcher
	if *mock {
		fetcher = &collector.MockFetcher{Price: 100}
	} else {
		gate := collector.NewGate(cfg.DataSource.RequestInterval)
		fetcher = collector.NewPolygonFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, gate)
	}
	log.Printf("[INFO] data source: %s", fetcher.Name())

	col := collector.NewCollector(fetcher, st, engine, cfg.Watchlist, cfg.DataSource.LookbackDays)
	col.Metrics = m

	qc := cache.NewQueryCache(st, cfg.Dashboard.CacheTTL)
	qc.Metrics = m

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.NewScheduler(ctx, col, cfg.Refresh.StaleHours)
	sched.OnRefresh = func(collector.Results) { qc.Invalidate() }
	if err := sched.Register(cfg.Refresh.Cron); err != nil {
		log.Fatalf("[FATAL] register cron task: %v", err)
	}
	sched.Start()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, refreshing stale symbols now")
		go func() {
			if _, err := sched.Refresh(ctx); err != nil {
				log.Printf("[ERROR] startup refresh: %v", err)
			}
		}()
	}

	srv, err := dashboard.NewServer(st, qc, sched, engine, m)
	if err != nil {
		log.Fatalf("[FATAL] init dashboard: %v", err)
	}
	httpSrv := srv.NewHTTPServer(cfg.Dashboard.Addr)
	go func() {
		log.Printf("[INFO] dashboard listening on %s", cfg.Dashboard.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] http shutdown: %v", err)
	}
	cancel()
	sched.Stop()
	log.Println("[INFO] dashboard stopped")
}
