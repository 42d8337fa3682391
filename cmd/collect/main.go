package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"ReversalFlow/internal/collector"
	"ReversalFlow/internal/config"
	"ReversalFlow/internal/model"
	"ReversalFlow/internal/report"
	"ReversalFlow/internal/store"
	"ReversalFlow/internal/strategy"
)

func main() {
	stale := flag.Bool("stale", false, "only collect symbols whose data is older than refresh.stale_hours")
	symbols := flag.String("symbols", "", "comma separated symbols to collect instead of the watchlist")
	mock := flag.Bool("mock", false, "use generated bars instead of the Polygon API")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] stock data collection starting...")

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

	var fetcher collector.Fetcher
	if *mock {
		fetcher = &collector.MockFetcher{Price: 100}
	} else {
		gate := collector.NewGate(cfg.DataSource.RequestInterval)
		fetcher = collector.NewPolygonFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, gate)
	}
	log.Printf("[INFO] data source: %s", fetcher.Name())

	col := collector.NewCollector(fetcher, st, strategy.NewEngine(cfg.StrategyParams()), cfg.Watchlist, cfg.DataSource.LookbackDays)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var results collector.Results
	if *stale {
		results, err = col.UpdateStale(ctx, cfg.Refresh.StaleHours)
		if err != nil {
			fmt.Printf("Refresh error: %v\n", err)
			return
		}
		if len(results) == 0 {
			fmt.Println("All data is up to date.")
		}
	} else {
		results = col.CollectAll(ctx, config.SplitSymbols(*symbols))
	}
	if len(results) > 0 {
		fmt.Print(report.FormatCollectionSummary(results))
	}

	snap, err := st.LatestSnapshot(ctx, model.TimeframeDaily)
	if err != nil {
		fmt.Printf("Query error: %v\n", err)
		return
	}
	over, err := st.LatestOversold(ctx, model.TimeframeDaily)
	if err != nil {
		fmt.Printf("Query error: %v\n", err)
		return
	}
	fmt.Println()
	fmt.Print(report.FormatOverview(report.Summarize(snap)))
	fmt.Println()
	fmt.Print(report.FormatOversold(over))

	if len(results.Failed()) > 0 {
		fmt.Println("\nFailed symbols are retried on the next run.")
	}
}
