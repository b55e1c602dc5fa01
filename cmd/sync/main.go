package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"MarketPulse/internal/di"
	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/config"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "config file path")
		symbols    = flag.String("symbol", "", "comma separated symbols to sync")
		quick      = flag.Bool("quick", false, "sync only watchlist and portfolio symbols")
		years      = flag.Int("years", 0, "years of daily history (0 = configured default)")
	)
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if cfg.Finnhub.APIKey == "" {
		log.Fatal("finnhub api key is not set (FINNHUB_API_KEY)")
	}

	cli, cleanup, err := di.InitializeSync(cfg)
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := models.SyncRequest{Quick: *quick, Years: cfg.Sync.HistoryYears}
	if *years > 0 {
		req.Years = *years
	}
	if *symbols != "" {
		req.Symbols = append(strings.Split(*symbols, ","), flag.Args()...)
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("MarketPulse data sync  %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Println(strings.Repeat("=", 60))

	last := usecase.SyncPhase("")
	sum, err := cli.Sync.Run(ctx, req, func(phase usecase.SyncPhase, done, total int) {
		if phase != last {
			if last != "" {
				fmt.Println()
			}
			last = phase
		}
		fmt.Printf("\r  %-8s %d/%d (%d%%)", phase, done, total, done*100/max(total, 1))
	})
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
		cleanup()
		os.Exit(1)
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Mode:       %s (%d symbols)\n", sum.Mode, sum.Symbols)
	fmt.Printf("Quotes:     %d ok, %d failed\n", sum.QuotesOK, sum.QuotesFailed)
	fmt.Printf("History:    %d ok, %d failed\n", sum.HistoryOK, sum.HistoryFailed)
	fmt.Printf("Bars:       %s stored\n", humanize.Comma(int64(sum.Bars)))
	fmt.Printf("Elapsed:    %s\n", sum.Elapsed.Round(100*time.Millisecond))
	fmt.Println(strings.Repeat("=", 60))
}
