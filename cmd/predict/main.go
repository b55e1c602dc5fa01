package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"MarketPulse/internal/di"
	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/config"
)

type options struct {
	configPath string
	symbols    []string
	top        int
	all        bool
	workers    int
	model      string
	asJSON     bool
}

// parseArgs accepts symbols as --symbol AAPL,MSFT or --symbol AAPL MSFT NVDA.
func parseArgs(args []string) (options, error) {
	var (
		o      options
		symbol string
	)
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "config/config.yaml", "config file path")
	fs.StringVar(&symbol, "symbol", "", "comma separated symbols; overrides --top and --all")
	fs.StringVar(&symbol, "s", "", "shorthand for --symbol")
	fs.IntVar(&o.top, "top", 0, "predict the top N eligible symbols by market cap (0 = configured default)")
	fs.IntVar(&o.top, "t", 0, "shorthand for --top")
	fs.BoolVar(&o.all, "all", false, "predict every symbol with enough history")
	fs.BoolVar(&o.all, "a", false, "shorthand for --all")
	fs.IntVar(&o.workers, "workers", 0, "symbols processed concurrently (0 = configured default)")
	fs.StringVar(&o.model, "model", "", "model kind: lstm or linear")
	fs.BoolVar(&o.asJSON, "json", false, "print the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if symbol != "" {
		for _, s := range append(strings.Split(symbol, ","), fs.Args()...) {
			if s = strings.TrimSpace(s); s != "" {
				o.symbols = append(o.symbols, s)
			}
		}
	}
	return o, nil
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	cfg, err := config.LoadWithEnv(opts.configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if opts.workers > 0 {
		cfg.Prediction.Workers = opts.workers
	}
	if opts.model != "" {
		cfg.Prediction.Model.Kind = strings.ToLower(opts.model)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	cli, cleanup, err := di.InitializePredictor(cfg)
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := models.BatchRequest{TopN: opts.top, Symbols: opts.symbols}
	if opts.all {
		req.TopN = -1
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("MarketPulse batch prediction: %s, %d worker(s)\n", di.ModelConfig(cfg).Describe(), cfg.Prediction.Workers)
	fmt.Println(strings.Repeat("=", 60))

	summary, err := cli.Batch.Run(ctx, req, printOutcome)
	if err != nil {
		fmt.Fprintf(os.Stderr, "batch failed: %v\n", err)
		cleanup()
		os.Exit(1)
	}

	if opts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(summary)
		return
	}
	printSummary(summary)
}

func printOutcome(o models.SymbolOutcome) {
	prefix := fmt.Sprintf("[%*d/%d] %-6s", len(fmt.Sprint(o.Total)), o.Index, o.Total, o.Symbol)
	if !o.OK || o.Forecast == nil {
		detail := ""
		if o.Err != nil {
			detail = o.Err.Error()
		}
		fmt.Printf("%s  FAIL  %-20s %s\n", prefix, o.Reason, detail)
		return
	}
	f := o.Forecast
	parts := make([]string, 0, len(f.Horizons))
	for _, h := range f.Horizons {
		parts = append(parts, fmt.Sprintf("%s %+.2f%%", h.Horizon, h.ChangePct))
	}
	fmt.Printf("%s  %-11s $%-9.2f %s  (%s)\n", prefix, f.Signal, f.CurrentPrice, strings.Join(parts, "  "), o.Elapsed.Round(10*time.Millisecond))
}

func printSummary(s models.BatchSummary) {
	fmt.Println(strings.Repeat("-", 60))
	if s.Interrupted {
		fmt.Println("Run interrupted; partial results below.")
	}
	fmt.Printf("Run:        %s\n", s.RunID)
	fmt.Printf("Processed:  %s symbols in %s (%s per success)\n",
		humanize.Comma(int64(s.Total)), s.Elapsed.Round(time.Second), s.AvgPerSuccess().Round(10*time.Millisecond))
	fmt.Printf("Succeeded:  %s\n", humanize.Comma(int64(s.Succeeded)))
	fmt.Printf("Failed:     %s\n", humanize.Comma(int64(s.Failed)))

	reasons := make([]string, 0, len(s.Failures))
	for r := range s.Failures {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Printf("  %-20s %d\n", r, s.Failures[models.FailureReason(r)])
	}

	fmt.Println("Signals:")
	for _, sig := range models.Signals {
		n := s.Signals[sig]
		pct := 0.0
		if s.Succeeded > 0 {
			pct = float64(n) / float64(s.Succeeded) * 100
		}
		fmt.Printf("  %-12s %4d  %s\n", sig, n, humanize.FtoaWithDigits(pct, 1)+"%")
	}
	fmt.Println(strings.Repeat("=", 60))
}
