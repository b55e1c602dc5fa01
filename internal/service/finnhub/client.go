package finnhub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"MarketPulse/internal/domain/models"
	xhttp "MarketPulse/pkg/http"
	applogger "MarketPulse/pkg/logger"
)

var (
	// ErrNoData is returned when the provider has nothing for the symbol.
	ErrNoData = errors.New("finnhub: no data")
	// ErrRateLimited is returned on HTTP 429 after the local limiter let the call through.
	ErrRateLimited = errors.New("finnhub: rate limited")
)

// Config configures the REST client.
type Config struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
}

// Client is a Finnhub REST client. Every call waits on a shared token bucket sized to the
// account's per-minute quota.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *rate.Limiter
	now     func() time.Time
	l       *applogger.Logger
}

// New builds a client. opts are passed through to the underlying HTTP client.
func New(cfg Config, l *applogger.Logger, opts ...xhttp.ClientOption) *Client {
	if l == nil {
		l = applogger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}, opts...)
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(opts...),
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), 1),
		now:     time.Now,
		l:       l.Component("finnhub"),
	}
}

type candleResponse struct {
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Time   []int64   `json:"t"`
	Volume []float64 `json:"v"`
	Status string    `json:"s"`
}

type quoteResponse struct {
	Current       *float64 `json:"c"`
	Change        *float64 `json:"d"`
	ChangePercent *float64 `json:"dp"`
	High          *float64 `json:"h"`
	Low           *float64 `json:"l"`
	Open          *float64 `json:"o"`
	PreviousClose *float64 `json:"pc"`
	Timestamp     int64    `json:"t"`
}

type profileResponse struct {
	Name      string   `json:"name"`
	Ticker    string   `json:"ticker"`
	Industry  string   `json:"finnhubIndustry"`
	MarketCap *float64 `json:"marketCapitalization"`
}

// DailyBars returns daily bars for symbol between from and to, ascending.
func (c *Client) DailyBars(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	var res candleResponse
	q := url.Values{
		"symbol":     {symbol},
		"resolution": {"D"},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(to.Unix(), 10)},
	}
	if err := c.get(ctx, "/stock/candle", q, &res); err != nil {
		return nil, fmt.Errorf("candles %s: %w", symbol, err)
	}
	if res.Status == "no_data" || len(res.Time) == 0 {
		return nil, fmt.Errorf("candles %s: %w", symbol, ErrNoData)
	}
	if len(res.Close) != len(res.Time) {
		return nil, fmt.Errorf("candles %s: %d closes for %d timestamps", symbol, len(res.Close), len(res.Time))
	}
	return candlesToBars(symbol, res), nil
}

// Quote returns the latest quote. Market cap is not part of the quote endpoint and stays nil.
func (c *Client) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	var res quoteResponse
	if err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}}, &res); err != nil {
		return models.Quote{}, fmt.Errorf("quote %s: %w", symbol, err)
	}
	// unknown symbols come back as all zeros
	if res.Current == nil || (*res.Current == 0 && res.Timestamp == 0) {
		return models.Quote{}, fmt.Errorf("quote %s: %w", symbol, ErrNoData)
	}
	updated := c.now().UTC()
	if res.Timestamp > 0 {
		updated = time.Unix(res.Timestamp, 0).UTC()
	}
	return models.Quote{
		Symbol:        symbol,
		Price:         res.Current,
		Change:        res.Change,
		ChangePercent: res.ChangePercent,
		Open:          res.Open,
		High:          res.High,
		Low:           res.Low,
		PreviousClose: res.PreviousClose,
		UpdatedAt:     updated,
	}, nil
}

// Profile returns company metadata and the market capitalisation in dollars, when reported.
func (c *Client) Profile(ctx context.Context, symbol string) (models.StockProfile, *float64, error) {
	var res profileResponse
	if err := c.get(ctx, "/stock/profile2", url.Values{"symbol": {symbol}}, &res); err != nil {
		return models.StockProfile{}, nil, fmt.Errorf("profile %s: %w", symbol, err)
	}
	if res.Name == "" && res.Ticker == "" {
		return models.StockProfile{}, nil, fmt.Errorf("profile %s: %w", symbol, ErrNoData)
	}
	name := res.Name
	if name == "" {
		name = symbol
	}
	var mcap *float64
	if res.MarketCap != nil && *res.MarketCap > 0 {
		// reported in millions
		mcap = models.Float(*res.MarketCap * 1e6)
	}
	return models.StockProfile{
		Symbol: symbol,
		Name:   name,
		Sector: models.Str(res.Industry),
	}, mcap, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  http.MethodGet,
		URL:     c.cfg.BaseURL + path,
		Query:   q,
		Headers: map[string]string{"X-Finnhub-Token": c.cfg.APIKey},
	}, dest)
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.Code == http.StatusTooManyRequests {
		c.l.Warn("rate limited by provider", applogger.String("path", path))
		return ErrRateLimited
	}
	return err
}

func candlesToBars(symbol string, res candleResponse) []models.PriceBar {
	at := func(xs []float64, i int) (float64, bool) {
		if i < len(xs) {
			return xs[i], true
		}
		return 0, false
	}
	bars := make([]models.PriceBar, 0, len(res.Time))
	for i, ts := range res.Time {
		bar := models.PriceBar{
			Symbol: symbol,
			Date:   time.Unix(ts, 0).UTC(),
			Close:  res.Close[i],
		}
		if v, ok := at(res.Open, i); ok {
			bar.Open = models.Float(v)
		}
		if v, ok := at(res.High, i); ok {
			bar.High = models.Float(v)
		}
		if v, ok := at(res.Low, i); ok {
			bar.Low = models.Float(v)
		}
		if v, ok := at(res.Volume, i); ok {
			bar.Volume = v
		}
		bars = append(bars, bar)
	}
	return bars
}
