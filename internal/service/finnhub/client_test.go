package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "secret", BaseURL: srv.URL + "/", RequestsPerMinute: 60_000}, nil)
}

func TestDailyBars(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/candle", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Finnhub-Token"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "D", r.URL.Query().Get("resolution"))
		_, _ = w.Write([]byte(`{"s":"ok","t":[1704153600,1704240000],"c":[185.64,184.25],"o":[187.15,184.22],
			"h":[188.44,185.88],"l":[183.89,183.43],"v":[82488700,58414500]}`))
	})

	bars, err := c.DailyBars(context.Background(), "AAPL", time.Unix(0, 0), time.Now())
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.Equal(t, 184.25, bars[1].Close)
	require.NotNil(t, bars[0].Open)
	assert.Equal(t, 187.15, *bars[0].Open)
	assert.Equal(t, 58414500.0, bars[1].Volume)
}

func TestDailyBarsNoData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"s":"no_data"}`))
	})
	_, err := c.DailyBars(context.Background(), "ZZZZ", time.Unix(0, 0), time.Now())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestQuoteOptionalFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"c":101.5,"d":1.5,"pc":100,"t":1704240000}`))
	})
	q, err := c.Quote(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, 101.5, *q.Price)
	assert.Equal(t, 100.0, *q.PreviousClose)
	assert.Nil(t, q.ChangePercent, "absent fields stay nil")
	assert.Nil(t, q.MarketCap)
	assert.Equal(t, time.Unix(1704240000, 0).UTC(), q.UpdatedAt)
}

func TestQuoteUnknownSymbol(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0,"t":0}`))
	})
	_, err := c.Quote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Apple Inc","ticker":"AAPL","finnhubIndustry":"Technology","marketCapitalization":2900000}`))
	})
	p, mcap, err := c.Profile(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc", p.Name)
	assert.Equal(t, "Technology", *p.Sector)
	require.NotNil(t, mcap)
	assert.InDelta(t, 2.9e12, *mcap, 1)
}

func TestRateLimitedByProvider(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.Quote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestCancelledWhileWaitingForToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"c":1,"t":1}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Quote(ctx, "AAPL")
	assert.ErrorIs(t, err, context.Canceled)
}
