package provider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dexter-labs/tokentracker/internal/provider"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchMetricsFetchesEachAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := strings.TrimPrefix(r.URL.Path, "/")
		w.Write([]byte(`{
			"name":"Token ` + addr + `","symbol":"TKN","total_supply":1000000,
			"summary":{"price_usd":0.01,"fdv":10000,"liquidity_usd":5000,
				"5m":{"buys":10,"sells":5,"buy_usd":500,"sell_usd":200,"last_price_usd_change":3.5},
				"volume_usd":2000}
		}`))
	}))
	defer srv.Close()

	pool := provider.NewConnectionPool(provider.DefaultPoolConfig())
	p := provider.NewDexMetricsProvider(srv.URL, 4, pool, zerolog.Nop())

	results, err := p.BatchMetrics(context.Background(), []string{"0xaaa", "0xbbb"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	res := results["0xaaa"]
	require.NotNil(t, res)
	assert.Equal(t, 10000.0, res.MarketCap)
	assert.Equal(t, 2000.0, res.Volume24h)
	window, ok := res.TxWindows["5m"]
	require.True(t, ok)
	assert.Equal(t, 10, window.Buys)
	assert.Equal(t, 3.5, window.PriceChangePct)
}

func TestBatchMetricsRejectsSanityViolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Bad","symbol":"BAD","total_supply":1,
			"summary":{"price_usd":1,"fdv":10,"liquidity_usd":1,"volume_usd":100000}}`))
	}))
	defer srv.Close()

	pool := provider.NewConnectionPool(provider.DefaultPoolConfig())
	p := provider.NewDexMetricsProvider(srv.URL, 4, pool, zerolog.Nop())

	results, err := p.BatchMetrics(context.Background(), []string{"0xbad"})
	require.NoError(t, err)
	assert.Empty(t, results, "sanity-rejected address must be dropped, not included")
}

func TestBatchMetricsSkipsFailedAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "good") {
			w.Write([]byte(`{"name":"Good","symbol":"GOOD","total_supply":1,"summary":{"price_usd":1,"fdv":10,"liquidity_usd":1}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	pool := provider.NewConnectionPool(provider.DefaultPoolConfig())
	p := provider.NewDexMetricsProvider(srv.URL, 4, pool, zerolog.Nop())

	results, err := p.BatchMetrics(context.Background(), []string{"good", "bad"})
	require.NoError(t, err)
	assert.Contains(t, results, "good")
	assert.NotContains(t, results, "bad")
}
