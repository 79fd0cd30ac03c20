package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DexMetricsProvider fetches per-address batch metrics. The upstream has
// no true batch endpoint, so this adapter parallelises individual
// requests under a bounded fan-out (spec §4.3).
type DexMetricsProvider struct {
	baseURL string
	client  *http.Client
	fanout  int
	logger  zerolog.Logger
}

// NewDexMetricsProvider builds a metrics connector with fan-out parallelism c.
func NewDexMetricsProvider(baseURL string, fanout int, pool *ConnectionPool, logger zerolog.Logger) *DexMetricsProvider {
	if fanout <= 0 {
		fanout = 10
	}
	return &DexMetricsProvider{
		baseURL: baseURL,
		client:  pool.Client("metrics", 15*time.Second),
		fanout:  fanout,
		logger:  logger.With().Str("provider", "metrics").Logger(),
	}
}

func (p *DexMetricsProvider) Name() string { return "metrics" }

func (p *DexMetricsProvider) Listings(context.Context, string) ([]Listing, error) {
	return nil, fmt.Errorf("metrics provider does not implement listings")
}

func (p *DexMetricsProvider) OpenSSE(context.Context, string) (SSEStream, error) {
	return nil, fmt.Errorf("metrics provider does not implement sse")
}

var metricsWindowKeys = []string{"5m", "15m", "30m", "1h", "6h", "24h"}

// BatchMetrics fetches metrics for up to len(addresses) addresses,
// bounded by p.fanout concurrent in-flight requests. A result where
// volume is wildly disproportionate to market cap is rejected and, like a
// failed fetch, left out of the returned map.
func (p *DexMetricsProvider) BatchMetrics(ctx context.Context, addresses []string) (map[string]*MetricsResult, error) {
	results := make(map[string]*MetricsResult, len(addresses))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.fanout)

	for _, addr := range addresses {
		addr := addr
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := p.fetchOne(ctx, addr)
			if err != nil {
				p.logger.Debug().Err(err).Str("address", addr).Msg("metrics fetch failed")
				return
			}
			mu.Lock()
			results[addr] = res
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results, nil
}

func (p *DexMetricsProvider) fetchOne(ctx context.Context, address string) (*MetricsResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/"+address, nil)
	if err != nil {
		return nil, fmt.Errorf("build metrics request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metrics request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics returned status %d", resp.StatusCode)
	}

	var raw struct {
		Name        string                 `json:"name"`
		Symbol      string                 `json:"symbol"`
		TotalSupply float64                `json:"total_supply"`
		LastUpdated int64                  `json:"last_updated"`
		Summary     map[string]interface{} `json:"summary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode metrics body: %w", err)
	}

	result := &MetricsResult{
		Name:        raw.Name,
		Symbol:      raw.Symbol,
		TotalSupply: raw.TotalSupply,
		TxWindows:   make(map[string]TxWindowStats),
	}
	result.PriceUSD, _ = toFloat(raw.Summary["price_usd"])
	result.MarketCap, _ = toFloat(raw.Summary["fdv"])
	result.Liquidity, _ = toFloat(raw.Summary["liquidity_usd"])

	for _, key := range metricsWindowKeys {
		wraw, ok := raw.Summary[key]
		if !ok {
			continue
		}
		m, ok := wraw.(map[string]interface{})
		if !ok {
			continue
		}
		buyUSD, _ := toFloat(m["buy_usd"])
		sellUSD, _ := toFloat(m["sell_usd"])
		result.TxWindows[key] = TxWindowStats{
			Buys:           int(mustFloat(m["buys"])),
			Sells:          int(mustFloat(m["sells"])),
			BuyUSD:         buyUSD,
			SellUSD:        sellUSD,
			PriceChangePct: mustFloat(m["last_price_usd_change"]),
		}
		result.Volume24h += mustFloat(m["volume_usd"])
	}
	if vol, ok := raw.Summary["volume_usd"]; ok {
		if v, ok2 := toFloat(vol); ok2 {
			result.Volume24h = v
		}
	}

	if isSanityRejected(result.Volume24h, result.MarketCap) {
		return nil, fmt.Errorf("rejected as sanity violation: volume=%.2f market_cap=%.2f", result.Volume24h, result.MarketCap)
	}
	return result, nil
}

func toFloat(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func mustFloat(v interface{}) float64 {
	f, _ := toFloat(v)
	return f
}
