package provider

import (
	"context"

	"github.com/rs/zerolog"
)

// DexScreenerProvider is the default concrete Provider: it composes the
// listings, batch-metrics, and SSE connectors into the single interface
// the orchestrator depends on. A test double or an alternate upstream
// (e.g. a second aggregator) can be registered in its place without the
// orchestrator changing at all (spec §9 "duck-typed provider objects").
type DexScreenerProvider struct {
	listings *DexListingsProvider
	metrics  *DexMetricsProvider
	sse      *DexSSEProvider
}

// Config bundles the three upstream base URLs and tuning knobs needed to
// construct a DexScreenerProvider.
type Config struct {
	ListingsBaseURL string
	MetricsBaseURL  string
	SSEBaseURL      string
	MetricsFanout   int
}

// NewDexScreenerProvider builds the default provider, sharing one
// connection pool across all three upstream concerns.
func NewDexScreenerProvider(cfg Config, pool *ConnectionPool, logger zerolog.Logger) *DexScreenerProvider {
	return &DexScreenerProvider{
		listings: NewDexListingsProvider(cfg.ListingsBaseURL, pool, logger),
		metrics:  NewDexMetricsProvider(cfg.MetricsBaseURL, cfg.MetricsFanout, pool, logger),
		sse:      NewDexSSEProvider(cfg.SSEBaseURL, pool, logger),
	}
}

func (d *DexScreenerProvider) Name() string { return "dexscreener" }

func (d *DexScreenerProvider) Listings(ctx context.Context, targetChain string) ([]Listing, error) {
	return d.listings.Listings(ctx, targetChain)
}

func (d *DexScreenerProvider) BatchMetrics(ctx context.Context, addresses []string) (map[string]*MetricsResult, error) {
	return d.metrics.BatchMetrics(ctx, addresses)
}

func (d *DexScreenerProvider) OpenSSE(ctx context.Context, address string) (SSEStream, error) {
	return d.sse.OpenSSE(ctx, address)
}
