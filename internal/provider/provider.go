// Package provider defines the pluggable upstream data accessors the
// tracker depends on: a listings feed, a batch metrics endpoint, and an
// SSE price stream — one interface, swappable concrete connectors,
// grounded on the teacher's Provider/Registry shape (provider/provider.go).
package provider

import (
	"context"
	"strings"
	"sync"
)

// Listing is one candidate token reported by the listings feed.
type Listing struct {
	ContractAddress string
	Name            string
	Symbol          string
	Chain           string
	LogoURL         string
}

// TxWindowStats mirrors model.TxWindow but is decoded straight off the
// wire before being narrowed to the 5m window the scorer consumes.
type TxWindowStats struct {
	Buys           int
	Sells          int
	BuyUSD         float64
	SellUSD        float64
	PriceChangePct float64
}

// MetricsResult is one address's batch-metrics response.
type MetricsResult struct {
	Name        string
	Symbol      string
	PriceUSD    float64
	MarketCap   float64
	Volume24h   float64
	Liquidity   float64
	TotalSupply float64
	TxWindows   map[string]TxWindowStats // keyed "5m","15m","30m","1h","6h","24h"
}

// SSEFrame is one decoded price-stream event.
type SSEFrame struct {
	Address        string
	Chain          string
	Price          float64
	Timestamp      int64
	PriceTimestamp int64
}

// SSEStream yields decoded frames for one subscribed address.
type SSEStream interface {
	Next() (*SSEFrame, error)
	Close() error
}

// Provider is implemented by each concrete upstream connector. Concrete
// providers can be swapped for tests and for embedded vs. remote modes —
// the orchestrator never depends on a specific upstream.
type Provider interface {
	Name() string
	Listings(ctx context.Context, targetChain string) ([]Listing, error)
	BatchMetrics(ctx context.Context, addresses []string) (map[string]*MetricsResult, error)
	OpenSSE(ctx context.Context, address string) (SSEStream, error)
}

// Registry holds the registered providers, keyed by name, so tests and
// alternate deployments can swap in doubles (teacher's provider.Registry).
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p under its own Name().
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// List returns the registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// isSanityRejected implements the §4.3 garbage filter: volume wildly out
// of proportion to market cap indicates a bad upstream row.
func isSanityRejected(volume24h, marketCap float64) bool {
	return marketCap > 0 && volume24h > 1000*marketCap
}

func normalizeChain(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
