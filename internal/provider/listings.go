package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DexListingsProvider polls a public JSON listings feed. Missing or empty
// responses are non-fatal — callers get an empty slice (spec §4.3).
type DexListingsProvider struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewDexListingsProvider builds a listings connector sharing transports
// from pool under the "listings" key.
func NewDexListingsProvider(baseURL string, pool *ConnectionPool, logger zerolog.Logger) *DexListingsProvider {
	return &DexListingsProvider{
		baseURL: baseURL,
		client:  pool.Client("listings", 10*time.Second),
		logger:  logger.With().Str("provider", "listings").Logger(),
	}
}

func (p *DexListingsProvider) Name() string { return "listings" }

func (p *DexListingsProvider) BatchMetrics(context.Context, []string) (map[string]*MetricsResult, error) {
	return nil, fmt.Errorf("listings provider does not implement batch metrics")
}

func (p *DexListingsProvider) OpenSSE(context.Context, string) (SSEStream, error) {
	return nil, fmt.Errorf("listings provider does not implement sse")
}

type rawListingEnvelope struct {
	Tokens []rawListing `json:"tokens"`
}

type rawListing struct {
	TokenAddress string `json:"tokenAddress"`
	Address      string `json:"address"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	ChainID      string `json:"chainId"`
	Chain        string `json:"chain"`
	ImageURL     string `json:"imageUrl"`
	Icon         string `json:"icon"`
}

func (p *DexListingsProvider) Listings(ctx context.Context, targetChain string) ([]Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build listings request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn().Err(err).Msg("listings fetch failed")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn().Int("status", resp.StatusCode).Msg("listings returned non-200")
		return nil, nil
	}

	raws, err := decodeListingsBody(resp)
	if err != nil {
		p.logger.Warn().Err(err).Msg("listings body decode failed")
		return nil, nil
	}

	want := normalizeChain(targetChain)
	out := make([]Listing, 0, len(raws))
	for _, r := range raws {
		addr := r.TokenAddress
		if addr == "" {
			addr = r.Address
		}
		chain := r.ChainID
		if chain == "" {
			chain = r.Chain
		}
		if addr == "" || normalizeChain(chain) != want {
			continue
		}
		logo := r.ImageURL
		if logo == "" {
			logo = r.Icon
		}
		out = append(out, Listing{
			ContractAddress: addr,
			Name:            r.Name,
			Symbol:          r.Symbol,
			Chain:           chain,
			LogoURL:         logo,
		})
	}
	return out, nil
}

// decodeListingsBody accepts either a bare JSON array or a {"tokens":[...]}
// envelope, per the upstream's documented shapes (spec §6).
func decodeListingsBody(resp *http.Response) ([]rawListing, error) {
	dec := json.NewDecoder(resp.Body)
	var peek json.RawMessage
	if err := dec.Decode(&peek); err != nil {
		return nil, fmt.Errorf("decode listings json: %w", err)
	}

	var arr []rawListing
	if err := json.Unmarshal(peek, &arr); err == nil {
		return arr, nil
	}

	var env rawListingEnvelope
	if err := json.Unmarshal(peek, &env); err != nil {
		return nil, fmt.Errorf("listings body matches neither array nor envelope: %w", err)
	}
	return env.Tokens, nil
}
