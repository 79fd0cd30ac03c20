package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// DexSSEProvider opens one streaming HTTP connection per subscribed
// address. Generalized from the teacher's HTTPStream/Next() shape
// (provider/provider.go) to decode discrete `data:` JSON frames instead
// of raw byte chunks.
type DexSSEProvider struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewDexSSEProvider builds an SSE connector sharing transports from pool
// under the "sse" key. The client has no overall Timeout — a streaming
// connection is expected to stay open indefinitely, cancelled via ctx.
func NewDexSSEProvider(baseURL string, pool *ConnectionPool, logger zerolog.Logger) *DexSSEProvider {
	return &DexSSEProvider{
		baseURL: baseURL,
		client:  pool.Client("sse", 0),
		logger:  logger.With().Str("provider", "sse").Logger(),
	}
}

func (p *DexSSEProvider) Name() string { return "sse" }

func (p *DexSSEProvider) Listings(context.Context, string) ([]Listing, error) {
	return nil, fmt.Errorf("sse provider does not implement listings")
}

func (p *DexSSEProvider) BatchMetrics(context.Context, []string) (map[string]*MetricsResult, error) {
	return nil, fmt.Errorf("sse provider does not implement batch metrics")
}

// OpenSSE opens one streaming connection for address. The caller owns the
// returned stream and must Close it on disconnect.
func (p *DexSSEProvider) OpenSSE(ctx context.Context, address string) (SSEStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/"+address, nil)
	if err != nil {
		return nil, fmt.Errorf("build sse request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sse connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("sse connect returned status %d", resp.StatusCode)
	}

	return &sseStream{
		address: address,
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
		logger:  p.logger,
	}, nil
}

type sseStream struct {
	address string
	body    interface{ Close() error }
	scanner *bufio.Scanner
	logger  zerolog.Logger
}

type rawSSEFrame struct {
	Address        string  `json:"a"`
	Chain          string  `json:"c"`
	Price          float64 `json:"p"`
	Timestamp      int64   `json:"t"`
	PriceTimestamp int64   `json:"t_p"`
}

// Next blocks on the next `data:` line, decodes it, and returns the frame.
// Lines that fail to parse are silently skipped, per spec §6; Next keeps
// reading until a decodable frame arrives or the stream ends.
func (s *sseStream) Next() (*SSEFrame, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var raw rawSSEFrame
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			s.logger.Debug().Err(err).Str("address", s.address).Msg("sse frame failed to parse, skipping")
			continue
		}
		return &SSEFrame{
			Address:        raw.Address,
			Chain:          raw.Chain,
			Price:          raw.Price,
			Timestamp:      raw.Timestamp,
			PriceTimestamp: raw.PriceTimestamp,
		}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("sse scan for %s: %w", s.address, err)
	}
	return nil, fmt.Errorf("sse stream for %s closed", s.address)
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
