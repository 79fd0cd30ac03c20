package provider

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// PoolConfig tunes the shared HTTP transport each provider connector uses.
type PoolConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	KeepAlive           time.Duration
}

// DefaultPoolConfig returns sane defaults for the listings/metrics providers.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        128,
		MaxIdleConnsPerHost: 32,
		MaxConnsPerHost:     32,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		KeepAlive:           30 * time.Second,
	}
}

// ConnectionPool hands out one shared http.Client per logical provider key
// so listings/metrics connectors reuse connections instead of each dialing
// its own transport.
type ConnectionPool struct {
	mu      sync.RWMutex
	clients map[string]*http.Client
	cfg     PoolConfig
	metrics *poolMetrics
}

type poolMetrics struct {
	requests sync.Map // map[string]*int64
	errors   sync.Map // map[string]*int64
}

// NewConnectionPool creates a pool using cfg for every provider key.
func NewConnectionPool(cfg PoolConfig) *ConnectionPool {
	return &ConnectionPool{
		clients: make(map[string]*http.Client),
		cfg:     cfg,
		metrics: &poolMetrics{},
	}
}

// Client returns the shared client for key, creating it on first access.
func (p *ConnectionPool) Client(key string, timeout time.Duration) *http.Client {
	p.mu.RLock()
	if c, ok := p.clients[key]; ok {
		p.mu.RUnlock()
		return c
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c
	}

	dialer := &net.Dialer{Timeout: p.cfg.DialTimeout, KeepAlive: p.cfg.KeepAlive}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        p.cfg.MaxIdleConns,
		MaxIdleConnsPerHost: p.cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     p.cfg.MaxConnsPerHost,
		IdleConnTimeout:     p.cfg.IdleConnTimeout,
	}
	client := &http.Client{
		Transport: &metricsRoundTripper{inner: transport, key: key, metrics: p.metrics},
		Timeout:   timeout,
	}
	p.clients[key] = client
	return client
}

// Metrics returns cumulative request/error counts per provider key.
func (p *ConnectionPool) Metrics() map[string]map[string]int64 {
	out := make(map[string]map[string]int64)
	p.metrics.requests.Range(func(k, v any) bool {
		name := k.(string)
		if _, ok := out[name]; !ok {
			out[name] = make(map[string]int64)
		}
		out[name]["total_requests"] = atomic.LoadInt64(v.(*int64))
		return true
	})
	p.metrics.errors.Range(func(k, v any) bool {
		name := k.(string)
		if _, ok := out[name]; !ok {
			out[name] = make(map[string]int64)
		}
		out[name]["total_errors"] = atomic.LoadInt64(v.(*int64))
		return true
	})
	return out
}

// Close releases idle connections held by every pooled client.
func (p *ConnectionPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clients {
		c.CloseIdleConnections()
	}
}

type metricsRoundTripper struct {
	inner   http.RoundTripper
	key     string
	metrics *poolMetrics
}

func (m *metricsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	incr(&m.metrics.requests, m.key)
	resp, err := m.inner.RoundTrip(req)
	if err != nil || (resp != nil && resp.StatusCode >= 500) {
		incr(&m.metrics.errors, m.key)
	}
	return resp, err
}

func incr(m *sync.Map, key string) {
	v, _ := m.LoadOrStore(key, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}
