// Package sse owns the bounded set of live SSE subscriptions to the price
// stream, reconciling the desired leader set against live connections and
// fanning out decoded frames to the orchestrator.
//
// Grounded on the teacher's provider.HealthPoller (background goroutine,
// Start/Stop via context.CancelFunc + done channel, status-transition
// callback) crossed with lock.KeyedMutex for per-address connect/disconnect
// serialization (spec §4.4).
package sse

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/dexter-labs/tokentracker/internal/lock"
	"github.com/dexter-labs/tokentracker/internal/provider"
	"github.com/rs/zerolog"
)

// PriceUpdate is the DTO delivered to the orchestrator's callback — a
// one-way registration, never a reference back into the manager (spec §9).
type PriceUpdate struct {
	Address        string
	Price          float64
	Timestamp      int64
	PriceTimestamp int64
}

// ConnState is the per-address bookkeeping the manager tracks.
type ConnState struct {
	LastPrice     float64
	LastUpdateMs  int64
	PriceTimestamp int64
	Failures      int
	BackoffUntil  time.Time
}

// Manager bounds the number of concurrently open SSE connections and
// staggers new connects to avoid upstream rate spikes.
type Manager struct {
	provider provider.Provider
	logger   zerolog.Logger

	maxConns int
	stagger  time.Duration

	keyed *lock.KeyedMutex

	mu      sync.RWMutex
	states  map[string]*ConnState
	cancels map[string]context.CancelFunc
	leaders []string // current ordered leader set, for idempotent reconciliation

	onUpdate func(PriceUpdate)

	wg sync.WaitGroup
}

// NewManager builds a manager bounded to maxConns simultaneous
// connections, staggering new connects by stagger.
func NewManager(p provider.Provider, maxConns int, stagger time.Duration, logger zerolog.Logger) *Manager {
	if maxConns <= 0 {
		maxConns = 10
	}
	return &Manager{
		provider: p,
		logger:   logger.With().Str("component", "sse_manager").Logger(),
		maxConns: maxConns,
		stagger:  stagger,
		keyed:    lock.NewKeyedMutex(),
		states:   make(map[string]*ConnState),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// OnPriceUpdate registers the fan-out sink, called once at construction by
// the orchestrator (spec §9's one-way callback registration).
func (m *Manager) OnPriceUpdate(cb func(PriceUpdate)) {
	m.onUpdate = cb
}

// UpdateLeaders reconciles live connections with the first maxConns
// addresses of ordered. Addresses no longer present are disconnected;
// missing ones are enqueued with the configured inter-connect stagger.
// Calling it twice with the same list is a no-op (idempotent).
func (m *Manager) UpdateLeaders(ctx context.Context, ordered []string) {
	want := ordered
	if len(want) > m.maxConns {
		want = want[:m.maxConns]
	}

	m.mu.Lock()
	if sameOrder(m.leaders, want) {
		m.mu.Unlock()
		return
	}
	prev := m.leaders
	m.leaders = append([]string(nil), want...)
	m.mu.Unlock()

	wantSet := make(map[string]bool, len(want))
	for _, a := range want {
		wantSet[a] = true
	}

	for _, addr := range prev {
		if !wantSet[addr] {
			m.Disconnect(addr)
		}
	}

	prevSet := make(map[string]bool, len(prev))
	for _, a := range prev {
		prevSet[a] = true
	}

	delay := time.Duration(0)
	for _, addr := range want {
		if prevSet[addr] {
			continue
		}
		addr := addr
		d := delay
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			m.connect(ctx, addr)
		}()
		delay += m.stagger
	}
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// connect opens a streaming connection for addr unless it is within its
// backoff window, in which case the call is a no-op (spec §4.4).
func (m *Manager) connect(ctx context.Context, addr string) bool {
	unlock := m.keyed.Lock(addr)
	defer unlock()

	m.mu.RLock()
	state := m.states[addr]
	m.mu.RUnlock()
	if state != nil && time.Now().Before(state.BackoffUntil) {
		m.logger.Debug().Str("address", addr).Msg("connect skipped, address in backoff")
		return false
	}

	stream, err := m.provider.OpenSSE(ctx, addr)
	if err != nil {
		m.recordFailure(addr)
		m.logger.Debug().Err(err).Str("address", addr).Msg("sse connect failed")
		return false
	}

	connCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancels[addr] = cancel
	if _, ok := m.states[addr]; !ok {
		m.states[addr] = &ConnState{}
	}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.readLoop(connCtx, addr, stream)
	return true
}

func (m *Manager) readLoop(ctx context.Context, addr string, stream provider.SSEStream) {
	defer m.wg.Done()

	// Closing the stream on cancellation unblocks a Next call that is
	// waiting for a frame, so Disconnect ends this loop promptly.
	var closeOnce sync.Once
	closeStream := func() { closeOnce.Do(func() { _ = stream.Close() }) }
	defer closeStream()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			closeStream()
		case <-stop:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := stream.Next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.recordFailure(addr)
			m.logger.Debug().Err(err).Str("address", addr).Msg("sse stream ended")
			return
		}

		m.clearFailure(addr)

		m.mu.Lock()
		st := m.states[addr]
		if st == nil {
			st = &ConnState{}
			m.states[addr] = st
		}
		st.LastPrice = frame.Price
		st.LastUpdateMs = time.Now().UnixMilli()
		st.PriceTimestamp = frame.PriceTimestamp
		m.mu.Unlock()

		if m.onUpdate != nil {
			m.onUpdate(PriceUpdate{
				Address:        addr,
				Price:          frame.Price,
				Timestamp:      frame.Timestamp,
				PriceTimestamp: frame.PriceTimestamp,
			})
		}
	}
}

func (m *Manager) recordFailure(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.states[addr]
	if st == nil {
		st = &ConnState{}
		m.states[addr] = st
	}
	st.Failures++
	backoff := time.Duration(math.Min(math.Pow(2, float64(st.Failures)), 60)) * time.Second
	st.BackoffUntil = time.Now().Add(backoff)
}

func (m *Manager) clearFailure(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st := m.states[addr]; st != nil {
		st.Failures = 0
		st.BackoffUntil = time.Time{}
	}
}

// Disconnect tears down the live connection for addr, if any.
func (m *Manager) Disconnect(addr string) {
	unlock := m.keyed.Lock(addr)
	defer unlock()

	m.mu.Lock()
	cancel, ok := m.cancels[addr]
	delete(m.cancels, addr)
	delete(m.states, addr)
	m.mu.Unlock()

	if ok {
		cancel()
	}
}

// DisconnectAll tears down every live connection and waits for the read
// loops to exit, used on system shutdown.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	addrs := make([]string, 0, len(m.cancels))
	for addr := range m.cancels {
		addrs = append(addrs, addr)
	}
	m.mu.Unlock()

	for _, addr := range addrs {
		m.Disconnect(addr)
	}
	m.wg.Wait()
}

// GetPrice returns the last known price for addr.
func (m *Manager) GetPrice(addr string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[addr]
	if !ok {
		return 0, false
	}
	return st.LastPrice, true
}

// GetAllPrices snapshots every tracked address's last known price.
func (m *Manager) GetAllPrices() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.states))
	for addr, st := range m.states {
		out[addr] = st.LastPrice
	}
	return out
}

// GetStats returns connection-count bookkeeping for the control surface.
func (m *Manager) GetStats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{
		"active_connections": len(m.cancels),
		"max_connections":    m.maxConns,
		"tracked_addresses":  len(m.states),
	}
}
