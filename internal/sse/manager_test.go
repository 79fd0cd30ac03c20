package sse_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dexter-labs/tokentracker/internal/provider"
	"github.com/dexter-labs/tokentracker/internal/sse"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream emits a fixed queue of frames then blocks until closed, so
// the manager closing the stream on disconnect is what ends readLoop in
// tests that never want a stream to "end" on its own.
type fakeStream struct {
	mu     sync.Mutex
	frames []*provider.SSEFrame
	idx    int
	closed chan struct{}
	err    error
}

func newFakeStream(frames ...*provider.SSEFrame) *fakeStream {
	return &fakeStream{frames: frames, closed: make(chan struct{})}
}

func (f *fakeStream) Next() (*provider.SSEFrame, error) {
	f.mu.Lock()
	if f.idx < len(f.frames) {
		fr := f.frames[f.idx]
		f.idx++
		f.mu.Unlock()
		return fr, nil
	}
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	<-f.closed
	return nil, errors.New("stream closed")
}

func (f *fakeStream) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

type fakeProvider struct {
	mu      sync.Mutex
	streams map[string]*fakeStream
	failFor map[string]bool
	opened  []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{streams: map[string]*fakeStream{}, failFor: map[string]bool{}}
}

func (p *fakeProvider) Name() string { return "fake" }
func (p *fakeProvider) Listings(context.Context, string) ([]provider.Listing, error) {
	return nil, nil
}
func (p *fakeProvider) BatchMetrics(context.Context, []string) (map[string]*provider.MetricsResult, error) {
	return nil, nil
}
func (p *fakeProvider) OpenSSE(ctx context.Context, addr string) (provider.SSEStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, addr)
	if p.failFor[addr] {
		return nil, errors.New("connect refused")
	}
	st, ok := p.streams[addr]
	if !ok {
		st = newFakeStream()
		p.streams[addr] = st
	}
	return st, nil
}

func TestUpdateLeadersConnectsAndDeliversFrames(t *testing.T) {
	fp := newFakeProvider()
	fp.streams["0xaaa"] = newFakeStream(&provider.SSEFrame{Address: "0xaaa", Price: 1.5, Timestamp: 100})

	mgr := sse.NewManager(fp, 5, time.Millisecond, zerolog.Nop())

	updates := make(chan sse.PriceUpdate, 10)
	mgr.OnPriceUpdate(func(u sse.PriceUpdate) { updates <- u })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.UpdateLeaders(ctx, []string{"0xaaa"})

	select {
	case u := <-updates:
		assert.Equal(t, "0xaaa", u.Address)
		assert.Equal(t, 1.5, u.Price)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for price update")
	}

	price, ok := mgr.GetPrice("0xaaa")
	require.True(t, ok)
	assert.Equal(t, 1.5, price)
}

func TestUpdateLeadersIsIdempotent(t *testing.T) {
	fp := newFakeProvider()
	mgr := sse.NewManager(fp, 5, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.UpdateLeaders(ctx, []string{"0xaaa", "0xbbb"})
	time.Sleep(20 * time.Millisecond)
	mgr.UpdateLeaders(ctx, []string{"0xaaa", "0xbbb"})
	time.Sleep(20 * time.Millisecond)

	fp.mu.Lock()
	opened := append([]string(nil), fp.opened...)
	fp.mu.Unlock()

	assert.Len(t, opened, 2, "repeating the same leader set must not reconnect")
}

func TestUpdateLeadersDisconnectsDroppedAddresses(t *testing.T) {
	fp := newFakeProvider()
	mgr := sse.NewManager(fp, 5, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.UpdateLeaders(ctx, []string{"0xaaa"})
	time.Sleep(20 * time.Millisecond)
	stats := mgr.GetStats()
	assert.Equal(t, 1, stats["active_connections"])

	mgr.UpdateLeaders(ctx, []string{"0xbbb"})
	time.Sleep(20 * time.Millisecond)

	stats = mgr.GetStats()
	assert.Equal(t, 1, stats["active_connections"])
	_, ok := mgr.GetPrice("0xaaa")
	assert.False(t, ok, "dropped address must not retain stale state")
}

func TestConnectFailureEntersBackoff(t *testing.T) {
	fp := newFakeProvider()
	fp.failFor["0xbad"] = true
	mgr := sse.NewManager(fp, 5, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.UpdateLeaders(ctx, []string{"0xbad"})
	time.Sleep(20 * time.Millisecond)

	stats := mgr.GetStats()
	assert.Equal(t, 0, stats["active_connections"])
}

func TestDisconnectAllStopsReadLoops(t *testing.T) {
	fp := newFakeProvider()
	mgr := sse.NewManager(fp, 5, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr.UpdateLeaders(ctx, []string{"0xaaa", "0xbbb"})
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		mgr.DisconnectAll()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("DisconnectAll did not return")
	}

	stats := mgr.GetStats()
	assert.Equal(t, 0, stats["active_connections"])
}
