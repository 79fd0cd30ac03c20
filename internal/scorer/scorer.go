// Package scorer computes the momentum score blending SSE-derived
// short-window momentum with REST 5-minute transaction metrics, and
// selects the MVP / Holder MVP token (spec §4.5).
//
// Grounded on the teacher's caching.Engine shape — a mutex-guarded map
// keyed by a string id, a bounded per-key slice, and atomic hit counters —
// applied here to a momentum buffer instead of a semantic cache.
package scorer

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dexter-labs/tokentracker/internal/model"
)

// bufferWindow is the number of (t, mc, vol) samples kept per token.
const bufferWindow = 12

// Snapshot is one recorded (timestamp, market cap, volume) sample.
type Snapshot struct {
	At  time.Time
	MC  float64
	Vol float64
}

// Weights is one view-mode's component weighting (spec §4.5 table).
type Weights struct {
	BuyPressure   float64
	NetBuyVolume  float64
	TxnsVelocity  float64
	PriceMomentum float64
	SSEMomentum   float64
}

// weightsByView is the explicit per-view override table; falls back to
// the default weights for an unrecognized view mode.
var weightsByView = map[model.ViewMode]Weights{
	model.ViewMode5m:      {0.25, 0.15, 0.15, 0.25, 0.20},
	model.ViewMode30m:     {0.30, 0.20, 0.15, 0.20, 0.15},
	model.ViewMode1h:      {0.35, 0.20, 0.15, 0.20, 0.10},
	model.ViewMode4h:      {0.40, 0.25, 0.15, 0.15, 0.05},
	model.ViewModeAllTime: {0.45, 0.30, 0.10, 0.10, 0.05},
}

// DefaultWeights is the base weighting used outside any recognized view.
var DefaultWeights = Weights{BuyPressure: 0.35, NetBuyVolume: 0.20, TxnsVelocity: 0.15, PriceMomentum: 0.20, SSEMomentum: 0.10}

func weightsFor(view model.ViewMode) Weights {
	if w, ok := weightsByView[view]; ok {
		return w
	}
	return DefaultWeights
}

// Score is the computed momentum score for one token.
type Score struct {
	Value   float64
	HasData bool
}

// Engine holds the rolling per-token buffers plus MVP selection state.
type Engine struct {
	mu      sync.Mutex
	buffers map[string][]Snapshot
	hits    int64 // atomic: total RecordSnapshot calls, for diagnostics

	mvpMu      sync.Mutex
	mvpAddress string
	mvpSince   time.Time
}

// NewEngine creates an empty scoring engine.
func NewEngine() *Engine {
	return &Engine{buffers: make(map[string][]Snapshot)}
}

// RecordSnapshot appends a sample to tokenID's buffer, trimming to the
// last bufferWindow entries.
func (e *Engine) RecordSnapshot(tokenID string, mc, vol float64) {
	atomic.AddInt64(&e.hits, 1)

	e.mu.Lock()
	defer e.mu.Unlock()
	buf := append(e.buffers[tokenID], Snapshot{At: time.Now(), MC: mc, Vol: vol})
	if len(buf) > bufferWindow {
		buf = buf[len(buf)-bufferWindow:]
	}
	e.buffers[tokenID] = buf
}

// Forget drops tokenID's buffer, used on eviction.
func (e *Engine) Forget(tokenID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.buffers, tokenID)
}

// sseMomentum computes the blended short-window MC momentum as a fraction,
// using a weighted average of slope over the last 2-6 samples. hasData
// requires at least 2 samples.
func (e *Engine) sseMomentum(tokenID string) (raw float64, hasData bool) {
	e.mu.Lock()
	buf := append([]Snapshot(nil), e.buffers[tokenID]...)
	e.mu.Unlock()

	if len(buf) < 2 {
		return 0, false
	}

	span := len(buf)
	if span > 6 {
		span = 6
	}
	recent := buf[len(buf)-span:]

	var weightedSum, weightTotal float64
	for i := 1; i < len(recent); i++ {
		prev, cur := recent[i-1], recent[i]
		if prev.MC <= 0 {
			continue
		}
		slope := (cur.MC - prev.MC) / prev.MC
		weight := float64(i) // later samples weigh more
		weightedSum += slope * weight
		weightTotal += weight
	}
	if weightTotal == 0 {
		return 0, true
	}
	return weightedSum / weightTotal, true
}

// Compute blends SSE-short momentum with REST 5m metrics into the final
// score for view. metricsFresh gates whether the REST sub-scores
// contribute at all; the SSE component always contributes if available.
func (e *Engine) Compute(tokenID string, tx *model.TxWindow, lastMetricsUpdate time.Time, view model.ViewMode) Score {
	w := weightsFor(view)
	metricsFresh := tx != nil && time.Since(lastMetricsUpdate) <= model.MetricsFreshness

	var buyPressureScore, netBuyScore, txnsScore, priceScore float64
	if metricsFresh {
		total := tx.Buys + tx.Sells
		buyPressure := 0.5
		if total > 0 {
			buyPressure = float64(tx.Buys) / float64(total)
		}
		netBuyVolume := tx.BuyUSD - tx.SellUSD

		buyPressureScore = (buyPressure - 0.5) * 20
		netBuyScore = signedLog10(netBuyVolume) * 2
		txnsScore = math.Min(float64(total)/10, 10)
		priceScore = tx.PriceChangePct * 2
	}

	rawSSE, hasSSE := e.sseMomentum(tokenID)
	sseScore := rawSSE * 100

	score := w.BuyPressure*buyPressureScore +
		w.NetBuyVolume*netBuyScore +
		w.TxnsVelocity*txnsScore +
		w.PriceMomentum*priceScore +
		w.SSEMomentum*sseScore

	return Score{Value: score, HasData: metricsFresh || hasSSE}
}

func signedLog10(v float64) float64 {
	sign := 1.0
	if v < 0 {
		sign = -1.0
	}
	abs := math.Abs(v)
	if abs < 1 {
		abs = 1
	}
	return sign * math.Log10(abs)
}

// Candidate is one Top10 entry handed to SelectMVP.
type Candidate struct {
	Address    string
	Score      Score
	Multiplier float64
}

// SelectMVP picks the maximum-score candidate, ties broken by higher
// multiplier, and tracks mvp_since across calls: it is set on first
// occurrence of a given winner and reset when the winner changes.
func (e *Engine) SelectMVP(candidates []Candidate) (addr string, since time.Time, ok bool) {
	if len(candidates) == 0 {
		return "", time.Time{}, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score.Value > best.Score.Value ||
			(c.Score.Value == best.Score.Value && c.Multiplier > best.Multiplier) {
			best = c
		}
	}

	e.mvpMu.Lock()
	defer e.mvpMu.Unlock()
	if e.mvpAddress != best.Address {
		e.mvpAddress = best.Address
		e.mvpSince = time.Now()
	}
	return e.mvpAddress, e.mvpSince, true
}

// HolderCandidate is one holder-list entry handed to SelectHolderMVP.
type HolderCandidate struct {
	Address    string
	Multiplier float64 // current_mc / holder_spotted_mc
	CurrentMC  float64
	HolderPeak float64
	Volume24h  float64
	Rank       int
}

// SelectHolderMVP implements the independent holder-list scoring
// algorithm (spec §4.5), returning the winning address.
func SelectHolderMVP(candidates []HolderCandidate) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	type scored struct {
		addr  string
		score float64
	}
	var best scored
	for i, c := range candidates {
		multComponent := math.Min(c.Multiplier/10, 1) * 100
		peakComponent := 0.0
		if c.HolderPeak > 0 {
			peakComponent = (c.CurrentMC / c.HolderPeak) * 100
		}
		volComponent := math.Min(c.Volume24h/100000, 1) * 100
		rankComponent := math.Max(0, 110-10*float64(c.Rank))

		score := 0.40*multComponent + 0.30*peakComponent + 0.20*volComponent + 0.10*rankComponent
		if i == 0 || score > best.score {
			best = scored{addr: c.addr(), score: score}
		}
	}
	return best.addr, true
}

func (c HolderCandidate) addr() string { return c.Address }
