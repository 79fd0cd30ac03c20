// Package tracker is the orchestrator: the single owner of the mutable
// token map, running the discovery, SSE-reconciliation, background-REST,
// and eviction loops, and exposing the Read/Control API projections.
//
// Implementation grounding: each loop is modeled as the teacher's
// HealthPoller.pollLoop ticker-and-select shape, one loop per concern,
// each cancellable via its own context.CancelFunc, coordinated the way
// main.go coordinates the healthPoller and modelSyncer lifecycles
// (spec §4.6).
package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dexter-labs/tokentracker/internal/alert"
	"github.com/dexter-labs/tokentracker/internal/lock"
	"github.com/dexter-labs/tokentracker/internal/model"
	"github.com/dexter-labs/tokentracker/internal/provider"
	"github.com/dexter-labs/tokentracker/internal/ratelimiter"
	"github.com/dexter-labs/tokentracker/internal/scorer"
	"github.com/dexter-labs/tokentracker/internal/sse"
	"github.com/dexter-labs/tokentracker/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config bundles the orchestrator's tunables, independent of where they
// came from (env vars, flags, or test literals).
type Config struct {
	TargetChain       string
	DiscoveryFanoutB  int // batch size cap for discovery metrics lookups
	MetricsBatchCap   int // background REST batch size cap
}

func defaultConfig() Config {
	return Config{TargetChain: "solana", DiscoveryFanoutB: 30, MetricsBatchCap: 30}
}

type failedDiscovery struct {
	reason    string
	retryAt   time.Time
}

// Tracker is the orchestrator. The token map is its only shared mutable
// structure (spec §5); every read projection takes the read lock, copies
// what it needs, and releases it before doing further work.
type Tracker struct {
	cfg      Config
	store    store.Store
	provider provider.Provider
	limits   *ratelimiter.Set
	sseMgr   *sse.Manager
	scoreEng *scorer.Engine
	alertSink *alert.Sink
	logger   zerolog.Logger

	debounce *lock.KeyedMutex

	mu      sync.RWMutex
	tokens  map[string]*model.Token // keyed by contract address
	lastSave map[string]time.Time
	failed  map[string]failedDiscovery

	modeMu    sync.RWMutex
	mode      model.Mode
	viewMode  model.ViewMode
	tiers     model.AlertTiers

	leadersMu sync.Mutex
	lastLeaders []string

	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs the orchestrator. It does not start any loop — call Run.
func New(
	st store.Store,
	p provider.Provider,
	limits *ratelimiter.Set,
	sseMgr *sse.Manager,
	scoreEng *scorer.Engine,
	alertSink *alert.Sink,
	logger zerolog.Logger,
) *Tracker {
	t := &Tracker{
		cfg:       defaultConfig(),
		store:     st,
		provider:  p,
		limits:    limits,
		sseMgr:    sseMgr,
		scoreEng:  scoreEng,
		alertSink: alertSink,
		logger:    logger.With().Str("component", "tracker").Logger(),
		debounce:  lock.NewKeyedMutex(),
		tokens:    make(map[string]*model.Token),
		lastSave:  make(map[string]time.Time),
		failed:    make(map[string]failedDiscovery),
		mode:      model.ModeDegen,
		viewMode:  model.ViewModeAllTime,
		tiers:     model.DefaultAlertTiers(),
	}
	sseMgr.OnPriceUpdate(t.handleSSEFrame)
	return t
}

// Hydrate loads every row the store still holds into the token map before
// the loops start. Non-holder rows older than the eviction window are
// loaded too; the eviction loop sweeps them out on its first tick rather
// than Hydrate re-deriving that rule. If an address is already tracked
// (Hydrate called more than once, or a loop already populated it), the
// earlier of the two spotted_at values wins: spotted_at must never regress
// on reload (spec §3.1, invariant #2).
func (t *Tracker) Hydrate(ctx context.Context) error {
	rows, err := t.store.GetTokensSince(ctx, time.Time{})
	if err != nil {
		return fmt.Errorf("hydrate tokens: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tok := range rows {
		if existing, ok := t.tokens[tok.ContractAddress]; ok && existing.SpottedAt.Before(tok.SpottedAt) {
			tok.SpottedAt = existing.SpottedAt
		}
		t.tokens[tok.ContractAddress] = tok
	}
	t.logger.Info().Int("count", len(rows)).Msg("hydrated tokens from store")
	return nil
}

// Run starts the four orchestrator loops and blocks until ctx is
// cancelled, then tears every loop down and flushes the SSE manager.
func (t *Tracker) Run(ctx context.Context) {
	t.startLoops(ctx)
	<-ctx.Done()
	t.Shutdown()
}

// startLoops spins up the four ticker-driven loops under ctx without
// blocking. Callers that need the loops to outlive a single request
// (Purge) pass a long-lived context rather than the request's.
func (t *Tracker) startLoops(ctx context.Context) {
	t.startLoop(ctx, "discovery", time.Second, t.discoveryTick)
	t.startLoop(ctx, "sse_reconcile", 5*time.Second, t.sseReconcileTick)
	t.startLoop(ctx, "background_rest", 15*time.Second, t.backgroundRESTTick)
	t.startLoop(ctx, "eviction", time.Minute, t.evictionTick)
}

// startLoop runs fn once immediately, then on every tick, recovering from
// panics so one bad iteration never kills the process (spec §7 — the one
// standard-library-only ambient concern; see DESIGN.md).
func (t *Tracker) startLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	loopCtx, cancel := context.WithCancel(ctx)
	t.cancels = append(t.cancels, cancel)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		t.runIteration(loopCtx, name, fn)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				t.runIteration(loopCtx, name, fn)
			}
		}
	}()
}

func (t *Tracker) runIteration(ctx context.Context, name string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Str("loop", name).Interface("panic", r).Msg("loop iteration panicked, continuing")
		}
	}()
	fn(ctx)
}

// Shutdown cancels all loops, disconnects every SSE connection, and waits
// for everything to settle (spec §5 "system shutdown" clause).
func (t *Tracker) Shutdown() {
	for _, cancel := range t.cancels {
		cancel()
	}
	t.wg.Wait()
	t.sseMgr.DisconnectAll()
}

// --- 4.6.1 Discovery loop ---------------------------------------------

func (t *Tracker) discoveryTick(ctx context.Context) {
	if err := t.limits.Listings.Wait(ctx); err != nil {
		return
	}

	listings, err := t.provider.Listings(ctx, t.cfg.TargetChain)
	if err != nil {
		t.logger.Warn().Err(err).Msg("listings fetch failed")
		return
	}

	now := time.Now()
	var candidates []provider.Listing
	t.mu.RLock()
	for _, l := range listings {
		if _, tracked := t.tokens[l.ContractAddress]; tracked {
			continue
		}
		if fd, failed := t.failed[l.ContractAddress]; failed && now.Before(fd.retryAt) {
			continue
		}
		candidates = append(candidates, l)
	}
	t.mu.RUnlock()

	candidates = t.dropBlacklisted(ctx, candidates)

	if len(candidates) == 0 {
		return
	}

	for _, batch := range chunkListings(candidates, t.cfg.DiscoveryFanoutB) {
		t.discoverBatch(ctx, batch)
	}
}

// dropBlacklisted removes candidates the store has blacklisted, so a
// blacklisted address still present in the upstream listings feed is never
// re-discovered (spec §4.6.1 step 2, invariant "no blacklisted address
// ever appears in a projection").
func (t *Tracker) dropBlacklisted(ctx context.Context, candidates []provider.Listing) []provider.Listing {
	out := candidates[:0]
	for _, l := range candidates {
		blocked, err := t.store.BlacklistContains(ctx, l.ContractAddress)
		if err != nil {
			t.logger.Warn().Err(err).Str("address", l.ContractAddress).Msg("blacklist check failed, skipping candidate")
			continue
		}
		if blocked {
			continue
		}
		out = append(out, l)
	}
	return out
}

func chunkListings(items []provider.Listing, size int) [][]provider.Listing {
	var out [][]provider.Listing
	for size > 0 && len(items) > 0 {
		n := size
		if n > len(items) {
			n = len(items)
		}
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}

func (t *Tracker) discoverBatch(ctx context.Context, batch []provider.Listing) {
	addrs := make([]string, len(batch))
	byAddr := make(map[string]provider.Listing, len(batch))
	for i, l := range batch {
		addrs[i] = l.ContractAddress
		byAddr[l.ContractAddress] = l
	}

	if err := t.limits.Metrics.Wait(ctx); err != nil {
		return
	}
	results, err := t.provider.BatchMetrics(ctx, addrs)
	if err != nil {
		t.logger.Warn().Err(err).Msg("batch metrics fetch failed")
		return
	}

	now := time.Now()
	for _, addr := range addrs {
		listing := byAddr[addr]
		res, ok := results[addr]
		if !ok || res.MarketCap == 0 {
			t.markFailed(addr, "no usable market cap", now)
			continue
		}

		tok := &model.Token{
			ID:              uuid.NewString(),
			ContractAddress: addr,
			Name:            firstNonEmpty(res.Name, listing.Name),
			Symbol:          firstNonEmpty(res.Symbol, listing.Symbol),
			ChainShort:      listing.Chain,
			LogoURL:         listing.LogoURL,
			SpottedAt:       now,
			SpottedMC:       res.MarketCap,
			CurrentMC:       res.MarketCap,
			PeakMC:          res.MarketCap,
			PeakMultiplier:  1.0,
			Volume24h:       res.Volume24h,
			PriceUSD:        res.PriceUSD,
			TotalSupply:     res.TotalSupply,
			MC10sAgo:        res.MarketCap,
			Vol10sAgo:       res.Volume24h,
			Snap10sAt:       now,
			Source:          model.SourceDegen,
			LastUpdated:     now,
		}
		if w, ok := res.TxWindows["5m"]; ok {
			tok.TxMetrics = &model.TxWindow{Buys: w.Buys, Sells: w.Sells, BuyUSD: w.BuyUSD, SellUSD: w.SellUSD, PriceChangePct: w.PriceChangePct}
			tok.LastMetricsUpdate = now
		}

		t.addToken(tok)
		t.persist(ctx, tok, true)
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func (t *Tracker) markFailed(addr, reason string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed[addr] = failedDiscovery{reason: reason, retryAt: now.Add(model.DiscoveryRetryCooldown)}
}

func (t *Tracker) addToken(tok *model.Token) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[tok.ContractAddress] = tok
}

// --- 4.6.5 Peak and tier-crossing --------------------------------------

// pendingAlert carries the data a tier-3 crossing needs, deferred until
// after the caller releases t.mu so the synchronous webhook POST in
// alert.Sink never runs while the orchestrator's lock is held.
type pendingAlert struct {
	addr, name, symbol        string
	peakMultiplier, currentMC float64
}

// applyPeakCrossing mutates tok's peak fields under the caller's lock and,
// on a first tier-3 crossing, returns the alert to fire once unlocked.
func (t *Tracker) applyPeakCrossing(tok *model.Token) *pendingAlert {
	if tok.SpottedMC <= 0 {
		return nil
	}
	mult := tok.CurrentMC / tok.SpottedMC
	prevPeak := tok.PeakMultiplier
	if mult > tok.PeakMultiplier {
		tok.PeakMultiplier = mult
		tok.PeakMC = tok.CurrentMC
	}

	t.modeMu.RLock()
	tiers := t.tiers
	t.modeMu.RUnlock()

	if prevPeak < tiers.Tier3 && tok.PeakMultiplier >= tiers.Tier3 && tok.Source == model.SourceDegen && !tok.Announced {
		tok.Announced = true
		return &pendingAlert{
			addr: tok.ContractAddress, name: tok.Name, symbol: tok.Symbol,
			peakMultiplier: tok.PeakMultiplier, currentMC: tok.CurrentMC,
		}
	}
	return nil
}

// fireAlert dispatches a, if non-nil, on its own goroutine — called only
// after the caller has released t.mu.
func (t *Tracker) fireAlert(ctx context.Context, a *pendingAlert) {
	if a == nil {
		return
	}
	go t.alertSink.TierThreeCrossing(ctx, a.addr, a.name, a.symbol, a.peakMultiplier, a.currentMC)
}

// --- 4.6.3 SSE frame handler --------------------------------------------

func (t *Tracker) handleSSEFrame(upd sse.PriceUpdate) {
	ctx := context.Background()

	t.mu.Lock()
	tok, ok := t.tokens[upd.Address]
	if !ok {
		t.mu.Unlock()
		return
	}

	now := time.Now()
	if now.Sub(tok.Snap10sAt) >= model.Snap10sWindow {
		tok.MC10sAgo = tok.CurrentMC
		tok.Vol10sAgo = tok.Volume24h
		tok.Snap10sAt = now
	}

	tok.PriceUSD = upd.Price
	tok.LastUpdated = now
	var alert *pendingAlert
	if tok.TotalSupply > 0 {
		tok.PreviousMC = tok.CurrentMC
		tok.CurrentMC = upd.Price * tok.TotalSupply
		alert = t.applyPeakCrossing(tok)
	}
	snapshot := *tok
	t.mu.Unlock()

	t.fireAlert(ctx, alert)
	t.scoreEng.RecordSnapshot(snapshot.ContractAddress, snapshot.CurrentMC, snapshot.Volume24h)
	t.persist(ctx, &snapshot, false)
}

// persist writes tok to the store, debounced per-token at ≥5s unless
// force is set (used for the very first write on discovery).
func (t *Tracker) persist(ctx context.Context, tok *model.Token, force bool) {
	unlock := t.debounce.Lock(tok.ContractAddress)
	defer unlock()

	t.mu.RLock()
	last := t.lastSave[tok.ContractAddress]
	t.mu.RUnlock()

	now := time.Now()
	if !force && now.Sub(last) < model.MinDBWriteInterval {
		return
	}

	if err := t.store.UpsertToken(ctx, tok); err != nil {
		t.logger.Error().Err(err).Str("address", tok.ContractAddress).Msg("persist token failed")
		return
	}
	_ = t.store.AppendPriceHistory(ctx, tok.ID, tok.CurrentMC, tok.Volume24h)

	t.mu.Lock()
	t.lastSave[tok.ContractAddress] = now
	t.mu.Unlock()
}

// --- 4.6.2 SSE reconciliation loop ---------------------------------------

func (t *Tracker) sseReconcileTick(ctx context.Context) {
	top := t.Top10(t.currentViewMode())
	addrs := make([]string, len(top))
	for i, tok := range top {
		addrs[i] = tok.ContractAddress
	}
	t.sseMgr.UpdateLeaders(ctx, addrs)

	// Recorded here, not inside Top10, so a read-only Top10/MVP call from
	// the API never reshuffles the background-REST exclusion set — only
	// the loop that actually drives SSE subscriptions does.
	t.leadersMu.Lock()
	t.lastLeaders = addrs
	t.leadersMu.Unlock()
}

func (t *Tracker) currentViewMode() model.ViewMode {
	t.modeMu.RLock()
	defer t.modeMu.RUnlock()
	return t.viewMode
}

// --- 4.6.4 Background REST loop ------------------------------------------

func (t *Tracker) backgroundRESTTick(ctx context.Context) {
	leaders := map[string]bool{}
	t.leadersMu.Lock()
	for _, a := range t.lastLeaders {
		leaders[a] = true
	}
	t.leadersMu.Unlock()

	now := time.Now()
	t.mu.RLock()
	var targets []string
	for addr, tok := range t.tokens {
		if leaders[addr] {
			continue
		}
		if tok.IsHolder() || now.Sub(tok.SpottedAt) <= model.MonitoringWindow {
			targets = append(targets, addr)
		}
	}
	t.mu.RUnlock()

	for _, batch := range chunkAddrs(targets, t.cfg.MetricsBatchCap) {
		t.refreshBatch(ctx, batch)
		time.Sleep(time.Second) // inter-batch pause, spec §5 bound
	}

	t.evictionTick(ctx)
}

func chunkAddrs(addrs []string, size int) [][]string {
	var out [][]string
	for size > 0 && len(addrs) > 0 {
		n := size
		if n > len(addrs) {
			n = len(addrs)
		}
		out = append(out, addrs[:n])
		addrs = addrs[n:]
	}
	return out
}

func (t *Tracker) refreshBatch(ctx context.Context, addrs []string) {
	if err := t.limits.Metrics.Wait(ctx); err != nil {
		return
	}
	results, err := t.provider.BatchMetrics(ctx, addrs)
	if err != nil {
		t.logger.Warn().Err(err).Msg("background metrics fetch failed")
		return
	}

	now := time.Now()
	for _, addr := range addrs {
		res, ok := results[addr]
		if !ok {
			continue // sanity-rejected or missing: skip, token retains prior values
		}

		t.mu.Lock()
		tok, ok := t.tokens[addr]
		if !ok {
			t.mu.Unlock()
			continue
		}

		if now.Sub(tok.Snap10sAt) >= model.Snap10sWindow {
			tok.MC10sAgo = tok.CurrentMC
			tok.Vol10sAgo = tok.Volume24h
			tok.Snap10sAt = now
		}
		if tok.IsHolder() && now.Sub(tok.Snap10mAt) >= model.Snap10mWindow {
			tok.MC10mAgo = tok.CurrentMC
			tok.Snap10mAt = now
		}

		firstObservation := tok.SpottedMC == 0 && res.MarketCap > 0
		tok.PreviousMC = tok.CurrentMC
		tok.CurrentMC = res.MarketCap
		tok.PreviousVolume24h = tok.Volume24h
		tok.Volume24h = res.Volume24h
		tok.PriceUSD = res.PriceUSD
		tok.TotalSupply = res.TotalSupply
		if w, ok := res.TxWindows["5m"]; ok {
			tok.TxMetrics = &model.TxWindow{Buys: w.Buys, Sells: w.Sells, BuyUSD: w.BuyUSD, SellUSD: w.SellUSD, PriceChangePct: w.PriceChangePct}
		}
		tok.LastMetricsUpdate = now
		tok.LastUpdated = now

		if firstObservation {
			tok.SpottedMC = res.MarketCap
			tok.PeakMC = res.MarketCap
			tok.PeakMultiplier = 1.0
			tok.MC10mAgo = res.MarketCap
			tok.Snap10mAt = now
			if tok.IsHolder() {
				tok.HolderSpottedMC = res.MarketCap
				tok.HolderPeakMC = res.MarketCap
				tok.HolderPeakMultiplier = 1.0
			}
			tok.NeedsDataFetch = false
		}

		alert := t.applyPeakCrossing(tok)
		if tok.IsHolder() && tok.HolderSpottedMC > 0 {
			holderMult := tok.CurrentMC / tok.HolderSpottedMC
			if holderMult > tok.HolderPeakMultiplier {
				tok.HolderPeakMultiplier = holderMult
				tok.HolderPeakMC = tok.CurrentMC
			}
		}

		snapshot := *tok
		t.mu.Unlock()

		t.fireAlert(ctx, alert)
		t.scoreEng.RecordSnapshot(snapshot.ContractAddress, snapshot.CurrentMC, snapshot.Volume24h)
		t.persist(ctx, &snapshot, false)
	}
}

// --- 4.6.7 Eviction -------------------------------------------------------

func (t *Tracker) evictionTick(ctx context.Context) {
	now := time.Now()
	t.mu.Lock()
	var evicted []string
	for addr, tok := range t.tokens {
		if tok.Source != model.SourceHolder && now.Sub(tok.SpottedAt) > model.TokenTTL {
			delete(t.tokens, addr)
			delete(t.lastSave, addr)
			evicted = append(evicted, addr)
		}
	}
	t.mu.Unlock()

	for _, addr := range evicted {
		t.scoreEng.Forget(addr)
	}
}

// --- 4.6.6 Holder adoption -------------------------------------------------

// AddHolderToken adopts addr into the holder list at rank. If the token is
// already tracked it is promoted in place; otherwise a degenerate entry is
// created pending data (spec §4.6.6).
func (t *Tracker) AddHolderToken(ctx context.Context, addr string, rank int) error {
	blacklisted, err := t.store.BlacklistContains(ctx, addr)
	if err != nil {
		return fmt.Errorf("check blacklist for holder adoption: %w", err)
	}
	if blacklisted {
		return fmt.Errorf("address %s is blacklisted", addr)
	}

	now := time.Now()
	t.mu.Lock()
	tok, exists := t.tokens[addr]
	if exists {
		tok.Source = model.SourceHolder
		tok.HolderRank = rank
		if tok.HolderSpottedAt.IsZero() {
			tok.HolderSpottedAt = now
		}
		if tok.HolderSpottedMC == 0 && tok.CurrentMC > 0 {
			tok.HolderSpottedMC = tok.CurrentMC
			tok.HolderPeakMC = tok.CurrentMC
			tok.HolderPeakMultiplier = 1.0
		}
	} else {
		tok = &model.Token{
			ID:              uuid.NewString(),
			ContractAddress: addr,
			Source:          model.SourceHolder,
			HolderRank:      rank,
			SpottedAt:       now,
			HolderSpottedAt: now,
			NeedsDataFetch:  true,
			LastUpdated:     now,
		}
		t.tokens[addr] = tok
	}
	snapshot := *tok
	t.mu.Unlock()

	t.persist(ctx, &snapshot, true)
	return nil
}

// --- 4.6.8 Purge -----------------------------------------------------------

// Purge stops all loops, drops every degen token from memory, purges the
// backing store, then restarts the loops on a fresh background context so
// they keep running after this call (and the HTTP request driving it)
// returns. Holder tokens and the blacklist survive (spec §4.6.8).
func (t *Tracker) Purge(ctx context.Context) error {
	t.Shutdown()
	t.cancels = nil

	t.mu.Lock()
	for addr, tok := range t.tokens {
		if tok.Source == model.SourceDegen {
			delete(t.tokens, addr)
			delete(t.lastSave, addr)
			delete(t.failed, addr)
			t.scoreEng.Forget(addr)
		}
	}
	t.mu.Unlock()

	if err := t.store.PurgeDegen(ctx); err != nil {
		return fmt.Errorf("purge degen tokens: %w", err)
	}

	t.startLoops(context.Background())
	return nil
}

// --- Control surface --------------------------------------------------

func (t *Tracker) SetMode(m model.Mode)         { t.modeMu.Lock(); t.mode = m; t.modeMu.Unlock() }
func (t *Tracker) Mode() model.Mode             { t.modeMu.RLock(); defer t.modeMu.RUnlock(); return t.mode }
func (t *Tracker) SetViewMode(v model.ViewMode) { t.modeMu.Lock(); t.viewMode = v; t.modeMu.Unlock() }
func (t *Tracker) ViewMode() model.ViewMode      { return t.currentViewMode() }

func (t *Tracker) SetAlertTiers(ctx context.Context, tiers model.AlertTiers) error {
	t.modeMu.Lock()
	t.tiers = tiers
	t.modeMu.Unlock()
	if err := t.store.SaveAlertTiers(ctx, tiers); err != nil {
		return fmt.Errorf("save alert tiers: %w", err)
	}
	return nil
}

func (t *Tracker) AlertTiers() model.AlertTiers {
	t.modeMu.RLock()
	defer t.modeMu.RUnlock()
	return t.tiers
}

func (t *Tracker) BlacklistAdd(ctx context.Context, addr, name string) error {
	if err := t.store.BlacklistAdd(ctx, addr, name); err != nil {
		return fmt.Errorf("blacklist add: %w", err)
	}
	t.mu.Lock()
	delete(t.tokens, addr)
	delete(t.lastSave, addr)
	t.mu.Unlock()
	t.scoreEng.Forget(addr)
	return nil
}

func (t *Tracker) BlacklistRemove(ctx context.Context, addr string) error {
	if err := t.store.BlacklistRemove(ctx, addr); err != nil {
		return fmt.Errorf("blacklist remove: %w", err)
	}
	return nil
}

func (t *Tracker) BlacklistList(ctx context.Context) ([]model.BlacklistEntry, error) {
	return t.store.BlacklistList(ctx)
}

// --- Read API projections (spec §4.7) ----------------------------------

// Top10 returns up to 10 tokens with peak_multiplier >= tier1 within the
// view's window, sorted by peak_multiplier descending.
func (t *Tracker) Top10(view model.ViewMode) []*model.Token {
	tiers := t.AlertTiers()
	now := time.Now()
	window, bounded := view.Window()

	t.mu.RLock()
	var out []*model.Token
	for _, tok := range t.tokens {
		if tok.PeakMultiplier < tiers.Tier1 {
			continue
		}
		if bounded && now.Sub(tok.SpottedAt) > window {
			continue
		}
		cp := *tok
		out = append(out, &cp)
	}
	t.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].PeakMultiplier > out[j].PeakMultiplier })
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

// HolderList returns every holder-source token sorted by holder_rank.
func (t *Tracker) HolderList() []*model.Token {
	t.mu.RLock()
	var out []*model.Token
	for _, tok := range t.tokens {
		if tok.Source == model.SourceHolder {
			cp := *tok
			out = append(out, &cp)
		}
	}
	t.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].HolderRank < out[j].HolderRank })
	return out
}

// All returns every tracked token sorted by peak_multiplier descending.
func (t *Tracker) All() []*model.Token {
	t.mu.RLock()
	out := make([]*model.Token, 0, len(t.tokens))
	for _, tok := range t.tokens {
		cp := *tok
		out = append(out, &cp)
	}
	t.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].PeakMultiplier > out[j].PeakMultiplier })
	return out
}

// Counts returns per-source token counts plus the blacklist size.
func (t *Tracker) Counts(ctx context.Context) (map[string]int, error) {
	t.mu.RLock()
	counts := map[string]int{"degen": 0, "holder": 0, "ex-holder": 0}
	for _, tok := range t.tokens {
		counts[string(tok.Source)]++
	}
	t.mu.RUnlock()

	bl, err := t.store.BlacklistList(ctx)
	if err != nil {
		return nil, fmt.Errorf("load blacklist for counts: %w", err)
	}
	counts["blacklist"] = len(bl)
	return counts, nil
}

// MVP returns the top-scoring address within the current Top10 under the
// scorer, plus how long it has held the title.
func (t *Tracker) MVP(view model.ViewMode) (addr string, since time.Time, ok bool) {
	top := t.Top10(view)
	candidates := make([]scorer.Candidate, 0, len(top))
	for _, tok := range top {
		score := t.scoreEng.Compute(tok.ContractAddress, tok.TxMetrics, tok.LastMetricsUpdate, view)
		candidates = append(candidates, scorer.Candidate{
			Address:    tok.ContractAddress,
			Score:      score,
			Multiplier: tok.Multiplier(),
		})
	}
	return t.scoreEng.SelectMVP(candidates)
}

// HolderMVP returns the winning address of the independent holder-list
// scoring algorithm (spec §4.5).
func (t *Tracker) HolderMVP() (string, bool) {
	holders := t.HolderList()
	candidates := make([]scorer.HolderCandidate, 0, len(holders))
	for _, tok := range holders {
		candidates = append(candidates, scorer.HolderCandidate{
			Address:    tok.ContractAddress,
			Multiplier: tok.HolderMultiplier(),
			CurrentMC:  tok.CurrentMC,
			HolderPeak: tok.HolderPeakMC,
			Volume24h:  tok.Volume24h,
			Rank:       tok.HolderRank,
		})
	}
	return scorer.SelectHolderMVP(candidates)
}
