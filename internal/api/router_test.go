package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dexter-labs/tokentracker/internal/alert"
	"github.com/dexter-labs/tokentracker/internal/api"
	"github.com/dexter-labs/tokentracker/internal/model"
	"github.com/dexter-labs/tokentracker/internal/provider"
	"github.com/dexter-labs/tokentracker/internal/ratelimiter"
	"github.com/dexter-labs/tokentracker/internal/scorer"
	"github.com/dexter-labs/tokentracker/internal/sse"
	"github.com/dexter-labs/tokentracker/internal/store"
	"github.com/dexter-labs/tokentracker/internal/tracker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopProvider never returns candidates — the router tests drive the
// tracker's read/control surface directly rather than its background
// discovery loops, so a no-op upstream is sufficient.
type noopProvider struct{}

func (noopProvider) Name() string { return "noop" }
func (noopProvider) Listings(context.Context, string) ([]provider.Listing, error) {
	return nil, nil
}
func (noopProvider) BatchMetrics(context.Context, []string) (map[string]*provider.MetricsResult, error) {
	return nil, nil
}
func (noopProvider) OpenSSE(context.Context, string) (provider.SSEStream, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (http.Handler, *tracker.Tracker) {
	t.Helper()
	st, err := store.New("", filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	limits := ratelimiter.NewSet(5, 5, 5, 5)
	sseMgr := sse.NewManager(noopProvider{}, 5, time.Millisecond, zerolog.Nop())
	scoreEng := scorer.NewEngine()
	alertSink := alert.NewSink(alert.NewConfig("", ""), zerolog.Nop())

	trk := tracker.New(st, noopProvider{}, limits, sseMgr, scoreEng, alertSink, zerolog.Nop())

	r := api.NewRouter(trk, zerolog.Nop(), api.Config{RateLimitRPS: 1000, RateLimitBurst: 1000, MaxBodyBytes: 1 << 20})
	return r, trk
}

func TestHealthz(t *testing.T) {
	r, _ := newTestServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTopEmptyByDefault(t *testing.T) {
	r, _ := newTestServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tokens/top", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Empty(t, out)
}

func TestBlacklistAddListRemove(t *testing.T) {
	r, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"contract_address": "0xaaa", "name": "Bad Token"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/blacklist", bytes.NewReader(body))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/blacklist", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []model.BlacklistEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "0xaaa", entries[0].ContractAddress)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/blacklist/0xaaa", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBlacklistAddRejectsEmptyAddress(t *testing.T) {
	r, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"contract_address": "", "name": "x"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/blacklist", bytes.NewReader(body))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModeRoundTrip(t *testing.T) {
	r, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"mode": "holder"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mode", bytes.NewReader(body))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/mode", nil)
	r.ServeHTTP(w, req)
	var out map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "holder", out["mode"])
}

func TestSetModeRejectsUnknownValue(t *testing.T) {
	r, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"mode": "bogus"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/mode", bytes.NewReader(body))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewModeRoundTrip(t *testing.T) {
	r, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"view_mode": "1h"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/view-mode", bytes.NewReader(body))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/view-mode", nil)
	r.ServeHTTP(w, req)
	var out map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "1h", out["view_mode"])
}

func TestAlertTiersRoundTrip(t *testing.T) {
	r, _ := newTestServer(t)

	tiers := model.AlertTiers{Tier1: 1.5, Tier2: 2.0, Tier3: 3.0}
	body, _ := json.Marshal(tiers)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/alert-tiers", bytes.NewReader(body))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/alert-tiers", nil)
	r.ServeHTTP(w, req)
	var got model.AlertTiers
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, tiers, got)
}

func TestMCCheckNotFound(t *testing.T) {
	r, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"contract_address": "0xmissing"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test/mc-check", bytes.NewReader(body))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCountsReturnsZeroValues(t *testing.T) {
	r, _ := newTestServer(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tokens/counts", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var counts map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	for _, key := range []string{"degen", "holder", "ex-holder", "blacklist"} {
		assert.Equal(t, 0, counts[key], "count %s", key)
	}
}
