package alert_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dexter-labs/tokentracker/internal/alert"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigRequiresBothKeyAndURL(t *testing.T) {
	assert.False(t, alert.NewConfig("", "").Enabled)
	assert.False(t, alert.NewConfig("key", "").Enabled)
	assert.False(t, alert.NewConfig("", "https://example.com").Enabled)
	assert.True(t, alert.NewConfig("key", "https://example.com").Enabled)
}

func TestTierThreeCrossingDisabledIsNoop(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	sink := alert.NewSink(alert.NewConfig("", ""), zerolog.Nop())
	sink.TierThreeCrossing(context.Background(), "0xabc", "Name", "SYM", 1.3, 5000)
	assert.False(t, called, "disabled sink must never call the webhook")
}

func TestTierThreeCrossingPostsPayload(t *testing.T) {
	var received crossingPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := alert.NewSink(alert.NewConfig("test-key", srv.URL), zerolog.Nop())
	sink.TierThreeCrossing(context.Background(), "0xabc", "Name", "SYM", 1.3, 5000)

	assert.Equal(t, "test-key", received.APIKey)
	assert.Equal(t, "0xabc", received.ContractAddr)
	assert.Equal(t, 1.3, received.PeakMultiplier)
	assert.Equal(t, 5000.0, received.CurrentMC)
}

func TestTierThreeCrossingSurvivesNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := alert.NewSink(alert.NewConfig("test-key", srv.URL), zerolog.Nop())
	assert.NotPanics(t, func() {
		sink.TierThreeCrossing(context.Background(), "0xabc", "Name", "SYM", 1.3, 5000)
	})
}

// crossingPayload mirrors the unexported wire struct alert.go posts, so the
// test can decode without reaching into the package internals.
type crossingPayload struct {
	APIKey         string  `json:"api_key"`
	ContractAddr   string  `json:"contract_address"`
	Name           string  `json:"name"`
	Symbol         string  `json:"symbol"`
	PeakMultiplier float64 `json:"peak_multiplier"`
	CurrentMC      float64 `json:"current_mc"`
	FiredAt        int64   `json:"fired_at_ms"`
}
