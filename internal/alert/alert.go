// Package alert sends the boolean-gated outbound notification fired on a
// tier-3 multiplier crossing (spec §4.6.5). Grounded on the teacher's
// observability.PagerDutyClient: the same enabled+key gate, the same
// "disabled ⇒ no-op, never an error" contract.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Config gates whether the sink fires at all.
type Config struct {
	Enabled    bool
	APIKey     string
	WebhookURL string
	Timeout    time.Duration
}

// NewConfig derives a Config from an API key and webhook URL: the sink is
// enabled only when both are present.
func NewConfig(apiKey, webhookURL string) Config {
	return Config{
		Enabled:    apiKey != "" && webhookURL != "",
		APIKey:     apiKey,
		WebhookURL: webhookURL,
		Timeout:    10 * time.Second,
	}
}

// Sink posts tier-3 crossing notifications to the configured webhook.
type Sink struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

// NewSink builds an alert sink. A disabled sink's TierThreeCrossing is a
// guaranteed no-op, never an error — callers always call it unconditionally.
func NewSink(cfg Config, logger zerolog.Logger) *Sink {
	return &Sink{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "alert").Logger(),
	}
}

type crossingPayload struct {
	APIKey         string  `json:"api_key"`
	ContractAddr   string  `json:"contract_address"`
	Name           string  `json:"name"`
	Symbol         string  `json:"symbol"`
	PeakMultiplier float64 `json:"peak_multiplier"`
	CurrentMC      float64 `json:"current_mc"`
	FiredAt        int64   `json:"fired_at_ms"`
}

// TierThreeCrossing notifies the webhook of a tier-3 multiplier crossing.
// The caller MUST set the token's announced flag regardless of whether
// this call is enabled or succeeds — re-announcement suppression lives in
// the orchestrator, not here (spec §4.6.5).
func (s *Sink) TierThreeCrossing(ctx context.Context, addr, name, symbol string, peakMultiplier, currentMC float64) {
	if !s.cfg.Enabled {
		s.logger.Debug().Str("address", addr).Msg("alert sink disabled, crossing suppressed")
		return
	}

	payload := crossingPayload{
		APIKey:         s.cfg.APIKey,
		ContractAddr:   addr,
		Name:           name,
		Symbol:         symbol,
		PeakMultiplier: peakMultiplier,
		CurrentMC:      currentMC,
		FiredAt:        time.Now().UnixMilli(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("address", addr).Msg("failed to marshal alert payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build alert request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Str("address", addr).Msg("alert webhook request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn().Int("status", resp.StatusCode).Str("address", addr).Msg("alert webhook returned non-2xx")
		return
	}
	s.logger.Info().Str("address", addr).Float64("peak_multiplier", peakMultiplier).Msg("tier-3 crossing alert dispatched")
}
