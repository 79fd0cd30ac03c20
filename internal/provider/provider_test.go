package provider_test

import (
	"context"
	"testing"

	"github.com/dexter-labs/tokentracker/internal/provider"
	"github.com/stretchr/testify/assert"
)

type stubProvider struct{ name string }

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Listings(context.Context, string) ([]provider.Listing, error) {
	return nil, nil
}
func (s *stubProvider) BatchMetrics(context.Context, []string) (map[string]*provider.MetricsResult, error) {
	return nil, nil
}
func (s *stubProvider) OpenSSE(context.Context, string) (provider.SSEStream, error) { return nil, nil }

func TestRegistryRegisterGetList(t *testing.T) {
	r := provider.NewRegistry()
	r.Register(&stubProvider{name: "dexscreener"})

	p, ok := r.Get("dexscreener")
	assert.True(t, ok)
	assert.Equal(t, "dexscreener", p.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"dexscreener"}, r.List())
}
