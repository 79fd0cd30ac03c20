package provider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dexter-labs/tokentracker/internal/provider"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingsAcceptsBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"tokenAddress":"0xaaa","name":"Aaa","symbol":"AAA","chainId":"solana","imageUrl":"http://x/a.png"},
			{"address":"0xbbb","name":"Bbb","symbol":"BBB","chain":"ethereum"}
		]`))
	}))
	defer srv.Close()

	pool := provider.NewConnectionPool(provider.DefaultPoolConfig())
	p := provider.NewDexListingsProvider(srv.URL, pool, zerolog.Nop())

	listings, err := p.Listings(context.Background(), "solana")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "0xaaa", listings[0].ContractAddress)
	assert.Equal(t, "http://x/a.png", listings[0].LogoURL)
}

func TestListingsAcceptsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tokens":[{"tokenAddress":"0xccc","name":"Ccc","symbol":"CCC","chainId":"SOLANA"}]}`))
	}))
	defer srv.Close()

	pool := provider.NewConnectionPool(provider.DefaultPoolConfig())
	p := provider.NewDexListingsProvider(srv.URL, pool, zerolog.Nop())

	listings, err := p.Listings(context.Background(), "solana")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "0xccc", listings[0].ContractAddress)
}

func TestListingsFiltersByChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"tokenAddress":"0xaaa","chainId":"ethereum"}]`))
	}))
	defer srv.Close()

	pool := provider.NewConnectionPool(provider.DefaultPoolConfig())
	p := provider.NewDexListingsProvider(srv.URL, pool, zerolog.Nop())

	listings, err := p.Listings(context.Background(), "solana")
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestListingsNon200IsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	pool := provider.NewConnectionPool(provider.DefaultPoolConfig())
	p := provider.NewDexListingsProvider(srv.URL, pool, zerolog.Nop())

	listings, err := p.Listings(context.Background(), "solana")
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestListingsMalformedBodyIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	pool := provider.NewConnectionPool(provider.DefaultPoolConfig())
	p := provider.NewDexListingsProvider(srv.URL, pool, zerolog.Nop())

	listings, err := p.Listings(context.Background(), "solana")
	require.NoError(t, err)
	assert.Empty(t, listings)
}
