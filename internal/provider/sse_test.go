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

func TestOpenSSEDecodesFramesAndSkipsGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		w.Write([]byte("data: not json at all\n\n"))
		w.Write([]byte("data: {\"a\":\"0xaaa\",\"c\":\"solana\",\"p\":1.5,\"t\":1000,\"t_p\":999}\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
	}))
	defer srv.Close()

	pool := provider.NewConnectionPool(provider.DefaultPoolConfig())
	p := provider.NewDexSSEProvider(srv.URL, pool, zerolog.Nop())

	stream, err := p.OpenSSE(context.Background(), "0xaaa")
	require.NoError(t, err)
	defer stream.Close()

	frame, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "0xaaa", frame.Address)
	assert.Equal(t, 1.5, frame.Price)
}

func TestOpenSSENon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	pool := provider.NewConnectionPool(provider.DefaultPoolConfig())
	p := provider.NewDexSSEProvider(srv.URL, pool, zerolog.Nop())

	_, err := p.OpenSSE(context.Background(), "0xaaa")
	assert.Error(t, err)
}
