package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jotline/jotline/internal/logger"
)

func TestHTTPTokenClient_AnonToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tokens/anon", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"anon-abc123"}`))
	}))
	defer srv.Close()

	c := NewHTTPTokenClient(srv.URL, time.Second, logger.Nop())
	token, err := c.AnonToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "anon-abc123", token)
}

func TestHTTPTokenClient_AnonToken_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPTokenClient(srv.URL, time.Second, logger.Nop())
	_, err := c.AnonToken(context.Background())
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestHTTPTokenClient_AnonToken_EmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":""}`))
	}))
	defer srv.Close()

	c := NewHTTPTokenClient(srv.URL, time.Second, logger.Nop())
	_, err := c.AnonToken(context.Background())
	assert.Error(t, err)
}
