package httpjson

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news_aggregator/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	return New(cfg, testLogger())
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "TestAgent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"temp":71.2}`))
	}))
	defer srv.Close()

	c := newClient(Config{UserAgent: "TestAgent"})
	body, err := c.Get(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.JSONEq(t, `{"temp":71.2}`, string(body))
}

func TestGet_BearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newClient(Config{BearerToken: "secret"}).Get(context.Background(), srv.URL)
	require.NoError(t, err)

	_, err = newClient(Config{}).Get(context.Background(), srv.URL)
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.ErrorIs(t, err, domain.ErrUpstreamFetch)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newClient(Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond})
	body, err := c.Get(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newClient(Config{MaxAttempts: 3, InitialBackoff: time.Millisecond})
	_, err := c.Get(context.Background(), srv.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamFetch)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := newClient(Config{}).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamFetch)
}

func TestGet_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(Config{Timeout: 20 * time.Millisecond}, testLogger())
	_, err := c.Get(context.Background(), srv.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamFetch)
}

func TestGetInto_Decodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"KLEW"}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, newClient(Config{}).GetInto(context.Background(), srv.URL, &out))
	assert.Equal(t, "KLEW", out.Name)
}

func TestCalculateBackoff(t *testing.T) {
	c := newClient(Config{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond})

	assert.Equal(t, 100*time.Millisecond, c.calculateBackoff(1))
	assert.Equal(t, 200*time.Millisecond, c.calculateBackoff(2))
	assert.Equal(t, 300*time.Millisecond, c.calculateBackoff(3))
}

func TestStatusError_Is(t *testing.T) {
	err := error(&StatusError{URL: "http://x", StatusCode: 503})
	assert.True(t, errors.Is(err, domain.ErrUpstreamFetch))
}
