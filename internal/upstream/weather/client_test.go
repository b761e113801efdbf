package weather

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/upstream/httpjson"
)

func TestCurrent_BuildsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Lewiston", q.Get("q"))
		assert.Equal(t, "key-1", q.Get("appid"))
		assert.Equal(t, "imperial", q.Get("units"))
		_, _ = w.Write([]byte(`{"name":"Lewiston","main":{"temp":64.4}}`))
	}))
	defer srv.Close()

	c := New(Config{
		BaseURL: srv.URL + "/data/2.5/weather",
		APIKey:  "key-1",
		Units:   "imperial",
		HTTP:    httpjson.Config{Timeout: time.Second},
	}, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))

	body, err := c.Current(context.Background(), "Lewiston")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Lewiston","main":{"temp":64.4}}`, string(body))
}

func TestCurrent_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, HTTP: httpjson.Config{Timeout: time.Second}},
		slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))

	_, err := c.Current(context.Background(), "Boise")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamFetch)
	assert.Contains(t, err.Error(), `"Boise"`)
}
