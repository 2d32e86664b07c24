package phishtank

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, endpoint, apiKey string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Throttle:   500 * time.Millisecond,
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
		Cache:      NewMemoryCache(time.Hour, nil),
		Sleep:      func(time.Duration) {},
	})
	require.NoError(t, err)
	return client
}

func TestCheckVerifiedPhish(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "http://phish.example.tk/login", r.PostFormValue("url"))
		assert.Equal(t, "json", r.PostFormValue("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":{"in_database":true,"phish_id":12345,"verified":true,"submission_time":"2024-08-01T00:00:00Z","verified_time":"2024-08-02T00:00:00Z"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "")
	record := client.Check(context.Background(), "http://phish.example.tk/login")

	require.NotNil(t, record)
	assert.True(t, record.IsPhish())
	assert.Equal(t, "12345", record.PhishID)
	assert.Equal(t, int32(1), calls.Load())

	// Second check must come from cache.
	again := client.Check(context.Background(), "http://phish.example.tk/login")
	assert.True(t, again.IsPhish())
	assert.Equal(t, int32(1), calls.Load(), "cached verdict should not hit the network")

	stats := client.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCheckUnknownURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"in_database":false,"verified":false}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, "")
	record := client.Check(context.Background(), "http://benign.example.com")
	require.NotNil(t, record)
	assert.False(t, record.IsPhish())
	assert.False(t, record.InDatabase)
}

func TestCheckFailsOpen(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		record := newTestClient(t, srv.URL, "").Check(context.Background(), "http://x.example.com")
		require.NotNil(t, record)
		assert.False(t, record.IsPhish())
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		record := newTestClient(t, "http://127.0.0.1:1", "").Check(context.Background(), "http://x.example.com")
		require.NotNil(t, record)
		assert.False(t, record.IsPhish())
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>not json</html>"))
		}))
		defer srv.Close()

		record := newTestClient(t, srv.URL, "").Check(context.Background(), "http://x.example.com")
		require.NotNil(t, record)
		assert.False(t, record.IsPhish())
	})

	t.Run("empty url", func(t *testing.T) {
		record := newTestClient(t, "http://127.0.0.1:1", "").Check(context.Background(), "   ")
		require.NotNil(t, record)
		assert.False(t, record.IsPhish())
	})
}

func TestAnonymousThrottle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"in_database":false,"verified":false}}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	client, err := NewClient(ClientConfig{
		Endpoint:   srv.URL,
		Throttle:   500 * time.Millisecond,
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
		Cache:      NewMemoryCache(time.Hour, nil),
		Sleep:      func(d time.Duration) { slept = append(slept, d) },
	})
	require.NoError(t, err)

	client.Check(context.Background(), "http://a.example.com")
	client.Check(context.Background(), "http://b.example.com")
	client.Check(context.Background(), "http://c.example.com")

	require.Len(t, slept, 2, "every anonymous lookup after the first should pause")
	for _, d := range slept {
		assert.LessOrEqual(t, d, 500*time.Millisecond)
		assert.Positive(t, d)
	}
}

func TestAPIKeySkipsThrottle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.PostFormValue("app_key"))
		_, _ = w.Write([]byte(`{"results":{"in_database":false,"verified":false}}`))
	}))
	defer srv.Close()

	var sleeps int
	client, err := NewClient(ClientConfig{
		Endpoint:   srv.URL,
		APIKey:     "secret-key",
		Throttle:   500 * time.Millisecond,
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
		Cache:      NewMemoryCache(time.Hour, nil),
		Sleep:      func(time.Duration) { sleeps++ },
	})
	require.NoError(t, err)

	client.Check(context.Background(), "http://a.example.com")
	client.Check(context.Background(), "http://b.example.com")
	assert.Zero(t, sleeps, "keyed lookups should not be throttled")
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(ClientConfig{Cache: NewMemoryCache(time.Hour, nil)})
	assert.Error(t, err, "missing HTTP client")

	_, err = NewClient(ClientConfig{HTTPClient: http.DefaultClient})
	assert.Error(t, err, "missing cache")
}
