package httpx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doRequest(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }
	h := rl.Middleware()(okHandler)

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1000").Code)
	rec := doRequest(h, "10.0.0.1:1000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.2:1000").Code, "other clients keep their own window")

	now = now.Add(61 * time.Second)
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1000").Code)
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rl := NewRedisRateLimiter(rdb, 2, time.Minute, "test")
	h := rl.Middleware(discardLogger(), false)(okHandler)

	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:1000").Code)
	assert.True(t, mr.Exists("test:10.0.0.1"))

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1000").Code)
}

func TestRedisRateLimiterFailOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	rl := NewRedisRateLimiter(rdb, 1, time.Minute, "")
	assert.Equal(t, http.StatusOK, doRequest(rl.Middleware(discardLogger(), true)(okHandler), "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(rl.Middleware(discardLogger(), false)(okHandler), "10.0.0.1:1").Code)
}

func TestWithRequestIDPropagates(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 32)
}

func TestWithRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), WithRequestID, WithRecover(discardLogger()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"internal"`)
}

func TestWithCORSPreflight(t *testing.T) {
	h := WithCORS(CORSPolicy{AllowedOrigins: []string{"https://book.example.com"}})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/public/book", nil)
	req.Header.Set("Origin", "https://book.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://book.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Day string `json:"day"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", stringsReader(`{"day":"monday"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "monday", dst.Day)

	req = httptest.NewRequest(http.MethodPost, "/", stringsReader(`{"day":"monday","extra":1}`))
	assert.Error(t, DecodeJSON(req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", stringsReader(``))
	assert.Error(t, DecodeJSON(req, &dst))
}

func stringsReader(s string) io.Reader {
	return strings.NewReader(s)
}
