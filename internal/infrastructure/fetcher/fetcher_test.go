package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricepilot/linkverify/internal/domain"
)

type fakeSecrets struct {
	values map[string]string
}

func (f *fakeSecrets) GetSecret(name string) (string, error) {
	value, ok := f.values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrSecretNotFound, name)
	}
	return value, nil
}

// newTestFetcher builds a direct (proxyless) fetcher whose sleeps are
// recorded instead of slept.
func newTestFetcher(t *testing.T, cfg Config) (*Fetcher, *[]time.Duration) {
	t.Helper()
	f := New(cfg, &fakeSecrets{})
	var slept []time.Duration
	f.sleep = func(d time.Duration) {
		slept = append(slept, d)
	}
	return f, &slept
}

func TestNew(t *testing.T) {
	f := New(Config{}, &fakeSecrets{})

	assert.Equal(t, DefaultTimeout, f.cfg.Timeout)
	assert.Equal(t, DefaultMaxRetries, f.cfg.MaxRetries)
	assert.NotNil(t, f.sleep)
}

func TestFetchSuccess(t *testing.T) {
	var gotUA atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		assert.Equal(t, "1", r.Header.Get("DNT"))
		assert.Equal(t, "1", r.Header.Get("Upgrade-Insecure-Requests"))
		assert.NotEmpty(t, r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>product page</body></html>")
	}))
	defer server.Close()

	f, slept := newTestFetcher(t, Config{})
	html, err := f.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Contains(t, html, "product page")
	assert.Empty(t, *slept, "successful first attempt should not back off")

	ua, _ := gotUA.Load().(string)
	assert.Contains(t, userAgents, ua, "user agent should come from the fixed pool")
}

func TestFetchGzipResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		fmt.Fprint(gz, "<html><body>compressed page</body></html>")
		gz.Close()
	}))
	defer server.Close()

	f, _ := newTestFetcher(t, Config{})
	html, err := f.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Contains(t, html, "compressed page")
}

func TestFetchInvalidURL(t *testing.T) {
	f, slept := newTestFetcher(t, Config{})

	for _, raw := range []string{"example.com/product", "ftp://example.com", "://nope"} {
		_, err := f.Fetch(context.Background(), raw)
		assert.ErrorIs(t, err, domain.ErrInvalidURL, "url %q", raw)
	}
	assert.Empty(t, *slept, "malformed URLs must fail without retrying")
}

func TestFetchBotDetectionRetries(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f, slept := newTestFetcher(t, Config{MaxRetries: 3})
	_, err := f.Fetch(context.Background(), server.URL)

	require.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, int64(3), attempts.Load())
	// Exponential backoff between attempts: 2^1, 2^2 seconds.
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestFetchRecoversAfterRateLimit(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>recovered</html>")
	}))
	defer server.Close()

	f, slept := newTestFetcher(t, Config{MaxRetries: 3})
	html, err := f.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Contains(t, html, "recovered")
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestFetchOtherHTTPErrorRetries(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f, slept := newTestFetcher(t, Config{MaxRetries: 2})
	_, err := f.Fetch(context.Background(), server.URL)

	require.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int64(2), attempts.Load())
	assert.Equal(t, []time.Duration{2 * time.Second}, *slept)
}

func TestFetchTimeoutUsesFixedBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	f, slept := newTestFetcher(t, Config{Timeout: 50 * time.Millisecond, MaxRetries: 2})
	_, err := f.Fetch(context.Background(), server.URL)

	require.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Contains(t, err.Error(), "timed out")
	// Timeouts pause a fixed second, not exponentially.
	assert.Equal(t, []time.Duration{time.Second}, *slept)
}

func TestFetchConnectionRefusedRetries(t *testing.T) {
	// Reserve and release a port so nothing is listening on it.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := server.URL
	server.Close()

	f, slept := newTestFetcher(t, Config{MaxRetries: 2})
	_, err := f.Fetch(context.Background(), deadURL)

	require.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Contains(t, err.Error(), "connect")
	assert.Equal(t, []time.Duration{2 * time.Second}, *slept)
}

func TestFetchNonHTMLContentTypeStillReturns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"not": "html"}`)
	}))
	defer server.Close()

	f, _ := newTestFetcher(t, Config{})
	html, err := f.Fetch(context.Background(), server.URL)

	require.NoError(t, err, "non-html content type is a warning, not a failure")
	assert.Contains(t, html, "not")
}

// flakySecrets fails a fixed number of lookups before recovering.
type flakySecrets struct {
	failures int
	password string
}

func (f *flakySecrets) GetSecret(name string) (string, error) {
	if f.failures > 0 {
		f.failures--
		return "", errors.New("secret store unreachable")
	}
	return f.password, nil
}

func TestFetchRecoversAfterSecretFailure(t *testing.T) {
	// The test server plays the proxy: plain-http requests arrive in
	// absolute form with the proxy credentials attached.
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "upstream.example", r.Host)
		assert.NotEmpty(t, r.Header.Get("Proxy-Authorization"))
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>via proxy</html>")
	}))
	defer proxy.Close()

	host, port, err := net.SplitHostPort(strings.TrimPrefix(proxy.URL, "http://"))
	require.NoError(t, err)

	f := New(Config{
		ProxyHost:           host,
		ProxyPort:           port,
		ProxyUsername:       "scraper",
		ProxyPasswordSecret: "PROXY_PASSWORD",
	}, &flakySecrets{failures: 1, password: "hunter2"})
	f.sleep = func(time.Duration) {}

	_, err = f.Fetch(context.Background(), "http://upstream.example/product")
	require.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Contains(t, err.Error(), "secret store unreachable")

	// The store recovered; the next fetch must not replay the old failure.
	html, err := f.Fetch(context.Background(), "http://upstream.example/product")
	require.NoError(t, err)
	assert.Contains(t, html, "via proxy")
}

func TestFetchProxyPasswordFailureIsFatal(t *testing.T) {
	f := New(Config{
		ProxyHost:           "proxy.example.com",
		ProxyPort:           "1010",
		ProxyUsername:       "user",
		ProxyPasswordSecret: "PROXY_PASSWORD",
	}, &fakeSecrets{})
	f.sleep = func(time.Duration) {}

	_, err := f.Fetch(context.Background(), "https://example.com")

	require.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Contains(t, err.Error(), "proxy password")
}
