package fetcher

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pricepilot/linkverify/internal/domain"
)

const (
	// DefaultTimeout is the per-attempt request timeout.
	DefaultTimeout = 15 * time.Second
	// DefaultMaxRetries bounds the attempt loop.
	DefaultMaxRetries = 3

	maxBodyBytes = 10 * 1024 * 1024 // 10MB
	maxRedirects = 5
)

// userAgents is the fixed pool a per-attempt agent is drawn from, uniformly
// at random, to reduce anti-bot fingerprinting.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0",
}

// Config holds fetcher settings. Zero values fall back to defaults.
type Config struct {
	Timeout    time.Duration
	MaxRetries int

	// Proxy settings. An empty ProxyHost disables proxying (direct requests).
	ProxyHost           string
	ProxyPort           string
	ProxyUsername       string
	ProxyPasswordSecret string
}

// Fetcher performs one logical page fetch through an authenticated rotating
// proxy, with tiered error classification and bounded retries.
type Fetcher struct {
	cfg     Config
	secrets domain.SecretProvider
	debug   bool

	// sleep is swappable so tests can observe backoff without waiting.
	sleep func(time.Duration)

	clientMu sync.Mutex
	client   *http.Client
}

// New creates a fetcher. The proxy password is resolved through secrets on
// first fetch and held once construction succeeds; a failed lookup is
// retried on the next fetch.
func New(cfg Config, secrets domain.SecretProvider) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Fetcher{
		cfg:     cfg,
		secrets: secrets,
		sleep:   time.Sleep,
	}
}

// SetDebug enables verbose per-attempt logging.
func (f *Fetcher) SetDebug(debug bool) {
	f.debug = debug
}

// httpClient lazily builds the proxied HTTP client. TLS verification stays
// enabled. The client is recorded only on success, so a transient secret
// store failure fails the calling request without poisoning later ones.
func (f *Fetcher) httpClient() (*http.Client, error) {
	f.clientMu.Lock()
	defer f.clientMu.Unlock()
	if f.client != nil {
		return f.client, nil
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}

	if f.cfg.ProxyHost != "" {
		password, err := f.secrets.GetSecret(f.cfg.ProxyPasswordSecret)
		if err != nil {
			return nil, fmt.Errorf("resolve proxy password: %w", err)
		}
		proxyURL := &url.URL{
			Scheme: "http",
			User:   url.UserPassword(f.cfg.ProxyUsername, password),
			Host:   net.JoinHostPort(f.cfg.ProxyHost, f.cfg.ProxyPort),
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		log.Printf("[FETCH] proxy configured: %s", net.JoinHostPort(f.cfg.ProxyHost, f.cfg.ProxyPort))
	}

	f.client = &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return f.client, nil
}

// Fetch retrieves the HTML at rawURL, retrying transient failures up to
// MaxRetries attempts. Retryable HTTP statuses and most transport failures
// back off exponentially (2^attempt seconds); timeouts and TLS failures use a
// fixed 1s pause; a malformed URL fails immediately. After retry exhaustion
// the last recorded error is returned, wrapped in domain.ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidURL, rawURL)
	}

	client, err := f.httpClient()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		html, retryDelay, err := f.fetchOnce(ctx, client, rawURL)
		if err == nil {
			return html, nil
		}
		lastErr = err

		if f.debug {
			log.Printf("[FETCH] attempt %d/%d failed for %s: %v", attempt, f.cfg.MaxRetries, rawURL, err)
		}
		if attempt < f.cfg.MaxRetries {
			f.sleep(retryDelay(attempt))
		}
	}

	log.Printf("[FETCH] all %d attempts failed for %s: %v", f.cfg.MaxRetries, rawURL, lastErr)
	return "", fmt.Errorf("%w: %v", domain.ErrFetchFailed, lastErr)
}

// delayFunc maps the attempt number to the pause before the next attempt.
type delayFunc func(attempt int) time.Duration

func exponential(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func fixedSecond(int) time.Duration {
	return time.Second
}

// fetchOnce performs a single attempt and classifies its failure, returning
// the backoff policy the failure class prescribes.
func (f *Fetcher) fetchOnce(ctx context.Context, client *http.Client, rawURL string) (string, delayFunc, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", exponential, fmt.Errorf("build request: %v", err)
	}
	f.setBrowserHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return "", classifyTransportError(err), describeTransportError(err, rawURL)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		contentType := resp.Header.Get("Content-Type")
		if !strings.Contains(contentType, "html") && !strings.Contains(contentType, "xhtml") {
			log.Printf("[FETCH] warning: unexpected content-type %q for %s", contentType, rawURL)
		}
		html, err := readBody(resp)
		if err != nil {
			return "", exponential, fmt.Errorf("read body: %v", err)
		}
		return html, nil, nil

	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusServiceUnavailable:
		return "", exponential, fmt.Errorf("HTTP %d (likely bot detection or rate limiting) for %s", resp.StatusCode, rawURL)

	default:
		return "", exponential, fmt.Errorf("HTTP error %d for %s", resp.StatusCode, rawURL)
	}
}

// setBrowserHeaders attaches a randomly selected user agent plus standard
// browser headers to reduce anti-bot fingerprinting.
func (f *Fetcher) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en-US;q=0.9,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// readBody drains the response, decompressing when the upstream honored the
// gzip encoding request.
func readBody(resp *http.Response) (string, error) {
	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", err
		}
		defer gz.Close()
		reader = gz
	}
	body, err := io.ReadAll(io.LimitReader(reader, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// classifyTransportError picks the backoff policy for a transport failure.
// TLS handshake failures and timeouts pause for a fixed second; proxy,
// DNS/connection and all other transport failures back off exponentially.
func classifyTransportError(err error) delayFunc {
	if isTimeout(err) || isTLSError(err) {
		return fixedSecond
	}
	return exponential
}

func describeTransportError(err error, rawURL string) error {
	switch {
	case isProxyError(err):
		return fmt.Errorf("proxy connection failed for %s: %v", rawURL, err)
	case isTLSError(err):
		return fmt.Errorf("TLS error for %s: %v", rawURL, err)
	case isTimeout(err):
		return fmt.Errorf("request timed out for %s", rawURL)
	case isConnectionError(err):
		return fmt.Errorf("could not connect to %s: %v", rawURL, err)
	default:
		return fmt.Errorf("request failed for %s: %v", rawURL, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTLSError(err error) bool {
	var (
		certErr      *tls.CertificateVerificationError
		recordErr    tls.RecordHeaderError
		hostnameErr  x509.HostnameError
		authorityErr x509.UnknownAuthorityError
		invalidErr   x509.CertificateInvalidError
	)
	return errors.As(err, &certErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &authorityErr) ||
		errors.As(err, &invalidErr)
}

// isProxyError detects CONNECT/dial failures against the proxy itself, which
// net/http reports with a "proxyconnect" network kind.
func isProxyError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return strings.Contains(urlErr.Err.Error(), "proxyconnect")
	}
	return strings.Contains(err.Error(), "proxyconnect")
}

func isConnectionError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
