package crawler

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
)

// Crawler fetches audit targets over HTTP and captures timing metrics
type Crawler struct {
	config  *Config
	colly   *colly.Collector
	pending *sync.Map // Timings parked by the transport, keyed by URL
}

// timingTransport wraps a transport with httptrace hooks that record
// connection phase timings. Each request's metrics are parked in
// pending until the response handler collects them.
type timingTransport struct {
	base    http.RoundTripper
	pending *sync.Map
}

func (t *timingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	metrics := &PerformanceMetrics{}
	t.pending.Store(req.URL.String(), metrics)

	req = req.WithContext(httptrace.WithClientTrace(req.Context(), newPhaseTrace(metrics)))
	return t.base.RoundTrip(req)
}

// newPhaseTrace builds hooks that fill in metrics as the request moves
// through DNS, connect, TLS and first byte.
func newPhaseTrace(metrics *PerformanceMetrics) *httptrace.ClientTrace {
	start := time.Now()
	var dnsStart, connStart, tlsStart time.Time

	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone: func(httptrace.DNSDoneInfo) {
			if !dnsStart.IsZero() {
				metrics.DNSLookupTime = time.Since(dnsStart).Milliseconds()
			}
		},
		ConnectStart: func(network, addr string) { connStart = time.Now() },
		ConnectDone: func(network, addr string, err error) {
			if err == nil && !connStart.IsZero() {
				metrics.TCPConnectionTime = time.Since(connStart).Milliseconds()
			}
		},
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err == nil && !tlsStart.IsZero() {
				metrics.TLSHandshakeTime = time.Since(tlsStart).Milliseconds()
			}
		},
		GotFirstResponseByte: func() {
			metrics.TTFB = time.Since(start).Milliseconds()
		},
	}
}

// New creates a new Crawler instance with the given configuration.
// If config is nil, default configuration is used.
func New(config *Config) *Crawler {
	if config == nil {
		config = DefaultConfig()
	}

	c := colly.NewCollector(
		colly.UserAgent(config.UserAgent),
		colly.MaxDepth(1),
		colly.Async(true),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.MaxBodySize(config.MaxBodySize),
	)

	pending := &sync.Map{}
	c.SetClient(&http.Client{
		Timeout: config.FetchTimeout,
		Transport: &timingTransport{
			base: &http.Transport{
				MaxIdleConnsPerHost: 25,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     120 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				DisableCompression:  true,
				ForceAttemptHTTP2:   true,
			},
			pending: pending,
		},
	})

	return &Crawler{
		config:  config,
		colly:   c,
		pending: pending,
	}
}

// UserAgent returns the user agent string used for outbound fetches.
func (c *Crawler) UserAgent() string {
	return c.config.UserAgent
}

// validateFetchRequest checks context state and URL format before any
// outbound request is made.
func validateFetchRequest(ctx context.Context, targetURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	parsed, err := url.Parse(targetURL)
	if err != nil {
		return fmt.Errorf("invalid URL %s: %w", targetURL, err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid URL format: %s", targetURL)
	}

	return nil
}

// FetchPage fetches a single page and returns its body, headers, status
// and connection timings. The body is decoded to UTF-8 using the response
// charset. Non-2xx statuses and transport failures are returned as errors;
// the caller decides how a missing page degrades the audit.
func (c *Crawler) FetchPage(ctx context.Context, targetURL string) (*PageResult, error) {
	if err := validateFetchRequest(ctx, targetURL); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &PageResult{
		URL:       targetURL,
		Timestamp: start.Unix(),
	}

	log.Debug().
		Str("url", targetURL).
		Msg("Fetching page for audit")

	collyClone := c.colly.Clone()

	// Add browser-like headers to avoid blocking
	collyClone.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	// Collect body, headers, status and timing
	collyClone.OnResponse(func(r *colly.Response) {
		res.StatusCode = r.StatusCode
		res.ContentType = r.Headers.Get("Content-Type")
		res.Headers = r.Headers.Clone()
		res.FinalURL = r.Request.URL.String()
		res.Body = decodeBody(r.Body, res.ContentType)
		res.ResponseTime = time.Since(start).Milliseconds()

		// Collect the connection timings parked by the transport
		if parked, ok := c.pending.LoadAndDelete(r.Request.URL.String()); ok {
			perf := parked.(*PerformanceMetrics)
			// Transfer is whatever remains after the first byte arrived
			if perf.TTFB > 0 {
				perf.ContentTransferTime = time.Since(start).Milliseconds() - perf.TTFB
			}
			res.Performance = *perf
		}
	})

	var fetchErr error
	collyClone.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			res.StatusCode = r.StatusCode
			res.ResponseTime = time.Since(start).Milliseconds()
		}
	})

	// Visit in a goroutine to support context cancellation
	done := make(chan error, 1)
	go func() {
		if visitErr := collyClone.Visit(targetURL); visitErr != nil {
			done <- visitErr
			return
		}
		collyClone.Wait()
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Debug().
				Err(err).
				Str("url", targetURL).
				Msg("Page fetch failed")
			return res, err
		}
	case <-ctx.Done():
		log.Debug().
			Err(ctx.Err()).
			Str("url", targetURL).
			Msg("Page fetch cancelled due to context")
		return res, ctx.Err()
	}

	if fetchErr != nil {
		log.Debug().
			Err(fetchErr).
			Int("status", res.StatusCode).
			Str("url", targetURL).
			Msg("Page fetch returned error")
		return res, fetchErr
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res, fmt.Errorf("non-success status code: %d", res.StatusCode)
	}

	log.Debug().
		Int("status", res.StatusCode).
		Str("url", targetURL).
		Int("body_bytes", len(res.Body)).
		Dur("duration_ms", time.Duration(res.ResponseTime)*time.Millisecond).
		Msg("Page fetched")

	return res, nil
}

// newAuxClient returns a client for robots.txt and sitemap fetches with
// a redirect cap and the crawler's configured timeout.
func (c *Crawler) newAuxClient() *http.Client {
	return &http.Client{
		Timeout: c.config.FetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// decodeBody converts a response body to UTF-8 using the Content-Type
// charset declaration, falling back to the raw bytes when conversion
// is not possible.
func decodeBody(body []byte, contentType string) []byte {
	if len(body) == 0 {
		return body
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return body
	}
	return decoded
}
