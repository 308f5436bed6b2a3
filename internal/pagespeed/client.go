// Package pagespeed provides a client for the Google PageSpeed Insights API.
// See https://developers.google.com/speed/docs/insights/v5/reference for full
// documentation.
package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	defaultTimeout = 45 * time.Second

	// StrategyMobile is the analysis strategy used for audits. Mobile is
	// the stricter lens and matches how Google evaluates sites.
	StrategyMobile = "mobile"
)

// categories are the Lighthouse categories requested with every analysis.
var categories = []string{"performance", "accessibility", "best-practices", "seo"}

var (
	// ErrTimeout indicates the analysis did not complete within the
	// client timeout.
	ErrTimeout = errors.New("pagespeed: analysis timed out")
	// ErrNoResult indicates the API answered without a usable Lighthouse
	// result, which happens when the target URL cannot be analysed.
	ErrNoResult = errors.New("pagespeed: no usable Lighthouse result")
)

// Client provides access to the PageSpeed Insights v5 API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a new PageSpeed client. The API key is optional; without
// one Google applies a much lower anonymous quota.
func New(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Result is the subset of a PageSpeed Insights response the audit consumes.
type Result struct {
	ID                   string            `json:"id"`
	AnalysisUTCTimestamp string            `json:"analysisUTCTimestamp"`
	LighthouseResult     *LighthouseResult `json:"lighthouseResult"`
}

// LighthouseResult holds the Lighthouse run embedded in a PSI response.
type LighthouseResult struct {
	RequestedURL string           `json:"requestedUrl"`
	FinalURL     string           `json:"finalUrl"`
	Categories   Categories       `json:"categories"`
	Audits       map[string]Audit `json:"audits"`
}

// Categories groups the four category results by their API field names.
type Categories struct {
	Performance   *Category `json:"performance"`
	Accessibility *Category `json:"accessibility"`
	BestPractices *Category `json:"best-practices"`
	SEO           *Category `json:"seo"`
}

// Category is a single Lighthouse category result with a 0-1 score.
type Category struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Audit is a single Lighthouse audit entry.
type Audit struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Score        float64 `json:"score"`
	DisplayValue string  `json:"displayValue"`
	NumericValue float64 `json:"numericValue"`
}

// CategoryScores flattens the four category scores onto a 0-1 scale.
// Missing categories score zero.
type CategoryScores struct {
	Performance   float64 `json:"performance"`
	Accessibility float64 `json:"accessibility"`
	BestPractices float64 `json:"best_practices"`
	SEO           float64 `json:"seo"`
}

// Scores extracts the category scores from the result.
func (r *Result) Scores() CategoryScores {
	scores := CategoryScores{}
	if r == nil || r.LighthouseResult == nil {
		return scores
	}

	cats := r.LighthouseResult.Categories
	if cats.Performance != nil {
		scores.Performance = cats.Performance.Score
	}
	if cats.Accessibility != nil {
		scores.Accessibility = cats.Accessibility.Score
	}
	if cats.BestPractices != nil {
		scores.BestPractices = cats.BestPractices.Score
	}
	if cats.SEO != nil {
		scores.SEO = cats.SEO.Score
	}
	return scores
}

// CoreWebVitals carries the headline metric display values from the
// Lighthouse audits map, e.g. "1.2 s" or "0.05".
type CoreWebVitals struct {
	FirstContentfulPaint   string `json:"first_contentful_paint,omitempty"`
	LargestContentfulPaint string `json:"largest_contentful_paint,omitempty"`
	CumulativeLayoutShift  string `json:"cumulative_layout_shift,omitempty"`
	TotalBlockingTime      string `json:"total_blocking_time,omitempty"`
	SpeedIndex             string `json:"speed_index,omitempty"`
}

// Vitals extracts the core web vital display values from the result.
func (r *Result) Vitals() CoreWebVitals {
	vitals := CoreWebVitals{}
	if r == nil || r.LighthouseResult == nil {
		return vitals
	}

	audits := r.LighthouseResult.Audits
	vitals.FirstContentfulPaint = audits["first-contentful-paint"].DisplayValue
	vitals.LargestContentfulPaint = audits["largest-contentful-paint"].DisplayValue
	vitals.CumulativeLayoutShift = audits["cumulative-layout-shift"].DisplayValue
	vitals.TotalBlockingTime = audits["total-blocking-time"].DisplayValue
	vitals.SpeedIndex = audits["speed-index"].DisplayValue
	return vitals
}

// APIError represents an error response from the PageSpeed API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pagespeed: API error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether the error is an upstream quota rejection.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// Analyze runs a PageSpeed Insights analysis of the target URL with the
// mobile strategy and all four Lighthouse categories. The call blocks
// until Google finishes the Lighthouse run, commonly 10-30 seconds.
func (c *Client) Analyze(ctx context.Context, targetURL string) (*Result, error) {
	params := url.Values{}
	params.Set("url", targetURL)
	params.Set("strategy", StrategyMobile)
	for _, category := range categories {
		params.Add("category", category)
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("pagespeed: failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("pagespeed: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))

		// Parse the structured Google error envelope if available
		var apiResp struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &apiResp) == nil && apiResp.Error.Message != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: apiResp.Error.Message}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("pagespeed: failed to decode response: %w", err)
	}

	if result.LighthouseResult == nil {
		return nil, ErrNoResult
	}

	// A Lighthouse run with no category results is equally unusable
	cats := result.LighthouseResult.Categories
	if cats.Performance == nil && cats.Accessibility == nil && cats.BestPractices == nil && cats.SEO == nil {
		return nil, ErrNoResult
	}

	return &result, nil
}
