package techdetect

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := New()
	require.NoError(t, err)
	return d
}

func TestDetectSignatures(t *testing.T) {
	detector := testDetector(t)

	tests := []struct {
		name     string
		headers  map[string]string
		body     string
		wantTech string
	}{
		{
			name: "cloudflare from headers",
			headers: map[string]string{
				"CF-Ray":          "1234567890abcdef-SYD",
				"CF-Cache-Status": "HIT",
				"Server":          "cloudflare",
			},
			wantTech: "Cloudflare",
		},
		{
			name: "shopify from headers and body",
			headers: map[string]string{
				"X-ShopId":        "12345678",
				"X-Shopify-Stage": "production",
				"Content-Type":    "text/html; charset=utf-8",
			},
			body:     `<!DOCTYPE html><html><head><link rel="preconnect" href="https://cdn.shopify.com"></head><body></body></html>`,
			wantTech: "Shopify",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := make(http.Header)
			for k, v := range tt.headers {
				headers.Set(k, v)
			}

			result := detector.Detect(headers, []byte(tt.body))

			require.NotNil(t, result)
			assert.Contains(t, result.Technologies, tt.wantTech)
		})
	}
}

func TestDetectToleratesEmptyInput(t *testing.T) {
	detector := testDetector(t)

	result := detector.Detect(nil, nil)

	require.NotNil(t, result)
	assert.NotNil(t, result.Technologies)
}

func TestDetectResolvesCategoryLabels(t *testing.T) {
	detector := testDetector(t)

	headers := make(http.Header)
	headers.Set("CF-Ray", "8a1b2c3d4e5f6789-MEL")
	headers.Set("Server", "cloudflare")

	result := detector.Detect(headers, nil)

	require.Contains(t, result.Technologies, "Cloudflare")
	assert.NotEmpty(t, result.Technologies["Cloudflare"], "categories should be labelled")
}

func TestNamesSorted(t *testing.T) {
	result := &Result{
		Technologies: map[string][]string{
			"WordPress":        {"CMS", "Blogs"},
			"MySQL":            {"Databases"},
			"Google Analytics": {"Analytics"},
		},
	}
	assert.Equal(t, []string{"Google Analytics", "MySQL", "WordPress"}, result.Names())
}

func TestNamesEmpty(t *testing.T) {
	result := &Result{Technologies: map[string][]string{}}
	assert.Empty(t, result.Names())
}

func TestDetectConcurrently(t *testing.T) {
	detector := testDetector(t)

	headers := make(http.Header)
	headers.Set("Server", "nginx/1.24.0")
	page := []byte("<!DOCTYPE html><html><body>ok</body></html>")

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotNil(t, detector.Detect(headers, page))
		}()
	}
	wg.Wait()
}
