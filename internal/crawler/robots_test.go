package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseRobotsContent(t *testing.T) {
	tests := []struct {
		name          string
		robotsTxt     string
		wantBlocksAll bool
		wantDelay     int
		wantSitemaps  []string
		wantDisallow  []string
		wantAllow     []string
	}{
		{
			name: "wildcard rules",
			robotsTxt: `
User-agent: *
Crawl-delay: 5
Disallow: /wp-admin/
Disallow: /cart/

Sitemap: https://shop.example.com/sitemap_index.xml
Sitemap: https://shop.example.com/sitemap-products.xml
`,
			wantDelay:    5,
			wantSitemaps: []string{"https://shop.example.com/sitemap_index.xml", "https://shop.example.com/sitemap-products.xml"},
			wantDisallow: []string{"/wp-admin/", "/cart/"},
			wantAllow:    []string{},
		},
		{
			name: "blocks all crawling",
			robotsTxt: `
User-agent: *
Disallow: /
`,
			wantBlocksAll: true,
			wantSitemaps:  []string{},
			wantDisallow:  []string{},
			wantAllow:     []string{},
		},
		{
			name: "specific bot block does not count as blocking",
			robotsTxt: `
User-agent: GPTBot
Disallow: /

User-agent: *
Disallow: /admin
Allow: /admin/public
`,
			wantBlocksAll: false,
			wantSitemaps:  []string{},
			wantDisallow:  []string{"/admin"},
			wantAllow:     []string{"/admin/public"},
		},
		{
			name: "sitemap collected outside wildcard section",
			robotsTxt: `
User-agent: Bingbot
Disallow: /notforbing
Sitemap: https://example.org/sitemap.xml
`,
			wantSitemaps: []string{"https://example.org/sitemap.xml"},
			wantDisallow: []string{},
			wantAllow:    []string{},
		},
		{
			name: "comments and blank lines skipped",
			robotsTxt: `
# Robots file
User-agent: *

# Keep bots out of checkout
Disallow: /checkout
`,
			wantSitemaps: []string{},
			wantDisallow: []string{"/checkout"},
			wantAllow:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := parseRobotsContent(strings.NewReader(tt.robotsTxt))
			if err != nil {
				t.Fatalf("parseRobotsContent() error = %v", err)
			}

			if info.BlocksAll != tt.wantBlocksAll {
				t.Errorf("BlocksAll = %v, want %v", info.BlocksAll, tt.wantBlocksAll)
			}

			if info.CrawlDelay != tt.wantDelay {
				t.Errorf("CrawlDelay = %v, want %v", info.CrawlDelay, tt.wantDelay)
			}

			if len(info.Sitemaps) != len(tt.wantSitemaps) {
				t.Errorf("Sitemaps count = %v, want %v", len(info.Sitemaps), len(tt.wantSitemaps))
			}

			if len(info.DisallowPatterns) != len(tt.wantDisallow) {
				t.Errorf("DisallowPatterns count = %v, want %v", len(info.DisallowPatterns), len(tt.wantDisallow))
			}

			if len(info.AllowPatterns) != len(tt.wantAllow) {
				t.Errorf("AllowPatterns count = %v, want %v", len(info.AllowPatterns), len(tt.wantAllow))
			}
		})
	}
}

func TestFetchRobots(t *testing.T) {
	t.Run("served robots is parsed", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/robots.txt" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /\nSitemap: https://example.com/sitemap.xml\n"))
		}))
		defer ts.Close()

		info, err := New(nil).FetchRobots(context.Background(), ts.URL)
		if err != nil {
			t.Fatalf("FetchRobots() error = %v", err)
		}
		if !info.Found {
			t.Error("Found = false, want true")
		}
		if !info.BlocksAll {
			t.Error("BlocksAll = false, want true")
		}
		if len(info.Sitemaps) != 1 {
			t.Errorf("Sitemaps count = %d, want 1", len(info.Sitemaps))
		}
	})

	t.Run("404 means no restrictions", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		info, err := New(nil).FetchRobots(context.Background(), ts.URL)
		if err != nil {
			t.Fatalf("FetchRobots() error = %v", err)
		}
		if info.Found {
			t.Error("Found = true, want false")
		}
		if info.BlocksAll {
			t.Error("BlocksAll = true, want false")
		}
	})

	t.Run("server error is returned", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer ts.Close()

		if _, err := New(nil).FetchRobots(context.Background(), ts.URL); err == nil {
			t.Error("expected error for 500 response")
		}
	})
}

func TestIsPathAllowed(t *testing.T) {
	info := &RobotsInfo{
		DisallowPatterns: []string{"/checkout", "/account/", "/search*", "/preview$"},
		AllowPatterns:    []string{"/account/help"},
	}

	tests := []struct {
		path    string
		allowed bool
	}{
		{"/", true},
		{"/products/widget", true},
		{"/checkout", false},
		{"/checkout/payment", false},
		{"/account/settings", false},
		{"/account/help", true}, // Allow wins over Disallow
		{"/search?q=shoes", false},
		{"/preview", false}, // $ anchors the pattern to the exact path
		{"/preview/draft", true},
		{"/pricing", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsPathAllowed(info, tt.path); got != tt.allowed {
				t.Errorf("got %v for %q, want %v", got, tt.path, tt.allowed)
			}
		})
	}
}

func TestIsPathAllowedBlocksAll(t *testing.T) {
	info := &RobotsInfo{BlocksAll: true, AllowPatterns: []string{"/public"}}

	if IsPathAllowed(info, "/") {
		t.Error("IsPathAllowed(/) = true under full block, want false")
	}
	if !IsPathAllowed(info, "/public") {
		t.Error("IsPathAllowed(/public) = false, want true via Allow override")
	}
	if !IsPathAllowed(nil, "/anything") {
		t.Error("IsPathAllowed with nil rules should allow everything")
	}
}
