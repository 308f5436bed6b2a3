package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// SitemapInfo describes a fetched sitemap document.
type SitemapInfo struct {
	// URL the sitemap was fetched from
	URL string
	// IsIndex is true when the document is a sitemap index rather than
	// a URL set. Index entries are counted but not fetched recursively.
	IsIndex bool
	// PageCount is the number of <loc> entries in the document
	PageCount int
}

// FetchSitemap fetches a sitemap document and counts its <loc> entries.
// Sitemap indexes are not recursed into; the audit only needs evidence
// of a sitemap and a rough page count.
func (c *Crawler) FetchSitemap(ctx context.Context, sitemapURL string) (*SitemapInfo, error) {
	if err := validateFetchRequest(ctx, sitemapURL); err != nil {
		return nil, err
	}

	log.Debug().
		Str("sitemap_url", sitemapURL).
		Msg("Fetching sitemap")

	req, err := http.NewRequestWithContext(ctx, "GET", sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.newAuxClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sitemap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap returned status %d", resp.StatusCode)
	}

	// Limit sitemap size to 10MB to prevent memory exhaustion
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read sitemap: %w", err)
	}

	content := string(body)
	info := &SitemapInfo{
		URL:       sitemapURL,
		IsIndex:   strings.Contains(content, "<sitemapindex"),
		PageCount: len(extractLocs(content)),
	}

	log.Debug().
		Str("sitemap_url", sitemapURL).
		Bool("is_index", info.IsIndex).
		Int("page_count", info.PageCount).
		Msg("Parsed sitemap")

	return info, nil
}

// extractLocs returns the trimmed contents of every <loc> element in a
// sitemap document. String scanning keeps this tolerant of the malformed
// XML that real sitemaps often contain.
func extractLocs(content string) []string {
	var locs []string

	startIdx := 0
	for {
		locStartIdx := strings.Index(content[startIdx:], "<loc>")
		if locStartIdx == -1 {
			break
		}
		locStartIdx += startIdx

		locEndIdx := strings.Index(content[locStartIdx:], "</loc>")
		if locEndIdx == -1 {
			break
		}
		locEndIdx += locStartIdx

		loc := strings.TrimSpace(content[locStartIdx+len("<loc>") : locEndIdx])
		if loc != "" {
			locs = append(locs, loc)
		}

		startIdx = locEndIdx + len("</loc>")
	}

	return locs
}
