package crawler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/SRK-Yoom/siteaudit/internal/util"
)

// Robots bodies larger than this are truncated before parsing.
const maxRobotsSize = 1 << 20

// RobotsInfo contains the robots.txt facts an audit reports for a site.
//
// Only the wildcard (User-agent: *) section feeds the rule fields: the
// audit describes the site's policy towards crawlers in general, not
// towards any one bot. Sitemap directives are collected globally since
// they apply regardless of section.
type RobotsInfo struct {
	// Found is true when a robots.txt was served with status 200
	Found bool
	// BlocksAll is true when the wildcard section disallows the whole
	// site with a bare "Disallow: /"
	BlocksAll bool
	// CrawlDelay in whole seconds, 0 when absent
	CrawlDelay int
	// Sitemaps listed anywhere in the file
	Sitemaps []string
	// DisallowPatterns are wildcard-section patterns that block paths
	DisallowPatterns []string
	// AllowPatterns take precedence over DisallowPatterns
	AllowPatterns []string
}

// FetchRobots fetches and parses robots.txt at the given site origin.
// A 404 is not an error: it returns Found=false with empty rules, since
// a missing robots.txt simply means no restrictions.
func (c *Crawler) FetchRobots(ctx context.Context, origin string) (*RobotsInfo, error) {
	if err := validateFetchRequest(ctx, origin); err != nil {
		return nil, err
	}

	robotsURL := util.ConstructURL(origin, "/robots.txt")

	log.Debug().
		Str("origin", origin).
		Str("robots_url", robotsURL).
		Msg("Requesting robots.txt")

	req, err := http.NewRequestWithContext(ctx, "GET", robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.newAuxClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// No robots.txt means no restrictions
		if resp.StatusCode == http.StatusNotFound {
			log.Debug().Str("origin", origin).Msg("No robots.txt found")
			return &RobotsInfo{}, nil
		}
		return nil, fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	}

	info, err := parseRobotsContent(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return nil, err
	}
	info.Found = true
	return info, nil
}

// directive matches a robots.txt line against a directive name,
// case-insensitively, and returns the trimmed value.
func directive(line, name string) (string, bool) {
	if len(line) < len(name) || !strings.EqualFold(line[:len(name)], name) {
		return "", false
	}
	return strings.TrimSpace(line[len(name):]), true
}

// parseRobotsContent reads robots.txt rules from the wildcard section.
func parseRobotsContent(r io.Reader) (*RobotsInfo, error) {
	info := &RobotsInfo{
		Sitemaps:         []string{},
		DisallowPatterns: []string{},
		AllowPatterns:    []string{},
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read robots.txt: %w", err)
	}
	if len(content) == maxRobotsSize {
		log.Warn().Int("size_bytes", len(content)).Msg("Robots.txt file truncated at 1MB limit")
	}

	// Tracks whether the current section applies to all crawlers
	var inWildcardSection bool

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if agent, ok := directive(line, "user-agent:"); ok {
			inWildcardSection = agent == "*"
			continue
		}

		// Sitemaps count no matter which section they sit in
		if sitemapURL, ok := directive(line, "sitemap:"); ok {
			if sitemapURL != "" {
				info.Sitemaps = append(info.Sitemaps, sitemapURL)
			}
			continue
		}

		if !inWildcardSection {
			continue
		}

		if delayStr, ok := directive(line, "crawl-delay:"); ok {
			if delay, err := strconv.Atoi(delayStr); err == nil && delay > 0 {
				info.CrawlDelay = delay
			}
			continue
		}

		if path, ok := directive(line, "disallow:"); ok {
			switch {
			case path == "/":
				// A bare "Disallow: /" blocks the entire site
				info.BlocksAll = true
			case path != "":
				info.DisallowPatterns = append(info.DisallowPatterns, path)
			}
			continue
		}

		if path, ok := directive(line, "allow:"); ok && path != "" {
			info.AllowPatterns = append(info.AllowPatterns, path)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan robots.txt: %w", err)
	}

	log.Debug().
		Bool("blocks_all", info.BlocksAll).
		Int("crawl_delay", info.CrawlDelay).
		Int("sitemaps", len(info.Sitemaps)).
		Int("disallow_patterns", len(info.DisallowPatterns)).
		Int("allow_patterns", len(info.AllowPatterns)).
		Msg("Parsed robots.txt")

	return info, nil
}

// IsPathAllowed checks a path against parsed robots.txt rules. Allow
// patterns win over both Disallow patterns and a full block.
func IsPathAllowed(info *RobotsInfo, path string) bool {
	if info == nil {
		return true
	}

	if anyPatternMatches(info.AllowPatterns, path) {
		return true
	}
	if info.BlocksAll {
		return false
	}
	return !anyPatternMatches(info.DisallowPatterns, path)
}

func anyPatternMatches(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if matchesRobotsPattern(path, pattern) {
			return true
		}
	}
	return false
}

// matchesRobotsPattern implements the * wildcard and $ end-of-URL
// anchor used in robots.txt patterns.
func matchesRobotsPattern(path, pattern string) bool {
	if anchored, ok := strings.CutSuffix(pattern, "$"); ok {
		return path == anchored
	}

	if !strings.Contains(pattern, "*") {
		return strings.HasPrefix(path, pattern)
	}

	parts := strings.Split(pattern, "*")
	if len(parts) == 2 && parts[1] == "" {
		// Trailing star, plain prefix match
		return strings.HasPrefix(path, parts[0])
	}

	// Every literal chunk must appear in order
	pos := 0
	for _, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(path[pos:], part)
		if idx == -1 {
			return false
		}
		pos += idx + len(part)
	}
	return true
}
