package audit

import "github.com/SRK-Yoom/siteaudit/internal/crawler"

// BuildSiteInfo combines the robots.txt and sitemap fetch outcomes
// into the crawlability summary. Either input may be nil when its
// fetch failed.
//
// A sitemap declared inside robots.txt takes precedence for the
// reported URL, but PageCount only ever comes from a sitemap document
// that was actually fetched, so it stays nil when only a declaration
// was seen.
func BuildSiteInfo(robots *crawler.RobotsInfo, sitemap *crawler.SitemapInfo) SiteInfo {
	info := SiteInfo{}

	if robots != nil && robots.Found {
		info.HasRobots = true
		info.RobotsBlocked = robots.BlocksAll
	}

	if sitemap != nil {
		info.HasSitemap = true
		info.SitemapURL = sitemap.URL
		count := sitemap.PageCount
		info.PageCount = &count
	}

	if robots != nil && len(robots.Sitemaps) > 0 {
		info.HasSitemap = true
		info.SitemapURL = robots.Sitemaps[0]
	}

	return info
}
