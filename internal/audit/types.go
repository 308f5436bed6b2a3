// Package audit implements the website audit pipeline: signal
// extraction, keyword analysis, pillar scoring and recommendation
// generation over a set of parallel fetches.
package audit

import (
	"time"

	"github.com/SRK-Yoom/siteaudit/internal/crawler"
	"github.com/SRK-Yoom/siteaudit/internal/pagespeed"
)

// PageSignals holds every on-page fact the audit extracts from the
// target HTML. The record is always fully populated: when the page
// fetch fails, every field carries its zero value and FetchFailed is
// set, so scoring never needs to branch on missing data.
type PageSignals struct {
	FetchFailed bool   `json:"fetchFailed"`
	FinalURL    string `json:"finalUrl,omitempty"`
	HTTPS       bool   `json:"https"`
	StatusCode  int    `json:"statusCode,omitempty"`

	Title           string `json:"title"`
	MetaDescription string `json:"metaDescription"`
	Canonical       string `json:"canonical"`
	Lang            string `json:"lang"`
	Viewport        string `json:"viewport"`
	RobotsMeta      string `json:"robotsMeta"`

	H1s []string `json:"h1s"`
	H2s []string `json:"h2s"`
	H3s []string `json:"h3s"`

	ImageCount    int `json:"imageCount"`
	ImagesWithAlt int `json:"imagesWithAlt"`

	InternalLinks int `json:"internalLinks"`
	ExternalLinks int `json:"externalLinks"`

	WordCount     int    `json:"wordCount"`
	ContentSample string `json:"-"`

	OGTitle       string `json:"ogTitle"`
	OGDescription string `json:"ogDescription"`
	OGImage       string `json:"ogImage"`
	OGURL         string `json:"ogUrl"`

	SchemaTypes            []string `json:"schemaTypes"`
	HasFAQSchema           bool     `json:"hasFaqSchema"`
	HasHowToSchema         bool     `json:"hasHowToSchema"`
	HasOrganizationSchema  bool     `json:"hasOrganizationSchema"`
	HasLocalBusinessSchema bool     `json:"hasLocalBusinessSchema"`
	HasArticleSchema       bool     `json:"hasArticleSchema"`
	HasBreadcrumbSchema    bool     `json:"hasBreadcrumbSchema"`
	HasWebSiteSchema       bool     `json:"hasWebSiteSchema"`

	QuestionH2Count int  `json:"questionH2Count"`
	HasLists        bool `json:"hasLists"`

	HasPhone       bool `json:"hasPhone"`
	HasEmail       bool `json:"hasEmail"`
	HasAddress     bool `json:"hasAddress"`
	HasSocialLinks bool `json:"hasSocialLinks"`

	HasHreflang bool `json:"hasHreflang"`

	DetectedLanguage string `json:"detectedLanguage,omitempty"`
}

// AltCoverage returns the share of images carrying alt text, as a 0-1
// ratio. A page with no images at all counts as full coverage.
func (s *PageSignals) AltCoverage() float64 {
	if s.ImageCount == 0 {
		return 1.0
	}
	return float64(s.ImagesWithAlt) / float64(s.ImageCount)
}

// SiteInfo describes the crawlability facts gathered from robots.txt
// and the sitemap. PageCount is nil when no sitemap document was
// fetched; zero is a real count from an empty sitemap.
type SiteInfo struct {
	HasRobots     bool   `json:"hasRobots"`
	RobotsBlocked bool   `json:"robotsBlocked"`
	HasSitemap    bool   `json:"hasSitemap"`
	SitemapURL    string `json:"sitemapUrl,omitempty"`
	PageCount     *int   `json:"pageCount"`
}

// Keyword is a weighted term extracted from the page with presence
// flags across the placements that matter for ranking.
type Keyword struct {
	Term          string `json:"term"`
	Weight        int    `json:"weight"`
	InTitle       bool   `json:"inTitle"`
	InH1          bool   `json:"inH1"`
	InDescription bool   `json:"inDescription"`
	InURL         bool   `json:"inUrl"`
}

// Check is a single labelled pass/fail line inside a pillar.
type Check struct {
	Label  string `json:"label"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// PillarResult carries one pillar's points, its normalised 0-100 score
// and the checks that produced it.
type PillarResult struct {
	Name      string  `json:"name"`
	Score     int     `json:"score"`
	Points    int     `json:"points"`
	MaxPoints int     `json:"maxPoints"`
	Checks    []Check `json:"checks"`
}

// Recommendation priorities, ordered strongest first.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
)

// Recommendation is a single prioritised improvement suggestion.
type Recommendation struct {
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Fix         string `json:"fix"`
}

// HealthSummary is the at-a-glance site state returned with every
// audit. SiteInfo is embedded so crawlability facts appear flat.
type HealthSummary struct {
	Domain      string `json:"domain"`
	HTTPS       bool   `json:"https"`
	FetchError  bool   `json:"fetchError"`
	Redirected  bool   `json:"redirected"`
	PathBlocked bool   `json:"pathBlocked"`
	SiteInfo

	CriticalIssues int `json:"criticalIssues"`
	HighIssues     int `json:"highIssues"`
	MediumIssues   int `json:"mediumIssues"`

	SchemaTypes      []string            `json:"schemaTypes"`
	DetectedLanguage string              `json:"detectedLanguage,omitempty"`
	Technologies     map[string][]string `json:"technologies,omitempty"`
}

// Result is the full audit response for one URL.
type Result struct {
	URL        string    `json:"url"`
	AnalysedAt time.Time `json:"analysedAt"`

	Score   int            `json:"score"`
	Pillars []PillarResult `json:"pillars"`

	Keywords        []Keyword `json:"keywords"`
	KeywordCoverage int       `json:"keywordCoverage"`

	Recommendations []Recommendation `json:"recommendations"`
	WithheldCount   int              `json:"withheldCount"`

	Health HealthSummary           `json:"health"`
	Vitals pagespeed.CoreWebVitals `json:"coreWebVitals"`

	Timings *crawler.PerformanceMetrics `json:"fetchTimings,omitempty"`
}
