package audit

import "sort"

// maxDisplayRecommendations caps how many recommendations the response
// carries; the remainder is reported as a withheld count.
const maxDisplayRecommendations = 6

// Recommendation categories.
const (
	CategorySecurity       = "Security"
	CategoryPerformance    = "Performance"
	CategoryMobile         = "Mobile"
	CategoryTechnicalSEO   = "Technical SEO"
	CategoryContent        = "Content"
	CategoryStructuredData = "Structured Data"
	CategoryAEO            = "AEO"
	CategoryAccessibility  = "Accessibility"
)

type recommendationRule func(in ScoreInput) *Recommendation

// recommendationRules is evaluated top to bottom. Every matching rule
// contributes exactly one record and no rule suppresses another; the
// fixed order is the tie-break within a priority band.
var recommendationRules = []recommendationRule{
	func(in ScoreInput) *Recommendation {
		if in.Signals.HTTPS {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityCritical,
			Category:    CategorySecurity,
			Title:       "Site is not served over HTTPS",
			Description: "Browsers flag HTTP sites as not secure and search engines rank them lower.",
			Fix:         "Install a TLS certificate and redirect all HTTP traffic to HTTPS.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if in.Scores.Performance >= 0.5 {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityCritical,
			Category:    CategoryPerformance,
			Title:       "Mobile performance is critically slow",
			Description: "The page scores poorly on mobile speed, which drives visitors away before the page loads.",
			Fix:         "Compress images and defer non-critical JavaScript to bring load times down.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if in.Scores.Performance < 0.5 || in.Scores.Performance >= 0.75 {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityHigh,
			Category:    CategoryPerformance,
			Title:       "Mobile performance needs improvement",
			Description: "Mobile load speed is below the level search engines reward.",
			Fix:         "Optimise images, trim unused scripts and enable caching on static assets.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if in.Signals.Title != "" {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityCritical,
			Category:    CategoryTechnicalSEO,
			Title:       "Missing title tag",
			Description: "The title tag is the single strongest on-page ranking signal and it is absent.",
			Fix:         "Add a unique 30-60 character title describing the page and its primary keyword.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if len(in.Signals.H1s) > 0 {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityCritical,
			Category:    CategoryContent,
			Title:       "Missing H1 heading",
			Description: "Search engines and answer engines use the H1 to understand what the page is about.",
			Fix:         "Add exactly one H1 heading containing the primary keyword.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if in.Signals.MetaDescription != "" {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityHigh,
			Category:    CategoryTechnicalSEO,
			Title:       "Missing meta description",
			Description: "Without a meta description search engines pick their own snippet, which lowers click-through.",
			Fix:         "Write a 70-160 character description that summarises the page and invites the click.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if in.Signals.Viewport != "" {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityHigh,
			Category:    CategoryMobile,
			Title:       "No mobile viewport configured",
			Description: "The page renders at desktop width on phones, making text unreadable without zooming.",
			Fix:         `Add <meta name="viewport" content="width=device-width, initial-scale=1"> to the head.`,
		}
	},
	func(in ScoreInput) *Recommendation {
		seo := in.Scores.SEO
		if seo >= 0.7 {
			return nil
		}
		priority := PriorityHigh
		if seo < 0.5 {
			priority = PriorityCritical
		}
		return &Recommendation{
			Priority:    priority,
			Category:    CategoryTechnicalSEO,
			Title:       "Low search engine optimisation score",
			Description: "Lighthouse found crawlability and indexing problems that hold rankings back.",
			Fix:         "Fix crawl errors, descriptive link text and indexing directives flagged in a Lighthouse SEO report.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if !in.Site.RobotsBlocked {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityCritical,
			Category:    CategoryTechnicalSEO,
			Title:       "robots.txt blocks all crawlers",
			Description: "The robots.txt disallows the whole site, so search engines cannot index any page.",
			Fix:         "Remove the blanket Disallow rule for User-agent: * from robots.txt.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if in.Site.HasSitemap {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityHigh,
			Category:    CategoryTechnicalSEO,
			Title:       "No XML sitemap found",
			Description: "A sitemap helps crawlers discover every page, especially ones with few inbound links.",
			Fix:         "Generate a sitemap.xml, serve it at the site root and declare it in robots.txt.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if in.Signals.HasOrganizationSchema || in.Signals.HasLocalBusinessSchema {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityHigh,
			Category:    CategoryStructuredData,
			Title:       "No Organisation or LocalBusiness schema",
			Description: "AI systems rely on entity schema to identify and cite a business; without it the site is invisible to them.",
			Fix:         "Add Organization or LocalBusiness JSON-LD with name, logo, address and contact details.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if in.Signals.HasFAQSchema || in.Signals.HasHowToSchema {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityHigh,
			Category:    CategoryAEO,
			Title:       "No FAQ or HowTo schema",
			Description: "Answer engines favour pages whose questions and steps are marked up explicitly.",
			Fix:         "Mark up existing Q&A or instructional content with FAQPage or HowTo JSON-LD.",
		}
	},
	func(in ScoreInput) *Recommendation {
		primary, ok := primaryKeyword(in.Keywords)
		if !ok || primary.InTitle || primary.InH1 {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityHigh,
			Category:    CategoryContent,
			Title:       "Primary keyword missing from title and H1",
			Description: "The strongest term on the page does not appear in either placement search engines weigh most.",
			Fix:         "Work the primary keyword naturally into the title tag and the H1 heading.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if in.Signals.ImageCount == 0 || in.Signals.AltCoverage() >= 0.5 {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityMedium,
			Category:    CategoryAccessibility,
			Title:       "Images missing alt text",
			Description: "Over half the images have no alt text, hurting accessibility and image search visibility.",
			Fix:         "Add descriptive alt attributes to every meaningful image.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if in.Signals.QuestionH2Count > 0 || in.Signals.HasFAQSchema {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityMedium,
			Category:    CategoryAEO,
			Title:       "No question-phrased content",
			Description: "The page has no question headings and no FAQ markup, so it rarely surfaces as a direct answer.",
			Fix:         "Add a section of common customer questions phrased as H2 headings.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if in.Scores.Accessibility >= 0.7 {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityMedium,
			Category:    CategoryAccessibility,
			Title:       "Accessibility issues detected",
			Description: "Lighthouse found barriers for assistive-technology users, which also depress search rankings.",
			Fix:         "Address the contrast, labelling and landmark issues in a Lighthouse accessibility report.",
		}
	},
	func(in ScoreInput) *Recommendation {
		if in.Signals.Canonical != "" {
			return nil
		}
		return &Recommendation{
			Priority:    PriorityMedium,
			Category:    CategoryTechnicalSEO,
			Title:       "Missing canonical URL",
			Description: "Without a canonical tag, URL variants can split ranking signals across duplicates.",
			Fix:         `Add <link rel="canonical"> pointing at the preferred URL for this page.`,
		}
	},
}

// AllRecommendations evaluates every rule and returns the matches
// sorted critical first, preserving rule order within each priority.
func AllRecommendations(in ScoreInput) []Recommendation {
	recs := []Recommendation{}
	for _, rule := range recommendationRules {
		if rec := rule(in); rec != nil {
			recs = append(recs, *rec)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return priorityRank(recs[i].Priority) < priorityRank(recs[j].Priority)
	})
	return recs
}

// DisplayRecommendations truncates the full list to the display cap
// and reports how many were withheld.
func DisplayRecommendations(all []Recommendation) ([]Recommendation, int) {
	if len(all) <= maxDisplayRecommendations {
		return all, 0
	}
	return all[:maxDisplayRecommendations], len(all) - maxDisplayRecommendations
}

// CountByPriority tallies the full recommendation list for the health
// summary, including withheld entries.
func CountByPriority(all []Recommendation) (critical, high, medium int) {
	for _, rec := range all {
		switch rec.Priority {
		case PriorityCritical:
			critical++
		case PriorityHigh:
			high++
		case PriorityMedium:
			medium++
		}
	}
	return critical, high, medium
}

func priorityRank(priority string) int {
	switch priority {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}
