package audit

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/SRK-Yoom/siteaudit/internal/pagespeed"
)

// Pillar names as they appear in the response.
const (
	PillarPerformance   = "Performance"
	PillarTechnicalSEO  = "Technical SEO"
	PillarContent       = "Content & Keywords"
	PillarGEO           = "GEO Readiness"
	PillarAEO           = "AEO Readiness"
	PillarAccessibility = "Accessibility"
)

// ScoreInput carries everything the scoring and recommendation passes
// read. All fields are value-complete before scoring starts, so every
// pillar function is pure.
type ScoreInput struct {
	Signals  *PageSignals
	Site     SiteInfo
	Scores   pagespeed.CategoryScores
	Keywords []Keyword
	URL      string
}

// ComputePillars evaluates all six pillars and returns them in fixed
// order along with the overall score. Pillar maxima sum to 100, so the
// overall score is simply the sum of awarded points.
func ComputePillars(in ScoreInput) ([]PillarResult, int) {
	pillars := []PillarResult{
		scorePerformance(in),
		scoreTechnicalSEO(in),
		scoreContent(in),
		scoreGEO(in),
		scoreAEO(in),
		scoreAccessibility(in),
	}

	total := 0
	for _, p := range pillars {
		total += p.Points
	}
	return pillars, total
}

// scorePerformance maps the Lighthouse performance score linearly into
// 20 points, with a further 5 for clearing the mobile-optimised bar.
func scorePerformance(in ScoreInput) PillarResult {
	perf := in.Scores.Performance
	points := int(math.Round(perf * 20))

	checks := []Check{{
		Label:  "Mobile performance",
		Passed: perf >= 0.75,
		Detail: fmt.Sprintf("Lighthouse performance %d/100 (%s)", percent(perf), performanceTier(perf)),
	}}

	optimised := perf >= 0.75
	if optimised {
		points += 5
	}
	checks = append(checks, Check{
		Label:  "Mobile optimised",
		Passed: optimised,
	})

	return finalise(PillarPerformance, points, 25, checks)
}

func performanceTier(perf float64) string {
	switch {
	case perf >= 0.90:
		return "Excellent"
	case perf >= 0.75:
		return "Good"
	case perf >= 0.50:
		return "Needs improvement"
	default:
		return "Poor"
	}
}

func scoreTechnicalSEO(in ScoreInput) PillarResult {
	s := in.Signals
	points := 0
	checks := []Check{}

	seo := in.Scores.SEO
	points += int(math.Round(seo * 6))
	checks = append(checks, Check{
		Label:  "Search engine crawlability",
		Passed: seo >= 0.7,
		Detail: fmt.Sprintf("Lighthouse SEO %d/100", percent(seo)),
	})

	titleLen := utf8.RuneCountInString(s.Title)
	switch {
	case titleLen >= 30 && titleLen <= 60:
		points += 2
		checks = append(checks, Check{Label: "Title tag", Passed: true, Detail: fmt.Sprintf("Title is %d characters", titleLen)})
	case titleLen > 0:
		points++
		checks = append(checks, Check{Label: "Title tag", Passed: false, Detail: fmt.Sprintf("Title is %d characters, aim for 30-60", titleLen)})
	default:
		checks = append(checks, Check{Label: "Title tag", Passed: false, Detail: "Missing title tag"})
	}

	descLen := utf8.RuneCountInString(s.MetaDescription)
	switch {
	case descLen >= 70 && descLen <= 160:
		points += 2
		checks = append(checks, Check{Label: "Meta description", Passed: true, Detail: fmt.Sprintf("Description is %d characters", descLen)})
	case descLen > 0:
		points++
		checks = append(checks, Check{Label: "Meta description", Passed: false, Detail: fmt.Sprintf("Description is %d characters, aim for 70-160", descLen)})
	default:
		checks = append(checks, Check{Label: "Meta description", Passed: false, Detail: "Missing meta description"})
	}

	cleanURL := !strings.Contains(in.URL, "_") && len(in.URL) < 100
	if cleanURL {
		points++
	}
	checks = append(checks, Check{Label: "Clean URL structure", Passed: cleanURL})

	if s.HTTPS {
		points++
	}
	checks = append(checks, Check{Label: "HTTPS enabled", Passed: s.HTTPS})

	if in.Site.HasRobots {
		points++
	}
	checks = append(checks, Check{Label: "robots.txt present", Passed: in.Site.HasRobots})

	if in.Site.HasSitemap {
		points += 2
	}
	checks = append(checks, Check{Label: "XML sitemap", Passed: in.Site.HasSitemap})

	if s.Canonical != "" {
		points += 2
	}
	checks = append(checks, Check{Label: "Canonical URL", Passed: s.Canonical != ""})

	coverage := s.AltCoverage()
	switch {
	case coverage >= 0.90:
		points += 3
	case coverage >= 0.70:
		points += 2
	case coverage >= 0.50:
		points++
	}
	altDetail := fmt.Sprintf("%d of %d images have alt text", s.ImagesWithAlt, s.ImageCount)
	if s.ImageCount == 0 {
		altDetail = "No images on page"
	}
	checks = append(checks, Check{Label: "Image alt text", Passed: coverage >= 0.90, Detail: altDetail})

	return finalise(PillarTechnicalSEO, points, 20, checks)
}

func scoreContent(in ScoreInput) PillarResult {
	s := in.Signals
	points := 0
	checks := []Check{}

	switch len(s.H1s) {
	case 1:
		points += 3
		checks = append(checks, Check{Label: "H1 heading", Passed: true, Detail: "Exactly one H1 heading"})
	case 0:
		checks = append(checks, Check{Label: "H1 heading", Passed: false, Detail: "No H1 heading"})
	default:
		points++
		checks = append(checks, Check{Label: "H1 heading", Passed: false, Detail: fmt.Sprintf("%d H1 headings, use exactly one", len(s.H1s))})
	}

	switch {
	case len(s.H2s) >= 2:
		points += 2
		checks = append(checks, Check{Label: "Subheading structure", Passed: true, Detail: fmt.Sprintf("%d H2 headings", len(s.H2s))})
	case len(s.H2s) == 1:
		points++
		checks = append(checks, Check{Label: "Subheading structure", Passed: false, Detail: "Only one H2 heading"})
	default:
		checks = append(checks, Check{Label: "Subheading structure", Passed: false, Detail: "No H2 headings"})
	}

	primary, hasPrimary := primaryKeyword(in.Keywords)
	if hasPrimary && primary.InTitle {
		points += 2
	}
	checks = append(checks, Check{Label: "Primary keyword in title", Passed: hasPrimary && primary.InTitle})

	if hasPrimary && primary.InH1 {
		points += 2
	}
	checks = append(checks, Check{Label: "Primary keyword in H1", Passed: hasPrimary && primary.InH1})

	inDescription := 0
	for i, kw := range in.Keywords {
		if i >= coverageKeywords {
			break
		}
		if kw.InDescription {
			inDescription++
		}
	}
	if inDescription >= 2 {
		points++
	}
	checks = append(checks, Check{Label: "Keywords in meta description", Passed: inDescription >= 2})

	switch {
	case s.WordCount >= 1500:
		points += 3
	case s.WordCount >= 800:
		points += 2
	case s.WordCount >= 300:
		points++
	}
	checks = append(checks, Check{Label: "Content depth", Passed: s.WordCount >= 800, Detail: fmt.Sprintf("%d words", s.WordCount)})

	og := ogFieldCount(s)
	switch {
	case og == 4:
		points += 2
	case og >= 2:
		points++
	}
	checks = append(checks, Check{Label: "Open Graph tags", Passed: og == 4, Detail: fmt.Sprintf("%d of 4 Open Graph tags", og)})

	return finalise(PillarContent, points, 15, checks)
}

func scoreGEO(in ScoreInput) PillarResult {
	s := in.Signals
	points := 0
	checks := []Check{}

	entity := s.HasOrganizationSchema || s.HasLocalBusinessSchema
	if entity {
		points += 4
	}
	checks = append(checks, Check{Label: "Organisation schema", Passed: entity})

	variety := len(s.SchemaTypes)
	switch {
	case variety >= 3:
		points += 2
	case variety >= 1:
		points++
	}
	checks = append(checks, Check{Label: "Schema variety", Passed: variety >= 3, Detail: fmt.Sprintf("%d schema types", variety)})

	nap := 0
	for _, present := range []bool{s.HasPhone, s.HasAddress, s.HasEmail} {
		if present {
			nap++
		}
	}
	points += nap
	checks = append(checks, Check{Label: "Contact details", Passed: nap >= 2, Detail: fmt.Sprintf("%d of 3 contact signals", nap)})

	if s.HasSocialLinks {
		points += 2
	}
	checks = append(checks, Check{Label: "Social profiles linked", Passed: s.HasSocialLinks})

	ogComplete := ogFieldCount(s) == 4
	if ogComplete {
		points++
	}
	checks = append(checks, Check{Label: "Open Graph complete", Passed: ogComplete})

	if s.Lang != "" {
		points++
	}
	checks = append(checks, Check{Label: "Language declared", Passed: s.Lang != ""})

	if s.WordCount >= 300 {
		points++
	}
	if s.HasLists {
		points++
	}
	checks = append(checks, Check{Label: "Citable content", Passed: s.WordCount >= 300 && s.HasLists})

	return finalise(PillarGEO, points, 15, checks)
}

func scoreAEO(in ScoreInput) PillarResult {
	s := in.Signals
	points := 0
	checks := []Check{}

	if s.HasFAQSchema {
		points += 4
	}
	checks = append(checks, Check{Label: "FAQ schema", Passed: s.HasFAQSchema})

	if s.HasHowToSchema {
		points += 2
	}
	checks = append(checks, Check{Label: "HowTo schema", Passed: s.HasHowToSchema})

	switch {
	case s.QuestionH2Count >= 3:
		points += 4
	case s.QuestionH2Count >= 1:
		points += 2
	}
	checks = append(checks, Check{Label: "Question-phrased headings", Passed: s.QuestionH2Count >= 3, Detail: fmt.Sprintf("%d question headings", s.QuestionH2Count)})

	if s.HasLists {
		points += 2
	}
	checks = append(checks, Check{Label: "Structured lists", Passed: s.HasLists})

	supporting := 0
	for _, present := range []bool{s.HasArticleSchema, s.HasBreadcrumbSchema, s.HasWebSiteSchema} {
		if present {
			supporting++
		}
	}
	switch {
	case supporting >= 2:
		points += 3
	case supporting == 1:
		points += 2
	}
	checks = append(checks, Check{Label: "Supporting schema", Passed: supporting >= 2, Detail: fmt.Sprintf("%d supporting schema types", supporting)})

	return finalise(PillarAEO, points, 15, checks)
}

func scoreAccessibility(in ScoreInput) PillarResult {
	a11y := in.Scores.Accessibility
	bp := in.Scores.BestPractices

	points := int(math.Round(a11y*6)) + int(math.Round(bp*4))
	checks := []Check{
		{
			Label:  "Accessibility score",
			Passed: a11y >= 0.9,
			Detail: fmt.Sprintf("Lighthouse accessibility %d/100", percent(a11y)),
		},
		{
			Label:  "Best practices",
			Passed: bp >= 0.9,
			Detail: fmt.Sprintf("Lighthouse best practices %d/100", percent(bp)),
		},
	}

	return finalise(PillarAccessibility, points, 10, checks)
}

// finalise clamps the point total to the pillar maximum and derives
// the normalised score.
func finalise(name string, points, max int, checks []Check) PillarResult {
	if points > max {
		points = max
	}
	if points < 0 {
		points = 0
	}
	return PillarResult{
		Name:      name,
		Score:     int(math.Round(float64(points) / float64(max) * 100)),
		Points:    points,
		MaxPoints: max,
		Checks:    checks,
	}
}

func primaryKeyword(keywords []Keyword) (Keyword, bool) {
	if len(keywords) == 0 {
		return Keyword{}, false
	}
	return keywords[0], true
}

func ogFieldCount(s *PageSignals) int {
	count := 0
	for _, field := range []string{s.OGTitle, s.OGDescription, s.OGImage, s.OGURL} {
		if field != "" {
			count++
		}
	}
	return count
}

func percent(score float64) int {
	return int(math.Round(score * 100))
}
