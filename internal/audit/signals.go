package audit

import (
	"bytes"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// contentSampleLimit caps the stripped body text retained for keyword
// zone weighting and language detection.
const contentSampleLimit = 5000

var (
	phonePattern   = regexp.MustCompile(`\+\d{8,15}|\(?\d{2,4}\)?[\s.-]\d{3,4}[\s.-]\d{3,4}`)
	emailPattern   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	addressPattern = regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Za-z0-9 .'-]{2,40}\b(street|st|avenue|ave|road|rd|boulevard|blvd|drive|dr|lane|ln|way|court|ct|place|pl|parade|terrace|highway|hwy|suite)\b`)
	socialPattern  = regexp.MustCompile(`(?i)https?://(www\.)?(facebook|instagram|linkedin|twitter|youtube|tiktok)\.com/|https?://(www\.)?x\.com/`)
)

// questionWords is the interrogative lead-word set used to classify an
// H2 as question-phrased.
var questionWords = map[string]bool{
	"how": true, "what": true, "why": true, "when": true, "where": true,
	"who": true, "which": true, "can": true, "do": true, "does": true,
	"is": true, "are": true, "should": true, "will": true,
}

func newSignals() *PageSignals {
	return &PageSignals{
		H1s:         []string{},
		H2s:         []string{},
		H3s:         []string{},
		SchemaTypes: []string{},
	}
}

// EmptySignals returns the all-defaults record used when the page
// fetch fails. Every slice is non-nil so consumers and JSON output see
// empty lists rather than null.
func EmptySignals() *PageSignals {
	s := newSignals()
	s.FetchFailed = true
	return s
}

// ExtractSignals parses the fetched HTML into a fully populated
// PageSignals record. Extraction is tolerant: malformed markup and
// broken structured-data blocks degrade individual signals to their
// defaults without aborting the rest.
func ExtractSignals(body []byte, pageURL string) *PageSignals {
	s := newSignals()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return s
	}

	s.Title = collapseSpace(doc.Find("title").First().Text())
	s.Lang = strings.TrimSpace(doc.Find("html").First().AttrOr("lang", ""))

	doc.Find("meta").Each(func(_ int, m *goquery.Selection) {
		content := strings.TrimSpace(m.AttrOr("content", ""))
		if content == "" {
			return
		}
		switch strings.ToLower(strings.TrimSpace(m.AttrOr("name", ""))) {
		case "description":
			if s.MetaDescription == "" {
				s.MetaDescription = content
			}
		case "robots":
			if s.RobotsMeta == "" {
				s.RobotsMeta = content
			}
		case "viewport":
			if s.Viewport == "" {
				s.Viewport = content
			}
		}
		prop := strings.ToLower(strings.TrimSpace(m.AttrOr("property", "")))
		if suffix, ok := strings.CutPrefix(prop, "og:"); ok {
			switch suffix {
			case "title":
				if s.OGTitle == "" {
					s.OGTitle = content
				}
			case "description":
				if s.OGDescription == "" {
					s.OGDescription = content
				}
			case "image":
				if s.OGImage == "" {
					s.OGImage = content
				}
			case "url":
				if s.OGURL == "" {
					s.OGURL = content
				}
			}
		}
	})

	doc.Find("link").Each(func(_ int, l *goquery.Selection) {
		rel := strings.ToLower(strings.TrimSpace(l.AttrOr("rel", "")))
		if rel == "canonical" && s.Canonical == "" {
			s.Canonical = strings.TrimSpace(l.AttrOr("href", ""))
		}
		if _, ok := l.Attr("hreflang"); ok && rel == "alternate" {
			s.HasHreflang = true
		}
	})

	s.H1s = headingTexts(doc, "h1")
	s.H2s = headingTexts(doc, "h2")
	s.H3s = headingTexts(doc, "h3")

	for _, h2 := range s.H2s {
		fields := strings.Fields(strings.ToLower(h2))
		if len(fields) > 0 && questionWords[fields[0]] {
			s.QuestionH2Count++
		}
	}

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		s.ImageCount++
		if strings.TrimSpace(img.AttrOr("alt", "")) != "" {
			s.ImagesWithAlt++
		}
	})

	pageHost := hostOf(pageURL)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		lower := strings.ToLower(href)
		switch {
		case href == "" || strings.HasPrefix(href, "#"):
		case strings.HasPrefix(lower, "javascript:"),
			strings.HasPrefix(lower, "mailto:"),
			strings.HasPrefix(lower, "tel:"),
			strings.HasPrefix(lower, "data:"):
		case strings.HasPrefix(lower, "http://"),
			strings.HasPrefix(lower, "https://"),
			strings.HasPrefix(href, "//"):
			if hostOf(href) == pageHost {
				s.InternalLinks++
			} else {
				s.ExternalLinks++
			}
		default:
			s.InternalLinks++
		}
	})

	s.HasLists = doc.Find("ul, ol").Length() > 0

	// Structured data has to be read before script tags are stripped
	// for the body text pass.
	seen := make(map[string]bool)
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, block *goquery.Selection) {
		var payload any
		if err := json.Unmarshal([]byte(block.Text()), &payload); err != nil {
			return
		}
		collectSchemaTypes(payload, func(t string) {
			t = strings.TrimSpace(t)
			if t == "" {
				return
			}
			if !seen[t] {
				seen[t] = true
				s.SchemaTypes = append(s.SchemaTypes, t)
			}
			s.applySchemaFlag(t)
		})
	})

	doc.Find("script, style, noscript, svg").Remove()
	bodyText := collapseSpace(doc.Find("body").Text())

	for _, token := range strings.Fields(bodyText) {
		if len(token) > 1 {
			s.WordCount++
		}
	}
	s.ContentSample = truncateRunes(bodyText, contentSampleLimit)

	rawHTML := string(body)
	s.HasPhone = phonePattern.MatchString(bodyText)
	s.HasEmail = emailPattern.MatchString(rawHTML)
	s.HasAddress = addressPattern.MatchString(bodyText) || doc.Find("address").Length() > 0
	s.HasSocialLinks = socialPattern.MatchString(rawHTML)

	return s
}

// collectSchemaTypes walks a decoded JSON-LD payload and reports every
// @type value it finds. Top-level arrays and @graph containers are
// traversed; scalar and array @type forms are both flattened.
func collectSchemaTypes(v any, report func(string)) {
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			collectSchemaTypes(item, report)
		}
	case map[string]any:
		switch t := val["@type"].(type) {
		case string:
			report(t)
		case []any:
			for _, item := range t {
				if str, ok := item.(string); ok {
					report(str)
				}
			}
		}
		if graph, ok := val["@graph"]; ok {
			collectSchemaTypes(graph, report)
		}
	}
}

// applySchemaFlag sets the derived boolean for a single schema type.
// Suffix matches cover the common subtype families, for example
// MedicalOrganization or HardwareStore.
func (s *PageSignals) applySchemaFlag(t string) {
	switch t {
	case "FAQPage":
		s.HasFAQSchema = true
	case "HowTo":
		s.HasHowToSchema = true
	case "BreadcrumbList":
		s.HasBreadcrumbSchema = true
	case "WebSite":
		s.HasWebSiteSchema = true
	case "BlogPosting":
		s.HasArticleSchema = true
	}
	if t == "Organization" || strings.HasSuffix(t, "Organization") {
		s.HasOrganizationSchema = true
	}
	if t == "LocalBusiness" || strings.HasSuffix(t, "Business") ||
		strings.HasSuffix(t, "Store") || strings.HasSuffix(t, "Restaurant") {
		s.HasLocalBusinessSchema = true
	}
	if t == "Article" || strings.HasSuffix(t, "Article") {
		s.HasArticleSchema = true
	}
}

func headingTexts(doc *goquery.Document, tag string) []string {
	out := []string{}
	doc.Find(tag).Each(func(_ int, h *goquery.Selection) {
		if text := collapseSpace(h.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// hostOf returns the lower-cased host of a URL with any www prefix
// stripped, or "" when the URL does not parse.
func hostOf(rawURL string) string {
	if strings.HasPrefix(rawURL, "//") {
		rawURL = "https:" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
