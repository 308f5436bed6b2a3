package audit

import (
	"math"
	"net/url"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxKeywords      = 8
	coverageKeywords = 5
	minTermLength    = 4
)

// stopwords filters generic terms out of the keyword table. Tokens
// shorter than minTermLength never reach the lookup, so the set only
// carries longer words.
var stopwords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true,
	"against": true, "also": true, "because": true, "been": true,
	"before": true, "being": true, "below": true, "between": true,
	"both": true, "click": true, "could": true, "does": true,
	"doing": true, "down": true, "during": true, "each": true,
	"from": true, "further": true, "have": true, "having": true,
	"here": true, "hers": true, "himself": true, "into": true,
	"itself": true, "just": true, "learn": true, "like": true,
	"made": true, "make": true, "many": true, "more": true,
	"most": true, "much": true, "once": true, "only": true,
	"other": true, "ours": true, "over": true, "page": true,
	"read": true, "same": true, "should": true, "some": true,
	"such": true, "than": true, "that": true, "their": true,
	"theirs": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true,
	"through": true, "under": true, "until": true, "very": true,
	"want": true, "well": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true,
	"whom": true, "will": true, "with": true, "would": true,
	"your": true, "yours": true,
}

// ExtractKeywords builds the weighted term table over the page's five
// keyword zones and returns the top terms with their placement flags,
// plus the coverage percentage over the leading terms.
//
// Ties on weighted frequency keep first-occurrence order, with zones
// processed title first and body last, so repeated runs over the same
// signals always produce the same ranking.
func ExtractKeywords(s *PageSignals, pageURL string) ([]Keyword, int) {
	zones := []struct {
		text   string
		weight int
	}{
		{s.Title, 5},
		{strings.Join(s.H1s, " "), 4},
		{s.MetaDescription, 3},
		{strings.Join(firstN(s.H2s, 8), " "), 2},
		{s.ContentSample, 1},
	}

	weights := make(map[string]int)
	order := []string{}
	for _, zone := range zones {
		for _, term := range tokenize(zone.text) {
			if utf8.RuneCountInString(term) < minTermLength || stopwords[term] {
				continue
			}
			if _, known := weights[term]; !known {
				order = append(order, term)
			}
			weights[term] += zone.weight
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return weights[order[i]] > weights[order[j]]
	})
	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}

	title := strings.ToLower(s.Title)
	h1s := strings.ToLower(strings.Join(s.H1s, " "))
	description := strings.ToLower(s.MetaDescription)
	path := urlPath(pageURL)

	keywords := make([]Keyword, 0, len(order))
	for _, term := range order {
		keywords = append(keywords, Keyword{
			Term:          term,
			Weight:        weights[term],
			InTitle:       strings.Contains(title, term),
			InH1:          strings.Contains(h1s, term),
			InDescription: strings.Contains(description, term),
			InURL:         strings.Contains(path, term),
		})
	}

	return keywords, coverage(keywords)
}

// coverage is the rounded mean, over the top keywords, of how many of
// the four placement flags each one satisfies.
func coverage(keywords []Keyword) int {
	top := keywords
	if len(top) > coverageKeywords {
		top = top[:coverageKeywords]
	}
	if len(top) == 0 {
		return 0
	}

	var sum float64
	for _, kw := range top {
		flags := 0
		for _, present := range []bool{kw.InTitle, kw.InH1, kw.InDescription, kw.InURL} {
			if present {
				flags++
			}
		}
		sum += float64(flags) / 4.0
	}
	return int(math.Round(sum / float64(len(top)) * 100))
}

// tokenize lower-cases the text and splits on every non-alphanumeric
// rune.
func tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func urlPath(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return strings.ToLower(pageURL)
	}
	return strings.ToLower(u.Path)
}
