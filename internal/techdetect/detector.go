// Package techdetect identifies the technology stack of an audited
// page using wappalyzergo fingerprints: the CMS, ecommerce platform,
// CDN, analytics and whatever else leaves traces in headers or HTML.
package techdetect

import (
	"net/http"
	"sort"

	wappalyzer "github.com/projectdiscovery/wappalyzergo"
	"github.com/rs/zerolog/log"
)

// Result holds the technologies detected on one page.
type Result struct {
	// Technologies maps technology name to its categories
	// (e.g. {"WordPress": ["CMS"], "Cloudflare": ["CDN"]}).
	Technologies map[string][]string `json:"technologies"`
}

// Names returns the detected technology names in sorted order.
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.Technologies))
	for name := range r.Technologies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Detector wraps a wappalyzergo instance with its category labels
// resolved up front.
type Detector struct {
	client     *wappalyzer.Wappalyze
	categories map[int]string
}

// New loads the wappalyzergo fingerprint database. Loading is
// expensive, so callers hold one detector for the life of the process.
func New() (*Detector, error) {
	client, err := wappalyzer.New()
	if err != nil {
		return nil, err
	}

	categories := make(map[int]string)
	for id, cat := range wappalyzer.GetCategoriesMapping() {
		categories[id] = cat.Name
	}

	return &Detector{client: client, categories: categories}, nil
}

// Detect fingerprints one page from its response headers and HTML.
func (d *Detector) Detect(headers http.Header, body []byte) *Result {
	result := &Result{Technologies: make(map[string][]string)}

	for tech, info := range d.client.FingerprintWithCats(headers, body) {
		labels := make([]string, 0, len(info.Cats))
		for _, id := range info.Cats {
			if name, ok := d.categories[id]; ok {
				labels = append(labels, name)
			}
		}
		result.Technologies[tech] = labels
	}

	log.Debug().
		Int("tech_count", len(result.Technologies)).
		Msg("Fingerprinted page technologies")

	return result
}
