package util

import (
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// RequestMeta is the client context attached to lead notifications so
// the team can see who asked for a report and from where.
type RequestMeta struct {
	IP        string
	UserAgent string
	Browser   string
	OS        string
	Device    string // browser and OS combined, "Chrome on macOS"
	City      string
	Region    string
	Country   string // full name, expanded from the ISO code Cloudflare sends
	Location  string // e.g. "Melbourne, Victoria, Australia"
	Timestamp time.Time
}

// ExtractRequestMeta reads client metadata from the request. The cf-*
// geo headers are only present behind Cloudflare with the visitor
// location transform enabled; missing values degrade to empty fields.
func ExtractRequestMeta(r *http.Request) *RequestMeta {
	m := &RequestMeta{
		IP:        GetClientIP(r),
		UserAgent: r.UserAgent(),
		City:      r.Header.Get("cf-ipcity"),
		Region:    r.Header.Get("cf-region"),
		Country:   countryName(r.Header.Get("cf-ipcountry")),
		Timestamp: time.Now(),
	}
	m.Browser = matchUserAgent(m.UserAgent, browserRules)
	m.OS = matchUserAgent(m.UserAgent, osRules)
	m.Device = deviceLabel(m.Browser, m.OS)
	m.Location = joinLocation(m.City, m.Region, m.Country)
	return m
}

func deviceLabel(browser, os string) string {
	switch {
	case browser != "" && os != "":
		return fmt.Sprintf("%s on %s", browser, os)
	case browser != "":
		return browser
	default:
		return os
	}
}

// joinLocation builds "city, region, country", dropping blanks and
// repeats ("Singapore, Singapore, Singapore" collapses to one).
func joinLocation(city, region, country string) string {
	var parts []string
	for _, part := range []string{city, region, country} {
		if part != "" && !slices.Contains(parts, part) {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// GetClientIP resolves the originating address, preferring proxy
// headers over the socket peer.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// uaRule maps user agent substrings to a product name. Rules run in
// order and the except tokens veto a match, so specific browsers must
// be listed before the engines they embed.
type uaRule struct {
	name   string
	tokens []string
	except []string
}

var browserRules = []uaRule{
	{name: "Edge", tokens: []string{"Edg/", "Edge/"}},
	{name: "Opera", tokens: []string{"OPR/", "Opera"}},
	{name: "Brave", tokens: []string{"Brave"}},
	{name: "Vivaldi", tokens: []string{"Vivaldi"}},
	{name: "Chrome", tokens: []string{"Chrome/"}, except: []string{"Chromium"}},
	{name: "Firefox", tokens: []string{"Firefox/"}},
	{name: "Safari", tokens: []string{"Safari/"}, except: []string{"Chrome"}},
}

var osRules = []uaRule{
	{name: "iOS", tokens: []string{"iPhone", "iPad"}},
	{name: "macOS", tokens: []string{"Macintosh", "Mac OS"}},
	{name: "Windows", tokens: []string{"Windows"}},
	{name: "Android", tokens: []string{"Android"}},
	{name: "Linux", tokens: []string{"Linux"}},
	{name: "ChromeOS", tokens: []string{"CrOS"}},
}

func matchUserAgent(ua string, rules []uaRule) string {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return ""
	}
outer:
	for _, rule := range rules {
		for _, veto := range rule.except {
			if strings.Contains(ua, veto) {
				continue outer
			}
		}
		for _, token := range rule.tokens {
			if strings.Contains(ua, token) {
				return rule.name
			}
		}
	}
	return ""
}

// regionNames renders CLDR English territory names, so codes resolve
// the same way Cloudflare's own dashboards label them.
var regionNames = display.English.Regions()

// countryName expands an ISO 3166-1 alpha-2 code to its English name.
// Unknown and user-assigned codes pass through unchanged.
func countryName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	region, err := language.ParseRegion(code)
	if err != nil || !region.IsCountry() {
		return strings.ToUpper(code)
	}
	if name := regionNames.Name(region); name != "" {
		return name
	}
	return strings.ToUpper(code)
}
