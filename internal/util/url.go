package util

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// NormaliseDomain strips the scheme, a www prefix and any trailing
// slash, leaving the bare host.
func NormaliseDomain(domain string) string {
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "www.")
	return strings.TrimSuffix(domain, "/")
}

// ValidateDomain checks that a host looks like a public registrable
// domain. The returned error names the first problem found.
func ValidateDomain(domain string) error {
	domain = NormaliseDomain(domain)
	if domain == "" {
		return fmt.Errorf("domain cannot be empty")
	}

	// Ports are legal, just not part of the name being checked
	if idx := strings.LastIndex(domain, ":"); idx != -1 {
		domain = domain[:idx]
	}

	if !strings.Contains(domain, ".") {
		return fmt.Errorf("domain must contain a TLD (e.g., .com, .co.uk)")
	}

	labels := strings.Split(domain, ".")
	for _, label := range labels {
		if err := validateLabel(label); err != nil {
			return err
		}
	}

	if tld := labels[len(labels)-1]; len(tld) < 2 {
		return fmt.Errorf("TLD must be at least 2 characters")
	}

	return checkBlockedHost(domain)
}

func validateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("domain contains empty segment")
	}
	for _, c := range label {
		if !isDomainChar(c) {
			return fmt.Errorf("domain contains invalid character: %c", c)
		}
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return fmt.Errorf("domain segment cannot start or end with hyphen")
	}
	return nil
}

func isDomainChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		return true
	}
	return false
}

// checkBlockedHost rejects localhost and similar internal names so an
// audit can never be pointed at the service's own network.
func checkBlockedHost(domain string) error {
	lower := strings.ToLower(domain)
	for _, blocked := range []string{"localhost", "localhost.localdomain", "local", "internal"} {
		if lower == blocked || strings.HasSuffix(lower, "."+blocked) {
			return fmt.Errorf("domain %q is not allowed", domain)
		}
	}
	return nil
}

// NormaliseURL prepares user input for fetching. Bare domains get an
// https:// scheme while an explicit http:// is preserved so the audit
// observes the site as requested. Returns "" when the input cannot be
// parsed into a usable URL.
func NormaliseURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	if !strings.HasPrefix(rawURL, "https://") && !strings.HasPrefix(rawURL, "http://") {
		rawURL = "https://" + rawURL
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		log.Debug().Str("url", rawURL).Err(err).Msg("Invalid URL format")
		return ""
	}

	// Double-pasted input like https://http://example.com leaves the
	// inner scheme inside the host, strip it
	if _, rest, found := strings.Cut(parsedURL.Host, "://"); found {
		log.Debug().Str("url", rawURL).Msg("URL contains embedded scheme in host part, fixing")
		parsedURL.Host = rest
		rawURL = parsedURL.String()
	}

	return rawURL
}

// Origin returns the scheme://host portion of a URL, or "" if the URL
// cannot be parsed.
func Origin(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

// ExtractPathFromURL returns the path component of a full URL, "/"
// when the URL has none.
func ExtractPathFromURL(fullURL string) string {
	path := strings.TrimPrefix(fullURL, "http://")
	path = strings.TrimPrefix(path, "https://")
	path = strings.TrimPrefix(path, "www.")

	if idx := strings.Index(path, "/"); idx != -1 {
		return path[idx:]
	}
	return "/"
}

// ConstructURL joins a site origin and a path into a full URL.
func ConstructURL(origin, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(origin, "/") + path
}

// IsSignificantRedirect reports whether a redirect landed somewhere
// meaningfully different from the requested URL. Scheme upgrades, www
// flips, default ports and trailing slashes all count as the same
// place; only host or path changes are significant.
func IsSignificantRedirect(originalURL, redirectURL string) bool {
	if redirectURL == "" {
		return false
	}

	orig, origErr := url.Parse(originalURL)
	redir, redirErr := url.Parse(redirectURL)
	if origErr != nil || redirErr != nil {
		// Unparseable URLs get flagged rather than silently passed
		return true
	}

	if comparableHost(orig) != comparableHost(redir) {
		return true
	}
	return comparablePath(orig.Path) != comparablePath(redir.Path)
}

// comparableHost drops the www prefix and default ports, then
// lowercases what is left.
func comparableHost(u *url.URL) string {
	host := stripDefaultPort(u.Host, u.Scheme)
	return strings.ToLower(strings.TrimPrefix(host, "www."))
}

// comparablePath treats "" as "/" and ignores a trailing slash.
func comparablePath(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

func stripDefaultPort(host, scheme string) string {
	switch scheme {
	case "http":
		return strings.TrimSuffix(host, ":80")
	case "https":
		return strings.TrimSuffix(host, ":443")
	}
	return host
}
