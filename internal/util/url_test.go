package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormaliseDomain(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"with_https", "https://example.com", "example.com"},
		{"with_http", "http://example.com", "example.com"},
		{"with_www", "www.example.com", "example.com"},
		{"with_https_and_www", "https://www.example.com", "example.com"},
		{"with_trailing_slash", "example.com/", "example.com"},
		{"with_all_prefixes", "https://www.example.com/", "example.com"},
		{"subdomain", "https://api.example.com", "api.example.com"},
		{"plain_domain", "example.com", "example.com"},
		{"with_port", "https://example.com:8080", "example.com:8080"},
		{"ip_address", "http://192.168.1.1", "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormaliseDomain(tt.input))
		})
	}
}

func TestNormaliseURL(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"plain_domain", "example.com", "https://example.com"},
		{"with_www", "www.example.com", "https://www.example.com"},
		{"explicit_http_preserved", "http://example.com", "http://example.com"},
		{"already_https", "https://example.com", "https://example.com"},
		{"with_path", "example.com/path", "https://example.com/path"},
		{"with_query", "example.com/path?q=test", "https://example.com/path?q=test"},
		{"with_fragment", "example.com#section", "https://example.com#section"},
		{"empty_string", "", ""},
		{"whitespace_only", "   ", ""},
		{"with_spaces", "  example.com  ", "https://example.com"},
		{"with_port", "example.com:8080", "https://example.com:8080"},
		{"subdomain", "api.example.com", "https://api.example.com"},
		{"space_in_host_rejected", "not a url", ""},
		{"ip_address", "192.168.1.1", "https://192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormaliseURL(tt.input))
		})
	}
}

func TestOrigin(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"https_with_path", "https://example.com/path/to/page", "https://example.com"},
		{"http_preserved", "http://example.com/page", "http://example.com"},
		{"with_port", "https://example.com:8080/api", "https://example.com:8080"},
		{"with_query_and_fragment", "https://example.com/search?q=test#results", "https://example.com"},
		{"no_scheme", "example.com/page", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Origin(tt.input))
		})
	}
}

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		name, input string
		wantErr     bool
	}{
		{"valid_domain", "example.com", false},
		{"valid_with_scheme", "https://example.com", false},
		{"valid_subdomain", "shop.example.co.uk", false},
		{"valid_with_port", "example.com:8080", false},
		{"empty", "", true},
		{"no_tld", "justsomeword", true},
		{"empty_segment", "example..com", true},
		{"invalid_character", "exam ple.com", true},
		{"leading_hyphen", "-example.com", true},
		{"localhost_blocked", "localhost", true},
		{"internal_suffix_blocked", "service.internal", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDomain(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExtractPathFromURL(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"full_url_with_path", "https://example.com/path/to/page", "/path/to/page"},
		{"http_url_with_path", "http://example.com/page", "/page"},
		{"url_with_www", "https://www.example.com/test", "/test"},
		{"url_no_path", "https://example.com", "/"},
		{"domain_only", "example.com", "/"},
		{"path_with_query", "https://example.com/search?q=test", "/search?q=test"},
		{"subdomain_with_path", "https://api.example.com/v1/users", "/v1/users"},
		{"just_path", "/path/to/page", "/path/to/page"},
		{"root_path", "/", "/"},
		{"with_port", "https://example.com:8080/api", "/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPathFromURL(tt.input))
		})
	}
}

func TestConstructURL(t *testing.T) {
	tests := []struct {
		name, origin, path, want string
	}{
		{"robots_txt", "https://example.com", "/robots.txt", "https://example.com/robots.txt"},
		{"sitemap_http_origin", "http://example.com", "/sitemap.xml", "http://example.com/sitemap.xml"},
		{"path_without_slash", "https://example.com", "page", "https://example.com/page"},
		{"origin_with_trailing_slash", "https://example.com/", "/robots.txt", "https://example.com/robots.txt"},
		{"origin_with_port", "https://example.com:8080", "/api", "https://example.com:8080/api"},
		{"empty_path", "https://example.com", "", "https://example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConstructURL(tt.origin, tt.path))
		})
	}
}

func TestIsSignificantRedirect(t *testing.T) {
	tests := []struct {
		name, original, redirect string
		want                     bool
	}{
		{"http_to_https_same_host", "http://example.com/page", "https://example.com/page", false},
		{"www_to_bare", "https://www.example.com/", "https://example.com/", false},
		{"trailing_slash_only", "https://example.com/page", "https://example.com/page/", false},
		{"default_port_dropped", "https://example.com:443/page", "https://example.com/page", false},
		{"different_host", "https://example.com/", "https://other.com/", true},
		{"different_path", "https://example.com/old", "https://example.com/new", true},
		{"empty_redirect", "https://example.com/", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSignificantRedirect(tt.original, tt.redirect))
		})
	}
}

func BenchmarkNormaliseDomain(b *testing.B) {
	for b.Loop() {
		_ = NormaliseDomain("https://www.example.com/")
	}
}

func BenchmarkNormaliseURL(b *testing.B) {
	for b.Loop() {
		_ = NormaliseURL("www.example.com/path?q=test")
	}
}
