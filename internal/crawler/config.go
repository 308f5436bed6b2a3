package crawler

import (
	"time"
)

// Config controls the Crawler's outbound fetch behaviour.
type Config struct {
	FetchTimeout time.Duration // Budget for each outbound fetch
	UserAgent    string        // User agent presented to audited sites
	MaxBodySize  int           // Cap on fetched response bodies in bytes
}

// DefaultConfig returns the fetch settings used in production.
func DefaultConfig() *Config {
	return &Config{
		FetchTimeout: 12 * time.Second,
		UserAgent:    "SiteAuditBot/1.0 (+https://siteaudit.dev/about-the-bot)",
		MaxBodySize:  5 * 1024 * 1024,
	}
}
