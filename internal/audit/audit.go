package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pemistahl/lingua-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/SRK-Yoom/siteaudit/internal/crawler"
	"github.com/SRK-Yoom/siteaudit/internal/observability"
	"github.com/SRK-Yoom/siteaudit/internal/pagespeed"
	"github.com/SRK-Yoom/siteaudit/internal/techdetect"
	"github.com/SRK-Yoom/siteaudit/internal/util"
)

// ErrInvalidURL marks input that cannot be audited. Handlers map it to
// a 400 response.
var ErrInvalidURL = errors.New("invalid url")

const (
	// defaultTimeout is the ceiling for a whole audit run.
	defaultTimeout = 60 * time.Second
	// defaultAuxTimeout bounds each optional fetch (page HTML,
	// robots.txt, sitemap.xml).
	defaultAuxTimeout = 12 * time.Second
)

// PageSpeedAnalyzer runs a Lighthouse analysis for a URL.
type PageSpeedAnalyzer interface {
	Analyze(ctx context.Context, targetURL string) (*pagespeed.Result, error)
}

// SiteFetcher retrieves the audited site's own documents.
type SiteFetcher interface {
	FetchPage(ctx context.Context, targetURL string) (*crawler.PageResult, error)
	FetchRobots(ctx context.Context, origin string) (*crawler.RobotsInfo, error)
	FetchSitemap(ctx context.Context, sitemapURL string) (*crawler.SitemapInfo, error)
}

// TechnologyDetector fingerprints the platform behind a page.
type TechnologyDetector interface {
	Detect(headers http.Header, body []byte) *techdetect.Result
}

// Options tune an audit Service. Zero values select the defaults;
// Detector and Languages are optional enrichments.
type Options struct {
	Detector   TechnologyDetector
	Languages  lingua.LanguageDetector
	Timeout    time.Duration
	AuxTimeout time.Duration
}

// Service runs audits. It holds no per-request state, so a single
// instance serves concurrent requests.
type Service struct {
	pagespeed  PageSpeedAnalyzer
	fetcher    SiteFetcher
	detector   TechnologyDetector
	languages  lingua.LanguageDetector
	timeout    time.Duration
	auxTimeout time.Duration
}

func NewService(analyzer PageSpeedAnalyzer, fetcher SiteFetcher, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.AuxTimeout <= 0 {
		opts.AuxTimeout = defaultAuxTimeout
	}
	return &Service{
		pagespeed:  analyzer,
		fetcher:    fetcher,
		detector:   opts.Detector,
		languages:  opts.Languages,
		timeout:    opts.Timeout,
		auxTimeout: opts.AuxTimeout,
	}
}

// Audit runs the full pipeline for one URL: validate, fetch the four
// upstream documents concurrently, extract signals, score and build
// recommendations.
//
// The PageSpeed analysis is mandatory and its failure fails the audit.
// The three site fetches are optional: each failure degrades its
// signals to defaults and the audit still succeeds.
func (s *Service) Audit(ctx context.Context, rawURL string) (*Result, error) {
	start := time.Now()

	normalized := util.NormaliseURL(rawURL)
	if normalized == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	parsed, err := url.Parse(normalized)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if err := util.ValidateDomain(parsed.Host); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	origin := util.Origin(normalized)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		psiResult *pagespeed.Result
		pageRes   *crawler.PageResult
		robots    *crawler.RobotsInfo
		sitemap   *crawler.SitemapInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		psiStart := time.Now()
		res, err := s.pagespeed.Analyze(gctx, normalized)
		if err != nil {
			observability.RecordPageSpeedRequest(gctx, time.Since(psiStart), "error")
			return err
		}
		observability.RecordPageSpeedRequest(gctx, time.Since(psiStart), "ok")
		psiResult = res
		return nil
	})
	g.Go(func() error {
		auxCtx, cancel := context.WithTimeout(gctx, s.auxTimeout)
		defer cancel()
		res, err := s.fetcher.FetchPage(auxCtx, normalized)
		if err != nil {
			log.Debug().Err(err).Str("url", normalized).Msg("Page fetch failed, auditing without HTML signals")
			return nil
		}
		pageRes = res
		return nil
	})
	g.Go(func() error {
		auxCtx, cancel := context.WithTimeout(gctx, s.auxTimeout)
		defer cancel()
		res, err := s.fetcher.FetchRobots(auxCtx, origin)
		if err != nil {
			log.Debug().Err(err).Str("origin", origin).Msg("robots.txt fetch failed")
			return nil
		}
		robots = res
		return nil
	})
	g.Go(func() error {
		auxCtx, cancel := context.WithTimeout(gctx, s.auxTimeout)
		defer cancel()
		res, err := s.fetcher.FetchSitemap(auxCtx, util.ConstructURL(origin, "/sitemap.xml"))
		if err != nil {
			log.Debug().Err(err).Str("origin", origin).Msg("sitemap.xml fetch failed")
			return nil
		}
		sitemap = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var signals *PageSignals
	if pageRes != nil {
		signals = ExtractSignals(pageRes.Body, pageRes.FinalURL)
		signals.FinalURL = pageRes.FinalURL
		signals.StatusCode = pageRes.StatusCode
	} else {
		signals = EmptySignals()
	}
	signals.HTTPS = strings.HasPrefix(effectiveURL(normalized, signals.FinalURL), "https://")

	if s.languages != nil {
		signals.DetectedLanguage = detectLanguage(s.languages, signals.ContentSample)
	}

	var technologies map[string][]string
	if s.detector != nil && pageRes != nil {
		detection := s.detector.Detect(pageRes.Headers, pageRes.Body)
		technologies = detection.Technologies
		if len(technologies) > 0 {
			log.Debug().Strs("technologies", detection.Names()).Msg("Technology stack detected")
		}
	}

	site := BuildSiteInfo(robots, sitemap)
	keywords, kwCoverage := ExtractKeywords(signals, normalized)

	in := ScoreInput{
		Signals:  signals,
		Site:     site,
		Scores:   psiResult.Scores(),
		Keywords: keywords,
		URL:      normalized,
	}
	pillars, total := ComputePillars(in)

	all := AllRecommendations(in)
	display, withheld := DisplayRecommendations(all)
	critical, high, medium := CountByPriority(all)

	result := &Result{
		URL:             normalized,
		AnalysedAt:      time.Now().UTC(),
		Score:           total,
		Pillars:         pillars,
		Keywords:        keywords,
		KeywordCoverage: kwCoverage,
		Recommendations: display,
		WithheldCount:   withheld,
		Health: HealthSummary{
			Domain:           util.NormaliseDomain(parsed.Host),
			HTTPS:            signals.HTTPS,
			FetchError:       signals.FetchFailed,
			Redirected:       pageRes != nil && util.IsSignificantRedirect(normalized, pageRes.FinalURL),
			PathBlocked:      !crawler.IsPathAllowed(robots, util.ExtractPathFromURL(normalized)),
			SiteInfo:         site,
			CriticalIssues:   critical,
			HighIssues:       high,
			MediumIssues:     medium,
			SchemaTypes:      signals.SchemaTypes,
			DetectedLanguage: signals.DetectedLanguage,
			Technologies:     technologies,
		},
		Vitals: psiResult.Vitals(),
	}
	if pageRes != nil {
		timings := pageRes.Performance
		result.Timings = &timings
	}

	log.Info().
		Str("url", normalized).
		Int("score", total).
		Int("recommendations", len(all)).
		Bool("fetch_error", signals.FetchFailed).
		Dur("duration", time.Since(start)).
		Msg("Audit completed")

	return result, nil
}

// effectiveURL prefers the post-redirect URL when the page fetch saw
// one, so a site that upgrades to HTTPS is credited for it.
func effectiveURL(normalized, finalURL string) string {
	if finalURL != "" {
		return finalURL
	}
	return normalized
}
