package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/trace"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/SRK-Yoom/siteaudit/internal/api"
	"github.com/SRK-Yoom/siteaudit/internal/audit"
	"github.com/SRK-Yoom/siteaudit/internal/crawler"
	"github.com/SRK-Yoom/siteaudit/internal/leads"
	"github.com/SRK-Yoom/siteaudit/internal/loops"
	"github.com/SRK-Yoom/siteaudit/internal/notifications"
	"github.com/SRK-Yoom/siteaudit/internal/observability"
	"github.com/SRK-Yoom/siteaudit/internal/pagespeed"
	"github.com/SRK-Yoom/siteaudit/internal/techdetect"
	"github.com/SRK-Yoom/siteaudit/internal/util"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Config holds everything read from the environment at startup.
type Config struct {
	Port                  string // HTTP listen port
	Env                   string // Deployment environment, development or production
	SentryDSN             string // Error tracking DSN, empty disables Sentry
	LogLevel              string // zerolog level name
	PageSpeedAPIKey       string // Optional Google API key for higher PageSpeed quotas
	LoopsAPIKey           string // Loops API key, lead capture logs locally without it
	LoopsTransactionalID  string // Transactional template for the emailed report
	SlackWebhookURL       string // Incoming webhook for audit and lead alerts
	AppURL                string // Public URL of the results page, used in Slack links
	FlightRecorderEnabled bool   // Runtime execution tracing for performance debugging
	ObservabilityEnabled  bool   // Toggle OpenTelemetry + Prometheus exporters
	MetricsAddr           string // Prometheus scrape address, ":9464" style
	OTLPEndpoint          string // OTLP HTTP endpoint for trace export
	OTLPHeaders           string // Comma separated headers for the OTLP exporter
	OTLPInsecure          bool   // Disable TLS verification for the OTLP exporter
}

func main() {
	// .env.local wins over .env so local overrides stay out of git
	godotenv.Load(".env.local", ".env")

	config := loadConfig()
	setupLogging(config)

	if stop := startFlightRecorder(config); stop != nil {
		defer stop()
	}

	if flush := initSentry(config); flush != nil {
		defer flush()
	}

	obsProviders, obsCleanup := initObservability(config)
	if obsCleanup != nil {
		defer obsCleanup()
	}
	if stopMetrics := serveMetrics(obsProviders, config.MetricsAddr); stopMetrics != nil {
		defer stopMetrics()
	}

	auditService, leadService, notifier := buildServices(config)
	handler := buildHandler(auditService, leadService, notifier, obsProviders)

	serve(config, handler)
}

func loadConfig() *Config {
	return &Config{
		Port:                  getEnvWithDefault("PORT", "8080"),
		Env:                   getEnvWithDefault("APP_ENV", "development"),
		SentryDSN:             os.Getenv("SENTRY_DSN"),
		LogLevel:              getEnvWithDefault("LOG_LEVEL", "info"),
		PageSpeedAPIKey:       os.Getenv("PAGESPEED_API_KEY"),
		LoopsAPIKey:           os.Getenv("LOOPS_API_KEY"),
		LoopsTransactionalID:  os.Getenv("LOOPS_TRANSACTIONAL_ID"),
		SlackWebhookURL:       os.Getenv("SLACK_WEBHOOK_URL"),
		AppURL:                os.Getenv("APP_URL"),
		FlightRecorderEnabled: getEnvBool("FLIGHT_RECORDER_ENABLED", false),
		ObservabilityEnabled:  getEnvBool("OBSERVABILITY_ENABLED", true),
		MetricsAddr:           getEnvWithDefault("METRICS_ADDR", ":9464"),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPHeaders:           os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		OTLPInsecure:          getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

// startFlightRecorder begins a runtime execution trace when enabled.
// Returns a stop func, or nil when the recorder is off.
func startFlightRecorder(config *Config) func() {
	if !config.FlightRecorderEnabled {
		return nil
	}

	f, err := os.Create("trace.out")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create trace file")
	}
	if err := trace.Start(f); err != nil {
		log.Fatal().Err(err).Msg("failed to start flight recorder")
	}
	log.Info().Msg("Flight recorder enabled, writing to trace.out")

	return func() {
		trace.Stop()
		f.Close()
		log.Info().Msg("Flight recorder stopped")
	}
}

// initSentry configures error tracking. Returns a flush func when
// Sentry is active, nil otherwise.
func initSentry(config *Config) func() {
	if config.SentryDSN == "" {
		log.Warn().Msg("SENTRY_DSN not set, error reporting disabled")
		return nil
	}

	// Sample every trace in development, one in ten in production
	sampleRate := 1.0
	if config.Env == "production" {
		sampleRate = 0.1
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.SentryDSN,
		Environment:      config.Env,
		TracesSampleRate: sampleRate,
		AttachStacktrace: true,
		Debug:            config.Env == "development",
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialise Sentry")
		return nil
	}

	log.Info().Str("environment", config.Env).Msg("Sentry initialised")
	return func() { sentry.Flush(2 * time.Second) }
}

// initObservability wires tracing and metrics. Returns nil providers
// when disabled or when setup fails, which downgrades the service to
// logs only.
func initObservability(config *Config) (*observability.Providers, func()) {
	if !config.ObservabilityEnabled {
		return nil, nil
	}

	prov, err := observability.Init(context.Background(), observability.Config{
		Enabled:        true,
		ServiceName:    "siteaudit",
		Environment:    config.Env,
		OTLPEndpoint:   strings.TrimSpace(config.OTLPEndpoint),
		OTLPHeaders:    parseOTLPHeaders(config.OTLPHeaders),
		OTLPInsecure:   config.OTLPInsecure,
		MetricsAddress: config.MetricsAddr,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialise observability providers")
		return nil, nil
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := prov.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to flush telemetry providers cleanly")
		}
	}
	return prov, cleanup
}

// serveMetrics exposes the Prometheus endpoint on its own listener so
// scrapes never compete with audit traffic. Returns a shutdown func,
// or nil when metrics are not served.
func serveMetrics(prov *observability.Providers, addr string) func() {
	if prov == nil || prov.MetricsHandler == nil || addr == "" {
		return nil
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           prov.MetricsHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.CaptureException(err)
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Msg("Graceful shutdown of metrics server failed")
		}
	}
}

// buildServices constructs the audit pipeline and the services that
// hang off it. Missing credentials degrade features with a warning
// rather than failing startup.
func buildServices(config *Config) (*audit.Service, *leads.Service, *notifications.Slack) {
	analyzer := pagespeed.New(config.PageSpeedAPIKey)
	if config.PageSpeedAPIKey == "" {
		log.Warn().Msg("PageSpeed API key not configured, running on the shared quota")
	}

	fetcher := crawler.New(crawler.DefaultConfig())

	auditOpts := audit.Options{Languages: audit.NewLanguageDetector()}
	if detector, err := techdetect.New(); err != nil {
		log.Warn().Err(err).Msg("Technology detection disabled")
	} else {
		auditOpts.Detector = detector
	}
	auditService := audit.NewService(analyzer, fetcher, auditOpts)

	var loopsClient leads.LoopsClient
	if config.LoopsAPIKey != "" {
		loopsClient = loops.New(config.LoopsAPIKey)
	} else {
		log.Warn().Msg("Loops API key not configured, leads will be logged only")
	}
	leadService := leads.NewService(loopsClient, leads.Config{
		TransactionalID: config.LoopsTransactionalID,
	})

	notifier := notifications.NewSlack(config.SlackWebhookURL, config.AppURL)
	if !notifier.Enabled() {
		log.Warn().Msg("Slack webhook not configured, notifications disabled")
	}

	return auditService, leadService, notifier
}

// buildHandler assembles the route mux, the per-IP rate limit and the
// middleware stack.
func buildHandler(auditService *audit.Service, leadService *leads.Service, notifier *notifications.Slack, prov *observability.Providers) http.Handler {
	mux := http.NewServeMux()
	api.NewHandler(auditService, leadService, notifier).SetupRoutes(mux)

	limiter := newRateLimiter()
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.allow(util.GetClientIP(r)) {
			api.WriteErrorMessage(w, r, "Too many requests", http.StatusTooManyRequests, api.ErrCodeRateLimit)
			return
		}
		mux.ServeHTTP(w, r)
	})

	// Wrapping order is inside out, the last wrap runs first
	handler = api.RecoveryMiddleware(handler)
	handler = api.LoggingMiddleware(handler)
	handler = api.RequestIDMiddleware(handler)
	handler = api.SecurityHeadersMiddleware(handler)
	handler = api.CORSMiddleware(handler)
	return observability.WrapHandler(handler, prov)
}

// serve runs the HTTP server until SIGINT or SIGTERM, then drains
// in-flight requests before returning.
func serve(config *Config, handler http.Handler) {
	server := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		<-stop
		log.Info().Msg("Shutdown signal received, draining requests")

		// Audits can hold a request open for up to a minute, so the
		// drain window is generous
		ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			sentry.CaptureException(err)
			log.Error().Err(err).Msg("Drain window expired before all requests finished")
		}
		close(done)
	}()

	log.Info().Str("port", config.Port).Str("env", config.Env).Msg("HTTP server listening")

	if config.Env == "development" {
		baseURL := fmt.Sprintf("http://localhost:%s", config.Port)
		log.Info().Msg("🚀 Site Audit Development Server Ready!")
		log.Info().Str("audit", baseURL+"/api/audit").Msg("🔎 Audit Endpoint")
		log.Info().Str("health", baseURL+"/health").Msg("🔍 Health Check")
	}

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("HTTP server failed")
	}

	<-done
	log.Info().Msg("Server drained and stopped")
}

// getEnvWithDefault reads key from the environment, falling back when
// unset or blank.
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Int("default", defaultValue).
			Msg("Ignoring non-integer environment value")
		return defaultValue
	}
	return result
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	result, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().
			Str("key", key).
			Str("value", value).
			Bool("default", defaultValue).
			Msg("Ignoring non-boolean environment value")
		return defaultValue
	}
	return result
}

// parseOTLPHeaders splits a "key=value,key=value" string into a
// header map. Malformed pairs are skipped.
func parseOTLPHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}

// setupLogging applies the configured level and picks an output
// format. Development gets the console writer, production emits JSON
// for the log aggregator.
func setupLogging(config *Config) {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		return
	}

	log.Logger = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", "siteaudit").
		Logger()
}

// RateLimiter hands out a token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rate    rate.Limit
	burst   int
}

// newRateLimiter creates a rate limiter with its budget read from the
// environment. Every audit costs a long upstream Lighthouse run, so
// the per-IP defaults stay small.
func newRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*rate.Limiter),
		rate:    rate.Limit(getEnvInt("RATE_LIMIT_RPS", 5)),
		burst:   getEnvInt("RATE_LIMIT_BURST", 10),
	}
}

// allow reports whether a request from ip fits within its budget,
// creating the bucket on first sight.
func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.buckets[ip]
	if !ok {
		bucket = rate.NewLimiter(rl.rate, rl.burst)
		rl.buckets[ip] = bucket
	}

	return bucket.Allow()
}
