package crawler

import "net/http"

// PerformanceMetrics stores connection timings captured via httptrace
// for a single fetch.
type PerformanceMetrics struct {
	DNSLookupTime       int64 `json:"dns_lookup_time_ms"`
	TCPConnectionTime   int64 `json:"tcp_connection_time_ms"`
	TLSHandshakeTime    int64 `json:"tls_handshake_time_ms"`
	TTFB                int64 `json:"ttfb_ms"`
	ContentTransferTime int64 `json:"content_transfer_time_ms"`
}

// PageResult represents the outcome of fetching a single page
type PageResult struct {
	URL          string             `json:"url"`
	FinalURL     string             `json:"final_url"`
	StatusCode   int                `json:"status_code"`
	ContentType  string             `json:"content_type"`
	Headers      http.Header        `json:"-"`
	Body         []byte             `json:"-"`
	ResponseTime int64              `json:"response_time"`
	Performance  PerformanceMetrics `json:"performance"`
	Timestamp    int64              `json:"timestamp"`
}
