package api

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/SRK-Yoom/siteaudit/internal/util"
)

// requestLogger returns a logger carrying the request correlation
// fields so handler logs can always be tied back to one submission.
func requestLogger(r *http.Request) zerolog.Logger {
	if r == nil {
		return log.With().Logger()
	}
	return log.With().
		Str("request_id", GetRequestID(r)).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("client_ip", util.GetClientIP(r)).
		Logger()
}
