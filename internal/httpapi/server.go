package httpapi

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"surfsup-server/internal/config"
)

// NewServer wraps mux with the request middleware chain: request id, access log,
// then the optional rate limit.
func NewServer(cfg config.Config, mux http.Handler) *http.Server {
	handler := mux
	if cfg.RateLimitRPS > 0 {
		handler = rateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst), handler)
	}
	handler = requestID(requestLogger(handler))

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
