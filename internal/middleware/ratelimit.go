package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/log"

	apperrors "github.com/gthanmon/gemini-account-manager/internal/errors"
)

const rateLimitWindow = time.Minute

// callerKey limits per authenticated user and falls back to the client IP.
func callerKey(r *http.Request) (string, error) {
	if caller, ok := GetCaller(r.Context()); ok {
		return "user:" + caller.UserID, nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	key, _ := callerKey(r)
	log.Warn().Str("key", key).Str("path", r.URL.Path).Msg("rate limit exceeded")
	writeError(w, apperrors.RateLimitExceeded())
}

// NewLocalRateLimit limits each caller to limit requests per minute within
// this process.
func NewLocalRateLimit(limit int) func(http.Handler) http.Handler {
	return httprate.Limit(limit, rateLimitWindow,
		httprate.WithKeyFuncs(callerKey),
		httprate.WithLimitHandler(rateLimited),
	)
}

func writeRateLimitHeaders(w http.ResponseWriter, limit, remaining int, resetAt int64) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
}
