package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"gatekeeper/internal/constants"
)

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}

// ipRateLimit caps requests per client IP over a one minute window. It sits
// in front of the per-action limits enforced by the auth service.
func ipRateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return clientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(time.Minute)))
			writeError(w, http.StatusTooManyRequests, constants.ErrCodeRateLimited, "Too many requests. Please try again later.", nil)
		}),
	)
}
