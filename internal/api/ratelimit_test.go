package api

import (
	"net/http"
	"testing"
	"time"

	"gatekeeper/internal/constants"
)

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	cases := map[time.Duration]int{
		-time.Second:            1,
		0:                       1,
		time.Millisecond:        1,
		1500 * time.Millisecond: 2,
		15 * time.Minute:        900,
	}
	for d, want := range cases {
		if got := retryAfterSeconds(d); got != want {
			t.Fatalf("retryAfterSeconds(%s) = %d, want %d", d, got, want)
		}
	}
}

func TestAuthRoutesLimitedPerResolvedClient(t *testing.T) {
	ts := newTestServer(t, func(o *Options) {
		o.TrustedProxies = []string{"10.0.0.1"}
		o.IPRequestsPerMinute = 2
	})

	logout := func(client string) int {
		return ts.doFrom(http.MethodPost, "/api/v1/auth/logout", "", "10.0.0.1:9000",
			map[string]string{"X-Forwarded-For": client}).Code
	}

	for i := 0; i < 2; i++ {
		if code := logout("198.51.100.1"); code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, code)
		}
	}

	rr := ts.doFrom(http.MethodPost, "/api/v1/auth/logout", "", "10.0.0.1:9000",
		map[string]string{"X-Forwarded-For": "198.51.100.1"})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q, want 60", got)
	}
	if env := decodeEnvelope(t, rr); env.Success || env.ErrorCode != constants.ErrCodeRateLimited {
		t.Fatalf("envelope = %+v, want RATE_LIMIT_EXCEEDED", env)
	}

	// a different client behind the same proxy has its own budget
	if code := logout("198.51.100.2"); code != http.StatusOK {
		t.Fatalf("second client status = %d, want 200", code)
	}

	// routes outside /auth are not counted
	if rr := ts.doFrom(http.MethodGet, "/api/v1/server/info", "", "10.0.0.1:9000",
		map[string]string{"X-Forwarded-For": "198.51.100.1"}); rr.Code != http.StatusOK {
		t.Fatalf("server info status = %d, want 200", rr.Code)
	}
}
