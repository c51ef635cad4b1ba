package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gatekeeper/internal/audit"
)

func (ts *testServer) doFrom(method, path, body, remoteAddr string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	ts.server.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) latestSessionIP(t *testing.T) string {
	t.Helper()

	var ip string
	if err := ts.db.GetContext(context.Background(), &ip, `SELECT ip_address FROM sessions ORDER BY created_at DESC LIMIT 1`); err != nil {
		t.Fatalf("reading session ip_address: %v", err)
	}
	return ip
}

func (ts *testServer) lastAuditIP(t *testing.T, action string) string {
	t.Helper()

	ts.audit.mu.Lock()
	defer ts.audit.mu.Unlock()
	for i := len(ts.audit.events) - 1; i >= 0; i-- {
		if ts.audit.events[i].Action == action {
			return ts.audit.events[i].IP
		}
	}
	t.Fatalf("no %s audit event recorded", action)
	return ""
}

func TestProxyTrustClientAddr(t *testing.T) {
	pt, err := NewProxyTrust([]string{"172.30.0.10", " 10.0.0.0/8 ", "", "fd00::/8"})
	if err != nil {
		t.Fatalf("NewProxyTrust() error = %v", err)
	}

	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{
			name:   "untrusted peer ignores forwarding headers",
			remote: "203.0.113.7:43210",
			header: map[string]string{"X-Forwarded-For": "198.51.100.5", "X-Real-IP": "198.51.100.6"},
			want:   "203.0.113.7",
		},
		{
			name:   "trusted peer uses first forwarded entry",
			remote: "172.30.0.10:12345",
			header: map[string]string{"X-Forwarded-For": "198.51.100.8, 172.30.0.10"},
			want:   "198.51.100.8",
		},
		{
			name:   "garbage entries are skipped",
			remote: "10.4.5.6:80",
			header: map[string]string{"X-Forwarded-For": "unknown, \"198.51.100.9:8443\""},
			want:   "198.51.100.9",
		},
		{
			name:   "falls back to X-Real-IP",
			remote: "172.30.0.10:12345",
			header: map[string]string{"X-Forwarded-For": "not-an-ip", "X-Real-IP": "198.51.100.10"},
			want:   "198.51.100.10",
		},
		{
			name:   "bracketed ipv6 entry",
			remote: "[fd00::1]:443",
			header: map[string]string{"X-Forwarded-For": "[2001:db8::7]"},
			want:   "2001:db8::7",
		},
		{
			name:   "ipv4 mapped peer matches ipv4 prefix",
			remote: "[::ffff:10.0.0.1]:5000",
			header: map[string]string{"X-Forwarded-For": "198.51.100.11"},
			want:   "198.51.100.11",
		},
		{
			name:   "trusted peer without headers",
			remote: "10.0.0.2:5000",
			want:   "10.0.0.2",
		},
		{
			name:   "unparseable peer",
			remote: "pipe",
			want:   "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := pt.clientAddr(req); got != tt.want {
				t.Fatalf("clientAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewProxyTrustRejectsInvalidEntry(t *testing.T) {
	if _, err := NewProxyTrust([]string{"10.0.0.0/33"}); err == nil {
		t.Fatal("NewProxyTrust() accepted an invalid prefix")
	}
	if _, err := NewServer(Options{TrustedProxies: []string{"proxy.internal"}}, Deps{}); err == nil {
		t.Fatal("NewServer() accepted an invalid trusted proxy")
	}
}

func TestClientIPOutsideRouterUsesPeer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.30:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.99")

	if got := clientIP(req); got != "198.51.100.30" {
		t.Fatalf("clientIP() = %q, want peer address", got)
	}
}

func TestLoginRecordsForwardedClientBehindTrustedProxy(t *testing.T) {
	ts := newTestServer(t, func(o *Options) {
		o.TrustedProxies = []string{"10.0.0.0/8"}
	})
	ts.registerVerified(t, "Proxy User", "proxy@example.com", "")

	rr := ts.doFrom(http.MethodPost, "/api/v1/auth/login",
		`{"email":"proxy@example.com","password":"`+testPassword+`"}`,
		"10.1.2.3:40000",
		map[string]string{"X-Forwarded-For": "198.51.100.8, 10.1.2.3"},
	)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body=%q", rr.Code, rr.Body.String())
	}

	if got := ts.latestSessionIP(t); got != "198.51.100.8" {
		t.Fatalf("session ip_address = %q, want forwarded client", got)
	}
	if got := ts.lastAuditIP(t, audit.ActionLogin.Success()); got != "198.51.100.8" {
		t.Fatalf("LOGIN_SUCCESS ip = %q, want forwarded client", got)
	}
}

func TestLoginIgnoresSpoofedForwardedFor(t *testing.T) {
	ts := newTestServer(t)
	ts.registerVerified(t, "Direct User", "direct@example.com", "")

	rr := ts.doFrom(http.MethodPost, "/api/v1/auth/login",
		`{"email":"direct@example.com","password":"`+testPassword+`"}`,
		"203.0.113.7:40000",
		map[string]string{"X-Forwarded-For": "1.1.1.1", "X-Real-IP": "8.8.8.8"},
	)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body=%q", rr.Code, rr.Body.String())
	}

	if got := ts.latestSessionIP(t); got != "203.0.113.7" {
		t.Fatalf("session ip_address = %q, want peer address", got)
	}
	if got := ts.lastAuditIP(t, audit.ActionLogin.Success()); got != "203.0.113.7" {
		t.Fatalf("LOGIN_SUCCESS ip = %q, want peer address", got)
	}
}
