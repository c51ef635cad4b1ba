package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/auth"
	"gatekeeper/internal/constants"
	"gatekeeper/internal/db"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/service"
)

const testPassword = "Abcdef1!"

type captureNotifier struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (n *captureNotifier) SendVerificationEmail(_ context.Context, to, _, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens["verify:"+to] = token
}

func (n *captureNotifier) SendPasswordResetEmail(_ context.Context, to, _, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens["reset:"+to] = token
}

func (n *captureNotifier) token(kind, email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[kind+":"+email]
}

type captureAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *captureAudit) Record(_ context.Context, e audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *captureAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

type testServer struct {
	server   *Server
	db       *db.DB
	tokens   *auth.JWTService
	notifier *captureNotifier
	audit    *captureAudit
}

func testJWTConfig() auth.JWTConfig {
	return auth.JWTConfig{
		AccessSecret:    strings.Repeat("a", 32),
		RefreshSecret:   strings.Repeat("r", 32),
		AccessTokenTTL:  constants.AccessTokenTTL,
		RefreshTokenTTL: constants.RefreshTokenTTL,
		Issuer:          "gatekeeper-test",
		Audience:        "gatekeeper-test",
	}
}

func newTestServer(t *testing.T, opts ...func(*Options)) *testServer {
	t.Helper()

	database, err := db.Open(context.Background(), db.Config{Driver: db.DriverSQLite, Path: filepath.Join(t.TempDir(), "api.db")})
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	st := db.NewStore(database)
	tokens := auth.NewJWTService(testJWTConfig(), nil)
	notifier := &captureNotifier{tokens: map[string]string{}}
	rec := &captureAudit{}

	authSvc := service.NewAuthService(service.Deps{
		Store:     st,
		Hasher:    auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens:    tokens,
		SingleUse: auth.NewSingleUseTokenService(constants.VerificationTokenTTL, constants.PasswordResetTTL),
		Lockout:   auth.DefaultLockoutPolicy(),
		Limiter:   ratelimit.NewLimiter(ratelimit.NewMemoryStore(), nil, nil),
		Audit:     rec,
		Notifier:  notifier,
	}, service.Config{RequireVerifiedEmail: true, AllowAdminRegistration: true})

	options := Options{
		Name:        "Gatekeeper Test",
		Environment: "development",
		Cookies: CookieConfig{
			AccessTTL:  constants.AccessTokenTTL,
			RefreshTTL: constants.RefreshTokenTTL,
		},
		IPRequestsPerMinute: 1000,
	}
	for _, opt := range opts {
		opt(&options)
	}

	srv, err := NewServer(options, Deps{
		Auth:   authSvc,
		Admin:  service.NewAdminService(st, st.AuditLogs(), rec, nil),
		Tokens: tokens,
		Audit:  rec,
		Health: map[string]HealthCheck{"database": st.Ping},
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	return &testServer{server: srv, db: database, tokens: tokens, notifier: notifier, audit: rec}
}

func (ts *testServer) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.RemoteAddr = "192.0.2.10:40000"
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	ts.server.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) registerVerified(t *testing.T, name, email, role string) {
	t.Helper()

	body := `{"name":"` + name + `","email":"` + email + `","password":"` + testPassword + `","confirmPassword":"` + testPassword + `"`
	if role != "" {
		body += `,"role":"` + role + `"`
	}
	body += "}"

	rr := ts.do(http.MethodPost, "/api/v1/auth/register", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.do(http.MethodGet, "/api/v1/auth/verify/"+ts.notifier.token("verify", email), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body=%q", rr.Code, rr.Body.String())
	}
}

func (ts *testServer) login(t *testing.T, email, password string) []*http.Cookie {
	t.Helper()

	rr := ts.do(http.MethodPost, "/api/v1/auth/login", `{"email":"`+email+`","password":"`+password+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body=%q", rr.Code, rr.Body.String())
	}
	return rr.Result().Cookies()
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()

	var env Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	return env
}
