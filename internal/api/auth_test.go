package api

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"gatekeeper/internal/constants"
)

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/v1/auth/register", `{"name":"Ann","email":"ann@x.com","password":"Abcdef1!","confirmPassword":"Abcdef1!"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body=%q", rr.Code, rr.Body.String())
	}
	if env := decodeEnvelope(t, rr); !env.Success {
		t.Fatalf("register envelope = %+v", env)
	}

	rr = ts.do(http.MethodPost, "/api/v1/auth/login", `{"email":"ann@x.com","password":"Abcdef1!"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unverified login status = %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.ErrorCode != constants.ErrCodeEmailNotVerified {
		t.Fatalf("errorCode = %q, want %q", env.ErrorCode, constants.ErrCodeEmailNotVerified)
	}

	rr = ts.do(http.MethodGet, "/api/v1/auth/verify/"+ts.notifier.token("verify", "ann@x.com"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.do(http.MethodPost, "/api/v1/auth/login", `{"email":"ann@x.com","password":"Abcdef1!"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body=%q", rr.Code, rr.Body.String())
	}
	cookies := rr.Result().Cookies()
	access := cookieNamed(cookies, constants.AccessTokenCookie)
	refresh := cookieNamed(cookies, constants.RefreshTokenCookie)
	if access == nil || refresh == nil {
		t.Fatalf("missing auth cookies: %v", cookies)
	}
	if !access.HttpOnly || access.SameSite != http.SameSiteStrictMode || access.Path != "/" {
		t.Fatalf("access cookie attributes = %+v", access)
	}
	data := decodeEnvelope(t, rr).Data.(map[string]any)
	if data["redirectTo"] != "/dashboard/player" {
		t.Fatalf("redirectTo = %v", data["redirectTo"])
	}

	rr = ts.do(http.MethodGet, "/api/v1/auth/me", "", access)
	if rr.Code != http.StatusOK {
		t.Fatalf("me status = %d, body=%q", rr.Code, rr.Body.String())
	}
	user := decodeEnvelope(t, rr).Data.(map[string]any)["user"].(map[string]any)
	if user["email"] != "ann@x.com" || user["isVerified"] != true {
		t.Fatalf("me user = %v", user)
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Fatal("password hash exposed")
	}

	rr = ts.do(http.MethodPost, "/api/v1/auth/refresh", "", refresh)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body=%q", rr.Code, rr.Body.String())
	}
	rotated := cookieNamed(rr.Result().Cookies(), constants.RefreshTokenCookie)
	if rotated == nil || rotated.Value == refresh.Value {
		t.Fatal("refresh cookie was not rotated")
	}

	rr = ts.do(http.MethodPost, "/api/v1/auth/refresh", "", refresh)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh status = %d", rr.Code)
	}
	if env := decodeEnvelope(t, rr); env.ErrorCode != constants.ErrCodeTokenExpired {
		t.Fatalf("errorCode = %q", env.ErrorCode)
	}

	rr = ts.do(http.MethodPost, "/api/v1/auth/logout", "", access, rotated)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rr.Code)
	}
	cleared := cookieNamed(rr.Result().Cookies(), constants.AccessTokenCookie)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("access cookie not cleared: %+v", cleared)
	}

	rr = ts.do(http.MethodPost, "/api/v1/auth/logout", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("second logout status = %d", rr.Code)
	}

	rr = ts.do(http.MethodPost, "/api/v1/auth/refresh", "", rotated)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d", rr.Code)
	}
}

func TestLoginFailureBodiesAreIdentical(t *testing.T) {
	ts := newTestServer(t)
	ts.registerVerified(t, "Dana", "dana@example.com", "")

	unknown := ts.do(http.MethodPost, "/api/v1/auth/login", `{"email":"ghost@example.com","password":"Abcdef1!"}`)
	wrong := ts.do(http.MethodPost, "/api/v1/auth/login", `{"email":"dana@example.com","password":"Wrong1!pass"}`)

	if unknown.Code != http.StatusUnauthorized || wrong.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d", unknown.Code, wrong.Code)
	}
	if !bytes.Equal(unknown.Body.Bytes(), wrong.Body.Bytes()) {
		t.Fatalf("bodies differ:\n%s\n%s", unknown.Body.String(), wrong.Body.String())
	}
}

func TestForgotPasswordResponseIsGeneric(t *testing.T) {
	ts := newTestServer(t)
	ts.registerVerified(t, "Eve", "eve@example.com", "")

	known := ts.do(http.MethodPost, "/api/v1/auth/forgot-password", `{"email":"eve@example.com"}`)
	unknown := ts.do(http.MethodPost, "/api/v1/auth/forgot-password", `{"email":"nobody@example.com"}`)

	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d", known.Code, unknown.Code)
	}
	if !bytes.Equal(known.Body.Bytes(), unknown.Body.Bytes()) {
		t.Fatalf("bodies differ:\n%s\n%s", known.Body.String(), unknown.Body.String())
	}

	token := ts.notifier.token("reset", "eve@example.com")
	rr := ts.do(http.MethodPost, "/api/v1/auth/reset-password", `{"token":"`+token+`","password":"N3w!Password","confirmPassword":"N3w!Password"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status = %d, body=%q", rr.Code, rr.Body.String())
	}
	ts.login(t, "eve@example.com", "N3w!Password")
}

func TestRegisterValidationErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(http.MethodPost, "/api/v1/auth/register", `{"name":"A","email":"bad","password":"short","confirmPassword":"short"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	env := decodeEnvelope(t, rr)
	if env.Success || env.ErrorCode != constants.ErrCodeValidation || len(env.Details) == 0 {
		t.Fatalf("envelope = %+v", env)
	}

	rr = ts.do(http.MethodPost, "/api/v1/auth/register", `{"name":"Ann","unexpected":true}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rr.Code)
	}
}

func TestRequestBodyTooLarge(t *testing.T) {
	ts := newTestServer(t)

	body := `{"email":"` + strings.Repeat("a", 70<<10) + `@example.com"}`
	rr := ts.do(http.MethodPost, "/api/v1/auth/forgot-password", body)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestChangePasswordClearsCookies(t *testing.T) {
	ts := newTestServer(t)
	ts.registerVerified(t, "Fred", "fred@example.com", "")
	cookies := ts.login(t, "fred@example.com", testPassword)

	rr := ts.do(http.MethodPost, "/api/v1/auth/change-password",
		`{"currentPassword":"Abcdef1!","newPassword":"Chang3d!Pass","confirmPassword":"Chang3d!Pass"}`,
		cookieNamed(cookies, constants.AccessTokenCookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}
	if c := cookieNamed(rr.Result().Cookies(), constants.RefreshTokenCookie); c == nil || c.MaxAge >= 0 {
		t.Fatal("refresh cookie not cleared")
	}
}

func TestUpdateMe(t *testing.T) {
	ts := newTestServer(t)
	ts.registerVerified(t, "Gail", "gail@example.com", "")
	access := cookieNamed(ts.login(t, "gail@example.com", testPassword), constants.AccessTokenCookie)

	rr := ts.do(http.MethodPatch, "/api/v1/auth/me", `{"name":"Gail Smith"}`, access)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%q", rr.Code, rr.Body.String())
	}
	user := decodeEnvelope(t, rr).Data.(map[string]any)["user"].(map[string]any)
	if user["name"] != "Gail Smith" {
		t.Fatalf("name = %v", user["name"])
	}

	rr = ts.do(http.MethodPut, "/api/v1/auth/me", `{}`, access)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty update status = %d", rr.Code)
	}
}
