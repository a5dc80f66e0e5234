package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classtrack/attendance/internal/auth"
	"classtrack/attendance/internal/config"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"Bearer abc":      "abc",
		"bearer abc":      "abc",
		"Basic abc":       "",
		"Bearer":          "",
		"Bearer  spaced ": "spaced",
	}
	for header, expect := range cases {
		if got := bearerToken(header); got != expect {
			t.Fatalf("bearerToken(%q) = %q, expected %q", header, got, expect)
		}
	}
}

func TestRequestTokenCookieWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: "cookie-token"})

	if got := requestToken(req); got != "cookie-token" {
		t.Fatalf("expected cookie token to win, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	if got := requestToken(req); got != "header-token" {
		t.Fatalf("expected header fallback, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := requestToken(req); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

func TestParseDate(t *testing.T) {
	date, err := parseDate("2026-01-25")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if date.Year() != 2026 || date.Month() != time.January || date.Day() != 25 {
		t.Fatalf("unexpected date %v", date)
	}
	if _, err := parseDate("25-01-2026"); err == nil {
		t.Fatalf("expected error for wrong layout")
	}
	if _, err := parseDate("not-a-date"); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestFormatRecordDate(t *testing.T) {
	// 2026-01-25 00:00 UTC is already 05:30 on the 25th in IST.
	utcMidnight := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)
	if got := formatRecordDate(utcMidnight); got != "25/01/2026" {
		t.Fatalf("expected 25/01/2026, got %s", got)
	}
	// 2026-01-25 20:00 UTC rolls over to the 26th in IST.
	utcEvening := time.Date(2026, 1, 25, 20, 0, 0, 0, time.UTC)
	if got := formatRecordDate(utcEvening); got != "26/01/2026" {
		t.Fatalf("expected 26/01/2026, got %s", got)
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret", JWTIssuer: "test-issuer", TokenTTL: time.Hour}
	server := NewServer(cfg, nil)

	var seen *auth.Claims
	handler := server.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = claimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No credential at all.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var envelope apiResponse
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if envelope.Message != "Access denied. No token provided." {
		t.Fatalf("unexpected message %q", envelope.Message)
	}

	// Garbage token.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: "garbage"})
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	// Valid token via cookie.
	token, err := auth.NewAccessToken(cfg.JWTSecret, cfg.JWTIssuer, time.Hour, auth.Claims{
		UserID:   "t1",
		UserType: auth.UserTypeTeacher,
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: token})
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen == nil || seen.UserID != "t1" || seen.UserType != auth.UserTypeTeacher {
		t.Fatalf("unexpected claims %+v", seen)
	}
}

func TestIssueTokenSetsCookie(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret", JWTIssuer: "test-issuer", TokenTTL: time.Hour}
	server := NewServer(cfg, nil)

	rec := httptest.NewRecorder()
	token, err := server.issueToken(rec, "s1", auth.UserTypeStudent)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	cookie := cookies[0]
	if cookie.Name != tokenCookieName || cookie.Value != token {
		t.Fatalf("unexpected cookie %+v", cookie)
	}
	if !cookie.HttpOnly {
		t.Fatalf("expected HttpOnly cookie")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("expected SameSite=Strict, got %v", cookie.SameSite)
	}
	if cookie.MaxAge != int(time.Hour.Seconds()) {
		t.Fatalf("expected MaxAge %d, got %d", int(time.Hour.Seconds()), cookie.MaxAge)
	}
}

func TestUnknownRouteEnvelope(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret", JWTIssuer: "test-issuer", TokenTTL: time.Hour}
	server := NewServer(cfg, nil)

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/no-such-route", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var envelope apiResponse
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if envelope.StatusCode != http.StatusNotFound || envelope.Message != "Route not found" {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
}

func TestSignOutClearsCookie(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret", JWTIssuer: "test-issuer", TokenTTL: time.Hour}
	server := NewServer(cfg, nil)

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sign-out", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != tokenCookieName || cookies[0].MaxAge != -1 {
		t.Fatalf("expected expired %s cookie, got %+v", tokenCookieName, cookies)
	}
}
