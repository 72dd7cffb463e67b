package middleware

import (
    "net/http/httptest"
    "testing"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

func newRateLimitContext(t *testing.T) echo.Context {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest("GET", "/v1/holds/1", nil)
    return e.NewContext(req, httptest.NewRecorder())
}

func TestCurrentUserIDFromJWTClaims(t *testing.T) {
    c := newRateLimitContext(t)

    // Before JWTAuth runs, the bearer's identity is only in the parsed
    // token, not in the handler-facing context keys.
    tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "42"})
    c.Set("user", tok)
    if got := currentUserID(c); got != "42" {
        t.Fatalf("currentUserID = %q, want %q", got, "42")
    }
}

func TestCurrentUserIDUnauthenticated(t *testing.T) {
    c := newRateLimitContext(t)
    if got := currentUserID(c); got != "guest" {
        t.Fatalf("currentUserID = %q, want %q", got, "guest")
    }
}
