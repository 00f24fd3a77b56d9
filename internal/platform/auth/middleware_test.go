package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func withRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesKey, roles)
}

func signedToken(t *testing.T, key []byte, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := JWTMiddleware(JWTConfig{SigningKey: []byte("secret")})
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	key := []byte("secret")
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "5f8e8c3a-1111-2222-3333-444455556666",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name:      "Dr Osei",
		Roles:     []string{"physician"},
		SessionID: "sess-1",
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, key, claims))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotID, gotName, gotSession string
	mw := JWTMiddleware(JWTConfig{SigningKey: key})
	err := mw(func(c echo.Context) error {
		ctx := c.Request().Context()
		gotID = ActorIDFromContext(ctx)
		gotName = ActorNameFromContext(ctx)
		gotSession = SessionFromContext(ctx).ID
		return c.NoContent(http.StatusOK)
	})(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != claims.Subject {
		t.Errorf("actor id = %q, want %q", gotID, claims.Subject)
	}
	if gotName != "Dr Osei" {
		t.Errorf("actor name = %q, want Dr Osei", gotName)
	}
	if gotSession != "sess-1" {
		t.Errorf("session id = %q, want sess-1 (sid claim should win)", gotSession)
	}
}

func TestJWTMiddleware_BadToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := JWTMiddleware(JWTConfig{SigningKey: []byte("secret")})
	err := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func TestDevAuthMiddleware_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "ward-test/1.0")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := DevAuthMiddleware()(func(c echo.Context) error {
		ctx := c.Request().Context()
		if ActorIDFromContext(ctx) == "" {
			t.Error("expected dev actor id")
		}
		if ActorNameFromContext(ctx) != "Dev Clinician" {
			t.Errorf("actor name = %q", ActorNameFromContext(ctx))
		}
		sess := SessionFromContext(ctx)
		if sess.ID == "" {
			t.Error("expected generated session id")
		}
		if sess.UserAgent != "ward-test/1.0" {
			t.Errorf("session user agent = %q", sess.UserAgent)
		}
		return c.NoContent(http.StatusOK)
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()

	run := func(roles []string) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		ctx := c.Request().Context()
		c.SetRequest(c.Request().WithContext(withRoles(ctx, roles)))
		return RequireRole("physician")(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})(c)
	}

	if err := run([]string{"physician"}); err != nil {
		t.Errorf("physician should pass: %v", err)
	}
	if err := run([]string{"admin"}); err != nil {
		t.Errorf("admin should pass: %v", err)
	}
	err := run([]string{"clerk"})
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("clerk should be forbidden, got %v", err)
	}
}

func TestSessionFromContext_Zero(t *testing.T) {
	s := SessionFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if s.ID != "" {
		t.Errorf("expected zero session, got %+v", s)
	}
}
