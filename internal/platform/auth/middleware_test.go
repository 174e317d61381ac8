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

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func testConfig() JWTConfig {
	return JWTConfig{Issuer: "hms", SigningKey: testSigningKey, TTL: time.Hour}
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, path, header string) (context.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen context.Context
	err := mw(func(c echo.Context) error {
		seen = c.Request().Context()
		return c.NoContent(http.StatusOK)
	})(c)
	return seen, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(testConfig()), "/api/v1/patients", "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	for _, header := range []string{"Token abc123", "Bearer", "Bearer ", "Basic dXNlcjpwYXNz"} {
		t.Run(header, func(t *testing.T) {
			_, err := runMiddleware(t, JWTMiddleware(testConfig()), "/api/v1/patients", header)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	issuer := NewIssuer(testConfig())
	token, exp, err := issuer.Issue("user-1", "dr.house", []string{RoleDoctor}, "staff-9")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Error("expected expiry in the future")
	}

	ctx, err := runMiddleware(t, JWTMiddleware(testConfig()), "/api/v1/patients", "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if UserIDFromContext(ctx) != "user-1" {
		t.Errorf("expected user-1, got %q", UserIDFromContext(ctx))
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != RoleDoctor {
		t.Errorf("unexpected roles %v", roles)
	}
	if StaffIDFromContext(ctx) != "staff-9" {
		t.Errorf("expected staff-9, got %q", StaffIDFromContext(ctx))
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	issuer := NewIssuer(testConfig())
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := issuer.Issue("user-1", "u", []string{RoleNurse}, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = runMiddleware(t, JWTMiddleware(testConfig()), "/api/v1/patients", "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongIssuerOrKey(t *testing.T) {
	other := NewIssuer(JWTConfig{Issuer: "someone-else", SigningKey: testSigningKey})
	token, _, _ := other.Issue("u", "u", nil, "")
	_, err := runMiddleware(t, JWTMiddleware(testConfig()), "/x", "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)

	wrongKey := NewIssuer(JWTConfig{Issuer: "hms", SigningKey: []byte("another-key")})
	token, _, _ = wrongKey.Issue("u", "u", nil, "")
	_, err = runMiddleware(t, JWTMiddleware(testConfig()), "/x", "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_RejectsNoneAlg(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "hms"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = runMiddleware(t, JWTMiddleware(testConfig()), "/x", "Bearer "+token)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_SkipsPaths(t *testing.T) {
	_, err := runMiddleware(t, JWTMiddleware(testConfig(), "/api/v1/auth/login"), "/api/v1/auth/login", "")
	if err != nil {
		t.Fatalf("expected skipped path to pass, got %v", err)
	}
}

func TestDevAuthMiddleware_DefaultsToAdmin(t *testing.T) {
	ctx, err := runMiddleware(t, DevAuthMiddleware(testConfig()), "/x", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if UserIDFromContext(ctx) != "dev-user" {
		t.Errorf("expected dev-user, got %q", UserIDFromContext(ctx))
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != RoleAdmin {
		t.Errorf("expected admin role, got %v", roles)
	}
}

func TestDevAuthMiddleware_ValidatesProvidedToken(t *testing.T) {
	_, err := runMiddleware(t, DevAuthMiddleware(testConfig()), "/x", "Bearer garbage")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestIssuer_RequiresKey(t *testing.T) {
	if _, _, err := NewIssuer(JWTConfig{}).Issue("u", "u", nil, ""); err == nil {
		t.Fatal("expected error without signing key")
	}
}

func TestJWTMiddleware_WebsocketQueryToken(t *testing.T) {
	token, _, err := NewIssuer(testConfig()).Issue("user-7", "nurse.joy", []string{RoleNurse}, "")
	if err != nil {
		t.Fatal(err)
	}
	mw := JWTMiddleware(testConfig())
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws?access_token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	c := e.NewContext(req, httptest.NewRecorder())
	var seen context.Context
	err = mw(func(c echo.Context) error {
		seen = c.Request().Context()
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if UserIDFromContext(seen) != "user-7" {
		t.Errorf("expected user-7, got %q", UserIDFromContext(seen))
	}

	// Plain requests must use the header.
	_, err = runMiddleware(t, mw, "/api/v1/patients?access_token="+token, "")
	expectStatus(t, err, http.StatusUnauthorized)
}
