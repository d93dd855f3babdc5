package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Varun-CA-08/Airline/domain"
)

const testSecret = "test-secret"

func TestIssueAndParseToken(t *testing.T) {
	auth := NewAuth(testSecret, time.Hour)

	token, err := auth.IssueToken("user-1", domain.RoleAirline)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	claims, err := auth.ClaimsFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("subject = %q, want user-1", claims.Subject)
	}
	if claims.Role != domain.RoleAirline {
		t.Errorf("role = %q, want airline", claims.Role)
	}
}

func TestBearerTokenFromString(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"empty", "", errMissingAuthorization},
		{"blank", "   ", errMissingAuthorization},
		{"no scheme", "abc.def.ghi", errBadAuthorization},
		{"wrong scheme", "Basic abc.def.ghi", errBadAuthorization},
		{"not a jwt", "Bearer notajwt", errBadAuthorization},
		{"too many segments", "Bearer a.b.c.d", errBadAuthorization},
		{"valid shape", "Bearer a.b.c", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bearerTokenFromString(tt.header)
			if err != tt.wantErr {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	other := NewAuth("other-secret", time.Hour)
	token, err := other.IssueToken("user-1", domain.RoleUser)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	auth := NewAuth(testSecret, time.Hour)
	if _, err := auth.ClaimsFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("token signed with a different secret must be rejected")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	expired := Claims{
		Role: domain.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	auth := NewAuth(testSecret, time.Hour)
	if _, err := auth.ClaimsFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestRequireRole(t *testing.T) {
	auth := NewAuth(testSecret, time.Hour)
	adminToken, _ := auth.IssueToken("admin-1", domain.RoleAdmin)
	userToken, _ := auth.IssueToken("pax-1", domain.RoleUser)

	e := echo.New()
	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, claimsFrom(c).Subject)
	}
	e.GET("/guarded", handler, requireRole(auth, domain.RoleAdmin))
	e.GET("/open", handler, requireRole(auth))

	do := func(path, header, query string) *httptest.ResponseRecorder {
		target := path
		if query != "" {
			target += "?" + query
		}
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if header != "" {
			req.Header.Set(echo.HeaderAuthorization, header)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	if rec := do("/guarded", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}
	if rec := do("/guarded", "Bearer "+userToken, ""); rec.Code != http.StatusForbidden {
		t.Errorf("wrong role: status = %d, want 403", rec.Code)
	}
	if rec := do("/guarded", "Bearer "+adminToken, ""); rec.Code != http.StatusOK {
		t.Errorf("admin: status = %d, want 200", rec.Code)
	}
	if rec := do("/open", "Bearer "+userToken, ""); rec.Code != http.StatusOK {
		t.Errorf("any role: status = %d, want 200", rec.Code)
	}
	// Query-param fallback for SSE clients.
	if rec := do("/guarded", "", "token="+adminToken); rec.Code != http.StatusOK {
		t.Errorf("query token: status = %d, want 200", rec.Code)
	}
	if rec := do("/guarded", "", "token="+adminToken); rec.Body.String() != "admin-1" {
		t.Errorf("claims subject = %q, want admin-1", rec.Body.String())
	}
}
