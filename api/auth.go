package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
	errForbidden            = errors.New("insufficient role")
)

const claimsContextKey = "airline.claims"

// Claims is the token payload issued to staff and passengers. Role gates
// which routes the bearer may call.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth validates and issues HS256 JWT tokens signed with a shared secret.
type Auth struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewAuth creates an Auth. The secret must not be empty.
func NewAuth(secret string, ttl time.Duration) *Auth {
	if secret == "" {
		panic("auth: shared secret must be set")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Auth{
		secret: []byte(secret),
		ttl:    ttl,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// IssueToken mints a signed token for the given subject and role.
func (a *Auth) IssueToken(userID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ClaimsFromAuthHeader validates the Authorization header value and returns
// the token claims.
func (a *Auth) ClaimsFromAuthHeader(h string) (*Claims, error) {
	token, err := bearerTokenFromString(h)
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	parsed, err := a.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, errBadAuthorization
	}
	return claims, nil
}

func bearerTokenFromString(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errMissingAuthorization
	}
	const prefix = "Bearer "
	if len(trimmed) <= len(prefix) || trimmed[:len(prefix)] != prefix {
		return "", errBadAuthorization
	}
	token := trimmed[len(prefix):]
	if strings.Count(token, ".") != 2 {
		return "", errBadAuthorization
	}
	return token, nil
}

// requireRole authenticates the request and rejects bearers whose role is
// not in the allowed set. An empty set admits any authenticated bearer.
// SSE clients cannot set headers, so a token query parameter is accepted
// as a fallback.
func requireRole(auth *Auth, roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				if token := c.QueryParam("token"); token != "" {
					header = "Bearer " + token
				}
			}
			claims, err := auth.ClaimsFromAuthHeader(header)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
			}
			if len(allowed) > 0 {
				if _, ok := allowed[claims.Role]; !ok {
					return c.JSON(http.StatusForbidden, errorResponse{Error: errForbidden.Error()})
				}
			}
			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

func claimsFrom(c echo.Context) *Claims {
	claims, _ := c.Get(claimsContextKey).(*Claims)
	return claims
}
