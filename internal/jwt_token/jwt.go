// Package jwttoken issues and validates the HS256 bearer tokens that guard
// the identity query API.
package jwttoken

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "idstatus/pkg/domain-errors"
)

// ScopeIdentitiesRead grants the read-only query endpoints.
const ScopeIdentitiesRead = "identities:read"

// Claims carries a space-separated scope list alongside the registered claims.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether want is one of the granted scopes.
func (c *Claims) HasScope(want string) bool {
	return slices.Contains(strings.Fields(c.Scope), want)
}

// JWTService signs and verifies tokens for one issuer/audience pair.
type JWTService struct {
	signingKey    []byte
	issuer        string
	audience      string
	requiredScope string
	parser        *jwt.Parser
}

// Option configures the JWTService.
type Option func(*jwtOptions)

type jwtOptions struct {
	requiredScope string
	leeway        time.Duration
}

// WithRequiredScope rejects tokens that do not grant scope.
func WithRequiredScope(scope string) Option {
	return func(o *jwtOptions) {
		o.requiredScope = scope
	}
}

// WithLeeway tolerates clock skew on exp/iat checks.
func WithLeeway(d time.Duration) Option {
	return func(o *jwtOptions) {
		o.leeway = d
	}
}

func NewJWTService(signingKey, issuer, audience string, opts ...Option) *JWTService {
	o := jwtOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return &JWTService{
		signingKey:    []byte(signingKey),
		issuer:        issuer,
		audience:      audience,
		requiredScope: o.requiredScope,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(o.leeway),
		),
	}
}

// GenerateAccessToken issues a token for subject. Operators and tests mint
// tokens with it; the service itself only validates.
func (s *JWTService) GenerateAccessToken(subject, scope string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}).SignedString(s.signingKey)
}

// ValidateToken verifies signature, issuer, audience, expiry, subject and,
// when configured, the required scope. Every failure is CodeUnauthorized.
func (s *JWTService) ValidateToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case err != nil:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	case claims.Subject == "":
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	case s.requiredScope != "" && !claims.HasScope(s.requiredScope):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token lacks scope "+s.requiredScope)
	}
	return claims, nil
}
