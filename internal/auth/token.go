// token.go -- HS256 access tokens carrying the caller's identity and role.
//
// Tokens have no server-side state. A token is valid while its signature,
// issuer, audience and expiry check out, so a role change only takes effect
// at the next login.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/MGallo-Code/bikeville/internal/store"
)

// ErrInvalidToken is returned by Validate for any token that must be rejected.
var ErrInvalidToken = errors.New("invalid token")

// minSecretLen is the shortest HS256 key accepted.
const minSecretLen = 32

// Identity is the authenticated subject a token is issued for.
type Identity struct {
	Email     string
	FirstName string
	LastName  string
	ID        int
	Role      string
}

// IsAdmin reports whether the identity carries the Admin role.
func (i Identity) IsAdmin() bool { return i.Role == store.RoleAdmin }

// Claims is the JWT payload. Field names match what existing clients read.
type Claims struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ID        int    `json:"Id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Identity returns the subject carried by c.
func (c *Claims) Identity() Identity {
	return Identity{Email: c.Email, FirstName: c.FirstName, LastName: c.LastName, ID: c.ID, Role: c.Role}
}

// TokenConfig holds signing and validation settings.
type TokenConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	Lifetime  time.Duration
	ClockSkew time.Duration
}

// TokenIssuer signs and validates access tokens. Safe for concurrent use.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	lifetime time.Duration
	leeway   time.Duration
	now      func() time.Time
}

// NewTokenIssuer validates cfg and returns an issuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLen)
	}
	if cfg.Lifetime <= 0 {
		return nil, errors.New("token lifetime must be positive")
	}
	if cfg.ClockSkew < 0 {
		return nil, errors.New("token clock skew must not be negative")
	}
	return &TokenIssuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		lifetime: cfg.Lifetime,
		leeway:   cfg.ClockSkew,
		now:      time.Now,
	}, nil
}

// Issue signs a token for id valid from now for the configured lifetime.
// Returns the token and its expiry.
func (ti *TokenIssuer) Issue(id Identity) (string, time.Time, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generating token id: %w", err)
	}

	now := ti.now()
	exp := now.Add(ti.lifetime)
	claims := &Claims{
		Email:     id.Email,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		ID:        id.ID,
		Role:      id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Audience:  jwt.ClaimStrings{ti.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti.String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Validate checks signature, issuer, audience and expiry and returns the claims.
// Every failure is reported as ErrInvalidToken wrapping the parser's reason.
func (ti *TokenIssuer) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return ti.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithAudience(ti.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(ti.leeway),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
