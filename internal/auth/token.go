// Package auth resolves the caller's identity from a bearer token and checks
// that the addressed dialog belongs to that identity. Failures are returned as
// rag errors so the HTTP boundary maps them without inspecting auth internals.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/54b3r/caselaw-rag/internal/rag"
)

var (
	// ErrInvalidToken is returned when the token fails signature or claim checks.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrTokenExpired is returned when the token's exp claim is in the past.
	ErrTokenExpired = errors.New("auth: token expired")
)

// DefaultAudience is the audience claim carried by session tokens of
// signed-in users.
const DefaultAudience = "authenticated"

// Claims are the JWT claims read from an identity token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	// Secret is the HMAC signing secret shared with the identity provider.
	Secret string

	// Issuer, when set, must equal the token's iss claim.
	Issuer string

	// Audience must be present in the token's aud claim. Defaults to
	// DefaultAudience.
	Audience string

	// Leeway absorbs clock skew when checking exp, nbf and iat.
	Leeway time.Duration
}

// Verifier validates HS256-signed identity tokens.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier returns a Verifier for cfg. The secret is required.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth: jwt secret must not be empty")
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Verifier{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(opts...),
	}, nil
}

// Verify parses and validates token, returning the identity it asserts.
// The subject claim must be a UUID.
func (v *Verifier) Verify(_ context.Context, token string) (rag.Identity, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return rag.Identity{}, ErrTokenExpired
		}
		return rag.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return rag.Identity{}, ErrInvalidToken
	}

	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		return rag.Identity{}, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}

	return rag.Identity{UserID: sub.String(), Email: claims.Email}, nil
}

// Sign issues an HS256 token for identity valid for ttl. It is used by the
// token command for local testing and by tests.
func Sign(cfg VerifierConfig, identity rag.Identity, ttl time.Duration) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("auth: jwt secret must not be empty")
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: identity.Email,
		Role:  cfg.Audience,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}
	return signed, nil
}
