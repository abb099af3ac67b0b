// Package auth verifies bearer tokens and turns them into principals.
// Accounts and sign-in live outside this service; it only trusts tokens
// signed with the shared secret.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/mcoot/fairway/internal/dependencies/clock"
	"github.com/mcoot/fairway/internal/model"
)

// Errors
var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("missing bearer token")
)

// Principal is the authenticated caller
type Principal struct {
	UserID model.UserID `json:"uid"`
	Email  string       `json:"email"`
}

// Config holds configuration for the auth service
type Config struct {
	Secret        string
	Issuer        string
	TokenDuration time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		Secret:        "dev-secret-change-me",
		Issuer:        "fairway",
		TokenDuration: 24 * time.Hour,
	}
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and verifies HS256 tokens
type Service struct {
	clock  clock.Clock
	secret []byte
	cfg    Config
}

// New creates a new auth Service
func New(clock clock.Clock, cfg Config) *Service {
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = DefaultConfig().TokenDuration
	}
	return &Service{
		clock:  clock,
		secret: []byte(cfg.Secret),
		cfg:    cfg,
	}
}

// IssueToken signs a token for the principal
func (s *Service) IssueToken(p Principal) (string, error) {
	if p.UserID == "" {
		return "", fmt.Errorf("%w: principal has no user id", model.ErrInvalidInput)
	}
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(p.UserID),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenDuration)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a token against the service clock
func (s *Service) Verify(tokenString string) (*Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !c.VerifyExpiresAt(s.clock.Now(), true) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	if s.cfg.Issuer != "" && !c.VerifyIssuer(s.cfg.Issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrInvalidToken)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &Principal{UserID: model.UserID(c.Subject), Email: c.Email}, nil
}

// VerifyHeader extracts and verifies a "Bearer <token>" Authorization header
func (s *Service) VerifyHeader(header string) (*Principal, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	return s.Verify(strings.TrimSpace(token))
}
