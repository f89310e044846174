// Package auth issues and verifies the HS256 bearer tokens of the ledger API.
// A token names the acting clerk or admin; the role decides whether
// destructive endpoints (bulk delete, item delete) are allowed.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "stockledger/internal/core/context"
)

const (
	RoleClerk = "clerk"
	RoleAdmin = "admin"
)

var roles = []string{RoleClerk, RoleAdmin}

// ValidRole reports whether role is one the API knows.
func ValidRole(role string) bool {
	return slices.Contains(roles, role)
}

var (
	ErrNoSubject   = errors.New("token subject is required")
	ErrUnknownRole = errors.New("unknown role")
)

type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{Secret: secret, Issuer: "stockledger", AccessTokenTTL: 12 * time.Hour}
}

// Claims adds the display name and role to the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// JWTService signs and validates tokens with one shared secret.
type JWTService struct {
	cfg    JWTConfig
	key    []byte
	parser *jwt.Parser
}

// NewJWTService fills a zero Issuer or TTL from DefaultJWTConfig.
func NewJWTService(cfg JWTConfig) *JWTService {
	def := DefaultJWTConfig(cfg.Secret)
	if cfg.Issuer == "" {
		cfg.Issuer = def.Issuer
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = def.AccessTokenTTL
	}
	return &JWTService{
		cfg: cfg,
		key: []byte(cfg.Secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

// GenerateAccessToken signs a token for subject. An empty role means clerk.
func (s *JWTService) GenerateAccessToken(subject, name, role string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, ErrNoSubject
	}
	if role == "" {
		role = RoleClerk
	}
	if !ValidRole(role) {
		return "", time.Time{}, fmt.Errorf("%w %q", ErrUnknownRole, role)
	}

	now := time.Now()
	exp := now.Add(s.cfg.AccessTokenTTL)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Name: name,
		Role: role,
	}).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ValidateToken checks signature, issuer and expiry and returns the actor.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.Actor, error) {
	var claims Claims
	if _, err := s.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, ErrNoSubject
	}
	if !ValidRole(claims.Role) {
		return nil, fmt.Errorf("%w %q", ErrUnknownRole, claims.Role)
	}
	return &appctx.Actor{Subject: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}
