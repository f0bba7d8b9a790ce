package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin = "admin"
	issuer    = "cabotin"
)

var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrInvalidSubject = errors.New("subject must be non-empty")
	ErrDisabled       = errors.New("admin access is disabled")
)

// Claims are the claims of an admin token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies the bearer tokens guarding the mutating
// dashboard endpoints. A Service with an empty secret rejects everything.
type Service struct {
	jwtSecret []byte
	jwtExpiry time.Duration
	now       func() time.Time
}

func NewService(jwtSecret []byte, jwtExpiry time.Duration) *Service {
	return &Service{
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
		now:       time.Now,
	}
}

func (s *Service) Enabled() bool {
	return len(s.jwtSecret) > 0
}

// IssueToken signs an admin token for subject.
func (s *Service) IssueToken(subject string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	if subject == "" {
		return "", ErrInvalidSubject
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken returns the claims of a valid, unexpired admin token.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleAdmin || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
