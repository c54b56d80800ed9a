// Package auth issues and verifies the member session token carried in the
// member cookie.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jaxspot/billing/internal/shared/biztime"
)

var ErrSessionSecretMissing = errors.New("session secret is not configured")

// Claims identifies the member a session was opened for.
type Claims struct {
	MemberID uint `json:"member_id"`
	jwt.RegisteredClaims
}

// JWTService signs HS256 member session tokens.
type JWTService struct {
	secret []byte
	maxAge time.Duration
	clock  biztime.Clock
}

func NewJWTService(secret string, maxAge time.Duration) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		maxAge: maxAge,
		clock:  biztime.SystemClock,
	}
}

// SetClock replaces the clock used for issue and expiry times.
func (s *JWTService) SetClock(clock biztime.Clock) {
	s.clock = clock
}

// MaxAge is the lifetime of issued tokens.
func (s *JWTService) MaxAge() time.Duration {
	return s.maxAge
}

func (s *JWTService) Generate(memberID uint) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrSessionSecretMissing
	}

	now := s.clock()
	claims := &Claims{
		MemberID: memberID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

func (s *JWTService) Verify(tokenString string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrSessionSecretMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.MemberID == 0 {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
