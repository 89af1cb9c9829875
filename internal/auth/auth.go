// Package auth verifies passwords and issues the signed session tokens that
// gate both the REST surface and the WebSocket handshake.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidToken is returned when a token fails signature or claim
	// validation for any reason other than expiry.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrExpiredToken is returned when a token's expiry has passed.
	ErrExpiredToken = errors.New("auth: token expired")
)

// Identity is the authenticated subject carried by a session token.
type Identity struct {
	UserID int64
	Name   string
}

// Claims is the JWT claim set for a session token.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Service hashes passwords and mints/verifies HS256 session tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	cost   int
}

// NewService builds a Service. A non-positive ttl falls back to 24h and a
// non-positive cost falls back to bcrypt.DefaultCost.
func NewService(secret string, ttl time.Duration, cost int) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{secret: []byte(secret), ttl: ttl, cost: cost}
}

// HashPassword returns a salted bcrypt hash of the plaintext.
func (s *Service) HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored hash.
func (s *Service) VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// IssueToken signs a session token for the given user.
func (s *Service) IssueToken(userID int64, name string) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyToken validates a session token and extracts the identity it asserts.
func (s *Service) VerifyToken(token string) (Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: userID, Name: claims.Name}, nil
}
