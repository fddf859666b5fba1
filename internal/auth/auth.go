// Package auth guards the API with a single shared credential. Sessions
// are JWT cookies signed with an ephemeral per-boot secret, so every
// restart invalidates all sessions.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/YelovSK/Damebooru-sub002/internal/config"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	// CookieName carries the session token.
	CookieName = "damebooru_session"

	// SessionTTL bounds both the JWT expiry and the cookie lifetime.
	SessionTTL = 7 * 24 * time.Hour
)

type Service struct {
	cfg    config.Auth
	secret []byte
}

func NewService(cfg config.Auth) (*Service, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, secret: secret}, nil
}

// Enabled reports whether API requests require a session.
func (s *Service) Enabled() bool { return s.cfg.Enabled }

// Login verifies the shared credential and mints a session token.
func (s *Service) Login(username, password string) (string, error) {
	if !s.verify(username, password) {
		return "", ErrInvalidCredentials
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate checks a session token's signature and expiry.
func (s *Service) Validate(token string) error {
	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err
}

// verify compares against the configured credential. The stored password
// may be plaintext or a bcrypt hash.
func (s *Service) verify(username, password string) bool {
	if username != s.cfg.Username {
		return false
	}
	stored := s.cfg.Password
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
