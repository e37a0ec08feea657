package adminapi

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pkgcrypto "github.com/lorawan-server/gateway-bridge/pkg/crypto"
)

// AdminClaims is the JWT claim set for the admin API: just the operator
// subject, nothing device-specific.
type AdminClaims struct {
	jwt.RegisteredClaims
	Subject string `json:"sub"`
}

// Credentials is the single configured operator account: a username and a
// bcrypt password hash. There is no multi-user store — device/application
// management lives in the external device-catalog service.
type Credentials struct {
	Username     string
	PasswordHash string
}

// TokenManager issues and validates short-lived HS256 admin tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	creds  Credentials
}

func NewTokenManager(secret string, ttl time.Duration, creds Credentials) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, creds: creds}
}

// Login checks username/password against the configured operator
// credential and returns a signed token on success.
func (m *TokenManager) Login(username, password string) (string, error) {
	if username != m.creds.Username || !pkgcrypto.VerifyPassword(password, m.creds.PasswordHash) {
		return "", fmt.Errorf("adminapi: invalid credentials")
	}

	now := time.Now()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Subject: username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses and verifies a bearer token.
func (m *TokenManager) Validate(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("adminapi: invalid token")
	}
	return claims, nil
}
