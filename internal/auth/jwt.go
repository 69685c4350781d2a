// Package auth provides JWT bearer-token authentication for the External
// Interface Shim's HTTP surface, adapted from libs/auth/jwt.go.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken      = errors.New("invalid or expired token")
	ErrMissingToken      = errors.New("missing authorization token")
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
	ErrInsufficientRole  = errors.New("caller's role is not permitted to perform this operation")
)

// Claims is the JWT payload issued for a caller of the shim. Role is
// "trader" (read/write) or "readonly" (read-only).
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Config configures a JWTManager.
type Config struct {
	Secret []byte
	Expiry time.Duration
	Issuer string
}

// JWTManager issues and validates bearer tokens for the shim.
type JWTManager struct {
	config Config
}

// NewJWTManager returns a JWTManager, filling in defaults for zero fields.
func NewJWTManager(config Config) (*JWTManager, error) {
	if len(config.Secret) == 0 {
		return nil, errors.New("auth: JWT secret cannot be empty")
	}
	if config.Expiry == 0 {
		config.Expiry = 24 * time.Hour
	}
	if config.Issuer == "" {
		config.Issuer = "paperbroker"
	}
	return &JWTManager{config: config}, nil
}

// NewJWTManagerFromEnv builds a JWTManager from PAPERBROKER_JWT_SECRET and
// PAPERBROKER_JWT_EXPIRY.
func NewJWTManagerFromEnv() (*JWTManager, error) {
	secret := os.Getenv("PAPERBROKER_JWT_SECRET")
	if secret == "" {
		return nil, errors.New("auth: PAPERBROKER_JWT_SECRET is required")
	}
	expiry, err := parseDuration(os.Getenv("PAPERBROKER_JWT_EXPIRY"), 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("auth: invalid PAPERBROKER_JWT_EXPIRY: %w", err)
	}
	return NewJWTManager(Config{Secret: []byte(secret), Expiry: expiry})
}

// GenerateToken issues a signed token for userID/role.
func (m *JWTManager) GenerateToken(userID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
			Subject:   userID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Secret)
}

// ValidateToken parses and verifies tokenString, returning its claims.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractTokenFromRequest pulls the bearer token out of the Authorization
// header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", ErrInvalidAuthHeader
	}
	return parts[1], nil
}

// Middleware validates the bearer token on every request and attaches its
// claims to the request context.
func (m *JWTManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := ExtractTokenFromRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		claims, err := m.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		ctx := withClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole wraps next so only callers with role may invoke it, returning
// 403 for any other authenticated role.
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callerRole, ok := RoleFromContext(r.Context())
		if !ok || callerRole != role {
			http.Error(w, ErrInsufficientRole.Error(), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GenerateSecureRandomString returns a cryptographically random string of
// length URL-safe base64 characters.
func GenerateSecureRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes)[:length], nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}
