package utils

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"waos/internal/config"
	"waos/internal/models"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrWrongTokenType = errors.New("wrong token type")

type Claims struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies tokens. Access tokens are signed RS256 when a private key is
// configured, HS256 with the shared secret otherwise. Refresh tokens always use the secret.
type TokenManager struct {
	secret     []byte
	privateKey *rsa.PrivateKey
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenManager(cfg config.JWTConfig, privateKey *rsa.PrivateKey) *TokenManager {
	return &TokenManager{
		secret:     []byte(cfg.Secret),
		privateKey: privateKey,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

// GenerateJWT issues an access token for user and returns it with its expiry.
func (m *TokenManager) GenerateJWT(user *models.User) (string, time.Time, error) {
	expires := m.now().Add(m.accessTTL)
	claims := m.claims(user, TokenTypeAccess, expires)
	claims.Email = user.Email
	claims.Roles = append([]string(nil), user.Roles...)

	if m.privateKey != nil {
		token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
		return token, expires, err
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	return token, expires, err
}

// GenerateRefreshToken generates a refresh token for a user
func (m *TokenManager) GenerateRefreshToken(user *models.User) (string, time.Time, error) {
	expires := m.now().Add(m.refreshTTL)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, m.claims(user, TokenTypeRefresh, expires)).SignedString(m.secret)
	return token, expires, err
}

func (m *TokenManager) claims(user *models.User, typ string, expires time.Time) Claims {
	now := m.now()
	return Claims{
		UserID:    user.ID,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

// ParseJWT parses and validates an access token
func (m *TokenManager) ParseJWT(tokenString string) (*Claims, error) {
	return m.parse(tokenString, TokenTypeAccess, m.accessKey)
}

// ParseRefreshToken parses and validates a refresh token
func (m *TokenManager) ParseRefreshToken(tokenString string) (*Claims, error) {
	return m.parse(tokenString, TokenTypeRefresh, m.hmacKey)
}

func (m *TokenManager) accessKey(token *jwt.Token) (interface{}, error) {
	if m.privateKey != nil {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &m.privateKey.PublicKey, nil
	}
	return m.hmacKey(token)
}

func (m *TokenManager) hmacKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return m.secret, nil
}

func (m *TokenManager) parse(tokenString, typ string, key jwt.Keyfunc) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, key)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.TokenType != typ {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
