package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skillswap/backend/internal/models"
)

const tokenIssuer = "skillswap-api"

// ErrInvalidToken indicates an access token failed signature, expiry or claim checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims carries the identity embedded in an access token.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenSigner mints and verifies HS256 access tokens.
type TokenSigner struct {
	secret []byte
	now    func() time.Time
}

// NewTokenSigner constructs a signer using the shared HMAC secret.
func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret), now: time.Now}
}

// Sign issues an access token for actor valid until expiresAt.
func (s *TokenSigner) Sign(actor models.Actor, expiresAt time.Time) (string, error) {
	if actor.UserID == "" {
		return "", errors.New("user id must be provided")
	}
	now := s.now().UTC()
	claims := Claims{
		Email: actor.Email,
		Name:  actor.DisplayName,
		Role:  actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Verify parses an access token and returns the actor it was issued to.
func (s *TokenSigner) Verify(raw string) (models.Actor, error) {
	if raw == "" {
		return models.Actor{}, ErrInvalidToken
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return models.Actor{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return models.Actor{}, ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}

	return models.Actor{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		Role:        role,
	}, nil
}
