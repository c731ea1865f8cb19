package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleMaintenance is the only role this service knows. The coordinator
// has exactly one mutating surface, the maintenance reset.
const RoleMaintenance = "maintenance"

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type TokenHandler struct {
	secretKey []byte
	tokenTTL  time.Duration
}

func NewTokenHandler(secretKey string, tokenTTL time.Duration) *TokenHandler {
	return &TokenHandler{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
	}
}

// GenerateMaintenanceToken creates a new HS256 maintenance token
func (h *TokenHandler) GenerateMaintenanceToken(subject string) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: RoleMaintenance,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
			Issuer:    "openbatchcore",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secretKey)
}

// ValidateToken validates and parses a maintenance token
func (h *TokenHandler) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.secretKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Role != RoleMaintenance {
		return nil, fmt.Errorf("token lacks maintenance role")
	}
	return claims, nil
}
