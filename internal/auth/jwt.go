package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role separates the chat front end, which drives payments, from operators,
// who reconcile and refund them.
type Role string

const (
	RoleService  Role = "service"
	RoleOperator Role = "operator"
)

func (r Role) IsValid() bool {
	return r == RoleService || r == RoleOperator
}

type Claims struct {
	Subject string
	Role    Role
}

func (c Claims) IsOperator() bool {
	return c.Role == RoleOperator
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func GenerateToken(subject string, role Role, secret string, expiry time.Duration) (string, error) {
	if subject == "" || !role.IsValid() {
		return "", errors.New("GenerateToken: subject and a valid role are required")
	}

	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("ValidateToken: invalid token claims")
	}

	role := Role(tc.Role)
	if tc.Subject == "" || !role.IsValid() {
		return nil, fmt.Errorf("ValidateToken: missing subject or unknown role %q", tc.Role)
	}

	return &Claims{Subject: tc.Subject, Role: role}, nil
}
