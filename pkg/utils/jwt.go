package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaimsKey is the fiber locals key holding the *UserClaims of a request.
const UserClaimsKey = "user_claims"

const tokenTTL = 72 * time.Hour

var jwtSecret = []byte("secret")

// SetSecret allows injecting the secret from config
func SetSecret(secret string) {
	jwtSecret = []byte(secret)
}

// UserClaims identify the caller of a report request.
type UserClaims struct {
	AccountID string   `json:"account_id"`
	UserID    string   `json:"user_id"`
	SysAdmin  bool     `json:"sys_admin,omitempty"`
	GroupIDs  []string `json:"group_ids,omitempty"`
	Locale    string   `json:"locale,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs claims, filling in the issue and expiry times.
func GenerateToken(claims UserClaims) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrTokenSignatureInvalid
}
