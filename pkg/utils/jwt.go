package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies the device account a session token was issued to.
type Claims struct {
	SerialNumber string `json:"serial_number"`
	DeviceType   string `json:"device_type"`
	jwt.RegisteredClaims
}

// GenerateJWT signs an HS256 token for a logged-in device account.
func GenerateJWT(serialNumber, deviceType, secret string, expiration time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}

	now := time.Now().UTC()
	claims := &Claims{
		SerialNumber: serialNumber,
		DeviceType:   deviceType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   serialNumber,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateJWT parses a token and returns its claims if the signature and expiry hold.
func ValidateJWT(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
