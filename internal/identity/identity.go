// Package identity issues and validates anonymous participant
// identities. An identity is a random UUID wrapped in a signed JWT;
// nothing about the participant is persisted.
package identity

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuerName = "driftchat-service"

// Issuer mints and checks anonymous participant tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an issuer. ttl bounds how long one browsing
// session's identity stays valid.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue generates a fresh participant ID and its bearer token.
func (i *Issuer) Issue() (participantID, token string, err error) {
	participantID = uuid.New().String()

	claims := jwt.MapClaims{
		"anon_id": participantID,
		"exp":     time.Now().Add(i.ttl).Unix(),
		"iss":     issuerName,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return participantID, token, nil
}

// Validate checks the token signature and expiry and returns the
// participant ID it carries.
func (i *Issuer) Validate(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	anonID, ok := claims["anon_id"].(string)
	if !ok || anonID == "" {
		return "", errors.New("token missing anon_id")
	}
	return anonID, nil
}
