// Package session bridges the external identity provider to the portal
// core: it verifies provider-issued access tokens into Session records and
// fans session transitions out to subscribers through a Hub.
package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"projectflow/gateway"
)

// Verifier validates HMAC-signed access tokens issued by the identity
// provider and extracts the session subject.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier over the provider's shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify validates the token and returns the session it carries.
func (v *Verifier) Verify(tokenString string) (gateway.Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return gateway.Session{}, fmt.Errorf("session: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return gateway.Session{}, fmt.Errorf("session: invalid token")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return gateway.Session{}, fmt.Errorf("session: invalid subject in token")
	}
	email, _ := claims["email"].(string)

	return gateway.Session{ID: sub, Email: email}, nil
}

// Sign issues a token for the session, valid for ttl. Used by tests and
// local tooling standing in for the identity provider.
func (v *Verifier) Sign(sess gateway.Session, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   sess.ID,
		"email": sess.Email,
		"exp":   time.Now().Add(ttl).Unix(),
		"iat":   time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return signed, nil
}
