package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// DevTokenPayload captures the identity fields carried by a dev token.
type DevTokenPayload struct {
	Email       string
	DisplayName string
}

// DevTokenClaims mirrors the subset of Firebase ID token claims the API reads.
type DevTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
