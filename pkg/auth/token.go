package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/residency-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintDevToken issues a signed HS256 identity token for local environments,
// tests, and the CLI. Production identities come from Firebase.
func MintDevToken(cfg config.IdentityConfig, now time.Time, payload DevTokenPayload) (string, error) {
	if cfg.DevTokenSecret == "" {
		return "", fmt.Errorf("dev token secret is required")
	}
	if cfg.DevTokenIssuer == "" {
		return "", fmt.Errorf("dev token issuer is required")
	}
	if cfg.DevTokenTTL <= 0 {
		return "", fmt.Errorf("dev token ttl must be positive")
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return "", fmt.Errorf("email is required")
	}

	issuedAt := jwt.NewNumericDate(now)
	expiry := jwt.NewNumericDate(now.Add(time.Duration(cfg.DevTokenTTL) * time.Minute))

	claims := DevTokenClaims{
		Email: email,
		Name:  strings.TrimSpace(payload.DisplayName),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.DevTokenIssuer,
			Subject:   email,
			IssuedAt:  issuedAt,
			ExpiresAt: expiry,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.DevTokenSecret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseDevToken validates the JWT string and returns typed claims.
func ParseDevToken(cfg config.IdentityConfig, tokenString string) (*DevTokenClaims, error) {
	if cfg.DevTokenSecret == "" {
		return nil, fmt.Errorf("dev token secret is required")
	}

	claims := &DevTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.DevTokenSecret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.DevTokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, fmt.Errorf("token has no email claim")
	}

	return claims, nil
}
