package identity

import (
	"context"
	"fmt"

	"github.com/angelmondragon/residency-backend/pkg/auth"
	"github.com/angelmondragon/residency-backend/pkg/config"
)

// DevVerifier accepts HS256 tokens minted by auth.MintDevToken.
type DevVerifier struct {
	cfg config.IdentityConfig
}

func NewDevVerifier(cfg config.IdentityConfig) (*DevVerifier, error) {
	if cfg.DevTokenSecret == "" {
		return nil, fmt.Errorf("dev token secret is required")
	}
	return &DevVerifier{cfg: cfg}, nil
}

func (v *DevVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	claims, err := auth.ParseDevToken(v.cfg, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &Identity{
		Email:       normalizeEmail(claims.Email),
		DisplayName: claims.Name,
		Token:       token,
	}, nil
}
