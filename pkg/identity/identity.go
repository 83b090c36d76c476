package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/residency-backend/pkg/config"
	"github.com/angelmondragon/residency-backend/pkg/logger"
)

// ErrInvalidToken is returned when a bearer token cannot be verified.
var ErrInvalidToken = errors.New("invalid identity token")

// Identity is the authenticated caller as asserted by the identity provider.
// The core trusts it as a capability and never mutates it.
type Identity struct {
	Email       string
	DisplayName string
	Token       string
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// NewVerifier selects the provider configured in cfg.
func NewVerifier(ctx context.Context, cfg config.IdentityConfig, logg *logger.Logger) (Verifier, error) {
	switch cfg.NormalizedProvider() {
	case config.IdentityProviderFirebase:
		return NewFirebaseVerifier(ctx, cfg)
	case config.IdentityProviderDev:
		if logg != nil {
			logg.Warn(ctx, "dev identity provider enabled; tokens are self-signed")
		}
		return NewDevVerifier(cfg)
	default:
		return nil, fmt.Errorf("unsupported identity provider %q", cfg.Provider)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
