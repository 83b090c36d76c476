package identity

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/angelmondragon/residency-backend/pkg/config"
	"google.golang.org/api/option"
)

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier validates Firebase ID tokens.
type FirebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier initializes the Firebase app and auth client. Without a
// credentials file the default application credentials are used.
func NewFirebaseVerifier(ctx context.Context, cfg config.IdentityConfig) (*FirebaseVerifier, error) {
	var (
		app *firebase.App
		err error
	)
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		app, err = firebase.NewApp(ctx, nil, option.WithCredentialsFile(path))
	} else {
		app, err = firebase.NewApp(ctx, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase auth: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	verified, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return identityFromClaims(verified.Claims, token)
}

func identityFromClaims(claims map[string]interface{}, token string) (*Identity, error) {
	email, _ := claims["email"].(string)
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	return &Identity{
		Email:       email,
		DisplayName: strings.TrimSpace(name),
		Token:       token,
	}, nil
}
