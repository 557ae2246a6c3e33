package auth

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/idcard/backend/internal/models"
)

// UserByEmail resolves a verified Firebase email to a local account.
type UserByEmail interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsJSON string
}

// FirebaseVerifier accepts Firebase ID tokens for accounts that are already
// registered locally under the same, verified, email address.
type FirebaseVerifier struct {
	client *fbauth.Client
	users  UserByEmail
}

func NewFirebaseVerifier(ctx context.Context, cfg FirebaseConfig, users UserByEmail) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase: init app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: init auth client: %w", err)
	}

	return &FirebaseVerifier{client: client, users: users}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	email, _ := tok.Claims["email"].(string)
	verified, _ := tok.Claims["email_verified"].(bool)
	if email == "" || !verified {
		return nil, ErrInvalidToken
	}

	user, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: user.ID, Email: user.Email}, nil
}
