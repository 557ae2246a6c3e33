// Package auth issues and verifies the bearer tokens accepted by the API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type claims struct {
	UserID string `json:"user_id"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 access and refresh tokens with a shared secret.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (i *TokenIssuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *TokenIssuer) Issue(userID string) (*TokenPair, error) {
	now := i.now()

	access, accessExp, err := i.sign(userID, TokenTypeAccess, now, i.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := i.sign(userID, TokenTypeRefresh, now, i.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *TokenIssuer) sign(userID, typ string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	c := claims{
		UserID: userID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign %s token: %w", typ, err)
	}
	return signed, exp, nil
}

// Parse validates token and returns its user id. The token must carry the
// wanted type claim, so refresh tokens are never accepted as access tokens.
func (i *TokenIssuer) Parse(token, wantType string) (string, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if c.Type != wantType || c.UserID == "" {
		return "", ErrInvalidToken
	}
	return c.UserID, nil
}

// Verify implements Verifier for access tokens.
func (i *TokenIssuer) Verify(_ context.Context, token string) (*Identity, error) {
	userID, err := i.Parse(token, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: userID}, nil
}

// Chain tries each verifier in order and returns the first identity.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, token string) (*Identity, error) {
	for _, v := range c {
		if v == nil {
			continue
		}
		if id, err := v.Verify(ctx, token); err == nil {
			return id, nil
		}
	}
	return nil, ErrInvalidToken
}
