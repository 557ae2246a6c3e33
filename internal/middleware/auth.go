package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/idcard/backend/internal/auth"
	"github.com/idcard/backend/internal/models"
)

type contextKey string

const (
	UserIDKey    contextKey = "userID"
	UserEmailKey contextKey = "userEmail"
)

const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
)

// Authenticate rejects requests without a valid access token. The token is
// read from the Authorization header first, then from the access cookie.
func Authenticate(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := tokenFromRequest(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid authorization header format"))
				return
			}
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authorization required"))
				return
			}

			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
				return
			}

			ctx := WithIdentity(r.Context(), id.UserID, id.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest returns ok=false only for a malformed Authorization header.
func tokenFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	if c, err := r.Cookie(AccessCookieName); err == nil {
		return c.Value, true
	}
	return "", true
}

func WithIdentity(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserEmailKey, email)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

func GetUserEmail(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
