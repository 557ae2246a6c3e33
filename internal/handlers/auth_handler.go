package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/idcard/backend/internal/auth"
	"github.com/idcard/backend/internal/middleware"
	"github.com/idcard/backend/internal/models"
	"github.com/idcard/backend/internal/services"
)

const refreshCookiePath = "/api/auth"

type AuthHandler struct {
	users        services.UserService
	tokens       *auth.TokenIssuer
	cookieSecure bool
	logger       *zap.Logger
}

func NewAuthHandler(users services.UserService, tokens *auth.TokenIssuer, cookieSecure bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:        users,
		tokens:       tokens,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	user, err := h.users.Register(ctx, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailExists):
			writeJSON(w, http.StatusConflict, models.NewErrorResponse("Email already registered"))
		case errors.Is(err, services.ErrUserNameExists):
			writeJSON(w, http.StatusConflict, models.NewErrorResponse("User name already taken"))
		default:
			h.logger.Error("Register failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create user"))
		}
		return
	}

	h.logger.Info("User registered", zap.String("user_id", user.ID), zap.String("user_name", user.UserName))
	h.startSession(w, user, http.StatusCreated)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	user, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) || errors.Is(err, services.ErrInvalidPassword) {
			writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid email or password"))
			return
		}
		h.logger.Error("Login failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Login failed"))
		return
	}

	h.startSession(w, user, http.StatusOK)
}

// Refresh exchanges a refresh token, from the body or the refresh cookie,
// for a new token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	token := req.RefreshToken
	if token == "" {
		if c, err := r.Cookie(middleware.RefreshCookieName); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Refresh token required"))
		return
	}

	userID, err := h.tokens.Parse(token, auth.TokenTypeRefresh)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
			return
		}
		h.logger.Error("Refresh failed", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to refresh session"))
		return
	}

	h.startSession(w, user, http.StatusOK)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSession(w)
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Logged out"}))
}

func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("User not found"))
			return
		}
		h.logger.Error("GetProfile failed", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load profile"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(user))
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	var req models.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	user, err := h.users.UpdateProfile(ctx, userID, &req)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("User not found"))
			return
		}
		h.logger.Error("UpdateProfile failed", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to update profile"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(user))
}

func (h *AuthHandler) startSession(w http.ResponseWriter, user *models.User, status int) {
	pair, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.Error("Token issue failed", zap.String("user_id", user.ID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to generate token"))
		return
	}

	h.setCookie(w, middleware.AccessCookieName, pair.AccessToken, "/", pair.AccessExpiresAt)
	h.setCookie(w, middleware.RefreshCookieName, pair.RefreshToken, refreshCookiePath, pair.RefreshExpiresAt)

	writeJSON(w, status, models.NewSuccessResponse(models.AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(h.tokens.AccessTTL() / time.Second),
		User:         *user,
	}))
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value, path string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSession(w http.ResponseWriter) {
	h.clearCookie(w, middleware.AccessCookieName, "/")
	h.clearCookie(w, middleware.RefreshCookieName, refreshCookiePath)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
