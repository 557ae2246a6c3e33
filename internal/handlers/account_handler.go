package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/idcard/backend/internal/middleware"
	"github.com/idcard/backend/internal/models"
	"github.com/idcard/backend/internal/services"
)

type AccountHandler struct {
	accounts *services.AccountService
	auth     *AuthHandler
	logger   *zap.Logger
}

func NewAccountHandler(accounts *services.AccountService, authHandler *AuthHandler, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, auth: authHandler, logger: logger}
}

// DeleteAccount deletes the authenticated user with all their cards and
// ends the session.
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), services.DefaultAccountTimeout())
	defer cancel()

	result, err := h.accounts.DeleteAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("User not found"))
			return
		}
		h.logger.Error("Delete account failed", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to delete account"))
		return
	}

	h.auth.clearSession(w)
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(result))
}
