package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/idcard/backend/internal/cards"
	"github.com/idcard/backend/internal/middleware"
	"github.com/idcard/backend/internal/models"
	"github.com/idcard/backend/internal/services"
	"github.com/idcard/backend/internal/vcard"
)

const (
	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

type CardHandler struct {
	cards         services.CardService
	users         services.UserService
	cache         services.CardCache
	exporter      *vcard.Exporter
	publicBaseURL string
	logger        *zap.Logger
}

func NewCardHandler(
	cardService services.CardService,
	userService services.UserService,
	cache services.CardCache,
	exporter *vcard.Exporter,
	publicBaseURL string,
	logger *zap.Logger,
) *CardHandler {
	if cache == nil {
		cache = services.NoopCardCache{}
	}
	return &CardHandler{
		cards:         cardService,
		users:         userService,
		cache:         cache,
		exporter:      exporter,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// ListByUserName serves a user's public cards narrowed to one card type.
// The type comes from ?type= when the user has a card of that type,
// otherwise the first type in the list is used.
func (h *CardHandler) ListByUserName(w http.ResponseWriter, r *http.Request) {
	userName := chi.URLParam(r, "username")

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	user, err := h.users.GetByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("User not found"))
			return
		}
		h.logger.Error("Lookup user failed", zap.String("user_name", userName), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load cards"))
		return
	}

	list, err := h.userCards(ctx, user.ID)
	if err != nil {
		h.logger.Error("List cards failed", zap.String("user_id", user.ID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load cards"))
		return
	}

	public := user.Public()
	for i := range list {
		list[i].User = &public
	}

	sel := cards.NewSelector(list)
	if t := r.URL.Query().Get("type"); t != "" {
		sel.Select(models.CardType(t))
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.CardSelection{
		User:     public,
		Types:    sel.Types(),
		Selected: sel.Selected(),
		Template: sel.Selected().Template(),
		Cards:    sel.Filtered(),
	}))
}

func (h *CardHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	list, err := h.cards.ListByUserID(ctx, userID)
	if err != nil {
		h.logger.Error("List cards failed", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load cards"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(list))
}

func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	card, ok := h.loadPublicCard(ctx, w, chi.URLParam(r, "cardId"))
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(card))
}

func (h *CardHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	req, ok := decodeCardRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	card, err := h.cards.Create(ctx, userID, req)
	if err != nil {
		h.logger.Error("Create card failed", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create card"))
		return
	}
	h.cache.InvalidateUser(ctx, userID)

	h.logger.Info("Card created", zap.String("card_id", card.ID), zap.String("card_type", string(card.CardType)))
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(card))
}

func (h *CardHandler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	cardID := chi.URLParam(r, "cardId")
	req, ok := decodeCardRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	card, err := h.cards.Update(ctx, userID, cardID, req)
	if err != nil {
		h.writeMutationError(w, "Update card failed", cardID, err)
		return
	}
	h.cache.InvalidateUser(ctx, userID)

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(card))
}

func (h *CardHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	cardID := chi.URLParam(r, "cardId")

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	if err := h.cards.Delete(ctx, userID, cardID); err != nil {
		h.writeMutationError(w, "Delete card failed", cardID, err)
		return
	}
	h.cache.InvalidateUser(ctx, userID)

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Card deleted successfully"}))
}

// ExportVCard downloads the card as a vCard attachment.
func (h *CardHandler) ExportVCard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	card, ok := h.loadPublicCard(ctx, w, chi.URLParam(r, "cardId"))
	if !ok {
		return
	}

	body := h.exporter.Export(ctx, *card, *card.User)

	w.Header().Set("Content-Type", vcard.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", vcard.Filename(*card.User)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// QRCode renders a PNG QR code pointing at the card. With ?target=vcard the
// code links straight to the vCard download instead of the card itself.
func (h *CardHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardId")

	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < minQRSize || n > maxQRSize {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(
				fmt.Sprintf("size must be between %d and %d", minQRSize, maxQRSize)))
			return
		}
		size = n
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	card, ok := h.loadPublicCard(ctx, w, cardID)
	if !ok {
		return
	}

	png, err := qrcode.Encode(h.cardURL(card.ID, r.URL.Query().Get("target")), qrcode.Medium, size)
	if err != nil {
		h.logger.Error("QR encode failed", zap.String("card_id", card.ID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to render QR code"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *CardHandler) cardURL(cardID, target string) string {
	u := h.publicBaseURL + "/api/cards/" + cardID
	if target == "vcard" {
		u += "/vcard"
	}
	return u
}

// userCards reads through the cache.
func (h *CardHandler) userCards(ctx context.Context, userID string) ([]models.Card, error) {
	if list, ok := h.cache.GetUserCards(ctx, userID); ok {
		return list, nil
	}
	list, err := h.cards.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	h.cache.SetUserCards(ctx, userID, list)
	return list, nil
}

// loadPublicCard fetches a card with its owner attached. It writes the error
// response itself and returns ok=false when the card cannot be served.
func (h *CardHandler) loadPublicCard(ctx context.Context, w http.ResponseWriter, cardID string) (*models.Card, bool) {
	card, err := h.cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, services.ErrCardNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Card not found"))
			return nil, false
		}
		h.logger.Error("Get card failed", zap.String("card_id", cardID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load card"))
		return nil, false
	}

	owner, err := h.users.GetByID(ctx, card.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Card not found"))
			return nil, false
		}
		h.logger.Error("Get card owner failed", zap.String("card_id", cardID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load card"))
		return nil, false
	}

	public := owner.Public()
	card.User = &public
	return card, true
}

func (h *CardHandler) writeMutationError(w http.ResponseWriter, msg, cardID string, err error) {
	switch {
	case errors.Is(err, services.ErrCardNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Card not found"))
	case errors.Is(err, services.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Not authorized to modify this card"))
	default:
		h.logger.Error(msg, zap.String("card_id", cardID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to save card"))
	}
}

func decodeCardRequest(w http.ResponseWriter, r *http.Request) (*models.CardRequest, bool) {
	var req models.CardRequest
	if !decodeJSON(w, r, &req) {
		return nil, false
	}
	req.Normalize()
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return nil, false
	}
	return &req, true
}
