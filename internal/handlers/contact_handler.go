package handlers

import (
	"errors"
	"net"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idcard/backend/internal/models"
	"github.com/idcard/backend/internal/services"
)

const (
	maxContactName    = 120
	maxContactEmail   = 254
	maxContactMessage = 4000
)

// ContactHandler relays a visitor's message to a card's owner by email.
type ContactHandler struct {
	cards   services.CardService
	users   services.UserService
	captcha services.CaptchaVerifier
	mailer  services.Mailer
	logger  *zap.Logger
}

func NewContactHandler(
	cardService services.CardService,
	userService services.UserService,
	captcha services.CaptchaVerifier,
	mailer services.Mailer,
	logger *zap.Logger,
) *ContactHandler {
	return &ContactHandler{cards: cardService, users: userService, captcha: captcha, mailer: mailer, logger: logger}
}

type contactRequestBody struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Message        string `json:"message"`
	RecaptchaToken string `json:"recaptchaToken"`
}

func (b *contactRequestBody) validate() map[string]string {
	b.Name = strings.TrimSpace(b.Name)
	b.Email = strings.TrimSpace(b.Email)
	b.Message = strings.TrimSpace(b.Message)
	b.RecaptchaToken = strings.TrimSpace(b.RecaptchaToken)

	errors := map[string]string{}
	if b.Name == "" {
		errors["name"] = "Name is required"
	} else if len(b.Name) > maxContactName {
		errors["name"] = "Name is too long"
	}

	if b.Email == "" {
		errors["email"] = "Email is required"
	} else if len(b.Email) > maxContactEmail {
		errors["email"] = "Email is too long"
	} else if _, err := mail.ParseAddress(b.Email); err != nil {
		errors["email"] = "Email is invalid"
	}

	if b.Message == "" {
		errors["message"] = "Message is required"
	} else if len(b.Message) > maxContactMessage {
		errors["message"] = "Message is too long"
	}
	return errors
}

func (h *ContactHandler) ContactOwner(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardId")

	var req contactRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}
	if errors := req.validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	remoteIP := clientIP(r)
	ok, reason, err := h.captcha.Verify(ctx, req.RecaptchaToken, remoteIP)
	if err != nil {
		h.logger.Error("reCAPTCHA verify failed", zap.String("ip", remoteIP), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to verify reCAPTCHA"))
		return
	}
	if !ok {
		h.logger.Info("reCAPTCHA rejected", zap.String("ip", remoteIP), zap.String("reason", reason))
		writeJSON(w, http.StatusForbidden, models.NewErrorResponse("reCAPTCHA verification failed"))
		return
	}

	card, err := h.cards.GetByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, services.ErrCardNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Card not found"))
			return
		}
		h.logger.Error("Contact card lookup failed", zap.String("card_id", cardID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to send message"))
		return
	}
	owner, err := h.users.GetByID(ctx, card.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Card not found"))
			return
		}
		h.logger.Error("Contact owner lookup failed", zap.String("card_id", cardID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to send message"))
		return
	}

	ref := contactReference(time.Now())
	err = h.mailer.SendContactMessage(ctx, services.ContactMessage{
		Reference:   ref,
		CardID:      card.ID,
		OwnerName:   owner.FullName,
		OwnerEmail:  owner.Email,
		SenderName:  req.Name,
		SenderEmail: req.Email,
		Body:        req.Message,
	})
	if err != nil {
		h.logger.Error("Contact mail failed", zap.String("reference", ref), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, models.NewErrorResponse("Failed to send message"))
		return
	}

	h.logger.Info("Contact message sent", zap.String("reference", ref), zap.String("card_id", card.ID))
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"reference": ref}))
}

// contactReference looks like IC-20260131-032508-A1B2C3D4.
func contactReference(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "IC-" + now.UTC().Format("20060102-150405") + "-" + id[:8]
}

// clientIP reads RemoteAddr only. Forwarding headers are resolved once by
// the RealIP middleware and never parsed here.
func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	if net.ParseIP(addr) != nil {
		return addr
	}
	return ""
}
