package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/idcard/backend/internal/middleware"
	"github.com/idcard/backend/internal/models"
	"github.com/idcard/backend/internal/services"
)

type ImageHandler struct {
	images    services.ImageStore
	maxSizeMB int64
	logger    *zap.Logger
}

func NewImageHandler(images services.ImageStore, maxSizeMB int64, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{
		images:    images,
		maxSizeMB: maxSizeMB,
		logger:    logger,
	}
}

func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	limit := h.maxSizeMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("File too large or invalid form data"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("No image file provided"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !services.IsValidImageType(contentType) {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid image type. Allowed: JPEG, PNG, GIF, WebP"))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	resp, err := h.images.Upload(ctx, userID, contentType, file)
	if err != nil {
		if errors.Is(err, services.ErrInvalidImage) {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid image file"))
			return
		}
		h.logger.Error("Image upload failed", zap.String("user_id", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to upload image"))
		return
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(resp))
}

func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	imageID := chi.URLParam(r, "imageId")

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	if err := h.images.Delete(ctx, userID, imageID); err != nil {
		switch {
		case errors.Is(err, services.ErrImageNotFound):
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Image not found"))
		case errors.Is(err, services.ErrUnauthorized):
			writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Not authorized to delete this image"))
		default:
			h.logger.Error("Image delete failed", zap.String("image_id", imageID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to delete image"))
		}
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Image deleted successfully"}))
}
