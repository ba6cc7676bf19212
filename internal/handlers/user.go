package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"neuroflash-backend/internal/middleware"
	"neuroflash-backend/internal/models"
)

type userService interface {
	GetStudySettings(ctx context.Context, userID uuid.UUID) (*models.StudySettings, error)
	UpdateStudySettings(ctx context.Context, userID uuid.UUID, settings models.StudySettings) (*models.StudySettings, error)
	Dashboard(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error)
}

type UserHandler struct {
	users userService
}

func NewUserHandler(users userService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.users.GetStudySettings(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResp("STORE_UNAVAILABLE", "Failed to fetch settings", r))
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings replaces the caller's settings. Omitted numeric fields are
// taken from the current settings.
func (h *UserHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	current, err := h.users.GetStudySettings(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResp("STORE_UNAVAILABLE", "Failed to fetch settings", r))
		return
	}

	req := *current
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.users.UpdateStudySettings(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.users.Dashboard(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
