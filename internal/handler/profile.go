package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/zamanix/dailycoins/internal/model"
	"github.com/zamanix/dailycoins/internal/service"
)

type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, upd service.ProfileUpdate) (*service.AuthResult, error)
}

// ProfileHandler serves the signed-in user's own record.
type ProfileHandler struct {
	profiles ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// HandleGet returns the profile with events.
//
// HTTP: GET /api/users/profile
// Auth: Required
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	user, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		h.logger.Warn("profile lookup failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", ProfileData{
		UserData: toUserData(user, ""),
		Events:   toEventList(user.Events),
	})
}

// HandleUpdate changes name, email, phone or password. Omitted fields stay
// as they are. The response carries a fresh token.
//
// HTTP: PUT /api/users/profile
// Auth: Required
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	var upd service.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.profiles.UpdateProfile(r.Context(), userID, upd)
	if err != nil {
		h.logger.Warn("profile update failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, res.Message, toUserData(res.User, res.Token))
}
