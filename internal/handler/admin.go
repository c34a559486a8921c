package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zamanix/dailycoins/internal/apperror"
	"github.com/zamanix/dailycoins/internal/model"
)

type AdminService interface {
	ListUsers(ctx context.Context, callerID string, limit, offset int) ([]model.User, error)
}

// AdminHandler serves operator-only endpoints.
type AdminHandler struct {
	admin  AdminService
	logger *slog.Logger
}

func NewAdminHandler(admin AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

// HandleListUsers returns a page of accounts.
//
// HTTP: GET /api/users/admin/users?limit=20&offset=0
// Auth: Required, operator only (403 otherwise)
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	users, err := h.admin.ListUsers(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Warn("admin listing refused or failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	data := make([]UserData, 0, len(users))
	for i := range users {
		data = append(data, toUserData(&users[i], ""))
	}
	writeSuccess(w, http.StatusOK, "", data)
}

// queryInt reads an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}
