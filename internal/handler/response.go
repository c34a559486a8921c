package handler

// RESPONSE HELPERS:
// Every response shares one envelope so clients can branch on "status":
//
//	{"status":"success","message":"...","data":{...}}
//	{"status":"error","error":"validation_error","message":"...","field":"email"}

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zamanix/dailycoins/internal/apperror"
	"github.com/zamanix/dailycoins/internal/auth"
	"github.com/zamanix/dailycoins/internal/model"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	// maxBodyBytes caps request bodies; every payload here is a small form.
	maxBodyBytes = 1 << 20
)

// SuccessResponse is the envelope for every 2xx response.
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the envelope for every error response.
type ErrorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Offending input field, if any
}

// UserData is the public view of an account.
type UserData struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	Coins         int     `json:"coins"`
	LoginStreak   int     `json:"loginStreak"`
	LastLoginDate *string `json:"lastLoginDate,omitempty"`
	Role          string  `json:"role"`
	Token         string  `json:"token,omitempty"`
}

// ProfileData is UserData plus the user's calendar.
type ProfileData struct {
	UserData
	Events []EventData `json:"events"`
}

// EventData is the public view of a calendar event.
type EventData struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	Occasion   string `json:"occasion"`
	Name       string `json:"name"`
	Notes      string `json:"notes"`
	Recurrence string `json:"recurrence"`
}

func toUserData(u *model.User, token string) UserData {
	data := UserData{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Phone:       u.Phone,
		Coins:       u.Coins,
		LoginStreak: u.LoginStreak,
		Role:        u.Role(),
		Token:       token,
	}
	if u.LastLoginDate != nil {
		d := u.LastLoginDate.Format(time.DateOnly)
		data.LastLoginDate = &d
	}
	return data
}

func toEventData(e model.Event) EventData {
	return EventData{
		ID:         e.ID,
		Date:       e.Date.Format(time.DateOnly),
		Occasion:   e.Occasion,
		Name:       e.Name,
		Notes:      e.Notes,
		Recurrence: string(e.Recurrence),
	}
}

func toEventList(events []model.Event) []EventData {
	out := make([]EventData, 0, len(events))
	for _, e := range events {
		out = append(out, toEventData(e))
	}
	return out
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be written before the body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, SuccessResponse{Status: statusSuccess, Message: message, Data: data})
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// errors.Is walks the whole chain, so a service error wrapped with
// fmt.Errorf("...: %w", apperror.NotFound(...)) still maps to 404.
// Anything that is not an *apperror.AppError becomes a generic 500: raw
// messages can carry SQL or file paths and never reach the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := classify(err)
		writeJSON(w, status, ErrorResponse{
			Status:  statusError,
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Status:  statusError,
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrDuplicate):
		return http.StatusBadRequest, "duplicate"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	}
	return http.StatusInternalServerError, "internal_error"
}

// decodeJSON reads a bounded JSON body into dst. A malformed body is a
// validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "Request body is required")
		}
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperror.ValidationFailed("body", fmt.Sprintf("Request body must be %d bytes or less", tooBig.Limit))
		}
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}

// Unauthorized renders a failed bearer check. It is passed to
// auth.RequireAuth.
func Unauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	message := "Not authorized, token failed"
	if auth.IsMissingToken(err) {
		message = "Not authorized, no token"
	}
	writeError(w, apperror.Unauthorized(message))
}

// userIDFrom reads the authenticated user id set by auth.RequireAuth. On a
// route without the middleware it answers 401 and returns false.
func userIDFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("Not authorized, no token"))
	}
	return userID, ok
}
