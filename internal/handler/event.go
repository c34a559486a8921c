package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zamanix/dailycoins/internal/model"
	"github.com/zamanix/dailycoins/internal/service"
)

type EventService interface {
	List(ctx context.Context, userID string) ([]model.Event, error)
	Add(ctx context.Context, userID string, in service.EventInput) (*model.Event, error)
	Delete(ctx context.Context, userID, eventID string) error
}

// EventHandler serves the signed-in user's calendar.
type EventHandler struct {
	events EventService
	logger *slog.Logger
}

func NewEventHandler(events EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

// HandleList returns the user's events, earliest first.
//
// HTTP: GET /api/users/events
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	events, err := h.events.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list events",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", toEventList(events))
}

// HandleCreate adds an event.
//
// HTTP: POST /api/users/events
// Body: {"date":"2024-07-04","occasion","name","notes","recurrence"}
func (h *EventHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	var in service.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	event, err := h.events.Add(r.Context(), userID, in)
	if err != nil {
		h.logger.Warn("failed to add event",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Event added", toEventData(*event))
}

// HandleDelete removes an event.
//
// HTTP: DELETE /api/users/events/{eventID}
func (h *EventHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}

	eventID := chi.URLParam(r, "eventID")
	if err := h.events.Delete(r.Context(), userID, eventID); err != nil {
		h.logger.Warn("failed to delete event",
			slog.String("userID", userID),
			slog.String("eventID", eventID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Event removed", nil)
}
