package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zamanix/dailycoins/internal/apperror"
	"github.com/zamanix/dailycoins/internal/model"
	"github.com/zamanix/dailycoins/internal/repository"
)

// EventInput is a calendar entry as submitted by the client. Date accepts
// "2006-01-02" or a full RFC 3339 timestamp; only the calendar date is kept.
type EventInput struct {
	Date       string `json:"date" validate:"required"`
	Occasion   string `json:"occasion" validate:"max=100"`
	Name       string `json:"name" validate:"required,name"`
	Notes      string `json:"notes" validate:"notes"`
	Recurrence string `json:"recurrence" validate:"omitempty,oneof=once weekly monthly yearly"`
}

// EventService manages a user's calendar events.
type EventService struct {
	events repository.EventRepository
	logger *slog.Logger
}

func NewEventService(events repository.EventRepository, logger *slog.Logger) *EventService {
	return &EventService{events: events, logger: logger}
}

// List returns the user's events, earliest first.
func (s *EventService) List(ctx context.Context, userID string) ([]model.Event, error) {
	events, err := s.events.ListEvents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/event: listing events: %w", err)
	}
	return events, nil
}

// Add validates and stores a new event for userID.
func (s *EventService) Add(ctx context.Context, userID string, in EventInput) (*model.Event, error) {
	in.Date = strings.TrimSpace(in.Date)
	in.Name = strings.TrimSpace(in.Name)
	in.Occasion = strings.TrimSpace(in.Occasion)
	in.Recurrence = strings.ToLower(strings.TrimSpace(in.Recurrence))

	if err := validateInput(in); err != nil {
		return nil, err
	}

	date, err := parseEventDate(in.Date)
	if err != nil {
		return nil, apperror.ValidationFailed("date", "Date must be YYYY-MM-DD or an RFC 3339 timestamp")
	}

	recurrence := model.Recurrence(in.Recurrence)
	if recurrence == "" {
		recurrence = model.RecurrenceOnce
	}

	event := &model.Event{
		UserID:     userID,
		Date:       date,
		Occasion:   in.Occasion,
		Name:       in.Name,
		Notes:      in.Notes,
		Recurrence: recurrence,
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		s.logger.Error("failed to create event",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/event: creating event: %w", err)
	}

	s.logger.Info("event added",
		slog.String("userID", userID),
		slog.String("eventID", event.ID),
	)

	return event, nil
}

// Delete removes one of the user's events. Another user's event is
// reported as apperror.ErrNotFound.
func (s *EventService) Delete(ctx context.Context, userID, eventID string) error {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return apperror.ValidationFailed("eventID", "Event ID is required")
	}

	if err := s.events.DeleteEvent(ctx, userID, eventID); err != nil {
		return err
	}

	s.logger.Info("event deleted",
		slog.String("userID", userID),
		slog.String("eventID", eventID),
	)
	return nil
}

// parseEventDate keeps only the calendar date of s, as local midnight.
func parseEventDate(s string) (time.Time, error) {
	if d, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return d, nil
	}

	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local), nil
}
