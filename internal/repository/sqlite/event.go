package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/zamanix/dailycoins/internal/apperror"
	"github.com/zamanix/dailycoins/internal/model"
	"github.com/zamanix/dailycoins/internal/repository"
)

var _ repository.EventRepository = (*DB)(nil)

// CreateEvent inserts a calendar event. ID and CreatedAt are set in place.
// The event date is stored as a bare calendar date.
func (db *DB) CreateEvent(ctx context.Context, event *model.Event) error {
	event.ID = xid.New().String()
	event.CreatedAt = time.Now()
	if event.Recurrence == "" {
		event.Recurrence = model.RecurrenceOnce
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO events (id, user_id, date, occasion, name, notes, recurrence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.UserID,
		formatDate(event.Date),
		event.Occasion,
		event.Name,
		event.Notes,
		string(event.Recurrence),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating event for user %s: %w", event.UserID, err)
	}

	return nil
}

// ListEvents returns a user's events, earliest date first.
func (db *DB) ListEvents(ctx context.Context, userID string) ([]model.Event, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, date, occasion, name, notes, recurrence, created_at
		 FROM events
		 WHERE user_id = ?
		 ORDER BY date ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events for user %s: %w", userID, err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var (
			e          model.Event
			date       string
			recurrence string
		)
		if err := rows.Scan(
			&e.ID, &e.UserID, &date, &e.Occasion, &e.Name, &e.Notes,
			&recurrence, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event row: %w", err)
		}

		d, err := parseDate(date)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parsing event date %q: %w", date, err)
		}
		e.Date = d
		e.Recurrence = model.Recurrence(recurrence)

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating events: %w", err)
	}

	return events, nil
}

// DeleteEvent removes one of a user's events. An event that belongs to
// someone else is reported as not found.
func (db *DB) DeleteEvent(ctx context.Context, userID, eventID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM events WHERE id = ? AND user_id = ?`,
		eventID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting event %s: %w", eventID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("event", eventID)
	}

	return nil
}
