package model

import "time"

// Recurrence tags how often an event repeats. It is stored and echoed back as
// is; nothing expands recurring events into occurrences.
type Recurrence string

const (
	RecurrenceOnce    Recurrence = "once"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly  Recurrence = "yearly"
)

// Valid reports whether r is one of the known tags.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceOnce, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

// Event is a calendar entry owned by a user (a birthday, an anniversary...).
type Event struct {
	ID         string     `json:"id"`
	UserID     string     `json:"-"`
	Date       time.Time  `json:"date"`
	Occasion   string     `json:"occasion"`
	Name       string     `json:"name"`
	Notes      string     `json:"notes"`
	Recurrence Recurrence `json:"recurrence"`
	CreatedAt  time.Time  `json:"createdAt"`
}
