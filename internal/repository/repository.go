// Package repository declares the storage contracts the service layer uses.
// internal/repository/sqlite provides the implementation.
package repository

import (
	"context"

	"github.com/zamanix/dailycoins/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository stores user accounts.
//
// Create and Update return apperror.ErrDuplicate when the email is taken.
// UpdateStanding and Update are conditional on user.Version: if the stored
// version differs they return apperror.ErrConflict and write nothing. On
// success they bump user.Version in place.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdateStanding(ctx context.Context, user *model.User) error
	List(ctx context.Context, opts ListOptions) ([]model.User, error)
}

// EventRepository stores calendar events. Every call is scoped to a user.
type EventRepository interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	ListEvents(ctx context.Context, userID string) ([]model.Event, error)
	DeleteEvent(ctx context.Context, userID, eventID string) error
}
