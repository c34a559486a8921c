package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zamanix/dailycoins/internal/apperror"
	"github.com/zamanix/dailycoins/internal/auth"
	"github.com/zamanix/dailycoins/internal/model"
	"github.com/zamanix/dailycoins/internal/repository"
)

// ProfileUpdate holds the fields a user may change. Empty strings mean
// "leave unchanged".
type ProfileUpdate struct {
	Name     string `json:"name" validate:"omitempty,name"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,max=40"`
	Password string `json:"password" validate:"omitempty,password"`
}

// ProfileService reads and edits the signed-in user's own record.
type ProfileService struct {
	users     repository.UserRepository
	events    repository.EventRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewProfileService(
	users repository.UserRepository,
	events repository.EventRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		users:     users,
		events:    events,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// GetProfile returns the user with their events attached.
// Returns apperror.ErrNotFound if the account no longer exists.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	events, err := s.events.ListEvents(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list events",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/profile: listing events: %w", err)
	}
	user.Events = events

	return user, nil
}

// UpdateProfile applies the non-empty fields of upd and issues a new token.
//
// A new password is re-hashed. A new email must not belong to another
// account (apperror.ErrDuplicate). Balances are never touched here.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*AuthResult, error) {
	upd.Name = strings.TrimSpace(upd.Name)
	upd.Email = strings.ToLower(strings.TrimSpace(upd.Email))
	upd.Phone = strings.TrimSpace(upd.Phone)

	if err := validateInput(upd); err != nil {
		return nil, err
	}

	var hash string
	if upd.Password != "" {
		h, err := hashPassword(s.passwords, upd.Password)
		if err != nil {
			return nil, fmt.Errorf("service/profile: hashing password: %w", err)
		}
		hash = h
	}

	var user *model.User
	err := retryOnConflict(ctx, func(int) error {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user = u

		if upd.Name != "" {
			user.Name = upd.Name
		}
		if upd.Email != "" {
			user.Email = upd.Email
		}
		if upd.Phone != "" {
			user.Phone = upd.Phone
		}
		if hash != "" {
			user.PasswordHash = hash
		}
		return s.users.Update(ctx, user)
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("service/profile: updating user %s: %w", userID, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("profile updated", slog.String("userID", user.ID))

	return &AuthResult{User: user, Token: token, Message: "Profile updated successfully"}, nil
}
