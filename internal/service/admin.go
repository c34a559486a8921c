package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zamanix/dailycoins/internal/apperror"
	"github.com/zamanix/dailycoins/internal/auth"
	"github.com/zamanix/dailycoins/internal/model"
	"github.com/zamanix/dailycoins/internal/repository"
	"github.com/zamanix/dailycoins/internal/reward"
)

// Pagination limits for the operator listing.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// AdminService provisions the operator account and serves operator-only
// queries.
type AdminService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	now       func() time.Time
	logger    *slog.Logger
}

func NewAdminService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *AdminService {
	return &AdminService{
		users:     users,
		passwords: passwords,
		now:       time.Now,
		logger:    logger,
	}
}

// Provision makes sure an operator account exists for email. It is
// idempotent and runs at startup:
//   - no account: one is created like any registration, with IsAdmin set
//   - existing account: it is promoted and its password replaced
func (s *AdminService) Provision(ctx context.Context, email, password, name string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Administrator"
	}

	in := RegisterInput{Name: name, Email: email, Password: password, Phone: "-"}
	if err := validateInput(in); err != nil {
		return nil, fmt.Errorf("service/admin: operator credentials: %w", err)
	}

	hash, err := hashPassword(s.passwords, password)
	if err != nil {
		return nil, fmt.Errorf("service/admin: hashing password: %w", err)
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		user := &model.User{
			Name:         name,
			Email:        email,
			Phone:        in.Phone,
			PasswordHash: hash,
			IsAdmin:      true,
		}
		user.ApplyReward(reward.Compute(reward.Standing{}, s.now(), reward.Policy{}))

		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("service/admin: creating operator: %w", err)
		}
		s.logger.Info("operator account created", slog.String("userID", user.ID))
		return user, nil

	case err != nil:
		return nil, fmt.Errorf("service/admin: looking up operator: %w", err)
	}

	user := existing
	err = retryOnConflict(ctx, func(attempt int) error {
		if attempt > 0 {
			fresh, err := s.users.GetByID(ctx, existing.ID)
			if err != nil {
				return err
			}
			user = fresh
		}
		user.IsAdmin = true
		user.PasswordHash = hash
		return s.users.Update(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("service/admin: promoting operator: %w", err)
	}

	s.logger.Info("operator account promoted", slog.String("userID", user.ID))
	return user, nil
}

// ListUsers returns a page of accounts. Only operators may call it;
// everyone else gets apperror.ErrForbidden.
func (s *AdminService) ListUsers(ctx context.Context, callerID string, limit, offset int) ([]model.User, error) {
	caller, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin {
		s.logger.Warn("non-operator requested user listing", slog.String("userID", callerID))
		return nil, apperror.Forbidden("Not authorized as an admin")
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/admin: listing users: %w", err)
	}
	return users, nil
}
