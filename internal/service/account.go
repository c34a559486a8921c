// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *sqlite.DB, so tests can pass
// in-memory fakes and the service package never imports the driver.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zamanix/dailycoins/internal/apperror"
	"github.com/zamanix/dailycoins/internal/auth"
	"github.com/zamanix/dailycoins/internal/model"
	"github.com/zamanix/dailycoins/internal/repository"
	"github.com/zamanix/dailycoins/internal/reward"
)

// SignupMessage is returned with every successful registration.
const SignupMessage = "Account created successfully! You received 5 coins as a signup bonus."

// maxWriteAttempts bounds the re-read and retry loop around versioned writes.
const maxWriteAttempts = 3

// AuthResult bundles the user record, a freshly issued token and the
// human-readable message so the handler can respond in one step.
type AuthResult struct {
	User    *model.User
	Token   string
	Message string
}

// RegisterInput is the data needed to open an account.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,name"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
	Phone    string `json:"phone" validate:"required,max=40"`
}

// LoginInput is the data needed to log in.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AccountService registers accounts and applies the daily login reward.
//
// DEPENDENCIES (injected via NewAccountService):
//   - users      repository.UserRepository → read/write user records
//   - tokens     *auth.TokenService        → issue JWTs
//   - passwords  *auth.PasswordService     → bcrypt hashing
//   - policy     reward.Policy             → same-day login behavior
type AccountService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	policy    reward.Policy
	now       func() time.Time
	logger    *slog.Logger

	decoyOnce sync.Once
	decoyHash string
}

// decoyPassword is hashed once so unknown emails pay for a bcrypt
// comparison like known ones do.
const decoyPassword = "dailycoins-decoy-password"

// NewAccountService creates an AccountService. The clock defaults to
// time.Now; tests replace it through the unexported now field.
func NewAccountService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	policy reward.Policy,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		policy:    policy,
		now:       time.Now,
		logger:    logger,
	}
}

// Register validates the input, stores a new account seeded by the reward
// engine (5 coins, streak 1, last login today) and issues a token.
//
// Returns apperror.ErrValidation for bad input and apperror.ErrDuplicate
// when the email is already registered.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)

	if err := validateInput(in); err != nil {
		return nil, err
	}

	hash, err := hashPassword(s.passwords, in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/account: hashing password: %w", err)
	}

	user := &model.User{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
	}
	// A new account has never logged in, so the engine hands out the first
	// day of the streak and the floor balance.
	user.ApplyReward(reward.Compute(reward.Standing{}, s.now(), s.policy))

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrDuplicate) {
			return nil, err
		}
		s.logger.Error("failed to create user", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/account: creating user: %w", err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.Int("coins", user.Coins),
	)

	return &AuthResult{User: user, Token: token, Message: SignupMessage}, nil
}

// Login verifies credentials and applies today's reward.
//
// Unknown emails and wrong passwords both return apperror.InvalidCredentials.
// The reward is written with a versioned conditional update: if another
// login for the same account wins the race, the record is re-read and the
// reward recomputed, up to maxWriteAttempts times.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			_ = s.passwords.Verify(s.decoy(), in.Password)
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/account: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/account: verifying password: %w", err)
	}

	var outcome reward.Outcome
	err = retryOnConflict(ctx, func(attempt int) error {
		if attempt > 0 {
			fresh, err := s.users.GetByID(ctx, user.ID)
			if err != nil {
				return err
			}
			user = fresh
		}

		outcome = reward.Compute(user.Standing(), s.now(), s.policy)
		user.ApplyReward(outcome)
		return s.users.UpdateStanding(ctx, user)
	})
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Warn("login reward lost every race", slog.String("userID", user.ID))
		}
		return nil, fmt.Errorf("service/account: applying reward: %w", err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("daily reward applied",
		slog.String("userID", user.ID),
		slog.Int("earned", outcome.CoinsEarned),
		slog.Int("streak", outcome.Streak),
		slog.Int("coins", outcome.Coins),
	)

	return &AuthResult{User: user, Token: token, Message: outcome.Message}, nil
}

// decoy returns the hash compared against when the email is unknown. It is
// computed on first use at the configured cost.
func (s *AccountService) decoy() string {
	s.decoyOnce.Do(func() {
		hash, err := s.passwords.Hash(decoyPassword)
		if err != nil {
			s.logger.Error("failed to hash decoy password", slog.String("error", err.Error()))
		}
		s.decoyHash = hash
	})
	return s.decoyHash
}

// hashPassword hashes plaintext, reporting input bcrypt cannot take as a
// validation error on the password field.
func hashPassword(passwords *auth.PasswordService, plaintext string) (string, error) {
	hash, err := passwords.Hash(plaintext)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be %d bytes or fewer", MaxPasswordLength))
	}
	return hash, err
}

// retryOnConflict runs write until it succeeds, fails with something other
// than apperror.ErrConflict, or maxWriteAttempts is reached. attempt starts
// at 0; callers re-read their record on later attempts.
func retryOnConflict(ctx context.Context, write func(attempt int) error) error {
	var err error
	for attempt := range maxWriteAttempts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = write(attempt)
		if !errors.Is(err, apperror.ErrConflict) {
			return err
		}
	}
	return err
}
