package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zamanix/dailycoins/internal/apperror"
	"github.com/zamanix/dailycoins/internal/auth"
	"github.com/zamanix/dailycoins/internal/model"
	"github.com/zamanix/dailycoins/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// The fakes keep copies, never the caller's pointers, and honor the same
// version contract as the sqlite store: a write whose Version does not
// match the stored one fails with apperror.ErrConflict and changes nothing.

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int

	// racesLeft makes the next N UpdateStanding calls lose a race: another
	// writer "adds" raceBonus coins and bumps the version first.
	racesLeft int
	raceBonus int

	// failWith is returned by every method when set.
	failWith error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Duplicate("email")
		}
	}

	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.Version = 1
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}

	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}

	stored, err := f.checkVersion(user)
	if err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(user.Email))
	for id, u := range f.users {
		if id != user.ID && u.Email == email {
			return apperror.Duplicate("email")
		}
	}

	stored.Name = user.Name
	stored.Email = email
	stored.Phone = user.Phone
	stored.PasswordHash = user.PasswordHash
	stored.IsAdmin = user.IsAdmin
	stored.Version++

	user.Email = email
	user.Version = stored.Version
	return nil
}

func (f *fakeUserRepo) UpdateStanding(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}

	stored, err := f.checkVersion(user)
	if err != nil {
		return err
	}

	if f.racesLeft > 0 {
		f.racesLeft--
		stored.Coins += f.raceBonus
		stored.Version++
		return apperror.Conflict("user", user.ID)
	}

	stored.Coins = user.Coins
	stored.LoginStreak = user.LoginStreak
	if user.LastLoginDate != nil {
		d := *user.LastLoginDate
		stored.LastLoginDate = &d
	}
	stored.Version++

	user.Version = stored.Version
	return nil
}

func (f *fakeUserRepo) List(_ context.Context, opts repository.ListOptions) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}

	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if opts.Offset >= len(out) {
		return []model.User{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// checkVersion must be called with f.mu held.
func (f *fakeUserRepo) checkVersion(user *model.User) (*model.User, error) {
	stored, ok := f.users[user.ID]
	if !ok {
		return nil, apperror.NotFound("user", user.ID)
	}
	if stored.Version != user.Version {
		return nil, apperror.Conflict("user", user.ID)
	}
	return stored, nil
}

// stored returns the repository's copy of a user, bypassing failWith.
func (f *fakeUserRepo) stored(t *testing.T, id string) model.User {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		t.Fatalf("user %s not stored", id)
	}
	return *u
}

type fakeEventRepo struct {
	mu       sync.Mutex
	events   []model.Event
	nextID   int
	failWith error
}

func (f *fakeEventRepo) CreateEvent(_ context.Context, event *model.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.nextID++
	event.ID = fmt.Sprintf("event-%d", f.nextID)
	event.CreatedAt = time.Now()
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeEventRepo) ListEvents(_ context.Context, userID string) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := []model.Event{}
	for _, e := range f.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f *fakeEventRepo) DeleteEvent(_ context.Context, userID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e.ID == eventID && e.UserID == userID {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("event", eventID)
}

// =========================================================================
// HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("service-test-secret-0123456789", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// newTestPasswords uses bcrypt's minimum cost to keep tests fast.
func newTestPasswords() *auth.PasswordService {
	return auth.NewPasswordService(4)
}

// fixedClock returns a clock that always reads t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.Local)
}
