// Package model defines the data structures used throughout the application.
package model

import (
	"time"

	"github.com/zamanix/dailycoins/internal/reward"
)

// User represents a registered account.
//
// Email is the identity key: it is stored trimmed and lowercased and is unique
// across all accounts. PasswordHash is never serialized.
//
// Version increases by one on every write. Updates that change the reward
// standing are conditional on it, so two concurrent logins cannot both apply
// their reward on top of the same previous balance.
type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	PasswordHash  string     `json:"-"`
	Coins         int        `json:"coins"`
	LoginStreak   int        `json:"loginStreak"`
	LastLoginDate *time.Time `json:"lastLoginDate,omitempty"`
	IsAdmin       bool       `json:"-"`
	Version       int64      `json:"-"`
	Events        []Event    `json:"events,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Role is "admin" for operator accounts and "user" otherwise.
func (u *User) Role() string {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Standing extracts the fields the reward engine works on.
func (u *User) Standing() reward.Standing {
	return reward.Standing{
		Coins:     u.Coins,
		Streak:    u.LoginStreak,
		LastLogin: u.LastLoginDate,
	}
}

// ApplyReward copies a reward outcome back onto the user.
func (u *User) ApplyReward(out reward.Outcome) {
	last := out.LastLogin
	u.Coins = out.Coins
	u.LoginStreak = out.Streak
	u.LastLoginDate = &last
}
