// Package reward computes the daily login reward and streak.
//
// The engine is a pure function of the stored standing, the current time and
// the same-day policy. It never reads the clock or touches storage, so callers
// decide what "now" is and persist the Outcome themselves.
//
// STREAK RULES:
//
//	no previous login      → streak 1, +1 coin
//	last login yesterday   → streak+1, +1 coin + min(streak-1, 2) bonus
//	last login 2+ days ago → streak 1, +1 coin (silent reset)
//	last login today       → streak unchanged, policy decides (0 or 1 coin)
//
// The balance never drops below MinCoins.
package reward

import (
	"fmt"
	"time"
)

const (
	// MinCoins is the lowest balance an account can hold.
	MinCoins = 5

	// BaseReward is granted for every qualifying login.
	BaseReward = 1

	// MaxStreakBonus caps the extra coins a long streak can add.
	MaxStreakBonus = 2
)

// SameDay selects what a second login on the same calendar day earns.
type SameDay int

const (
	// SameDayNone grants nothing for a repeat login on the same day.
	SameDayNone SameDay = iota
	// SameDayGrant grants the base reward again.
	SameDayGrant
)

// Policy holds the knobs of the engine that are a product decision.
type Policy struct {
	SameDay SameDay
}

// Standing is the stored state of an account before a login.
// LastLogin is nil when the account has never logged in.
type Standing struct {
	Coins     int
	Streak    int
	LastLogin *time.Time
}

// Outcome is the result of applying one login to a Standing.
type Outcome struct {
	CoinsEarned int
	Streak      int
	Coins       int
	LastLogin   time.Time
	Message     string
}

// Compute applies a login at now to prev.
func Compute(prev Standing, now time.Time, policy Policy) Outcome {
	today := Midnight(now)

	out := Outcome{
		CoinsEarned: BaseReward,
		Streak:      prev.Streak,
		LastLogin:   today,
		Message:     baseMessage,
	}

	switch {
	case prev.LastLogin == nil:
		out.Streak = 1

	default:
		days := DaysBetween(*prev.LastLogin, now)
		switch {
		case days == 1:
			out.Streak = prev.Streak + 1
			out.CoinsEarned = BaseReward + min(out.Streak-1, MaxStreakBonus)
			out.Message = fmt.Sprintf("Welcome back! %d day streak! You earned %d coins.", out.Streak, out.CoinsEarned)
		case days > 1:
			out.Streak = 1
		default:
			// same day, or the clock went backwards
			if policy.SameDay == SameDayNone {
				out.CoinsEarned = 0
				out.Message = alreadyCollectedMessage
			}
		}
	}

	out.Coins = Floor(prev.Coins + out.CoinsEarned)
	return out
}

const (
	baseMessage             = "Welcome back! You earned 1 coin."
	alreadyCollectedMessage = "Welcome back! You already collected today's reward."
)

// Floor clamps a balance to MinCoins.
func Floor(coins int) int {
	return max(coins, MinCoins)
}

// Midnight truncates t to the start of its calendar day in t's location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar days from a to b.
// Each date is read in its own location; the difference is computed on the
// Y/M/D triple so daylight-saving shifts never round a day away.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
