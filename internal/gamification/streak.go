package gamification

import (
	"time"

	"github.com/studysage/backend/internal/clock"
)

// StreakState is the streak slice of the user record.
type StreakState struct {
	Current       int
	Longest       int
	LastStudyDate *time.Time
}

// CreditStudy applies "study happened at now" to s. Days are calendar days in loc.
//
//	never studied  -> 1
//	same day       -> unchanged
//	next day       -> +1
//	gap of 2+ days -> 1
//	backdated      -> no-op
func CreditStudy(now time.Time, loc *time.Location, s StreakState) StreakState {
	next := s
	if s.LastStudyDate == nil {
		next.Current = 1
	} else {
		days := clock.DaysBetween(*s.LastStudyDate, now, loc)
		switch {
		case days < 0:
			// Clock skew or a replayed event; keep the later timestamp.
			return s
		case days == 0:
		case days == 1:
			next.Current = s.Current + 1
		default:
			next.Current = 1
		}
	}

	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	t := now
	next.LastStudyDate = &t
	return next
}

type StreakStatus string

const (
	StreakNone   StreakStatus = "none"
	StreakActive StreakStatus = "active"
	StreakAtRisk StreakStatus = "at_risk"
	StreakBroken StreakStatus = "broken"
)

// Status classifies the streak as seen at now: credited today, still
// extendable today, or already lost.
func Status(now time.Time, loc *time.Location, s StreakState) StreakStatus {
	if s.LastStudyDate == nil || s.Current == 0 {
		return StreakNone
	}
	days := clock.DaysBetween(*s.LastStudyDate, now, loc)
	switch {
	case days <= 0:
		return StreakActive
	case days == 1:
		return StreakAtRisk
	default:
		return StreakBroken
	}
}

// DisplayStreak is the streak to show at now: zero once it is broken, since
// the stored counter only resets on the next credit.
func DisplayStreak(now time.Time, loc *time.Location, s StreakState) int {
	if Status(now, loc, s) == StreakBroken {
		return 0
	}
	return s.Current
}
