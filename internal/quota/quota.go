// Package quota meters free-tier AI generation per calendar day.
//
// Flashcard and quiz generation are counted independently. Counters are not
// zeroed by a timer: a stale reset date (before today in the reference zone)
// means the next recorded use starts a fresh day. Premium accounts are exempt.
package quota

import (
	"time"

	"github.com/studysage/backend/internal/clock"
)

type Resource string

const (
	Flashcards Resource = "flashcards"
	Quizzes    Resource = "quizzes"
)

// Noun is the singular label used in user-facing messages.
func (r Resource) Noun() string {
	switch r {
	case Flashcards:
		return "flashcard"
	case Quizzes:
		return "quiz"
	default:
		return string(r)
	}
}

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// TierOf maps the stored premium flag to a tier.
func TierOf(premium bool) Tier {
	if premium {
		return TierPremium
	}
	return TierFree
}

// Limits holds the daily caps for non-premium accounts.
type Limits struct {
	Flashcards int
	Quizzes    int
}

// DefaultLimits matches the free plan: 10 flashcard and 5 quiz generations a day.
var DefaultLimits = Limits{Flashcards: 10, Quizzes: 5}

func (l Limits) For(r Resource) int {
	if r == Quizzes {
		return l.Quizzes
	}
	return l.Flashcards
}

// Usage is the per-user counter state since LastReset.
type Usage struct {
	Flashcards int
	Quizzes    int
	LastReset  *time.Time
}

func (u Usage) Used(r Resource) int {
	if r == Quizzes {
		return u.Quizzes
	}
	return u.Flashcards
}

// IsStale reports whether the counters belong to an earlier day than now.
// A missing reset date is always stale.
func IsStale(now time.Time, loc *time.Location, lastReset *time.Time) bool {
	if lastReset == nil {
		return true
	}
	return clock.DaysBetween(*lastReset, now, loc) > 0
}

// CheckLimit decides whether one more generation is allowed.
func CheckLimit(now time.Time, loc *time.Location, tier Tier, lastReset *time.Time, used, limit int) bool {
	if tier == TierPremium {
		return true
	}
	if IsStale(now, loc, lastReset) {
		return true
	}
	return used < limit
}

// RecordUsage counts one generation of resource r. On a stale day the other
// counter is zeroed, the requested one starts at 1 and LastReset moves to now.
func RecordUsage(now time.Time, loc *time.Location, u Usage, r Resource) Usage {
	if IsStale(now, loc, u.LastReset) {
		reset := now
		next := Usage{LastReset: &reset}
		if r == Quizzes {
			next.Quizzes = 1
		} else {
			next.Flashcards = 1
		}
		return next
	}

	if r == Quizzes {
		u.Quizzes++
	} else {
		u.Flashcards++
	}
	return u
}

// Remaining returns how many generations of r are left today, or -1 for premium.
func Remaining(now time.Time, loc *time.Location, tier Tier, u Usage, limits Limits, r Resource) int {
	if tier == TierPremium {
		return -1
	}
	limit := limits.For(r)
	if IsStale(now, loc, u.LastReset) {
		return limit
	}
	left := limit - u.Used(r)
	if left < 0 {
		return 0
	}
	return left
}

// Sweep zeroes stale counters ahead of time. It reports false when u is
// already current and nothing changed.
func Sweep(now time.Time, loc *time.Location, u Usage) (Usage, bool) {
	if !IsStale(now, loc, u.LastReset) {
		return u, false
	}
	reset := now
	return Usage{LastReset: &reset}, true
}

// Tracker binds the limits and reference zone so callers only pass state.
type Tracker struct {
	limits Limits
	loc    *time.Location
}

func NewTracker(limits Limits, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{limits: limits, loc: loc}
}

func (t *Tracker) Limits() Limits { return t.limits }

func (t *Tracker) Allow(now time.Time, tier Tier, u Usage, r Resource) bool {
	return CheckLimit(now, t.loc, tier, u.LastReset, u.Used(r), t.limits.For(r))
}

func (t *Tracker) Record(now time.Time, u Usage, r Resource) Usage {
	return RecordUsage(now, t.loc, u, r)
}

func (t *Tracker) Remaining(now time.Time, tier Tier, u Usage, r Resource) int {
	return Remaining(now, t.loc, tier, u, t.limits, r)
}

func (t *Tracker) Sweep(now time.Time, u Usage) (Usage, bool) {
	return Sweep(now, t.loc, u)
}
