// Package clock provides the time source and calendar-day arithmetic used for
// streaks and daily quotas. All day-boundary math runs in one reference zone
// chosen at startup (APP_TIMEZONE, UTC by default).
package clock

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Clock returns the current instant. Callers sample it once per operation.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// Fixed always returns the same instant.
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}

// LoadLocation resolves a zone name, treating "" as UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}

// DaysBetween returns the number of calendar days from a to b in loc
// (positive when b is on a later day). Days are compared by Y/M/D so DST
// transitions never produce 23- or 25-hour "days".
func DaysBetween(a, b time.Time, loc *time.Location) int {
	da := civilDay(a, loc)
	db := civilDay(b, loc)
	return int(db.Sub(da).Hours() / 24)
}

func civilDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, time.UTC)
}
