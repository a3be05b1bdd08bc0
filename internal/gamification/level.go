package gamification

import (
	"fmt"
	"math"

	"github.com/studysage/backend/internal/apperr"
)

// XPPerLevelFactor is K in XPFloor(L) = K*(L-1)^2.
const XPPerLevelFactor int64 = 50

// MaxTotalXP bounds cumulative XP so XPFloor of the next level stays in range.
const MaxTotalXP int64 = 1 << 53

// LevelProgress describes how far xp is into its current level.
type LevelProgress struct {
	Level          int
	IntoLevel      int64
	NeededForLevel int64
	Percent        float64
}

// XPFloor returns the minimum cumulative XP for level.
func XPFloor(level int) int64 {
	if level < 1 {
		panic(fmt.Sprintf("gamification: level %d below 1", level))
	}
	n := int64(level - 1)
	return XPPerLevelFactor * n * n
}

// Level maps cumulative XP to a level >= 1. It is the exact inverse of XPFloor:
// XPFloor(Level(xp)) <= xp < XPFloor(Level(xp)+1).
func Level(xp int64) int {
	if xp < 0 {
		panic(fmt.Sprintf("gamification: negative xp %d", xp))
	}
	return int(isqrt(xp/XPPerLevelFactor)) + 1
}

// Progress returns the position of xp inside its level.
func Progress(xp int64) LevelProgress {
	level := Level(xp)
	floor := XPFloor(level)
	needed := XPFloor(level+1) - floor
	into := xp - floor

	pct := 100.0
	if needed > 0 {
		pct = 100 * float64(into) / float64(needed)
	}
	return LevelProgress{
		Level:          level,
		IntoLevel:      into,
		NeededForLevel: needed,
		Percent:        pct,
	}
}

// ValidateXP rejects XP outside [0, MaxTotalXP] before it reaches Level.
func ValidateXP(xp int64) error {
	if xp < 0 || xp > MaxTotalXP {
		return apperr.Invalid("xp must be between 0 and %d, got %d", MaxTotalXP, xp)
	}
	return nil
}

// isqrt is floor(sqrt(n)); the float estimate is corrected so large values
// never round across a level boundary.
func isqrt(n int64) int64 {
	r := int64(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
