package gamification

import "github.com/studysage/backend/internal/models"

// AchievementDef defines a single achievement and when it unlocks.
type AchievementDef struct {
	Key         string
	Name        string
	Description string
	earned      func(p *models.UserProgress) bool
}

// Achievements are listed in display order. They are derived from progress
// on every read, so they never drift from XP and streak state and award no XP.
var Achievements = []AchievementDef{
	{"first_study", "First Steps", "Complete your first study session", func(p *models.UserProgress) bool { return p.LastStudyDate != nil }},
	{"streak_3", "Getting Started", "3-day streak", longestAtLeast(3)},
	{"streak_7", "Week Warrior", "7-day streak", longestAtLeast(7)},
	{"streak_14", "Dedicated", "14-day streak", longestAtLeast(14)},
	{"streak_30", "Monthly Master", "30-day streak", longestAtLeast(30)},
	{"streak_100", "Centurion", "100-day streak", longestAtLeast(100)},
	{"level_5", "Apprentice", "Reach level 5", levelAtLeast(5)},
	{"level_10", "Scholar", "Reach level 10", levelAtLeast(10)},
	{"level_25", "Sage", "Reach level 25", levelAtLeast(25)},
	{"xp_1000", "Rising Star", "Earn 1,000 total XP", xpAtLeast(1000)},
	{"xp_10000", "Powerhouse", "Earn 10,000 total XP", xpAtLeast(10000)},
	{"xp_50000", "Legend", "Earn 50,000 total XP", xpAtLeast(50000)},
}

func longestAtLeast(n int) func(*models.UserProgress) bool {
	return func(p *models.UserProgress) bool { return p.LongestStreak >= n }
}

func levelAtLeast(n int) func(*models.UserProgress) bool {
	return func(p *models.UserProgress) bool { return p.Level >= n }
}

func xpAtLeast(n int64) func(*models.UserProgress) bool {
	return func(p *models.UserProgress) bool { return p.TotalXP >= n }
}

// CheckAchievements returns every achievement p qualifies for. Streak badges
// use the longest streak so a broken streak keeps what it earned.
func CheckAchievements(p *models.UserProgress) []models.Achievement {
	earned := []models.Achievement{}
	for _, a := range Achievements {
		if a.earned(p) {
			earned = append(earned, models.Achievement{Key: a.Key, Name: a.Name, Description: a.Description})
		}
	}
	return earned
}
