package gamification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/studysage/backend/internal/models"
)

func keys(as []models.Achievement) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Key
	}
	return out
}

func TestCheckAchievements(t *testing.T) {
	studied := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		p    models.UserProgress
		want []string
	}{
		{"new user", models.UserProgress{Level: 1}, []string{}},
		{"first session", models.UserProgress{Level: 1, TotalXP: 5, CurrentStreak: 1, LongestStreak: 1, LastStudyDate: &studied},
			[]string{"first_study"}},
		{"broken streak keeps badge", models.UserProgress{Level: 5, TotalXP: 800, LongestStreak: 7, LastStudyDate: &studied},
			[]string{"first_study", "streak_3", "streak_7", "level_5"}},
		{"veteran", models.UserProgress{Level: 15, TotalXP: 10000, CurrentStreak: 30, LongestStreak: 30, LastStudyDate: &studied},
			[]string{"first_study", "streak_3", "streak_7", "streak_14", "streak_30", "level_5", "level_10", "xp_1000", "xp_10000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keys(CheckAchievements(&tt.p)))
		})
	}
}

func TestAchievementKeysUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range Achievements {
		assert.False(t, seen[a.Key], "duplicate key %s", a.Key)
		seen[a.Key] = true
		assert.NotEmpty(t, a.Name)
	}
}
