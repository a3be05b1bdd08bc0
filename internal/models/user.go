package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Password  string    `json:"-" db:"password"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserProgress is the gamification slice of the user record. It is only
// mutated through the gamification and study services.
type UserProgress struct {
	UserID              uuid.UUID  `json:"user_id" db:"id"`
	IsPremium           bool       `json:"is_premium" db:"is_premium"`
	TotalXP             int64      `json:"total_xp" db:"total_xp"`
	Level               int        `json:"level" db:"level"`
	CurrentStreak       int        `json:"current_streak" db:"current_streak"`
	LongestStreak       int        `json:"longest_streak" db:"longest_streak"`
	LastStudyDate       *time.Time `json:"last_study_date" db:"last_study_date"`
	DailyFlashcardsUsed int        `json:"daily_flashcards_used" db:"daily_flashcards_used"`
	DailyQuizzesUsed    int        `json:"daily_quizzes_used" db:"daily_quizzes_used"`
	LastDailyReset      *time.Time `json:"last_daily_reset" db:"last_daily_reset"`
	Version             int64      `json:"-" db:"version"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// NewUserProgress returns the defaults a user starts with on first sign-in.
func NewUserProgress(userID uuid.UUID, now time.Time) UserProgress {
	return UserProgress{
		UserID:         userID,
		Level:          1,
		LastDailyReset: &now,
		UpdatedAt:      now,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token    string        `json:"token"`
	User     User          `json:"user"`
	Progress *UserProgress `json:"progress,omitempty"`
}

type MeResponse struct {
	User     User          `json:"user"`
	Progress *UserProgress `json:"progress"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}
