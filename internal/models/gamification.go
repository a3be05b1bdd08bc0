package models

import (
	"time"

	"github.com/google/uuid"
)

type StudyType string

const (
	StudyFlashcard StudyType = "flashcard"
	StudyQuiz      StudyType = "quiz"
)

// StudyEvent is an append-only record of one completed flashcard or quiz session.
type StudyEvent struct {
	ID             int64     `json:"id" db:"id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	Type           StudyType `json:"type" db:"type"`
	ReferenceID    int64     `json:"reference_id" db:"reference_id"`
	XPEarned       int64     `json:"xp_earned" db:"xp_earned"`
	CardsStudied   int       `json:"cards_studied" db:"cards_studied"`
	CorrectAnswers int       `json:"correct_answers" db:"correct_answers"`
	CompletedAt    time.Time `json:"completed_at" db:"completed_at"`
}

// QuizAttempt is an append-only record of one finished quiz.
type QuizAttempt struct {
	ID             int64     `json:"id" db:"id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	QuizID         int64     `json:"quiz_id" db:"quiz_id"`
	Score          int       `json:"score" db:"score"`
	TotalQuestions int       `json:"total_questions" db:"total_questions"`
	XPEarned       int64     `json:"xp_earned" db:"xp_earned"`
	CompletedAt    time.Time `json:"completed_at" db:"completed_at"`
}

// ── Request Types ─────────────────────────────────────────

type CompleteFlashcardsRequest struct {
	CardsStudied   int `json:"cards_studied"`
	CorrectAnswers int `json:"correct_answers"`
}

type CompleteQuizRequest struct {
	Score          int `json:"score"`
	TotalQuestions int `json:"total_questions"`
}

// ── Response Types ────────────────────────────────────────

type LevelProgressInfo struct {
	Level          int     `json:"level"`
	IntoLevel      int64   `json:"into_level"`
	NeededForLevel int64   `json:"needed_for_level"`
	Percent        float64 `json:"percent"`
}

type CompletionResponse struct {
	XPEarned      int64             `json:"xp_earned"`
	IsPerfect     bool              `json:"is_perfect,omitempty"`
	LeveledUp     bool              `json:"leveled_up"`
	PreviousLevel int               `json:"previous_level"`
	LevelProgress LevelProgressInfo `json:"level_progress"`
	User          UserProgress      `json:"user"`
}

type StreakInfo struct {
	Current int    `json:"current"`
	Longest int    `json:"longest"`
	Status  string `json:"status"`
}

type QuotaInfo struct {
	Premium              bool `json:"premium"`
	FlashcardsRemaining  int  `json:"flashcards_remaining"`
	QuizzesRemaining     int  `json:"quizzes_remaining"`
	DailyFlashcardsLimit int  `json:"daily_flashcards_limit"`
	DailyQuizzesLimit    int  `json:"daily_quizzes_limit"`
}

type ProgressResponse struct {
	User          UserProgress      `json:"user"`
	LevelProgress LevelProgressInfo `json:"level_progress"`
	Streak        StreakInfo        `json:"streak"`
	Quota         QuotaInfo         `json:"quota"`
	Achievements  []Achievement     `json:"achievements"`
}

// Achievement is a milestone badge derived from progress.
type Achievement struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
