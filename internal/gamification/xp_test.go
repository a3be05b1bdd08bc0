package gamification

import (
	"errors"
	"math"
	"testing"

	"github.com/studysage/backend/internal/apperr"
)

func TestFlashcardXP(t *testing.T) {
	tests := []struct {
		cards int
		want  int64
	}{
		{0, 0},
		{1, 5},
		{10, 50},
		{37, 185},
	}

	for _, tt := range tests {
		if got := FlashcardXP(tt.cards); got != tt.want {
			t.Errorf("FlashcardXP(%d) = %d, want %d", tt.cards, got, tt.want)
		}
	}
}

func TestQuizXP(t *testing.T) {
	tests := []struct {
		score, total int
		want         int64
		perfect      bool
	}{
		{10, 10, 125, true},
		{9, 10, 90, false},
		{0, 10, 0, false},
		{1, 1, 35, true},
		{5, 8, 50, false},
	}

	for _, tt := range tests {
		got, perfect := QuizXP(tt.score, tt.total)
		if got != tt.want || perfect != tt.perfect {
			t.Errorf("QuizXP(%d, %d) = (%d, %v), want (%d, %v)", tt.score, tt.total, got, perfect, tt.want, tt.perfect)
		}
	}
}

func TestValidateInputs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		ok   bool
	}{
		{"flashcards ok", validateFlashcardSession(10, 7), true},
		{"flashcards zero", validateFlashcardSession(0, 0), true},
		{"flashcards negative", validateFlashcardSession(-1, 0), false},
		{"correct above studied", validateFlashcardSession(3, 4), false},
		{"flashcards at cap", validateFlashcardSession(MaxSessionItems, 0), true},
		{"flashcards above cap", validateFlashcardSession(MaxSessionItems+1, 0), false},
		{"flashcards huge", validateFlashcardSession(math.MaxInt/5+1, 0), false},
		{"quiz ok", validateQuizResult(4, 5), true},
		{"quiz no questions", validateQuizResult(0, 0), false},
		{"quiz score above total", validateQuizResult(6, 5), false},
		{"quiz negative score", validateQuizResult(-1, 5), false},
		{"quiz above cap", validateQuizResult(0, MaxSessionItems+1), false},
	}

	for _, tt := range tests {
		if tt.ok && tt.err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, tt.err)
		}
		if !tt.ok && !errors.Is(tt.err, apperr.ErrInvalidInput) {
			t.Errorf("%s: want ErrInvalidInput, got %v", tt.name, tt.err)
		}
	}
}
