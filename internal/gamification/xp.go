package gamification

import "github.com/studysage/backend/internal/apperr"

const (
	XPPerFlashcard     int64 = 5
	XPPerQuizQuestion  int64 = 10
	XPBonusPerfectQuiz int64 = 25

	// MaxSessionItems caps cards_studied and total_questions for one completion.
	MaxSessionItems = 1000
)

// FlashcardXP returns XP for a finished flashcard session. Every card studied
// counts, correct or not.
func FlashcardXP(cardsStudied int) int64 {
	return int64(cardsStudied) * XPPerFlashcard
}

// QuizXP returns XP for a finished quiz and whether it was perfect.
func QuizXP(score, totalQuestions int) (int64, bool) {
	perfect := score == totalQuestions
	xp := int64(score) * XPPerQuizQuestion
	if perfect {
		xp += XPBonusPerfectQuiz
	}
	return xp, perfect
}

func validateFlashcardSession(cardsStudied, correctAnswers int) error {
	if cardsStudied < 0 || cardsStudied > MaxSessionItems {
		return apperr.Invalid("cards_studied must be between 0 and %d", MaxSessionItems)
	}
	if correctAnswers < 0 || correctAnswers > cardsStudied {
		return apperr.Invalid("correct_answers must be between 0 and cards_studied")
	}
	return nil
}

func validateQuizResult(score, totalQuestions int) error {
	if totalQuestions < 1 || totalQuestions > MaxSessionItems {
		return apperr.Invalid("total_questions must be between 1 and %d", MaxSessionItems)
	}
	if score < 0 || score > totalQuestions {
		return apperr.Invalid("score must be between 0 and total_questions")
	}
	return nil
}
