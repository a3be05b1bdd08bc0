package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID        int64     `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content,omitempty" db:"content"`
	FileType  string    `json:"file_type" db:"file_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type FlashcardSet struct {
	ID          int64       `json:"id" db:"id"`
	UserID      uuid.UUID   `json:"user_id" db:"user_id"`
	DocumentID  *int64      `json:"document_id,omitempty" db:"document_id"`
	Title       string      `json:"title" db:"title"`
	Description string      `json:"description,omitempty" db:"description"`
	CardCount   int         `json:"card_count" db:"card_count"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	Flashcards  []Flashcard `json:"flashcards" db:"-"`
}

type Flashcard struct {
	ID           int64      `json:"id" db:"id"`
	SetID        int64      `json:"set_id" db:"set_id"`
	Front        string     `json:"front" db:"front"`
	Back         string     `json:"back" db:"back"`
	Explanation  string     `json:"explanation,omitempty" db:"explanation"`
	TimesStudied int        `json:"times_studied" db:"times_studied"`
	TimesCorrect int        `json:"times_correct" db:"times_correct"`
	LastStudied  *time.Time `json:"last_studied,omitempty" db:"last_studied"`
}

type Quiz struct {
	ID            int64          `json:"id" db:"id"`
	UserID        uuid.UUID      `json:"user_id" db:"user_id"`
	DocumentID    *int64         `json:"document_id,omitempty" db:"document_id"`
	Title         string         `json:"title" db:"title"`
	QuestionCount int            `json:"question_count" db:"question_count"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	Questions     []QuizQuestion `json:"questions" db:"-"`
}

// QuestionType is the closed set of quiz question variants.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionFillBlank      QuestionType = "fill_blank"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionFillBlank:
		return true
	}
	return false
}

func (t *QuestionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	qt := QuestionType(s)
	if !qt.Valid() {
		return fmt.Errorf("unknown question type %q", s)
	}
	*t = qt
	return nil
}

// QuizQuestion is a tagged variant: Options is only meaningful (and required)
// for multiple choice; true/false answers are "True" or "False".
type QuizQuestion struct {
	ID            int64        `json:"id" db:"id"`
	QuizID        int64        `json:"quiz_id" db:"quiz_id"`
	Type          QuestionType `json:"type" db:"type"`
	Question      string       `json:"question" db:"question"`
	Options       []string     `json:"options,omitempty" db:"-"`
	CorrectAnswer string       `json:"correct_answer" db:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty" db:"explanation"`
}

// Validate checks the fields required by the question's variant.
func (q QuizQuestion) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("empty question text")
	}
	if strings.TrimSpace(q.CorrectAnswer) == "" {
		return fmt.Errorf("empty correct answer")
	}

	switch q.Type {
	case QuestionMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("multiple choice needs at least 2 options, got %d", len(q.Options))
		}
		for _, o := range q.Options {
			if strings.EqualFold(strings.TrimSpace(o), strings.TrimSpace(q.CorrectAnswer)) {
				return nil
			}
		}
		return fmt.Errorf("correct answer %q is not one of the options", q.CorrectAnswer)
	case QuestionTrueFalse:
		if len(q.Options) > 0 {
			return fmt.Errorf("true/false question must not carry options")
		}
		if q.CorrectAnswer != "True" && q.CorrectAnswer != "False" {
			return fmt.Errorf("true/false answer must be True or False, got %q", q.CorrectAnswer)
		}
	case QuestionFillBlank:
		if len(q.Options) > 0 {
			return fmt.Errorf("fill-in-the-blank question must not carry options")
		}
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	return nil
}

type CreateDocumentRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	FileType string `json:"file_type"`
}
