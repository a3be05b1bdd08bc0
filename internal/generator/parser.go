package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/studysage/backend/internal/models"
)

type GeneratedFlashcard struct {
	Front       string `json:"front"`
	Back        string `json:"back"`
	Explanation string `json:"explanation"`
}

// GeneratedQuestion is the model's wire shape; Type stays a plain string so a
// single unknown variant drops one item instead of the whole batch.
type GeneratedQuestion struct {
	Type          string   `json:"type"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// ParseFlashcards decodes a {"flashcards": [...]} response. Cards missing a
// front or back, or repeating an earlier front, are dropped; an empty result
// is a ValidationError.
func ParseFlashcards(responseBody string) ([]GeneratedFlashcard, error) {
	var payload struct {
		Flashcards []GeneratedFlashcard `json:"flashcards"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(responseBody)), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	var (
		cards []GeneratedFlashcard
		errs  []string
		seen  = make(map[string]int)
	)
	for i, c := range payload.Flashcards {
		c.Front = strings.TrimSpace(c.Front)
		c.Back = strings.TrimSpace(c.Back)
		c.Explanation = strings.TrimSpace(c.Explanation)
		if c.Front == "" || c.Back == "" {
			errs = append(errs, fmt.Sprintf("flashcard %d: empty front or back", i+1))
			continue
		}
		key := strings.Join(strings.Fields(strings.ToLower(c.Front)), " ")
		if first, dup := seen[key]; dup {
			errs = append(errs, fmt.Sprintf("flashcard %d: duplicates flashcard %d", i+1, first))
			continue
		}
		seen[key] = i + 1
		cards = append(cards, c)
	}

	if len(errs) > 0 {
		log.WithField("problems", errs).Warn("[generator] dropped invalid flashcards")
	}
	if len(cards) == 0 {
		if len(errs) == 0 {
			errs = []string{"no flashcards in response"}
		}
		return nil, &ValidationError{Errors: errs}
	}
	return cards, nil
}

// ParseQuiz decodes a {"questions": [...]} response into validated questions.
func ParseQuiz(responseBody string) ([]models.QuizQuestion, error) {
	var payload struct {
		Questions []GeneratedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(responseBody)), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	var (
		questions []models.QuizQuestion
		errs      []string
	)
	for i, g := range payload.Questions {
		q := g.toModel()
		if err := q.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("question %d: %v", i+1, err))
			continue
		}
		questions = append(questions, q)
	}

	if len(errs) > 0 {
		log.WithField("problems", errs).Warn("[generator] dropped invalid quiz questions")
	}
	if len(questions) == 0 {
		if len(errs) == 0 {
			errs = []string{"no questions in response"}
		}
		return nil, &ValidationError{Errors: errs}
	}
	return questions, nil
}

func (g GeneratedQuestion) toModel() models.QuizQuestion {
	q := models.QuizQuestion{
		Type:          models.QuestionType(strings.ToLower(strings.TrimSpace(g.Type))),
		Question:      strings.TrimSpace(g.Question),
		CorrectAnswer: strings.TrimSpace(g.CorrectAnswer),
		Explanation:   strings.TrimSpace(g.Explanation),
	}

	switch q.Type {
	case models.QuestionMultipleChoice:
		for _, o := range g.Options {
			if o = strings.TrimSpace(o); o != "" {
				q.Options = append(q.Options, o)
			}
		}
	case models.QuestionTrueFalse:
		// Models often answer "true" or "TRUE".
		switch strings.ToLower(q.CorrectAnswer) {
		case "true":
			q.CorrectAnswer = "True"
		case "false":
			q.CorrectAnswer = "False"
		}
	}
	return q
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
