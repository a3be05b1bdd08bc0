package generator

import (
	"fmt"
	"strings"
)

const (
	// maxContentRunes bounds the study material sent for flashcards and quizzes.
	maxContentRunes = 8000
	// maxTitleContentRunes bounds the excerpt used to name a document.
	maxTitleContentRunes = 1000
	maxTitleRunes        = 50
)

// truncate cuts s to at most n runes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func FlashcardSystemPrompt() string {
	return `You are an expert educational content creator. You turn study material into flashcards that help a student memorize and understand it.

Each flashcard must have:
- FRONT: a clear, specific question or key term
- BACK: a comprehensive but concise answer or definition
- EXPLANATION: one or two sentences of extra context or a memory tip

Focus on the most important concepts, key terms, definitions, and facts.
Never invent facts that are not supported by the material.

You must respond with valid JSON only. No markdown, no explanation outside the JSON.`
}

func BuildFlashcardUserPrompt(content string, count int) string {
	return fmt.Sprintf(`Generate %d flashcards from this study material.

Respond with this exact JSON structure:
{
  "flashcards": [
    {
      "front": "Question or term here",
      "back": "Answer or definition here",
      "explanation": "Additional context or memory tip"
    }
  ]
}

Study material:
%s`, count, truncate(content, maxContentRunes))
}

func QuizSystemPrompt() string {
	return `You are an expert educational assessment creator. You write quiz questions that test understanding of study material.

Create a mix of question types:
- multiple_choice: exactly 4 options, one of them correct; correctAnswer repeats the correct option text
- true_false: a statement to evaluate; correctAnswer is "True" or "False"; no options
- fill_blank: a sentence with a blank; correctAnswer is the missing word or phrase; no options

Questions should range from basic recall to application.
Every question needs a short explanation of why the answer is correct.

You must respond with valid JSON only. No markdown, no explanation outside the JSON.`
}

func BuildQuizUserPrompt(content string, count int) string {
	return fmt.Sprintf(`Generate %d quiz questions from this study material.

Respond with this exact JSON structure:
{
  "questions": [
    {
      "type": "multiple_choice",
      "question": "The question text here?",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correctAnswer": "Option A",
      "explanation": "Why this is correct"
    },
    {
      "type": "true_false",
      "question": "A statement to evaluate as true or false",
      "correctAnswer": "True",
      "explanation": "Why this is true or false"
    },
    {
      "type": "fill_blank",
      "question": "Complete this: The _____ is responsible for...",
      "correctAnswer": "answer word",
      "explanation": "Context about the answer"
    }
  ]
}

Study material:
%s`, count, truncate(content, maxContentRunes))
}

func TitleSystemPrompt() string {
	return "Extract or generate a concise, descriptive title for this document content. Return only the title, no quotes or extra text."
}

func BuildTitleUserPrompt(content string) string {
	return fmt.Sprintf("Generate a title for this document (max %d characters):\n%s",
		maxTitleRunes, strings.TrimSpace(truncate(content, maxTitleContentRunes)))
}
