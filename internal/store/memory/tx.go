package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/studysage/backend/internal/apperr"
	"github.com/studysage/backend/internal/models"
	"github.com/studysage/backend/internal/store"
)

type tx struct {
	s       *Store
	userID  uuid.UUID
	base    models.UserProgress
	updated *models.UserProgress

	events   []models.StudyEvent
	attempts []models.QuizAttempt
	sets     []models.FlashcardSet
	quizzes  []models.Quiz
}

func (s *Store) WithinUserTx(ctx context.Context, userID uuid.UUID, fn func(store.Tx) error) error {
	s.mu.RLock()
	p, ok := s.progress[userID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("user %s: %w", userID, apperr.ErrNotFound)
	}

	t := &tx{s: s, userID: userID, base: p}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.beforeCommit != nil {
		s.beforeCommit(userID)
	}
	return t.commit()
}

func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.progress[t.userID]
	if !ok {
		return fmt.Errorf("user %s: %w", t.userID, apperr.ErrNotFound)
	}
	if current.Version != t.base.Version {
		return fmt.Errorf("user %s at version %d, read %d: %w",
			t.userID, current.Version, t.base.Version, apperr.ErrPersistenceConflict)
	}

	if t.updated != nil {
		next := *t.updated
		next.Version = current.Version + 1
		s.progress[t.userID] = next
	}
	for _, set := range t.sets {
		s.sets[set.ID] = set
	}
	for _, q := range t.quizzes {
		s.quizzes[q.ID] = q
	}
	s.attempts = append(s.attempts, t.attempts...)
	s.events = append(s.events, t.events...)
	return nil
}

func (t *tx) Progress(context.Context) (*models.UserProgress, error) {
	if t.updated != nil {
		p := *t.updated
		return &p, nil
	}
	p := t.base
	return &p, nil
}

func (t *tx) UpdateProgress(_ context.Context, p *models.UserProgress) error {
	if p.UserID != t.userID {
		return fmt.Errorf("update progress: transaction is for user %s, got %s", t.userID, p.UserID)
	}
	next := *p
	t.updated = &next
	return nil
}

func (t *tx) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	return t.s.GetDocument(ctx, id)
}

func (t *tx) GetFlashcardSet(ctx context.Context, id int64) (*models.FlashcardSet, error) {
	return t.s.GetFlashcardSet(ctx, id)
}

func (t *tx) GetQuiz(ctx context.Context, id int64) (*models.Quiz, error) {
	return t.s.GetQuiz(ctx, id)
}

func (t *tx) AppendStudyEvent(_ context.Context, e *models.StudyEvent) error {
	e.ID = t.s.id()
	t.events = append(t.events, *e)
	return nil
}

func (t *tx) AppendQuizAttempt(_ context.Context, a *models.QuizAttempt) error {
	a.ID = t.s.id()
	t.attempts = append(t.attempts, *a)
	return nil
}

func (t *tx) CreateFlashcardSet(_ context.Context, set *models.FlashcardSet) error {
	set.ID = t.s.id()
	for i := range set.Flashcards {
		set.Flashcards[i].ID = t.s.id()
		set.Flashcards[i].SetID = set.ID
	}
	set.CardCount = len(set.Flashcards)

	stored := *set
	stored.Flashcards = append([]models.Flashcard(nil), set.Flashcards...)
	t.sets = append(t.sets, stored)
	return nil
}

func (t *tx) CreateQuiz(_ context.Context, q *models.Quiz) error {
	q.ID = t.s.id()
	for i := range q.Questions {
		q.Questions[i].ID = t.s.id()
		q.Questions[i].QuizID = q.ID
	}
	q.QuestionCount = len(q.Questions)

	stored := *q
	stored.Questions = make([]models.QuizQuestion, len(q.Questions))
	for i, qq := range q.Questions {
		qq.Options = append([]string(nil), qq.Options...)
		stored.Questions[i] = qq
	}
	t.quizzes = append(t.quizzes, stored)
	return nil
}
