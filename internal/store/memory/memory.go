// Package memory is an in-process Store. Transactions are optimistic: the
// user's progress version is captured at begin and compared at commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/studysage/backend/internal/apperr"
	"github.com/studysage/backend/internal/models"
	"github.com/studysage/backend/internal/store"
)

type Store struct {
	mu        sync.RWMutex
	users     map[uuid.UUID]models.User
	emails    map[string]uuid.UUID
	progress  map[uuid.UUID]models.UserProgress
	documents map[int64]models.Document
	sets      map[int64]models.FlashcardSet
	quizzes   map[int64]models.Quiz
	events    []models.StudyEvent
	attempts  []models.QuizAttempt

	nextID atomic.Int64

	// beforeCommit, when set, runs after fn and before the version check.
	beforeCommit func(userID uuid.UUID)
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:     make(map[uuid.UUID]models.User),
		emails:    make(map[string]uuid.UUID),
		progress:  make(map[uuid.UUID]models.UserProgress),
		documents: make(map[int64]models.Document),
		sets:      make(map[int64]models.FlashcardSet),
		quizzes:   make(map[int64]models.Quiz),
	}
}

func (s *Store) id() int64 { return s.nextID.Add(1) }

// ── Users ───────────────────────────────────────────────

func (s *Store) CreateUser(_ context.Context, u *models.User, p *models.UserProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := s.emails[key]; ok {
		return fmt.Errorf("create user %s: %w", u.Email, apperr.ErrDuplicate)
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	p.UserID = u.ID
	s.users[u.ID] = *u
	s.emails[key] = u.ID
	s.progress[u.ID] = *p
	return nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, apperr.ErrNotFound)
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) GetProgress(_ context.Context, userID uuid.UUID) (*models.UserProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, apperr.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) ListUsersWithUsage(_ context.Context) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []uuid.UUID
	for id, p := range s.progress {
		if p.DailyFlashcardsUsed > 0 || p.DailyQuizzesUsed > 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// SetPremium flips the premium flag. Used by tests and seeding.
func (s *Store) SetPremium(userID uuid.UUID, premium bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.progress[userID]; ok {
		p.IsPremium = premium
		p.Version++
		s.progress[userID] = p
	}
}

// ── Documents ───────────────────────────────────────────

func (s *Store) CreateDocument(_ context.Context, d *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[d.UserID]; !ok {
		return fmt.Errorf("create document: user %s: %w", d.UserID, apperr.ErrNotFound)
	}
	d.ID = s.id()
	s.documents[d.ID] = *d
	return nil
}

func (s *Store) GetDocument(_ context.Context, id int64) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getDocument(id)
}

func (s *Store) getDocument(id int64) (*models.Document, error) {
	d, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, apperr.ErrNotFound)
	}
	return &d, nil
}

func (s *Store) ListDocuments(_ context.Context, userID uuid.UUID) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := []models.Document{}
	for _, d := range s.documents {
		if d.UserID == userID {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID > docs[j].ID })
	return docs, nil
}

// ── Flashcards & Quizzes ────────────────────────────────

func (s *Store) GetFlashcardSet(_ context.Context, id int64) (*models.FlashcardSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getFlashcardSet(id)
}

func (s *Store) getFlashcardSet(id int64) (*models.FlashcardSet, error) {
	set, ok := s.sets[id]
	if !ok {
		return nil, fmt.Errorf("flashcard set %d: %w", id, apperr.ErrNotFound)
	}
	set.Flashcards = append([]models.Flashcard(nil), set.Flashcards...)
	return &set, nil
}

func (s *Store) ListFlashcardSets(_ context.Context, userID uuid.UUID) ([]models.FlashcardSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sets := []models.FlashcardSet{}
	for _, set := range s.sets {
		if set.UserID == userID {
			set.Flashcards = append([]models.Flashcard(nil), set.Flashcards...)
			sets = append(sets, set)
		}
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].ID > sets[j].ID })
	return sets, nil
}

func (s *Store) GetQuiz(_ context.Context, id int64) (*models.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getQuiz(id)
}

func (s *Store) getQuiz(id int64) (*models.Quiz, error) {
	q, ok := s.quizzes[id]
	if !ok {
		return nil, fmt.Errorf("quiz %d: %w", id, apperr.ErrNotFound)
	}
	questions := make([]models.QuizQuestion, len(q.Questions))
	for i, qq := range q.Questions {
		qq.Options = append([]string(nil), qq.Options...)
		questions[i] = qq
	}
	q.Questions = questions
	return &q, nil
}

func (s *Store) ListQuizzes(_ context.Context, userID uuid.UUID) ([]models.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quizzes := []models.Quiz{}
	for _, q := range s.quizzes {
		if q.UserID == userID {
			q.Questions = nil
			quizzes = append(quizzes, q)
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].ID > quizzes[j].ID })
	return quizzes, nil
}

// ── Study History ───────────────────────────────────────

func (s *Store) ListStudyEvents(_ context.Context, userID uuid.UUID, limit int) ([]models.StudyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := []models.StudyEvent{}
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].UserID != userID {
			continue
		}
		events = append(events, s.events[i])
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

// QuizAttempts returns every recorded attempt for userID, oldest first.
func (s *Store) QuizAttempts(userID uuid.UUID) []models.QuizAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.QuizAttempt
	for _, a := range s.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) Ping(context.Context) error { return nil }
