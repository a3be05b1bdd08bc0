// Package study owns the content side of the app: uploaded documents, AI
// generation of flashcard sets and quizzes under the daily quota, and the
// study session history.
package study

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/studysage/backend/internal/apperr"
	"github.com/studysage/backend/internal/clock"
	"github.com/studysage/backend/internal/generator"
	"github.com/studysage/backend/internal/models"
	"github.com/studysage/backend/internal/quota"
	"github.com/studysage/backend/internal/store"
)

const (
	MinContentChars      = 50
	DefaultSessionsLimit = 10
	untitledDocument     = "Untitled Document"
)

type Service struct {
	store      store.Store
	gen        generator.Service
	clock      clock.Clock
	loc        *time.Location
	quota      *quota.Tracker
	maxRetries int
	count      int
}

func NewService(st store.Store, gen generator.Service, clk clock.Clock, tracker *quota.Tracker, loc *time.Location, maxRetries, count int) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if count <= 0 {
		count = 10
	}
	return &Service{
		store:      st,
		gen:        gen,
		clock:      clk,
		loc:        loc,
		quota:      tracker,
		maxRetries: maxRetries,
		count:      count,
	}
}

// ── Documents ───────────────────────────────────────────

// CreateDocument stores pasted study material. An empty title is filled in by
// the AI service, falling back to "Untitled Document" if that fails.
func (s *Service) CreateDocument(ctx context.Context, userID uuid.UUID, req models.CreateDocumentRequest) (*models.Document, error) {
	content := strings.TrimSpace(req.Content)
	if utf8.RuneCountInString(content) < MinContentChars {
		return nil, apperr.Invalid("content must be at least %d characters", MinContentChars)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		extracted, err := s.gen.ExtractTitle(ctx, content)
		if err != nil {
			log.WithField("user_id", userID).WithError(err).Warn("[study] title extraction failed, using default")
			extracted = untitledDocument
		}
		title = extracted
	}

	fileType := strings.ToLower(strings.TrimSpace(req.FileType))
	if fileType == "" {
		fileType = "txt"
	}

	doc := &models.Document{
		UserID:    userID,
		Title:     title,
		Content:   content,
		FileType:  fileType,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":     userID,
		"document_id": doc.ID,
		"chars":       utf8.RuneCountInString(content),
	}).Info("[study] document created")
	return doc, nil
}

func (s *Service) ListDocuments(ctx context.Context, userID uuid.UUID) ([]models.Document, error) {
	return s.store.ListDocuments(ctx, userID)
}

func (s *Service) GetDocument(ctx context.Context, userID uuid.UUID, id int64) (*models.Document, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := store.CheckOwner(doc.UserID, userID); err != nil {
		return nil, fmt.Errorf("document %d: %w", id, err)
	}
	return doc, nil
}

// ── Generation ──────────────────────────────────────────

// preflight fails fast on a missing or foreign document and on an exhausted
// quota, before the slow AI call. The transaction re-checks the quota.
func (s *Service) preflight(ctx context.Context, now time.Time, userID uuid.UUID, documentID int64, r quota.Resource) (*models.Document, error) {
	p, err := s.store.GetProgress(ctx, userID)
	if err != nil {
		return nil, err
	}
	doc, err := s.GetDocument(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkQuota(now, p, r); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) checkQuota(now time.Time, p *models.UserProgress, r quota.Resource) error {
	if s.quota.Allow(now, quota.TierOf(p.IsPremium), usageOf(p), r) {
		return nil
	}
	return &apperr.QuotaError{Resource: r.Noun(), Limit: s.quota.Limits().For(r)}
}

// recordUsage re-checks the limit against the state read in tx and counts
// one generation of r on p.
func (s *Service) recordUsage(ctx context.Context, tx store.Tx, now time.Time, r quota.Resource) (*models.UserProgress, error) {
	p, err := tx.Progress(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkQuota(now, p, r); err != nil {
		return nil, err
	}

	u := s.quota.Record(now, usageOf(p), r)
	p.DailyFlashcardsUsed = u.Flashcards
	p.DailyQuizzesUsed = u.Quizzes
	p.LastDailyReset = u.LastReset
	p.UpdatedAt = now
	return p, nil
}

func usageOf(p *models.UserProgress) quota.Usage {
	return quota.Usage{
		Flashcards: p.DailyFlashcardsUsed,
		Quizzes:    p.DailyQuizzesUsed,
		LastReset:  p.LastDailyReset,
	}
}

// GenerateFlashcards creates a flashcard set from documentID. Quota usage and
// the new set are committed together; an AI failure leaves no trace.
func (s *Service) GenerateFlashcards(ctx context.Context, userID uuid.UUID, documentID int64) (*models.FlashcardSet, error) {
	now := s.clock.Now()

	doc, err := s.preflight(ctx, now, userID, documentID, quota.Flashcards)
	if err != nil {
		return nil, err
	}

	cards, err := s.gen.GenerateFlashcards(ctx, doc.Content, s.count)
	if err != nil {
		log.WithFields(log.Fields{
			"user_id":     userID,
			"document_id": documentID,
		}).WithError(err).Error("[study] flashcard generation failed")
		return nil, ensureUpstream(err)
	}

	var set *models.FlashcardSet
	err = store.WithRetry(ctx, s.store, userID, s.maxRetries, func(tx store.Tx) error {
		p, err := s.recordUsage(ctx, tx, now, quota.Flashcards)
		if err != nil {
			return err
		}

		set = &models.FlashcardSet{
			UserID:      userID,
			DocumentID:  &doc.ID,
			Title:       doc.Title + " - Flashcards",
			Description: "Generated from " + doc.Title,
			CreatedAt:   now,
			Flashcards:  make([]models.Flashcard, 0, len(cards)),
		}
		for _, c := range cards {
			set.Flashcards = append(set.Flashcards, models.Flashcard{
				Front:       c.Front,
				Back:        c.Back,
				Explanation: c.Explanation,
			})
		}
		if err := tx.CreateFlashcardSet(ctx, set); err != nil {
			return fmt.Errorf("create flashcard set: %w", err)
		}
		return tx.UpdateProgress(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":     userID,
		"document_id": documentID,
		"set_id":      set.ID,
		"cards":       set.CardCount,
	}).Info("[study] flashcard set generated")
	return set, nil
}

// GenerateQuiz creates a quiz from documentID under the same rules as
// GenerateFlashcards.
func (s *Service) GenerateQuiz(ctx context.Context, userID uuid.UUID, documentID int64) (*models.Quiz, error) {
	now := s.clock.Now()

	doc, err := s.preflight(ctx, now, userID, documentID, quota.Quizzes)
	if err != nil {
		return nil, err
	}

	questions, err := s.gen.GenerateQuiz(ctx, doc.Content, s.count)
	if err != nil {
		log.WithFields(log.Fields{
			"user_id":     userID,
			"document_id": documentID,
		}).WithError(err).Error("[study] quiz generation failed")
		return nil, ensureUpstream(err)
	}

	var quiz *models.Quiz
	err = store.WithRetry(ctx, s.store, userID, s.maxRetries, func(tx store.Tx) error {
		p, err := s.recordUsage(ctx, tx, now, quota.Quizzes)
		if err != nil {
			return err
		}

		quiz = &models.Quiz{
			UserID:     userID,
			DocumentID: &doc.ID,
			Title:      doc.Title + " - Quiz",
			CreatedAt:  now,
			Questions:  make([]models.QuizQuestion, len(questions)),
		}
		copy(quiz.Questions, questions)
		if err := tx.CreateQuiz(ctx, quiz); err != nil {
			return fmt.Errorf("create quiz: %w", err)
		}
		return tx.UpdateProgress(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":     userID,
		"document_id": documentID,
		"quiz_id":     quiz.ID,
		"questions":   quiz.QuestionCount,
	}).Info("[study] quiz generated")
	return quiz, nil
}

func ensureUpstream(err error) error {
	if errors.Is(err, apperr.ErrUpstreamGeneration) {
		return err
	}
	return fmt.Errorf("%w: %v", apperr.ErrUpstreamGeneration, err)
}

// ── Flashcard sets & quizzes ────────────────────────────

func (s *Service) ListFlashcardSets(ctx context.Context, userID uuid.UUID) ([]models.FlashcardSet, error) {
	return s.store.ListFlashcardSets(ctx, userID)
}

func (s *Service) GetFlashcardSet(ctx context.Context, userID uuid.UUID, id int64) (*models.FlashcardSet, error) {
	set, err := s.store.GetFlashcardSet(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := store.CheckOwner(set.UserID, userID); err != nil {
		return nil, fmt.Errorf("flashcard set %d: %w", id, err)
	}
	return set, nil
}

func (s *Service) ListQuizzes(ctx context.Context, userID uuid.UUID) ([]models.Quiz, error) {
	return s.store.ListQuizzes(ctx, userID)
}

func (s *Service) GetQuiz(ctx context.Context, userID uuid.UUID, id int64) (*models.Quiz, error) {
	quiz, err := s.store.GetQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := store.CheckOwner(quiz.UserID, userID); err != nil {
		return nil, fmt.Errorf("quiz %d: %w", id, err)
	}
	return quiz, nil
}

// ── Study sessions ──────────────────────────────────────

// ListStudySessions returns the newest study events; limit <= 0 means DefaultSessionsLimit.
func (s *Service) ListStudySessions(ctx context.Context, userID uuid.UUID, limit int) ([]models.StudyEvent, error) {
	if limit <= 0 {
		limit = DefaultSessionsLimit
	}
	return s.store.ListStudyEvents(ctx, userID, limit)
}

// ── Quota maintenance ───────────────────────────────────

// SweepQuotas zeroes stale daily counters for every user with usage. Counters
// are also reset lazily on the next generation, so a missed sweep is harmless.
// It returns how many users were reset.
func (s *Service) SweepQuotas(ctx context.Context) (int, error) {
	now := s.clock.Now()

	ids, err := s.store.ListUsersWithUsage(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users with usage: %w", err)
	}

	reset := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return reset, err
		}

		changed := false
		err := store.WithRetry(ctx, s.store, id, s.maxRetries, func(tx store.Tx) error {
			changed = false
			p, err := tx.Progress(ctx)
			if err != nil {
				return err
			}
			u, ok := s.quota.Sweep(now, usageOf(p))
			if !ok {
				return nil
			}
			p.DailyFlashcardsUsed = u.Flashcards
			p.DailyQuizzesUsed = u.Quizzes
			p.LastDailyReset = u.LastReset
			p.UpdatedAt = now
			changed = true
			return tx.UpdateProgress(ctx, p)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
			continue
		}
		if changed {
			reset++
		}
	}

	log.WithFields(log.Fields{
		"candidates": len(ids),
		"reset":      reset,
		"failed":     len(errs),
	}).Info("[study] quota sweep finished")
	return reset, errors.Join(errs...)
}
