package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/studysage/backend/internal/apperr"
	"github.com/studysage/backend/internal/clock"
	"github.com/studysage/backend/internal/models"
	"github.com/studysage/backend/internal/quota"
	"github.com/studysage/backend/internal/store"
)

type Service struct {
	store      store.Store
	clock      clock.Clock
	loc        *time.Location
	quota      *quota.Tracker
	maxRetries int
}

func NewService(st store.Store, clk clock.Clock, tracker *quota.Tracker, loc *time.Location, maxRetries int) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:      st,
		clock:      clk,
		loc:        loc,
		quota:      tracker,
		maxRetries: maxRetries,
	}
}

// ── Study Completion ────────────────────────────────────

// CompleteFlashcardSession credits a finished flashcard session on setID.
// The study event, XP, level and streak are written in one transaction.
func (s *Service) CompleteFlashcardSession(ctx context.Context, userID uuid.UUID, setID int64, cardsStudied, correctAnswers int) (*models.CompletionResponse, error) {
	if err := validateFlashcardSession(cardsStudied, correctAnswers); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	xp := FlashcardXP(cardsStudied)

	var resp *models.CompletionResponse
	err := store.WithRetry(ctx, s.store, userID, s.maxRetries, func(tx store.Tx) error {
		p, err := tx.Progress(ctx)
		if err != nil {
			return err
		}

		set, err := tx.GetFlashcardSet(ctx, setID)
		if err != nil {
			return err
		}
		if err := store.CheckOwner(set.UserID, userID); err != nil {
			return fmt.Errorf("flashcard set %d: %w", setID, err)
		}

		event := &models.StudyEvent{
			UserID:         userID,
			Type:           models.StudyFlashcard,
			ReferenceID:    setID,
			XPEarned:       xp,
			CardsStudied:   cardsStudied,
			CorrectAnswers: correctAnswers,
			CompletedAt:    now,
		}
		if err := tx.AppendStudyEvent(ctx, event); err != nil {
			return fmt.Errorf("append study event: %w", err)
		}

		prev, err := s.applyStudy(p, now, xp)
		if err != nil {
			return err
		}
		if err := tx.UpdateProgress(ctx, p); err != nil {
			return err
		}
		resp = completion(p, xp, prev)
		return nil
	})
	if err != nil {
		log.WithFields(log.Fields{
			"user_id": userID,
			"set_id":  setID,
		}).WithError(err).Warn("[gamification] flashcard completion failed")
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"set_id":     setID,
		"xp":         xp,
		"user_level": resp.User.Level,
		"streak":     resp.User.CurrentStreak,
		"level_up":   resp.LeveledUp,
	}).Info("[gamification] flashcard session completed")
	return resp, nil
}

// CompleteQuiz credits a finished quiz: quiz attempt, study event, XP, level
// and streak in one transaction. A perfect score earns XPBonusPerfectQuiz.
func (s *Service) CompleteQuiz(ctx context.Context, userID uuid.UUID, quizID int64, score, totalQuestions int) (*models.CompletionResponse, error) {
	if err := validateQuizResult(score, totalQuestions); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	xp, perfect := QuizXP(score, totalQuestions)

	var resp *models.CompletionResponse
	err := store.WithRetry(ctx, s.store, userID, s.maxRetries, func(tx store.Tx) error {
		p, err := tx.Progress(ctx)
		if err != nil {
			return err
		}

		quiz, err := tx.GetQuiz(ctx, quizID)
		if err != nil {
			return err
		}
		if err := store.CheckOwner(quiz.UserID, userID); err != nil {
			return fmt.Errorf("quiz %d: %w", quizID, err)
		}

		attempt := &models.QuizAttempt{
			UserID:         userID,
			QuizID:         quizID,
			Score:          score,
			TotalQuestions: totalQuestions,
			XPEarned:       xp,
			CompletedAt:    now,
		}
		if err := tx.AppendQuizAttempt(ctx, attempt); err != nil {
			return fmt.Errorf("append quiz attempt: %w", err)
		}

		event := &models.StudyEvent{
			UserID:         userID,
			Type:           models.StudyQuiz,
			ReferenceID:    quizID,
			XPEarned:       xp,
			CardsStudied:   totalQuestions,
			CorrectAnswers: score,
			CompletedAt:    now,
		}
		if err := tx.AppendStudyEvent(ctx, event); err != nil {
			return fmt.Errorf("append study event: %w", err)
		}

		prev, err := s.applyStudy(p, now, xp)
		if err != nil {
			return err
		}
		if err := tx.UpdateProgress(ctx, p); err != nil {
			return err
		}
		resp = completion(p, xp, prev)
		resp.IsPerfect = perfect
		return nil
	})
	if err != nil {
		log.WithFields(log.Fields{
			"user_id": userID,
			"quiz_id": quizID,
		}).WithError(err).Warn("[gamification] quiz completion failed")
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"quiz_id":    quizID,
		"score":      fmt.Sprintf("%d/%d", score, totalQuestions),
		"xp":         xp,
		"user_level": resp.User.Level,
		"streak":     resp.User.CurrentStreak,
	}).Info("[gamification] quiz completed")
	return resp, nil
}

// applyStudy adds xp, recomputes the level and credits the streak. It
// returns the level before the change. p is left untouched on error.
func (s *Service) applyStudy(p *models.UserProgress, now time.Time, xp int64) (int, error) {
	if err := ValidateXP(xp); err != nil {
		return 0, err
	}
	if p.TotalXP > MaxTotalXP-xp {
		return 0, apperr.Invalid("total xp %d cannot take %d more", p.TotalXP, xp)
	}
	prev := p.Level

	p.TotalXP += xp
	p.Level = Level(p.TotalXP)

	streak := CreditStudy(now, s.loc, StreakState{
		Current:       p.CurrentStreak,
		Longest:       p.LongestStreak,
		LastStudyDate: p.LastStudyDate,
	})
	p.CurrentStreak = streak.Current
	p.LongestStreak = streak.Longest
	p.LastStudyDate = streak.LastStudyDate
	p.UpdatedAt = now

	return prev, nil
}

func completion(p *models.UserProgress, xp int64, prevLevel int) *models.CompletionResponse {
	return &models.CompletionResponse{
		XPEarned:      xp,
		LeveledUp:     p.Level > prevLevel,
		PreviousLevel: prevLevel,
		LevelProgress: levelInfo(p.TotalXP),
		User:          *p,
	}
}

func levelInfo(xp int64) models.LevelProgressInfo {
	lp := Progress(xp)
	return models.LevelProgressInfo{
		Level:          lp.Level,
		IntoLevel:      lp.IntoLevel,
		NeededForLevel: lp.NeededForLevel,
		Percent:        lp.Percent,
	}
}

// ── Progress ────────────────────────────────────────────

// GetProgress returns the dashboard view: level progress, streak as seen
// today and remaining generations.
func (s *Service) GetProgress(ctx context.Context, userID uuid.UUID) (*models.ProgressResponse, error) {
	p, err := s.store.GetProgress(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	streak := StreakState{
		Current:       p.CurrentStreak,
		Longest:       p.LongestStreak,
		LastStudyDate: p.LastStudyDate,
	}
	tier := quota.TierOf(p.IsPremium)
	usage := quota.Usage{
		Flashcards: p.DailyFlashcardsUsed,
		Quizzes:    p.DailyQuizzesUsed,
		LastReset:  p.LastDailyReset,
	}
	limits := s.quota.Limits()

	return &models.ProgressResponse{
		User:          *p,
		LevelProgress: levelInfo(p.TotalXP),
		Streak: models.StreakInfo{
			Current: DisplayStreak(now, s.loc, streak),
			Longest: p.LongestStreak,
			Status:  string(Status(now, s.loc, streak)),
		},
		Quota: models.QuotaInfo{
			Premium:              p.IsPremium,
			FlashcardsRemaining:  s.quota.Remaining(now, tier, usage, quota.Flashcards),
			QuizzesRemaining:     s.quota.Remaining(now, tier, usage, quota.Quizzes),
			DailyFlashcardsLimit: limits.Flashcards,
			DailyQuizzesLimit:    limits.Quizzes,
		},
		Achievements: CheckAchievements(p),
	}, nil
}
