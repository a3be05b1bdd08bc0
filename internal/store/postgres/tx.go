package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"github.com/studysage/backend/internal/apperr"
	"github.com/studysage/backend/internal/models"
	"github.com/studysage/backend/internal/store"
)

type tx struct {
	tx       *sqlx.Tx
	userID   uuid.UUID
	progress models.UserProgress
}

func (s *Store) WithinUserTx(ctx context.Context, userID uuid.UUID, fn func(store.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapErr(err, "begin transaction")
	}
	defer rollback(sqlTx)

	var p models.UserProgress
	err = sqlTx.GetContext(ctx, &p, `SELECT `+progressColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		return mapErr(err, fmt.Sprintf("lock user %s", userID))
	}

	if err = fn(&tx{tx: sqlTx, userID: userID, progress: p}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return mapErr(err, "commit")
	}
	return nil
}

type rollbacker interface {
	Rollback() error
}

// rollback ends t unless it already committed. It runs on every exit,
// including a panic in the transaction body, so the row lock is released.
func rollback(t rollbacker) {
	if err := t.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.WithError(err).Warn("[store] rollback failed")
	}
}

func (t *tx) Progress(context.Context) (*models.UserProgress, error) {
	p := t.progress
	return &p, nil
}

func (t *tx) UpdateProgress(ctx context.Context, p *models.UserProgress) error {
	if p.UserID != t.userID {
		return fmt.Errorf("update progress: transaction is for user %s, got %s", t.userID, p.UserID)
	}

	res, err := t.tx.ExecContext(ctx,
		`UPDATE users SET
		    is_premium = $3, total_xp = $4, level = $5,
		    current_streak = $6, longest_streak = $7, last_study_date = $8,
		    daily_flashcards_used = $9, daily_quizzes_used = $10, last_daily_reset = $11,
		    version = version + 1, updated_at = NOW()
		 WHERE id = $1 AND version = $2`,
		p.UserID, t.progress.Version,
		p.IsPremium, p.TotalXP, p.Level,
		p.CurrentStreak, p.LongestStreak, p.LastStudyDate,
		p.DailyFlashcardsUsed, p.DailyQuizzesUsed, p.LastDailyReset,
	)
	if err != nil {
		return mapErr(err, "update progress")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err, "update progress")
	}
	if n == 0 {
		return fmt.Errorf("update progress for %s at version %d: %w", p.UserID, t.progress.Version, apperr.ErrPersistenceConflict)
	}

	t.progress = *p
	t.progress.Version++
	return nil
}

func (t *tx) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	return getDocument(ctx, t.tx, id)
}

func (t *tx) GetFlashcardSet(ctx context.Context, id int64) (*models.FlashcardSet, error) {
	return getFlashcardSet(ctx, t.tx, id)
}

func (t *tx) GetQuiz(ctx context.Context, id int64) (*models.Quiz, error) {
	return getQuiz(ctx, t.tx, id)
}

func (t *tx) AppendStudyEvent(ctx context.Context, e *models.StudyEvent) error {
	err := t.tx.QueryRowxContext(ctx,
		`INSERT INTO study_sessions (user_id, type, reference_id, cards_studied, correct_answers, xp_earned, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		e.UserID, e.Type, e.ReferenceID, e.CardsStudied, e.CorrectAnswers, e.XPEarned, e.CompletedAt,
	).Scan(&e.ID)
	return mapErr(err, "append study session")
}

func (t *tx) AppendQuizAttempt(ctx context.Context, a *models.QuizAttempt) error {
	err := t.tx.QueryRowxContext(ctx,
		`INSERT INTO quiz_attempts (user_id, quiz_id, score, total_questions, xp_earned, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		a.UserID, a.QuizID, a.Score, a.TotalQuestions, a.XPEarned, a.CompletedAt,
	).Scan(&a.ID)
	return mapErr(err, "append quiz attempt")
}

func (t *tx) CreateFlashcardSet(ctx context.Context, set *models.FlashcardSet) error {
	set.CardCount = len(set.Flashcards)
	err := t.tx.QueryRowxContext(ctx,
		`INSERT INTO flashcard_sets (user_id, document_id, title, description, card_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		set.UserID, set.DocumentID, set.Title, set.Description, set.CardCount, set.CreatedAt,
	).Scan(&set.ID)
	if err != nil {
		return mapErr(err, "create flashcard set")
	}

	for i := range set.Flashcards {
		card := &set.Flashcards[i]
		card.SetID = set.ID
		err := t.tx.QueryRowxContext(ctx,
			`INSERT INTO flashcards (set_id, position, front, back, explanation)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			set.ID, i, card.Front, card.Back, card.Explanation,
		).Scan(&card.ID)
		if err != nil {
			return mapErr(err, fmt.Sprintf("create flashcard %d", i+1))
		}
	}
	return nil
}

func (t *tx) CreateQuiz(ctx context.Context, q *models.Quiz) error {
	q.QuestionCount = len(q.Questions)
	err := t.tx.QueryRowxContext(ctx,
		`INSERT INTO quizzes (user_id, document_id, title, question_count, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		q.UserID, q.DocumentID, q.Title, q.QuestionCount, q.CreatedAt,
	).Scan(&q.ID)
	if err != nil {
		return mapErr(err, "create quiz")
	}

	for i := range q.Questions {
		qq := &q.Questions[i]
		qq.QuizID = q.ID
		var options interface{}
		if qq.Type == models.QuestionMultipleChoice {
			options = pq.StringArray(qq.Options)
		}
		err := t.tx.QueryRowxContext(ctx,
			`INSERT INTO quiz_questions (quiz_id, position, type, question, options, correct_answer, explanation)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			q.ID, i, qq.Type, qq.Question, options, qq.CorrectAnswer, qq.Explanation,
		).Scan(&qq.ID)
		if err != nil {
			return mapErr(err, fmt.Sprintf("create quiz question %d", i+1))
		}
	}
	return nil
}
