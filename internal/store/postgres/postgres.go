// Package postgres implements store.Store on PostgreSQL via sqlx and lib/pq.
// Per-user transactions lock the user row with SELECT ... FOR UPDATE and
// guard the progress write with the version column.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/studysage/backend/internal/apperr"
	"github.com/studysage/backend/internal/models"
	"github.com/studysage/backend/internal/store"
)

type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const progressColumns = `id, is_premium, total_xp, level, current_streak, longest_streak,
	last_study_date, daily_flashcards_used, daily_quizzes_used, last_daily_reset,
	version, updated_at`

const userColumns = `id, email, name, password, created_at, updated_at`

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// mapErr converts driver errors to the shared error kinds.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperr.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%s: %v: %w", what, pqErr.Message, apperr.ErrPersistenceConflict)
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", what, apperr.ErrDuplicate)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// ── Users ───────────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, u *models.User, p *models.UserProgress) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	p.UserID = u.ID

	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO users (id, email, name, password, is_premium, level, last_daily_reset)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Name, u.Password, p.IsPremium, p.Level, p.LastDailyReset,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return mapErr(err, "create user")
	}
	p.UpdatedAt = u.UpdatedAt
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, mapErr(err, "get user")
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	if err != nil {
		return nil, mapErr(err, "get user by email")
	}
	return &u, nil
}

func (s *Store) GetProgress(ctx context.Context, userID uuid.UUID) (*models.UserProgress, error) {
	var p models.UserProgress
	err := s.db.GetContext(ctx, &p, `SELECT `+progressColumns+` FROM users WHERE id = $1`, userID)
	if err != nil {
		return nil, mapErr(err, "get progress")
	}
	return &p, nil
}

func (s *Store) ListUsersWithUsage(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM users WHERE daily_flashcards_used > 0 OR daily_quizzes_used > 0`)
	if err != nil {
		return nil, mapErr(err, "list users with usage")
	}
	return ids, nil
}

// ── Documents ───────────────────────────────────────────

func (s *Store) CreateDocument(ctx context.Context, d *models.Document) error {
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO documents (user_id, title, content, file_type)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		d.UserID, d.Title, d.Content, d.FileType,
	).Scan(&d.ID, &d.CreatedAt)
	return mapErr(err, "create document")
}

func (s *Store) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	return getDocument(ctx, s.db, id)
}

func getDocument(ctx context.Context, q queryer, id int64) (*models.Document, error) {
	var d models.Document
	err := q.GetContext(ctx, &d,
		`SELECT id, user_id, title, content, file_type, created_at FROM documents WHERE id = $1`, id)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("document %d", id))
	}
	return &d, nil
}

func (s *Store) ListDocuments(ctx context.Context, userID uuid.UUID) ([]models.Document, error) {
	docs := []models.Document{}
	err := s.db.SelectContext(ctx, &docs,
		`SELECT id, user_id, title, '' AS content, file_type, created_at
		 FROM documents WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, mapErr(err, "list documents")
	}
	return docs, nil
}

// ── Flashcards ──────────────────────────────────────────

const setColumns = `id, user_id, document_id, title, description, card_count, created_at`

func (s *Store) GetFlashcardSet(ctx context.Context, id int64) (*models.FlashcardSet, error) {
	return getFlashcardSet(ctx, s.db, id)
}

func getFlashcardSet(ctx context.Context, q queryer, id int64) (*models.FlashcardSet, error) {
	var set models.FlashcardSet
	if err := q.GetContext(ctx, &set, `SELECT `+setColumns+` FROM flashcard_sets WHERE id = $1`, id); err != nil {
		return nil, mapErr(err, fmt.Sprintf("flashcard set %d", id))
	}

	set.Flashcards = []models.Flashcard{}
	err := q.SelectContext(ctx, &set.Flashcards,
		`SELECT id, set_id, front, back, explanation, times_studied, times_correct, last_studied
		 FROM flashcards WHERE set_id = $1 ORDER BY position, id`, id)
	if err != nil {
		return nil, mapErr(err, "list flashcards")
	}
	return &set, nil
}

func (s *Store) ListFlashcardSets(ctx context.Context, userID uuid.UUID) ([]models.FlashcardSet, error) {
	sets := []models.FlashcardSet{}
	err := s.db.SelectContext(ctx, &sets,
		`SELECT `+setColumns+` FROM flashcard_sets WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, mapErr(err, "list flashcard sets")
	}
	if len(sets) == 0 {
		return sets, nil
	}

	ids := make([]int64, len(sets))
	for i := range sets {
		ids[i] = sets[i].ID
	}
	var cards []models.Flashcard
	err = s.db.SelectContext(ctx, &cards,
		`SELECT id, set_id, front, back, explanation, times_studied, times_correct, last_studied
		 FROM flashcards WHERE set_id = ANY($1) ORDER BY set_id, position, id`, pq.Array(ids))
	if err != nil {
		return nil, mapErr(err, "list flashcards")
	}
	attachFlashcards(sets, cards)
	return sets, nil
}

// attachFlashcards distributes cards onto their sets, keeping card order.
func attachFlashcards(sets []models.FlashcardSet, cards []models.Flashcard) {
	bySet := make(map[int64]int, len(sets))
	for i := range sets {
		sets[i].Flashcards = []models.Flashcard{}
		bySet[sets[i].ID] = i
	}
	for _, c := range cards {
		if i, ok := bySet[c.SetID]; ok {
			sets[i].Flashcards = append(sets[i].Flashcards, c)
		}
	}
}

// ── Quizzes ─────────────────────────────────────────────

const quizColumns = `id, user_id, document_id, title, question_count, created_at`

// questionRow is quiz_questions as stored; Options is a nullable TEXT[].
type questionRow struct {
	ID            int64          `db:"id"`
	QuizID        int64          `db:"quiz_id"`
	Type          string         `db:"type"`
	Question      string         `db:"question"`
	Options       pq.StringArray `db:"options"`
	CorrectAnswer string         `db:"correct_answer"`
	Explanation   string         `db:"explanation"`
}

func (r questionRow) model() models.QuizQuestion {
	q := models.QuizQuestion{
		ID:            r.ID,
		QuizID:        r.QuizID,
		Type:          models.QuestionType(r.Type),
		Question:      r.Question,
		CorrectAnswer: r.CorrectAnswer,
		Explanation:   r.Explanation,
	}
	if len(r.Options) > 0 {
		q.Options = []string(r.Options)
	}
	return q
}

func (s *Store) GetQuiz(ctx context.Context, id int64) (*models.Quiz, error) {
	return getQuiz(ctx, s.db, id)
}

func getQuiz(ctx context.Context, q queryer, id int64) (*models.Quiz, error) {
	var quiz models.Quiz
	if err := q.GetContext(ctx, &quiz, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id); err != nil {
		return nil, mapErr(err, fmt.Sprintf("quiz %d", id))
	}

	var rows []questionRow
	err := q.SelectContext(ctx, &rows,
		`SELECT id, quiz_id, type, question, options, correct_answer, explanation
		 FROM quiz_questions WHERE quiz_id = $1 ORDER BY position, id`, id)
	if err != nil {
		return nil, mapErr(err, "list quiz questions")
	}
	quiz.Questions = make([]models.QuizQuestion, 0, len(rows))
	for _, r := range rows {
		quiz.Questions = append(quiz.Questions, r.model())
	}
	return &quiz, nil
}

func (s *Store) ListQuizzes(ctx context.Context, userID uuid.UUID) ([]models.Quiz, error) {
	quizzes := []models.Quiz{}
	err := s.db.SelectContext(ctx, &quizzes,
		`SELECT `+quizColumns+` FROM quizzes WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, mapErr(err, "list quizzes")
	}
	return quizzes, nil
}

// ── Study History ───────────────────────────────────────

func (s *Store) ListStudyEvents(ctx context.Context, userID uuid.UUID, limit int) ([]models.StudyEvent, error) {
	query := `SELECT id, user_id, type, reference_id, xp_earned, cards_studied, correct_answers, completed_at
		 FROM study_sessions WHERE user_id = $1
		 ORDER BY completed_at DESC, id DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	events := []models.StudyEvent{}
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, mapErr(err, "list study sessions")
	}
	return events, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
