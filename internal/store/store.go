// Package store defines the persistence contracts the study and gamification
// services run against. Implementations live in store/postgres and store/memory.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/studysage/backend/internal/apperr"
	"github.com/studysage/backend/internal/models"
)

// Store is the non-transactional surface plus the per-user transaction entry point.
type Store interface {
	// CreateUser inserts the account together with default progress.
	CreateUser(ctx context.Context, u *models.User, p *models.UserProgress) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetProgress(ctx context.Context, userID uuid.UUID) (*models.UserProgress, error)
	// ListUsersWithUsage returns users whose daily counters are non-zero.
	ListUsersWithUsage(ctx context.Context) ([]uuid.UUID, error)

	CreateDocument(ctx context.Context, d *models.Document) error
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	ListDocuments(ctx context.Context, userID uuid.UUID) ([]models.Document, error)

	GetFlashcardSet(ctx context.Context, id int64) (*models.FlashcardSet, error)
	ListFlashcardSets(ctx context.Context, userID uuid.UUID) ([]models.FlashcardSet, error)
	GetQuiz(ctx context.Context, id int64) (*models.Quiz, error)
	ListQuizzes(ctx context.Context, userID uuid.UUID) ([]models.Quiz, error)

	// ListStudyEvents returns the newest events first; limit <= 0 returns all.
	ListStudyEvents(ctx context.Context, userID uuid.UUID, limit int) ([]models.StudyEvent, error)

	// WithinUserTx runs fn in a transaction that serialises writers for
	// userID. A lost race surfaces as apperr.ErrPersistenceConflict. The user
	// must exist, otherwise apperr.ErrNotFound is returned without calling fn.
	WithinUserTx(ctx context.Context, userID uuid.UUID, fn func(Tx) error) error

	Ping(ctx context.Context) error
}

// Tx is the view of the store inside WithinUserTx. Writes become visible
// only if fn returns nil and the commit succeeds.
type Tx interface {
	// Progress returns the user's progress as read at the start of the transaction.
	Progress(ctx context.Context) (*models.UserProgress, error)
	UpdateProgress(ctx context.Context, p *models.UserProgress) error

	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	GetFlashcardSet(ctx context.Context, id int64) (*models.FlashcardSet, error)
	GetQuiz(ctx context.Context, id int64) (*models.Quiz, error)

	AppendStudyEvent(ctx context.Context, e *models.StudyEvent) error
	AppendQuizAttempt(ctx context.Context, a *models.QuizAttempt) error
	CreateFlashcardSet(ctx context.Context, set *models.FlashcardSet) error
	CreateQuiz(ctx context.Context, q *models.Quiz) error
}

// WithRetry runs WithinUserTx, retrying up to maxRetries more times while the
// transaction loses to a concurrent writer. fn must derive everything from
// what it reads through tx so each attempt recomputes from fresh state.
func WithRetry(ctx context.Context, s Store, userID uuid.UUID, maxRetries int, fn func(Tx) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = s.WithinUserTx(ctx, userID, fn)
		if !errors.Is(err, apperr.ErrPersistenceConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.WithFields(log.Fields{
			"user_id": userID,
			"attempt": attempt + 1,
		}).Debug("[store] transaction conflict, retrying")
	}
	return err
}

// CheckOwner returns ErrAccessDenied when owner is not userID.
func CheckOwner(owner, userID uuid.UUID) error {
	if owner != userID {
		return apperr.ErrAccessDenied
	}
	return nil
}
