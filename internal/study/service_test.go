package study

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studysage/backend/internal/apperr"
	"github.com/studysage/backend/internal/clock"
	"github.com/studysage/backend/internal/generator"
	"github.com/studysage/backend/internal/models"
	"github.com/studysage/backend/internal/quota"
	"github.com/studysage/backend/internal/store"
	"github.com/studysage/backend/internal/store/memory"
)

var material = strings.Repeat("Mitochondria produce ATP through cellular respiration. ", 3)

// fakeGen returns canned content. wait, when set, blocks every call until
// it is closed so tests can line requests up.
type fakeGen struct {
	mu     sync.Mutex
	calls  int
	err    error
	title  string
	arrive chan struct{}
	wait   chan struct{}
}

func (g *fakeGen) enter() error {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.arrive != nil {
		g.arrive <- struct{}{}
	}
	if g.wait != nil {
		<-g.wait
	}
	return g.err
}

func (g *fakeGen) GenerateFlashcards(ctx context.Context, text string, count int) ([]generator.GeneratedFlashcard, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	cards := make([]generator.GeneratedFlashcard, count)
	for i := range cards {
		cards[i] = generator.GeneratedFlashcard{Front: "Q", Back: "A"}
	}
	return cards, nil
}

func (g *fakeGen) GenerateQuiz(ctx context.Context, text string, count int) ([]models.QuizQuestion, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	qs := make([]models.QuizQuestion, count)
	for i := range qs {
		qs[i] = models.QuizQuestion{Type: models.QuestionTrueFalse, Question: "Cells exist.", CorrectAnswer: "True"}
	}
	return qs, nil
}

func (g *fakeGen) ExtractTitle(ctx context.Context, text string) (string, error) {
	if err := g.enter(); err != nil {
		return "", err
	}
	return g.title, nil
}

type fixture struct {
	store  *memory.Store
	gen    *fakeGen
	svc    *Service
	now    time.Time
	userID uuid.UUID
	docID  int64
}

func newFixture(t *testing.T, limits quota.Limits) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		gen:   &fakeGen{title: "Cell Biology"},
		now:   time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	clk := clock.Func(func() time.Time { return f.now })
	f.svc = NewService(f.store, f.gen, clk, quota.NewTracker(limits, time.UTC), time.UTC, 5, 4)
	f.userID = f.addUser(t, "student@example.com")
	f.docID = f.addDocument(t, f.userID)
	return f
}

func (f *fixture) addUser(t *testing.T, email string) uuid.UUID {
	t.Helper()
	u := &models.User{Email: email, Name: "Student"}
	p := models.NewUserProgress(uuid.Nil, f.now)
	require.NoError(t, f.store.CreateUser(context.Background(), u, &p))
	return u.ID
}

func (f *fixture) addDocument(t *testing.T, owner uuid.UUID) int64 {
	t.Helper()
	doc := &models.Document{UserID: owner, Title: "Biology", Content: material, FileType: "txt", CreatedAt: f.now}
	require.NoError(t, f.store.CreateDocument(context.Background(), doc))
	return doc.ID
}

func (f *fixture) progress(t *testing.T) *models.UserProgress {
	t.Helper()
	p, err := f.store.GetProgress(context.Background(), f.userID)
	require.NoError(t, err)
	return p
}

func TestCreateDocument(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	ctx := context.Background()

	doc, err := f.svc.CreateDocument(ctx, f.userID, models.CreateDocumentRequest{Title: "  Notes  ", Content: material})
	require.NoError(t, err)
	assert.Equal(t, "Notes", doc.Title)
	assert.Equal(t, "txt", doc.FileType)
	assert.Equal(t, 0, f.gen.calls)

	doc, err = f.svc.CreateDocument(ctx, f.userID, models.CreateDocumentRequest{Content: material, FileType: "PDF"})
	require.NoError(t, err)
	assert.Equal(t, "Cell Biology", doc.Title)
	assert.Equal(t, "pdf", doc.FileType)

	f.gen.err = apperr.ErrUpstreamGeneration
	doc, err = f.svc.CreateDocument(ctx, f.userID, models.CreateDocumentRequest{Content: material})
	require.NoError(t, err)
	assert.Equal(t, "Untitled Document", doc.Title)

	docs, err := f.svc.ListDocuments(ctx, f.userID)
	require.NoError(t, err)
	assert.Len(t, docs, 4)
}

func TestCreateDocument_Invalid(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	ctx := context.Background()

	_, err := f.svc.CreateDocument(ctx, f.userID, models.CreateDocumentRequest{Content: "   too short   "})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = f.svc.CreateDocument(ctx, uuid.New(), models.CreateDocumentRequest{Content: material})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestGetDocument_Ownership(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	other := f.addUser(t, "other@example.com")

	_, err := f.svc.GetDocument(context.Background(), other, f.docID)
	assert.True(t, errors.Is(err, apperr.ErrAccessDenied))

	doc, err := f.svc.GetDocument(context.Background(), f.userID, f.docID)
	require.NoError(t, err)
	assert.Equal(t, material, doc.Content)
}

func TestGenerateFlashcards(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	ctx := context.Background()

	set, err := f.svc.GenerateFlashcards(ctx, f.userID, f.docID)
	require.NoError(t, err)
	assert.Equal(t, "Biology - Flashcards", set.Title)
	assert.Equal(t, "Generated from Biology", set.Description)
	assert.Equal(t, 4, set.CardCount)
	require.NotNil(t, set.DocumentID)
	assert.Equal(t, f.docID, *set.DocumentID)

	p := f.progress(t)
	assert.Equal(t, 1, p.DailyFlashcardsUsed)
	assert.Equal(t, 0, p.DailyQuizzesUsed)

	got, err := f.svc.GetFlashcardSet(ctx, f.userID, set.ID)
	require.NoError(t, err)
	assert.Len(t, got.Flashcards, 4)

	sets, err := f.svc.ListFlashcardSets(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Len(t, sets[0].Flashcards, 4, "listed sets carry their cards")
}

func TestGenerateQuiz(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	ctx := context.Background()

	quiz, err := f.svc.GenerateQuiz(ctx, f.userID, f.docID)
	require.NoError(t, err)
	assert.Equal(t, "Biology - Quiz", quiz.Title)
	assert.Equal(t, 4, quiz.QuestionCount)
	assert.Equal(t, 1, f.progress(t).DailyQuizzesUsed)

	_, err = f.svc.GetQuiz(ctx, f.addUser(t, "other@example.com"), quiz.ID)
	assert.True(t, errors.Is(err, apperr.ErrAccessDenied))

	quizzes, err := f.svc.ListQuizzes(ctx, f.userID)
	require.NoError(t, err)
	assert.Len(t, quizzes, 1)
}

func TestGenerate_QuotaExceeded(t *testing.T) {
	f := newFixture(t, quota.Limits{Flashcards: 2, Quizzes: 1})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.GenerateFlashcards(ctx, f.userID, f.docID)
		require.NoError(t, err)
	}
	calls := f.gen.calls

	_, err := f.svc.GenerateFlashcards(ctx, f.userID, f.docID)
	require.True(t, errors.Is(err, apperr.ErrQuotaExceeded))
	var qe *apperr.QuotaError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "flashcard", qe.Resource)
	assert.Equal(t, 2, qe.Limit)
	assert.Equal(t, calls, f.gen.calls, "AI must not be called once the quota is spent")

	// Quizzes are counted separately.
	_, err = f.svc.GenerateQuiz(ctx, f.userID, f.docID)
	require.NoError(t, err)

	// A new day starts fresh.
	f.now = f.now.Add(24 * time.Hour)
	_, err = f.svc.GenerateFlashcards(ctx, f.userID, f.docID)
	require.NoError(t, err)
	p := f.progress(t)
	assert.Equal(t, 1, p.DailyFlashcardsUsed)
	assert.Equal(t, 0, p.DailyQuizzesUsed)
}

func TestGenerate_PremiumBypassesQuota(t *testing.T) {
	f := newFixture(t, quota.Limits{Flashcards: 0, Quizzes: 0})
	f.store.SetPremium(f.userID, true)

	for i := 0; i < 3; i++ {
		_, err := f.svc.GenerateQuiz(context.Background(), f.userID, f.docID)
		require.NoError(t, err)
	}
}

func TestGenerate_UpstreamFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	f.gen.err = errors.New("model overloaded")
	ctx := context.Background()

	_, err := f.svc.GenerateFlashcards(ctx, f.userID, f.docID)
	assert.True(t, errors.Is(err, apperr.ErrUpstreamGeneration))
	_, err = f.svc.GenerateQuiz(ctx, f.userID, f.docID)
	assert.True(t, errors.Is(err, apperr.ErrUpstreamGeneration))

	p := f.progress(t)
	assert.Equal(t, 0, p.DailyFlashcardsUsed)
	assert.Equal(t, 0, p.DailyQuizzesUsed)
	sets, _ := f.svc.ListFlashcardSets(ctx, f.userID)
	assert.Empty(t, sets)
}

func TestGenerate_PreflightErrors(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	ctx := context.Background()
	other := f.addUser(t, "other@example.com")

	_, err := f.svc.GenerateFlashcards(ctx, other, f.docID)
	assert.True(t, errors.Is(err, apperr.ErrAccessDenied))
	_, err = f.svc.GenerateQuiz(ctx, f.userID, 4242)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = f.svc.GenerateQuiz(ctx, uuid.New(), f.docID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	assert.Equal(t, 0, f.gen.calls)
}

func TestGenerate_ConcurrentRequestsRespectLimit(t *testing.T) {
	f := newFixture(t, quota.Limits{Flashcards: 1, Quizzes: 1})
	f.gen.arrive = make(chan struct{})
	f.gen.wait = make(chan struct{})
	ctx := context.Background()

	const workers = 2
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.GenerateFlashcards(ctx, f.userID, f.docID)
		}(i)
	}

	// Both requests passed the preflight before either records usage.
	for i := 0; i < workers; i++ {
		select {
		case <-f.gen.arrive:
		case <-time.After(5 * time.Second):
			t.Fatal("requests did not reach the generator")
		}
	}
	close(f.gen.wait)
	wg.Wait()

	var ok, limited int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrQuotaExceeded):
			limited++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, limited)
	assert.Equal(t, 1, f.progress(t).DailyFlashcardsUsed)

	sets, _ := f.svc.ListFlashcardSets(ctx, f.userID)
	assert.Len(t, sets, 1)
}

func TestListStudySessions(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	ctx := context.Background()

	require.NoError(t, f.store.WithinUserTx(ctx, f.userID, func(tx store.Tx) error {
		for i := 0; i < 12; i++ {
			e := &models.StudyEvent{UserID: f.userID, Type: models.StudyFlashcard, ReferenceID: 1, XPEarned: 5, CardsStudied: 1, CompletedAt: f.now}
			if err := tx.AppendStudyEvent(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}))

	events, err := f.svc.ListStudySessions(ctx, f.userID, 0)
	require.NoError(t, err)
	assert.Len(t, events, DefaultSessionsLimit)

	events, err = f.svc.ListStudySessions(ctx, f.userID, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestSweepQuotas(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	ctx := context.Background()
	fresh := f.addUser(t, "fresh@example.com")

	_, err := f.svc.GenerateFlashcards(ctx, f.userID, f.docID)
	require.NoError(t, err)

	// Same day: nothing is stale.
	n, err := f.svc.SweepQuotas(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, f.progress(t).DailyFlashcardsUsed)

	f.now = f.now.Add(24 * time.Hour)
	n, err = f.svc.SweepQuotas(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p := f.progress(t)
	assert.Equal(t, 0, p.DailyFlashcardsUsed)
	require.NotNil(t, p.LastDailyReset)
	assert.True(t, p.LastDailyReset.Equal(f.now))

	fp, err := f.store.GetProgress(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, 0, fp.DailyFlashcardsUsed)
}
