package study

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/studysage/backend/internal/auth"
	"github.com/studysage/backend/internal/models"
	"github.com/studysage/backend/internal/quota"
)

func request(method string, userID uuid.UUID, id int64, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	r := httptest.NewRequest(method, "/", &buf)
	if userID != uuid.Nil {
		r = r.WithContext(auth.WithUserID(r.Context(), userID))
	}
	if id != 0 {
		r = mux.SetURLVars(r, map[string]string{"id": fmt.Sprint(id)})
	}
	return r
}

func TestHandler_CreateDocument(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	h := NewHandler(f.svc, "")

	rec := httptest.NewRecorder()
	h.CreateDocument(rec, request(http.MethodPost, f.userID, 0, models.CreateDocumentRequest{Title: "Chem", Content: material}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var doc models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Chem", doc.Title)
	assert.NotZero(t, doc.ID)

	rec = httptest.NewRecorder()
	h.ListDocuments(rec, request(http.MethodGet, f.userID, 0, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	assert.Len(t, docs, 2)
}

func TestHandler_Generate(t *testing.T) {
	f := newFixture(t, quota.Limits{Flashcards: 1, Quizzes: 1})
	h := NewHandler(f.svc, "")

	rec := httptest.NewRecorder()
	h.GenerateFlashcards(rec, request(http.MethodPost, f.userID, f.docID, nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var set models.FlashcardSet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &set))
	assert.Len(t, set.Flashcards, 4)

	rec = httptest.NewRecorder()
	h.GenerateFlashcards(rec, request(http.MethodPost, f.userID, f.docID, nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "Upgrade to Premium")

	rec = httptest.NewRecorder()
	h.GenerateQuiz(rec, request(http.MethodPost, f.userID, f.docID, nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHandler_Errors(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	h := NewHandler(f.svc, "")
	other := f.addUser(t, "other@example.com")

	tests := []struct {
		name    string
		handler http.HandlerFunc
		req     *http.Request
		status  int
	}{
		{"unauthenticated list", h.ListDocuments, request(http.MethodGet, uuid.Nil, 0, nil), http.StatusUnauthorized},
		{"unauthenticated generate", h.GenerateQuiz, request(http.MethodPost, uuid.Nil, f.docID, nil), http.StatusUnauthorized},
		{"short content", h.CreateDocument, request(http.MethodPost, f.userID, 0, models.CreateDocumentRequest{Content: "short"}), http.StatusBadRequest},
		{"bad id", h.GetDocument, request(http.MethodGet, f.userID, 0, nil), http.StatusBadRequest},
		{"missing document", h.GetDocument, request(http.MethodGet, f.userID, 999, nil), http.StatusNotFound},
		{"foreign document", h.GetDocument, request(http.MethodGet, other, f.docID, nil), http.StatusForbidden},
		{"foreign generate", h.GenerateFlashcards, request(http.MethodPost, other, f.docID, nil), http.StatusForbidden},
		{"missing set", h.GetFlashcardSet, request(http.MethodGet, f.userID, 999, nil), http.StatusNotFound},
		{"missing quiz", h.GetQuiz, request(http.MethodGet, f.userID, 999, nil), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_UpstreamFailure(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	f.gen.err = fmt.Errorf("timeout")
	h := NewHandler(f.svc, "")

	rec := httptest.NewRecorder()
	h.GenerateQuiz(rec, request(http.MethodPost, f.userID, f.docID, nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Retryable)
}

func TestHandler_ListsAreNeverNull(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	h := NewHandler(f.svc, "")

	for name, handler := range map[string]http.HandlerFunc{
		"sets":     h.ListFlashcardSets,
		"quizzes":  h.ListQuizzes,
		"sessions": h.ListStudySessions,
	} {
		rec := httptest.NewRecorder()
		handler(rec, request(http.MethodGet, f.userID, 0, nil))
		assert.Equal(t, http.StatusOK, rec.Code, name)
		assert.Equal(t, "[]\n", rec.Body.String(), name)
	}
}

func TestHandler_ExportStudySessions(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)
	h := NewHandler(f.svc, "")

	rec := httptest.NewRecorder()
	h.ExportStudySessions(rec, request(http.MethodGet, f.userID, 0, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "study-sessions-2024-03-10.xlsx")

	wb, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Completed At", rows[0][0])
	assert.Equal(t, "Total", rows[1][0])
}

func TestHandler_Upgrade(t *testing.T) {
	f := newFixture(t, quota.DefaultLimits)

	rec := httptest.NewRecorder()
	NewHandler(f.svc, "").Upgrade(rec, request(http.MethodGet, f.userID, 0, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	NewHandler(f.svc, "https://buy.stripe.com/test").Upgrade(rec, request(http.MethodGet, f.userID, 0, nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://buy.stripe.com/test", rec.Header().Get("Location"))
}
