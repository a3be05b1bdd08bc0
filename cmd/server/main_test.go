package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studysage/backend/internal/auth"
	"github.com/studysage/backend/internal/clock"
	"github.com/studysage/backend/internal/config"
	"github.com/studysage/backend/internal/gamification"
	"github.com/studysage/backend/internal/generator"
	"github.com/studysage/backend/internal/models"
	"github.com/studysage/backend/internal/quota"
	"github.com/studysage/backend/internal/store/memory"
	"github.com/studysage/backend/internal/study"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := memory.New()
	clk := clock.Real{}
	tokens := auth.NewTokens("0123456789abcdef", time.Hour, clk)
	tracker := quota.NewTracker(quota.DefaultLimits, time.UTC)
	gen := generator.NewGenerator(&config.Config{MockGenerator: true})

	h := handlers{
		auth:         auth.NewHandler(st, tokens, clk),
		gamification: gamification.NewHandler(gamification.NewService(st, clk, tracker, time.UTC, 3)),
		study:        study.NewHandler(study.NewService(st, gen, clk, tracker, time.UTC, 3, 5), ""),
	}
	srv := httptest.NewServer(newRouter(st, tokens, h))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestRouter_StudyFlow(t *testing.T) {
	srv := newTestServer(t)

	var reg models.AuthResponse
	status := call(t, srv, http.MethodPost, "/api/v1/auth/register", "",
		models.RegisterRequest{Email: "Student@Example.com", Name: "Sam", Password: "correct-horse"}, &reg)
	require.Equal(t, http.StatusCreated, status)
	token := reg.Token

	var doc models.Document
	status = call(t, srv, http.MethodPost, "/api/v1/documents", token,
		models.CreateDocumentRequest{Content: strings.Repeat("Enzymes lower activation energy. ", 4)}, &doc)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "[Mock] Study Notes", doc.Title)

	var set models.FlashcardSet
	status = call(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/documents/%d/flashcards", doc.ID), token, nil, &set)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 5, set.CardCount)

	var quiz models.Quiz
	status = call(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/documents/%d/quiz", doc.ID), token, nil, &quiz)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 5, quiz.QuestionCount)

	var done models.CompletionResponse
	status = call(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/flashcard-sets/%d/complete", set.ID), token,
		models.CompleteFlashcardsRequest{CardsStudied: 5, CorrectAnswers: 4}, &done)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(25), done.XPEarned)

	status = call(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/quizzes/%d/complete", quiz.ID), token,
		models.CompleteQuizRequest{Score: 5, TotalQuestions: 5}, &done)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, done.IsPerfect)

	var progress models.ProgressResponse
	status = call(t, srv, http.MethodGet, "/api/v1/progress", token, nil, &progress)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(100), progress.User.TotalXP)
	assert.Equal(t, 2, progress.User.Level)
	assert.Equal(t, 1, progress.Streak.Current)
	assert.Equal(t, 9, progress.Quota.FlashcardsRemaining)
	assert.Equal(t, 4, progress.Quota.QuizzesRemaining)

	var sessions []models.StudyEvent
	status = call(t, srv, http.MethodGet, "/api/v1/study-sessions", token, nil, &sessions)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, sessions, 2)
}

func TestRouter_Auth(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/api/v1/progress", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, srv, http.MethodGet, "/api/v1/documents", "bogus", nil, nil))
	assert.Equal(t, http.StatusOK, call(t, srv, http.MethodGet, "/health", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, call(t, srv, http.MethodGet, "/api/v1/documents/abc", "", nil, nil))
}
