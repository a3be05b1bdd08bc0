package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/studysage/backend/internal/auth"
	"github.com/studysage/backend/internal/clock"
	"github.com/studysage/backend/internal/config"
	"github.com/studysage/backend/internal/database"
	"github.com/studysage/backend/internal/gamification"
	"github.com/studysage/backend/internal/generator"
	"github.com/studysage/backend/internal/httputil"
	"github.com/studysage/backend/internal/jobs"
	"github.com/studysage/backend/internal/logger"
	"github.com/studysage/backend/internal/middleware"
	"github.com/studysage/backend/internal/quota"
	"github.com/studysage/backend/internal/store"
	"github.com/studysage/backend/internal/store/memory"
	"github.com/studysage/backend/internal/store/postgres"
	"github.com/studysage/backend/internal/study"
)

type handlers struct {
	auth         *auth.Handler
	gamification *gamification.Handler
	study        *study.Handler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Setup(cfg.AppLogLevel, cfg.AppLogFormat)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var st store.Store
	switch cfg.StoreDriver {
	case "memory":
		st = memory.New()
		log.Warn("[database] using in-memory store, data is lost on restart")
	default:
		db, err := database.Connect(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := database.Migrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		st = postgres.New(db)
	}

	// Initialize services and handlers
	clk := clock.Real{}
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL, clk)
	tracker := quota.NewTracker(quota.Limits{
		Flashcards: cfg.QuotaDailyFlashcards,
		Quizzes:    cfg.QuotaDailyQuizzes,
	}, loc)
	gen := generator.NewGenerator(cfg)

	gamificationService := gamification.NewService(st, clk, tracker, loc, cfg.TxMaxRetries)
	studyService := study.NewService(st, gen, clk, tracker, loc, cfg.TxMaxRetries, cfg.GenerationCount)

	h := handlers{
		auth:         auth.NewHandler(st, tokens, clk),
		gamification: gamification.NewHandler(gamificationService),
		study:        study.NewHandler(studyService, cfg.StripePaymentLink),
	}

	// Background jobs
	scheduler := jobs.NewScheduler(studyService, cfg.QuotaSweepSchedule, loc)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(newRouter(st, tokens, h)),
		ReadHeaderTimeout: 10 * time.Second,
		// Generation waits on the AI service.
		WriteTimeout: cfg.AITimeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

func newRouter(st store.Store, tokens *auth.Tokens, h handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Recovery, middleware.LoggerMiddleware)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", h.auth.Register).Methods("POST")
	api.HandleFunc("/auth/login", h.auth.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(tokens))
	protected.HandleFunc("/auth/me", h.auth.GetCurrentUser).Methods("GET")

	// Progress
	protected.HandleFunc("/progress", h.gamification.GetProgress).Methods("GET")

	// Documents
	protected.HandleFunc("/documents", h.study.CreateDocument).Methods("POST")
	protected.HandleFunc("/documents", h.study.ListDocuments).Methods("GET")
	protected.HandleFunc("/documents/{id:[0-9]+}", h.study.GetDocument).Methods("GET")
	protected.HandleFunc("/documents/{id:[0-9]+}/flashcards", h.study.GenerateFlashcards).Methods("POST")
	protected.HandleFunc("/documents/{id:[0-9]+}/quiz", h.study.GenerateQuiz).Methods("POST")

	// Flashcard sets
	protected.HandleFunc("/flashcard-sets", h.study.ListFlashcardSets).Methods("GET")
	protected.HandleFunc("/flashcard-sets/{id:[0-9]+}", h.study.GetFlashcardSet).Methods("GET")
	protected.HandleFunc("/flashcard-sets/{id:[0-9]+}/complete", h.gamification.CompleteFlashcardSet).Methods("POST")

	// Quizzes
	protected.HandleFunc("/quizzes", h.study.ListQuizzes).Methods("GET")
	protected.HandleFunc("/quizzes/{id:[0-9]+}", h.study.GetQuiz).Methods("GET")
	protected.HandleFunc("/quizzes/{id:[0-9]+}/complete", h.gamification.CompleteQuiz).Methods("POST")

	// Study sessions
	protected.HandleFunc("/study-sessions", h.study.ListStudySessions).Methods("GET")
	protected.HandleFunc("/study-sessions/export", h.study.ExportStudySessions).Methods("GET")

	// Payments
	protected.HandleFunc("/upgrade", h.study.Upgrade).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			log.WithError(err).Warn("[http] health check failed")
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	return r
}
