package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/database"
	"github.com/stemsi/examguard-backend/internal/handler"
	"github.com/stemsi/examguard-backend/internal/i18n"
	"github.com/stemsi/examguard-backend/internal/logger"
	"github.com/stemsi/examguard-backend/internal/repository"
	"github.com/stemsi/examguard-backend/internal/router"
	"github.com/stemsi/examguard-backend/internal/service"
	"github.com/stemsi/examguard-backend/internal/validator"
	"github.com/stemsi/examguard-backend/internal/worker"
)

// workerDrainTimeout bounds how long shutdown waits for queues to flush.
const workerDrainTimeout = 15 * time.Second

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExamGuard Backend")

	// ─── Initialize Validator & Translations ───────────────────────────
	validator.Setup()
	if err := i18n.Init(cfg.AppLang, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to load translations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	teacherRepo := repository.NewTeacherRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	eventRepo := repository.NewProctorEventRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool, rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, teacherRepo, studentRepo)
	examService := service.NewExamService(examRepo, questionRepo, rdb, log)
	proctorService := service.NewProctorService(rdb, log)
	sessionService := service.NewExamSessionService(sessionRepo, answerRepo, examService, proctorService, rdb, log)
	dashboardService := service.NewDashboardService(examRepo, dashboardRepo, eventRepo)
	monitorService := service.NewMonitorService(monitorRepo, eventRepo, examService)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		Exam:          handler.NewExamHandler(examService, log),
		Dashboard:     handler.NewDashboardHandler(dashboardService),
		Monitor:       handler.NewMonitorHandler(monitorService, proctorService, log),
		StudentPortal: handler.NewStudentPortalHandler(sessionService),
		WS:            handler.NewWSHandler(sessionService, proctorService, log, cfg.AllowedOrigins),
		Camera:        handler.NewCameraHandler(rdb, sessionService, proctorService, cfg, log),
		Sessions:      handler.NewStudentSessionHandler(sessionService, authService, log),
		Health:        handler.NewHealthHandler(pool, rdb),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	// Workers get their own context so they keep draining after the HTTP
	// server has stopped taking requests.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var workers sync.WaitGroup
	for _, w := range []interface{ Start(context.Context) }{
		worker.NewAutosaveWorker(answerRepo, rdb, log),
		worker.NewProctorEventWorker(eventRepo, rdb, log),
		worker.NewSubmissionWorker(answerRepo, sessionRepo, rdb, log),
	} {
		workers.Add(1)
		go func() {
			defer workers.Done()
			w.Start(workerCtx)
		}()
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Active exam papers are loaded before accepting traffic so the first
	// wave of joins does not stampede PostgreSQL.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, examService, handlers, cfg, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	<-ctx.Done()
	stop()
	log.Info().Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	drained := make(chan struct{})
	go func() {
		workers.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(workerDrainTimeout):
		log.Warn().Dur("timeout", workerDrainTimeout).Msg("Workers did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}
