package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/audit"
	"github.com/stemsi/exstem-cms/internal/config"
	"github.com/stemsi/exstem-cms/internal/database"
	"github.com/stemsi/exstem-cms/internal/guard"
	"github.com/stemsi/exstem-cms/internal/handler"
	"github.com/stemsi/exstem-cms/internal/logger"
	"github.com/stemsi/exstem-cms/internal/metrics"
	"github.com/stemsi/exstem-cms/internal/middleware"
	"github.com/stemsi/exstem-cms/internal/repository"
	"github.com/stemsi/exstem-cms/internal/router"
	"github.com/stemsi/exstem-cms/internal/service"
	"github.com/stemsi/exstem-cms/internal/validator"
	"github.com/stemsi/exstem-cms/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem CMS")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

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
	authorRepo := repository.NewAuthorRepository(pool)
	bankRepo := repository.NewQuestionBankRepository(pool)
	taxonomyRepo := repository.NewTaxonomyRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	eventRepo := repository.NewSecurityEventRepository(pool)
	sessionRepo := repository.NewSessionRepository(rdb)

	// ─── Metrics & Audit ───────────────────────────────────────────────
	pipelineMetrics := metrics.New()
	auditor := audit.New(
		audit.Config{QueueSize: cfg.Audit.QueueSize, BatchSize: cfg.Audit.BatchSize},
		audit.MultiStore{audit.NewRedisStore(rdb), audit.NewLogStore(log)},
		log,
		audit.WithDropHook(pipelineMetrics.RecordAuditDrop),
	)

	// ─── Question Upsert Pipeline ──────────────────────────────────────
	pc := cfg.Pipeline
	pipeline := guard.NewQuestionUpsertPipeline(guard.Deps{
		RateLimit:         guard.RateLimitConfig{Burst: pc.RateLimitBurst, Window: pc.RateLimitWindow},
		ConcurrentSession: guard.ConcurrentSessionConfig{Limit: pc.SessionLimit, TTL: pc.SessionTTL},
		HijackPolicy: guard.HijackPolicy{
			IPMismatch:        guard.ParseMismatchAction(pc.IPMismatchAction),
			UserAgentMismatch: guard.ParseMismatchAction(pc.UserAgentMismatchAction),
		},
		SessionCheckBudget: pc.SessionCheckBudget,
		Ownership:          bankRepo,
		Taxonomy:           taxonomyRepo,
		Retrier: guard.NewBackoffRetrier(guard.RetryConfig{
			MaxAttempts:    pc.RetryMaxAttempts,
			InitialBackoff: pc.RetryInitialBackoff,
			MaxBackoff:     pc.RetryMaxBackoff,
		}),
		Audit:   auditor,
		Metrics: pipelineMetrics,
		Log:     log,
	})

	pipelineMetrics.TrackStateSize("question_rate_limit_tracked_callers",
		"Authors and anonymous client IPs currently holding a rate limit bucket.", pipeline.RateLimit.Tracked)
	pipelineMetrics.TrackStateSize("question_session_tracked_users",
		"Users currently holding at least one tracked session.", pipeline.ConcurrentSession.TrackedUsers)
	pipelineMetrics.TrackStateSize("security_audit_queue_pending",
		"Security events waiting in the in-process audit queue.", auditor.Pending)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, authorRepo, sessionRepo, pipeline)
	questionService := service.NewQuestionService(pipeline, questionRepo, log)
	securityService := service.NewSecurityService(eventRepo, sessionRepo, pipelineMetrics, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:     handler.NewAuthHandler(authService, log),
		Question: handler.NewQuestionHandler(questionService, log),
		Security: handler.NewSecurityHandler(securityService, pipelineMetrics, auditor,
			audit.NewFeed(rdb, log), log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(map[string]database.Check{
			"postgres": database.PostgresCheck(pool),
			"redis":    database.RedisCheck(rdb),
		}, rdb, pipelineMetrics, auditor, log),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	loginLimiter := middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
	r := router.SetupRouter(router.Deps{
		Auth:         authService,
		Metrics:      pipelineMetrics,
		LoginLimiter: loginLimiter,
		Log:          log,
	}, handlers, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Run Server & Background Workers ───────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	httpLog := logger.Component(log, "http_server")

	g.Go(func() error {
		httpLog.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		httpLog.Info().Msg("Shutting down gracefully...")

		// Stop accepting new HTTP requests (5s timeout).
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		worker.NewAuditWorker(eventRepo, rdb, log).Start(gctx)
		return nil
	})
	g.Go(func() error {
		worker.NewMetricsReporter(pipelineMetrics, pc.MetricsReportInterval, log).Start(gctx)
		return nil
	})
	g.Go(func() error {
		pipeline.RunSweepers(gctx, pc.SweepInterval)
		return nil
	})
	g.Go(func() error {
		loginLimiter.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
	}

	// Drain security events still queued in memory into Redis.
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := auditor.Close(closeCtx); err != nil {
		log.Error().Err(err).Int("pending", auditor.Pending()).Msg("Audit queue not fully drained")
	}

	log.Info().Int64("audit_dropped", auditor.Dropped()).Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
