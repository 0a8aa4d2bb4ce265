package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/dz-manifest-api/api/swagger"
	"github.com/noah-isme/dz-manifest-api/internal/bootstrap"
	"github.com/noah-isme/dz-manifest-api/internal/handler"
	"github.com/noah-isme/dz-manifest-api/internal/middleware"
	"github.com/noah-isme/dz-manifest-api/internal/models"
	"github.com/noah-isme/dz-manifest-api/internal/repository"
	"github.com/noah-isme/dz-manifest-api/internal/seed"
	"github.com/noah-isme/dz-manifest-api/internal/service"
	"github.com/noah-isme/dz-manifest-api/internal/store"
	"github.com/noah-isme/dz-manifest-api/pkg/config"
	"github.com/noah-isme/dz-manifest-api/pkg/jobs"
	"github.com/noah-isme/dz-manifest-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/dz-manifest-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/dz-manifest-api/pkg/middleware/requestid"
	"github.com/noah-isme/dz-manifest-api/pkg/storage"
)

// @title Drop Zone Manifest API
// @version 1.0.0
// @description Load scheduling, instructor rotation and countdown board for a skydiving drop zone
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	backend, err := bootstrap.OpenStore(ctx, cfg, logr, metrics)
	if err != nil {
		logr.Fatal("failed to open store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer backend.Close()
	go backend.Listen(ctx)

	tx := backend.Transactor
	loads := repository.NewLoadRepository(backend.Store, tx)
	queue := repository.NewQueueRepository(backend.Store, tx)
	instructors := repository.NewInstructorRepository(backend.Store, tx)
	groups := repository.NewGroupRepository(backend.Store, tx)
	periods := repository.NewPeriodRepository(backend.Store, tx)
	settingsRepo := repository.NewSettingsRepository(backend.Store, tx)

	if cfg.SeedFile != "" {
		fixture, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			logr.Fatal("failed to load seed fixture", zap.String("file", cfg.SeedFile), zap.Error(err))
		}
		sum, err := seed.Apply(ctx, fixture, seed.Targets{Instructors: instructors, Groups: groups, Queue: queue, Settings: settingsRepo}, time.Now().UTC())
		if err != nil {
			logr.Fatal("failed to apply seed fixture", zap.Error(err))
		}
		logr.Info("seed fixture applied", zap.String("file", cfg.SeedFile), zap.Int("instructors", sum.Instructors), zap.Int("queue", sum.Queue))
	}

	var audit middleware.AuditSink
	if backend.DB != nil {
		audit = repository.NewAuditRepository(backend.DB)
	}

	validate := validator.New()
	settingsSvc := service.NewSettingsService(settingsRepo, models.ManifestSettings{
		MinutesBetweenLoads:  cfg.Manifest.MinutesBetweenLoads,
		InstructorCycleTime:  cfg.Manifest.InstructorCycleTime,
		DefaultPlaneCapacity: cfg.Manifest.DefaultPlaneCapacity,
	}, validate, logr.Named("settings"), service.WithSettingsAudit(audit))

	reconcileSvc := service.NewReconcileService(loads, queue, jobs.QueueConfig{
		Workers:    cfg.Reconcile.Workers,
		MaxRetries: cfg.Reconcile.Retries,
		RetryDelay: cfg.Reconcile.RetryDelay,
	}, logr.Named("reconcile"), service.WithReconcileAudit(audit))
	reconcileSvc.Start(ctx)
	defer reconcileSvc.Stop()

	manifestSvc := service.NewManifestService(loads, queue, instructors, groups, settingsSvc, validate, logr.Named("manifest"),
		service.WithReconcileScheduler(reconcileSvc),
		service.WithMutationMetrics(metrics),
	)
	historySvc := service.NewHistoryService(manifestSvc, logr.Named("history"),
		service.WithHistoryLimit(cfg.History.Limit),
		service.WithHistoryAudit(audit),
	)

	statementFiles, err := storage.NewLocalStorage(cfg.Periods.StatementDir)
	if err != nil {
		logr.Fatal("failed to prepare statement storage", zap.Error(err))
	}
	periodOpts := []service.PeriodServiceOption{
		service.WithPeriodAudit(audit),
		service.WithStatementStorage(statementFiles, storage.NewSignedURLSigner(cfg.Periods.StatementSecret, cfg.Periods.StatementTTL)),
	}
	if cfg.Periods.ArchiveEnabled {
		periodOpts = append(periodOpts, service.WithPeriodArchive(repository.NewPeriodArchiveRepository(backend.DB)))
	}
	periodSvc := service.NewPeriodService(periods, loads, instructors, nil, validate, logr.Named("periods"), periodOpts...)
	suggestionSvc := service.NewSuggestionService(queue, loads, instructors, settingsSvc, periodSvc, logr.Named("suggestions"))

	boardSvc := service.NewBoardService(loads, settingsSvc, backend.Store,
		[]string{store.Key(repository.CollectionLoads, ""), store.Key(repository.CollectionSettings, "")},
		logr.Named("board"), service.WithBoardInterval(cfg.Board.TickInterval))
	go boardSvc.Run(ctx)

	authSvc := service.NewAuthService(validate, logr.Named("auth"), service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, cfg.APIPrefix+"/board/stream"))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, backend.Checks())
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:        authSvc,
		audit:       audit,
		logger:      logr,
		manifest:    handler.NewManifestHandler(manifestSvc, historySvc),
		history:     handler.NewHistoryHandler(historySvc),
		board:       handler.NewBoardHandler(boardSvc),
		instructors: handler.NewInstructorHandler(manifestSvc, suggestionSvc, periodSvc),
		periods:     handler.NewPeriodHandler(periodSvc),
		settings:    handler.NewSettingsHandler(settingsSvc),
		reconcile:   handler.NewReconcileHandler(reconcileSvc),
		me:          handler.NewAuthHandler(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

type routeDeps struct {
	auth        middleware.TokenValidator
	audit       middleware.AuditSink
	logger      *zap.Logger
	manifest    *handler.ManifestHandler
	history     *handler.HistoryHandler
	board       *handler.BoardHandler
	instructors *handler.InstructorHandler
	periods     *handler.PeriodHandler
	settings    *handler.SettingsHandler
	reconcile   *handler.ReconcileHandler
	me          *handler.AuthHandler
}

func registerRoutes(api *gin.RouterGroup, d routeDeps) {
	// The token in the link is the credential.
	api.GET("/statements/download",
		middleware.Audit(d.audit, d.logger, "STATEMENT_DOWNLOAD", "period", ""),
		d.periods.DownloadStatement)

	secured := api.Group("", middleware.JWT(d.auth))
	writers := middleware.RequireRoles(models.RoleAdmin, models.RoleManifest)
	admins := middleware.RequireRoles(models.RoleAdmin)

	secured.GET("/auth/me", d.me.Me)

	secured.GET("/loads", d.manifest.ListLoads)
	secured.POST("/loads", writers, d.manifest.CreateLoad)
	secured.POST("/loads/reorder", writers, d.manifest.ReorderLoads)
	secured.GET("/loads/:id", d.manifest.GetLoad)
	secured.DELETE("/loads/:id", writers, d.manifest.DeleteLoad)
	secured.GET("/loads/:id/countdown", d.board.Countdown)
	secured.POST("/loads/:id/transition", writers, d.manifest.Transition)
	secured.POST("/loads/:id/delay", writers, d.manifest.Delay)
	secured.POST("/loads/:id/assignments", writers, d.manifest.Assign)
	secured.PUT("/loads/:id/assignments/:assignmentId/instructors", writers, d.manifest.SetInstructors)
	secured.POST("/loads/:id/assignments/:assignmentId/move", writers, d.manifest.Move)
	secured.DELETE("/loads/:id/assignments/:assignmentId", writers, d.manifest.ReturnToQueue)
	secured.POST("/loads/:id/groups", writers, d.manifest.AssignGroup)
	secured.POST("/loads/:id/groups/:groupId/move", writers, d.manifest.MoveGroup)

	secured.GET("/queue", d.manifest.ListQueue)
	secured.POST("/reconcile", writers, d.reconcile.Run)

	secured.GET("/board", d.board.Snapshot)
	secured.GET("/board/stream", d.board.Stream)

	secured.GET("/instructors/suggestions", writers, d.instructors.Suggestions)
	secured.GET("/instructors/:id/availability", d.instructors.Availability)
	secured.GET("/instructors/:id/balance",
		middleware.RBAC(string(models.RoleAdmin), string(models.RoleManifest), middleware.RoleSelf),
		d.instructors.Balance)

	secured.GET("/periods", writers, d.periods.List)
	secured.POST("/periods", admins, d.periods.Open)
	secured.GET("/periods/:id/balances", writers, d.periods.Balances)
	secured.POST("/periods/:id/close", admins, d.periods.Close)
	secured.GET("/periods/:id/statement.pdf", writers, d.periods.Statement)
	secured.GET("/periods/:id/statement-link", writers,
		middleware.Audit(d.audit, d.logger, "STATEMENT_LINK", "period", "id"),
		d.periods.StatementLink)

	secured.GET("/history", d.history.List)
	secured.POST("/history/undo", writers, d.history.Undo)
	secured.POST("/history/redo", writers, d.history.Redo)

	secured.GET("/settings", d.settings.Get)
	secured.PUT("/settings", admins, d.settings.Update)
}
