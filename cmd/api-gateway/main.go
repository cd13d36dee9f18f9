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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/classroom-api/api/swagger"
	"github.com/noah-isme/classroom-api/internal/handler"
	"github.com/noah-isme/classroom-api/internal/repository"
	"github.com/noah-isme/classroom-api/internal/service"
	"github.com/noah-isme/classroom-api/internal/uistate"
	"github.com/noah-isme/classroom-api/pkg/cache"
	"github.com/noah-isme/classroom-api/pkg/config"
	"github.com/noah-isme/classroom-api/pkg/database"
	"github.com/noah-isme/classroom-api/pkg/jobs"
	"github.com/noah-isme/classroom-api/pkg/logger"
	"github.com/noah-isme/classroom-api/pkg/mail"
	"github.com/noah-isme/classroom-api/pkg/realtime"
	"github.com/noah-isme/classroom-api/pkg/storage"
)

// @title Classroom API
// @version 1.0.0
// @description Multi-tenant school classroom backend: schools, invites, classes, coursework, files and grades.
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, query cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	store, closeStore, err := openStore(ctx, cfg.Storage, logr)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(context.Background()); err != nil {
			logr.Warn("close object store", zap.Error(err))
		}
	}()

	exportStore, err := storage.NewLocalStore(cfg.Gradebook.ExportDir, "")
	if err != nil {
		return fmt.Errorf("open export directory: %w", err)
	}

	metrics := service.NewMetricsService()

	var publisher service.InvalidationPublisher
	var hub *realtime.Hub
	if cfg.Realtime.Enabled {
		hub = realtime.NewHub(logr)
		go hub.Run(ctx)
		publisher = hub
		metrics.TrackRealtimeClients(hub.TotalClients)
	}

	var cacheRepo service.CacheRepository
	var uiStore uistate.Store = uistate.NewMemoryStore()
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		uiStore = uistate.NewRedisStore(redisClient, cfg.Cache.UIStateTTL)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, publisher, cfg.Cache.TTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	var sender mail.Sender = mail.NewLogSender(logr)
	if cfg.Mail.Provider == config.MailSendGrid {
		sender = mail.NewSendGridSender(cfg.Mail.SendGridAPIKey, cfg.Mail.FromName, cfg.Mail.FromAddress)
	}

	app := buildApp(cfg, logr, db, store, exportStore, cacheSvc, metrics, sender, uiStore, hub)

	inviteQueue := jobs.NewQueue("invite-mail", app.invites.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Mail.Workers,
		BufferSize: 256,
		MaxRetries: cfg.Mail.MaxRetries,
		RetryDelay: 10 * time.Second,
		Logger:     logr,
	})
	app.invites.UseQueue(inviteQueue)
	inviteQueue.Start(ctx)
	defer inviteQueue.Stop()

	scheduler := jobs.NewScheduler(logr, 5*time.Minute)
	if err := scheduler.Register("invite-expiry", cfg.Invites.SweepSchedule, app.invites.SweepExpired); err != nil {
		return err
	}
	if err := scheduler.Register("export-cleanup", cfg.Gradebook.CleanupSchedule, app.exports.Cleanup); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	readiness := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := newRouter(cfg, logr, app, metrics, readiness)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.StorageConfig, logr *zap.Logger) (storage.Store, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	switch cfg.Driver {
	case config.StorageGridFS:
		store, err := storage.NewGridFSStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.GridFSBucket, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open gridfs store: %w", err)
		}
		logr.Info("object storage ready", zap.String("driver", cfg.Driver), zap.String("bucket", cfg.GridFSBucket))
		return store, store.Close, nil
	case config.StorageB2:
		store, err := storage.NewB2Store(ctx, cfg.B2AccountID, cfg.B2AppKey, cfg.B2Bucket, cfg.B2PublicHost)
		if err != nil {
			return nil, nil, fmt.Errorf("open b2 store: %w", err)
		}
		logr.Info("object storage ready", zap.String("driver", cfg.Driver), zap.String("bucket", cfg.B2Bucket))
		return store, noop, nil
	default:
		store, err := storage.NewLocalStore(cfg.LocalDir, localBaseURL(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("open local store: %w", err)
		}
		logr.Info("object storage ready", zap.String("driver", config.StorageLocal), zap.String("dir", cfg.LocalDir))
		return store, noop, nil
	}
}

func localBaseURL(cfg config.StorageConfig) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}
	return uploadsPath
}

// app holds the wired services the router and background jobs need.
type app struct {
	auth        *service.AuthService
	schools     *service.SchoolService
	users       *service.UserService
	invites     *service.InviteService
	classes     *service.ClassService
	assignments *service.AssignmentService
	submissions *service.SubmissionService
	posts       *service.PostService
	files       *service.FileService
	yearBatches *service.YearBatchService
	calendar    *service.CalendarService
	gradebook   *service.GradebookService
	exports     *service.ExportService
	uiState     *service.UIStateService
	hub         *realtime.Hub
}

func buildApp(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, store storage.Store, exportStore *storage.LocalStore, cacheSvc *service.CacheService, metrics *service.MetricsService, sender mail.Sender, uiStore uistate.Store, hub *realtime.Hub) *app {
	userRepo := repository.NewUserRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	classRepo := repository.NewClassRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	postRepo := repository.NewPostRepository(db)
	fileRepo := repository.NewFileRepository(db)
	yearBatchRepo := repository.NewYearBatchRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	gradebookRepo := repository.NewGradebookRepository(db)

	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	exports := service.NewExportService(exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Gradebook.RetainFor,
	}, logr)

	return &app{
		auth: service.NewAuthService(userRepo, accountRepo, cacheSvc, metrics, nil, logr, service.AuthConfig{
			AccessTokenSecret:  cfg.JWT.Secret,
			AccessTokenExpiry:  cfg.JWT.Expiration,
			RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
			Issuer:             "classroom-api",
		}),
		schools: service.NewSchoolService(schoolRepo, userRepo, store, cacheSvc, nil, logr),
		users:   service.NewUserService(userRepo, store, cacheSvc, nil, logr),
		invites: service.NewInviteService(inviteRepo, schoolRepo, userRepo, sender, cacheSvc, metrics, nil, logr, service.InviteConfig{
			TTL:    cfg.Invites.TTL,
			AppURL: cfg.Mail.AppURL,
		}),
		classes:     service.NewClassService(classRepo, userRepo, store, cacheSvc, nil, logr),
		assignments: service.NewAssignmentService(assignmentRepo, classRepo, submissionRepo, cacheSvc, nil, logr),
		submissions: service.NewSubmissionService(submissionRepo, assignmentRepo, classRepo, userRepo, cacheSvc, nil, logr),
		posts:       service.NewPostService(postRepo, classRepo, assignmentRepo, cacheSvc, nil, logr),
		files: service.NewFileService(fileRepo, classRepo, store, signer, cacheSvc, nil, logr, service.FileConfig{
			MaxSize:      cfg.Storage.MaxFileSizeBytes,
			AllowedMIMEs: cfg.Storage.AllowedMIMEs,
			DownloadBase: cfg.APIPrefix + "/files",
		}),
		yearBatches: service.NewYearBatchService(yearBatchRepo, cacheSvc, nil, logr),
		calendar:    service.NewCalendarService(calendarRepo, logr),
		gradebook:   service.NewGradebookService(gradebookRepo, classRepo, assignmentRepo, exports, cacheSvc, logr),
		exports:     exports,
		uiState:     service.NewUIStateService(uiStore, nil, logr),
		hub:         hub,
	}
}
