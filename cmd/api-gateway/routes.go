package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/handler"
	"github.com/noah-isme/classroom-api/internal/middleware"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/service"
	"github.com/noah-isme/classroom-api/pkg/config"
	"github.com/noah-isme/classroom-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/classroom-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/classroom-api/pkg/middleware/requestid"
)

const uploadsPath = "/uploads"

func newRouter(cfg *config.Config, logr *zap.Logger, a *app, metrics *service.MetricsService, readiness map[string]handler.ReadinessCheck) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.MaxMultipartMemory = 8 << 20

	metricsHandler := handler.NewMetricsHandler(metrics, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Storage.Driver == config.StorageLocal && cfg.Storage.PublicBaseURL == "" {
		r.Static(uploadsPath, cfg.Storage.LocalDir)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(a.auth)
	schoolHandler := handler.NewSchoolHandler(a.schools)
	userHandler := handler.NewUserHandler(a.users)
	inviteHandler := handler.NewInviteHandler(a.invites)
	classHandler := handler.NewClassHandler(a.classes)
	assignmentHandler := handler.NewAssignmentHandler(a.assignments, a.submissions)
	postHandler := handler.NewPostHandler(a.posts)
	fileHandler := handler.NewFileHandler(a.files)
	yearBatchHandler := handler.NewYearBatchHandler(a.yearBatches)
	calendarHandler := handler.NewCalendarHandler(a.calendar)
	gradebookHandler := handler.NewGradebookHandler(a.gradebook, a.exports)
	uiStateHandler := handler.NewUIStateHandler(a.uiState)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/signup", authHandler.SignUp)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Signed links work without a session so browsers can follow them directly.
	api.GET("/files/:id/download", fileHandler.Download)
	api.GET("/exports/download", gradebookHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.auth), middleware.SessionGate(a.auth))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	secured.POST("/auth/logout", authHandler.Logout)
	secured.POST("/auth/change-password", authHandler.ChangePassword)
	secured.GET("/auth/me", authHandler.Me)

	schools := secured.Group("/schools/current")
	schools.GET("", schoolHandler.Current)
	schools.PUT("", adminOnly, schoolHandler.Update)
	schools.POST("/logo", adminOnly, schoolHandler.UploadLogo)
	schools.POST("/admins/:userId", adminOnly, schoolHandler.AddAdmin)
	schools.DELETE("/admins/:userId", adminOnly, schoolHandler.RemoveAdmin)

	users := secured.Group("/users")
	users.GET("", staff, userHandler.List)
	users.POST("/me/photo", userHandler.UploadPhoto)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Update)
	users.DELETE("/:id", adminOnly, userHandler.Delete)

	invites := secured.Group("/invites", adminOnly)
	invites.POST("", inviteHandler.Create)
	invites.GET("", inviteHandler.List)
	invites.DELETE("/:id", inviteHandler.Delete)
	invites.POST("/:id/resend", inviteHandler.Resend)

	classes := secured.Group("/classes")
	classes.GET("", classHandler.List)
	classes.POST("", staff, classHandler.Create)
	classes.GET("/:id", classHandler.Get)
	classes.PUT("/:id", staff, classHandler.Update)
	classes.PATCH("/:id/archive", staff, classHandler.Archive)
	classes.DELETE("/:id", staff, classHandler.Delete)
	classes.GET("/:id/students", classHandler.Roster)
	classes.POST("/:id/students", staff, classHandler.AddStudents)
	classes.DELETE("/:id/students/:studentId", staff, classHandler.RemoveStudent)
	classes.GET("/:id/assignments", assignmentHandler.List)
	classes.POST("/:id/assignments", staff, assignmentHandler.Create)
	classes.GET("/:id/posts", postHandler.List)
	classes.POST("/:id/posts", staff, postHandler.Create)
	classes.GET("/:id/files", fileHandler.List)
	classes.POST("/:id/files", staff, fileHandler.Upload)
	classes.POST("/:id/folders", staff, fileHandler.CreateFolder)
	classes.GET("/:id/gradebook", staff, gradebookHandler.Class)
	classes.GET("/:id/gradebook/export", staff, gradebookHandler.Export)

	assignments := secured.Group("/assignments")
	assignments.GET("/:id", assignmentHandler.Get)
	assignments.PUT("/:id", staff, assignmentHandler.Update)
	assignments.DELETE("/:id", staff, assignmentHandler.Delete)
	assignments.GET("/:id/submissions", staff, assignmentHandler.Submissions)
	assignments.POST("/:id/submit", studentOnly, assignmentHandler.Submit)
	secured.PUT("/submissions/:id/grade", staff, assignmentHandler.Grade)

	secured.PUT("/posts/:id", staff, postHandler.Update)
	secured.DELETE("/posts/:id", staff, postHandler.Delete)

	secured.DELETE("/files/:id", staff, fileHandler.DeleteFile)
	secured.DELETE("/folders/:id", staff, fileHandler.DeleteFolder)

	yearBatches := secured.Group("/year-batches")
	yearBatches.GET("", yearBatchHandler.List)
	yearBatches.GET("/:id", yearBatchHandler.Get)
	yearBatches.POST("", adminOnly, yearBatchHandler.Create)
	yearBatches.PUT("/:id", adminOnly, yearBatchHandler.Update)
	yearBatches.DELETE("/:id", adminOnly, yearBatchHandler.Delete)

	secured.GET("/calendar", calendarHandler.Window)
	secured.GET("/me/grades", studentOnly, gradebookHandler.MyGrades)

	uiState := secured.Group("/ui-state/:area")
	uiState.GET("", uiStateHandler.Get)
	uiState.POST("/actions", uiStateHandler.Dispatch)
	uiState.DELETE("", uiStateHandler.Reset)

	secured.GET("/admin/metrics", adminOnly, metricsHandler.Snapshot)

	if a.hub != nil {
		realtimeHandler := handler.NewRealtimeHandler(a.hub, cfg.Realtime.AllowedOrigins, logr)
		secured.GET("/ws", realtimeHandler.Connect)
	}

	return r
}
