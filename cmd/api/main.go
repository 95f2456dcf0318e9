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

	_ "github.com/ilmhub/qa-api/api/swagger"
	"github.com/ilmhub/qa-api/internal/handler"
	"github.com/ilmhub/qa-api/internal/middleware"
	"github.com/ilmhub/qa-api/internal/models"
	"github.com/ilmhub/qa-api/internal/repository"
	"github.com/ilmhub/qa-api/internal/service"
	"github.com/ilmhub/qa-api/pkg/cache"
	"github.com/ilmhub/qa-api/pkg/config"
	"github.com/ilmhub/qa-api/pkg/database"
	"github.com/ilmhub/qa-api/pkg/logger"
	corsmiddleware "github.com/ilmhub/qa-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ilmhub/qa-api/pkg/middleware/requestid"
)

// @title Q&A Platform API
// @version 1.0.0
// @description Question lifecycle API with role-gated moderation, assignment and answering
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Caching is an optimization. The API stays up without it.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	roleRequestRepo := repository.NewRoleRequestRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Questions.PublicListCacheTTL, logr, redisClient != nil)

	notificationSvc := service.NewNotificationService(notificationRepo, validate, logr)
	queue := notificationSvc.AttachQueue(cfg.Notifications.WorkerConcurrency, cfg.Notifications.QueueBuffer)
	metricsSvc.RegisterQueueDepth("notifications", queue.Depth)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "qa-api",
	})
	questionSvc := service.NewQuestionService(questionRepo, categoryRepo, notificationSvc, userRepo, cacheSvc, logr)
	assignmentSvc := service.NewAssignmentService(questionRepo, userRepo, notificationSvc, userRepo, logr)
	roleRequestSvc := service.NewRoleRequestService(roleRequestRepo, notificationSvc, userRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	categorySvc := service.NewCategoryService(categoryRepo, cacheSvc, cfg.Categories.CacheTTL, logr)
	exportSvc := service.NewExportService(questionRepo, cfg.Exports.Enabled, cfg.Exports.MaxRows, logr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(rootCtx)
	defer queue.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	questionHandler := handler.NewQuestionHandler(questionSvc, assignmentSvc)
	roleRequestHandler := handler.NewRoleRequestHandler(roleRequestSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	userHandler := handler.NewUserHandler(userSvc)
	categoryHandler := handler.NewCategoryHandler(categorySvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "notification_queue_depth": queue.Depth()})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth", middleware.NoStore())
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	scholarOnly := middleware.RequireRoles(models.RoleScholar)

	questions := api.Group("/questions")
	{
		questions.GET("", middleware.OptionalJWT(authSvc), questionHandler.List)
		questions.GET("/backlog", middleware.JWT(authSvc), adminOnly, questionHandler.Backlog)
		questions.GET("/:id", middleware.OptionalJWT(authSvc), questionHandler.Get)
		questions.POST("", middleware.JWT(authSvc), questionHandler.Create)
		questions.PUT("/:id", middleware.JWT(authSvc), questionHandler.Update)
		questions.POST("/:id/submit", middleware.JWT(authSvc), questionHandler.Submit)
		questions.POST("/:id/approve", middleware.JWT(authSvc), adminOnly, questionHandler.Approve)
		questions.POST("/:id/reject", middleware.JWT(authSvc), adminOnly, questionHandler.Reject)
		questions.POST("/:id/assign", middleware.JWT(authSvc), adminOnly, questionHandler.Assign)
		questions.POST("/:id/reassign", middleware.JWT(authSvc), adminOnly, questionHandler.Reassign)
		questions.POST("/:id/answer", middleware.JWT(authSvc), scholarOnly, questionHandler.Answer)
	}

	scholars := api.Group("/scholars", middleware.JWT(authSvc))
	{
		scholars.GET("/:id/queue", questionHandler.AssignedQueue)
		scholars.GET("/:id/answered", questionHandler.AnsweredQueue)
	}

	roleRequests := api.Group("/role-requests", middleware.JWT(authSvc))
	{
		roleRequests.POST("", roleRequestHandler.Submit)
		roleRequests.GET("", roleRequestHandler.List)
		roleRequests.GET("/:id", roleRequestHandler.Get)
		roleRequests.POST("/:id/approve", adminOnly, roleRequestHandler.Approve)
		roleRequests.POST("/:id/reject", adminOnly, roleRequestHandler.Reject)
	}

	notifications := api.Group("/notifications", middleware.JWT(authSvc), middleware.NoStore())
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/announce", adminOnly, notificationHandler.Announce)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		users.GET("", adminOnly, userHandler.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.SelfMarker), userHandler.Get)
		users.PUT("/:id/role", adminOnly, userHandler.UpdateRole)
		users.PUT("/:id/status", adminOnly, userHandler.UpdateStatus)
		users.DELETE("/:id", adminOnly, userHandler.Delete)
	}

	categories := api.Group("/categories", middleware.CachePublic(cfg.Categories.CacheTTL))
	{
		categories.GET("", categoryHandler.List)
		categories.GET("/:id", categoryHandler.Get)
	}

	exports := api.Group("/exports", middleware.JWT(authSvc), adminOnly, middleware.Audit(userRepo, models.AuditActionExport, "export"))
	{
		exports.GET("/answered", exportHandler.AnsweredArchive)
	}

	api.GET("/system/metrics", middleware.JWT(authSvc), adminOnly, metricsHandler.Snapshot)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
