package main

import (
	"context"
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

	_ "github.com/canibunk/canibunk-api/api/swagger"
	"github.com/canibunk/canibunk-api/internal/client"
	"github.com/canibunk/canibunk-api/internal/handler"
	"github.com/canibunk/canibunk-api/internal/middleware"
	"github.com/canibunk/canibunk-api/internal/repository"
	"github.com/canibunk/canibunk-api/internal/service"
	"github.com/canibunk/canibunk-api/pkg/cache"
	"github.com/canibunk/canibunk-api/pkg/config"
	"github.com/canibunk/canibunk-api/pkg/database"
	"github.com/canibunk/canibunk-api/pkg/logger"
	corsmiddleware "github.com/canibunk/canibunk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/canibunk/canibunk-api/pkg/middleware/requestid"
)

// @title Can-I-Bunk API
// @version 1.0.0
// @description Attendance tracking and bunk advisory service
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	bunkRepo := repository.NewBunkRepository(db)
	tokenRepo := repository.NewCalendarTokenRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "canibunk-api",
	})
	subjectSvc := service.NewSubjectService(subjectRepo, cacheRepo, validate, logr)
	bunkSvc := service.NewBunkService(subjectRepo, bunkRepo, cacheRepo, logr)
	leaderboardSvc := service.NewLeaderboardService(bunkRepo, cacheRepo, metricsSvc, cfg.Leaderboard, logr)
	exportSvc := service.NewExportService(subjectRepo, bunkRepo, logr)

	var advisorySvc *service.AdvisoryService
	if cfg.Advisory.Enabled {
		weatherClient := client.NewWeatherClient(cfg.Advisory)
		geminiClient := client.NewGeminiClient(cfg.Advisory)
		advisorySvc = service.NewAdvisoryService(subjectRepo, weatherClient, geminiClient, cacheRepo, metricsSvc, cfg.Advisory, logr)
	} else {
		advisorySvc = service.NewAdvisoryService(subjectRepo, nil, nil, cacheRepo, metricsSvc, cfg.Advisory, logr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var calendarSvc *service.CalendarService
	if cfg.Calendar.Enabled {
		calendarClient := client.NewGoogleCalendarClient(cfg.Calendar)
		calendarSvc = service.NewCalendarService(tokenRepo, calendarClient, validate, logr, cfg.Calendar.QueueWorkers)
		calendarSvc.Start(ctx)
		defer calendarSvc.Stop()
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	bunkHandler := handler.NewBunkHandler(bunkSvc, metricsSvc)
	advisoryHandler := handler.NewAdvisoryHandler(advisorySvc)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	auth := middleware.JWT(authSvc)

	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/logout", auth, authHandler.Logout)
	api.GET("/auth/me", auth, authHandler.Me)

	api.GET("/subjects", auth, subjectHandler.List)
	api.POST("/subjects", auth, subjectHandler.Create)
	api.GET("/subjects/:id", auth, subjectHandler.Get)
	api.PUT("/subjects/:id", auth, subjectHandler.Update)
	api.DELETE("/subjects/:id", auth, subjectHandler.Delete)

	api.POST("/subjects/:id/bunk", auth, bunkHandler.Bunk)
	api.POST("/subjects/:id/attend", auth, bunkHandler.Attend)
	api.GET("/subjects/:id/advisory", auth, advisoryHandler.Advise)
	api.GET("/bunks/history", auth, bunkHandler.History)

	api.GET("/leaderboard", auth, leaderboardHandler.Overall)
	api.GET("/leaderboard/subject", auth, leaderboardHandler.BySubject)

	api.GET("/exports/history.csv", auth, exportHandler.HistoryCSV)
	api.GET("/exports/report.pdf", auth, exportHandler.SubjectsPDF)

	api.GET("/metrics/snapshot", auth, metricsHandler.Snapshot)

	if calendarSvc != nil {
		calendarHandler := handler.NewCalendarHandler(calendarSvc)
		api.GET("/calendar/connect", auth, calendarHandler.Connect)
		api.GET("/calendar/callback", calendarHandler.Callback)
		api.GET("/calendar/status", auth, calendarHandler.Status)
		api.DELETE("/calendar/disconnect", auth, calendarHandler.Disconnect)
		api.POST("/calendar/events", auth, calendarHandler.Schedule)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
