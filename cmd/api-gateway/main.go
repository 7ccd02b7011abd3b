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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/substitution-api/api/swagger"
	"github.com/noah-isme/substitution-api/internal/handler"
	internalmiddleware "github.com/noah-isme/substitution-api/internal/middleware"
	"github.com/noah-isme/substitution-api/internal/models"
	"github.com/noah-isme/substitution-api/internal/repository"
	"github.com/noah-isme/substitution-api/internal/service"
	"github.com/noah-isme/substitution-api/pkg/cache"
	"github.com/noah-isme/substitution-api/pkg/config"
	"github.com/noah-isme/substitution-api/pkg/database"
	"github.com/noah-isme/substitution-api/pkg/jobs"
	"github.com/noah-isme/substitution-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/substitution-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/substitution-api/pkg/middleware/requestid"
	"github.com/noah-isme/substitution-api/pkg/storage"
	"github.com/noah-isme/substitution-api/pkg/timetable"
)

// @title Substitution Portal API
// @version 1.0.0
// @description Teacher timetables, substitute matching and coverage request review.
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

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Sugar().Fatalw("failed to run migrations", "error", err)
		}
	}

	var redisClient redis.UniversalClient
	if cfg.Roster.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, roster cache disabled", "error", err)
		} else {
			redisClient = client
			defer client.Close()
		}
	}

	activeTerm := models.Term{SchoolYear: cfg.Term.SchoolYear, Semester: cfg.Term.Semester}
	schoolDay, err := timetable.SchoolDay(cfg.Import.SchoolDayFrom, cfg.Import.SchoolDayTo)
	if err != nil {
		logr.Sugar().Fatalw("invalid school day", "error", err)
	}
	matcher, err := timetable.NewNameMatcher(cfg.Import.NameMatcher, cfg.Import.MaxEditDist)
	if err != nil {
		logr.Sugar().Fatalw("invalid name matcher", "error", err)
	}
	attachments, err := storage.NewFileStore(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare attachment storage", "error", err)
	}
	exportFiles, err := storage.NewFileStore(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}

	validate := validator.New()

	scheduleRepo := repository.NewScheduleRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	metricsSvc := service.NewMetricsService()
	rosterCache := service.NewRosterCache(cacheRepo, metricsSvc, cfg.Roster.CacheTTL, logr, cfg.Roster.CacheEnabled)
	identitySvc := service.NewIdentityService(userRepo, logr, service.IdentityConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})
	availabilitySvc := service.NewAvailabilityService(scheduleRepo, requestRepo, userRepo, requestRepo, schoolDay, logr)
	importSvc := service.NewImportService(scheduleRepo, userRepo, validate, logr,
		service.WithImportScanner(timetable.NewScanner(matcher, cfg.Import.BlankRowLimit)),
		service.WithImportRoster(rosterCache),
		service.WithImportMetrics(metricsSvc),
	)
	requestSvc := service.NewRequestService(requestRepo, scheduleRepo, availabilitySvc, userRepo, validate, logr,
		service.WithRequestAttachments(attachments, service.AttachmentConfig{
			PublicBaseURL: cfg.Attachments.PublicBaseURL,
			MaxSizeBytes:  cfg.Attachments.MaxFileSizeBytes,
			AllowedMIMEs:  cfg.Attachments.AllowedMIMEs,
		}),
		service.WithRequestMetrics(metricsSvc),
	)
	scheduleSvc := service.NewScheduleService(scheduleRepo, userRepo, rosterCache, userRepo, validate, logr)
	rosterSvc := service.NewRosterService(scheduleRepo, rosterCache, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(requestRepo, userRepo, logr)
	exportSvc := service.NewExportService(requestRepo, exportFiles,
		storage.NewURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL}, logr)

	maintenance := jobs.NewQueue("maintenance", service.NewMaintenanceWorker(exportSvc, logr).Handle, jobs.QueueConfig{Logger: logr})
	maintenance.Start(ctx)
	defer maintenance.Stop()
	maintenance.Every(ctx, time.Hour, service.JobPruneExports)

	requestHandler := handler.NewRequestHandler(requestSvc, activeTerm)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc, activeTerm)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc, activeTerm)
	rosterHandler := handler.NewRosterHandler(rosterSvc, activeTerm)
	importHandler := handler.NewImportHandler(importSvc, userRepo, activeTerm)
	userHandler := handler.NewUserHandler(userSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.Static("/attachments", attachments.Root())

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/exports/:token", exportHandler.Download)

	authed := api.Group("")
	authed.Use(internalmiddleware.JWT(identitySvc))

	authed.GET("/me", userHandler.Me)
	authed.GET("/me/schedules", scheduleHandler.Mine)
	authed.GET("/me/requests", requestHandler.Mine)
	authed.GET("/me/history", requestHandler.History)
	authed.POST("/requests", requestHandler.Submit)
	authed.GET("/requests/:id", requestHandler.Get)
	authed.GET("/departments", scheduleHandler.Departments)
	authed.GET("/departments/:name/teachers", rosterHandler.Teachers)
	authed.GET("/teachers/:id/schedules", internalmiddleware.RBAC(string(models.RoleAdmin), "SELF"), scheduleHandler.ListByTeacher)

	admin := authed.Group("")
	admin.Use(internalmiddleware.RequireRoles(models.RoleAdmin))

	admin.POST("/teachers/:id/schedules", scheduleHandler.Create)
	admin.DELETE("/schedules/:id", scheduleHandler.Delete)

	adminGroup := admin.Group("/admin")
	adminGroup.GET("/dashboard", dashboardHandler.Summary)
	adminGroup.GET("/availability", availabilityHandler.Find)
	adminGroup.GET("/requests", requestHandler.Queue)
	adminGroup.GET("/requests/:id/candidates", availabilityHandler.Candidates)
	adminGroup.POST("/requests/:id/approve", requestHandler.Approve)
	adminGroup.POST("/requests/:id/reject", requestHandler.Reject)
	adminGroup.GET("/substitutions", requestHandler.Substitutions)
	adminGroup.GET("/substitutions/export",
		internalmiddleware.Audit(userRepo, models.AuditActionExportCreate, models.AuditResourceExport),
		exportHandler.Substitutions)
	adminGroup.POST("/imports", importHandler.Bulk)
	adminGroup.GET("/teachers", userHandler.Directory)
	adminGroup.PATCH("/teachers/:id/role", userHandler.UpdateRole)
	adminGroup.GET("/metrics", metricsHandler.Snapshot)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "term", activeTerm.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
