package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/safevoice-app/safevoice-api/api/swagger"
	"github.com/safevoice-app/safevoice-api/internal/handler"
	internalmiddleware "github.com/safevoice-app/safevoice-api/internal/middleware"
	"github.com/safevoice-app/safevoice-api/internal/repository"
	"github.com/safevoice-app/safevoice-api/internal/service"
	rediscache "github.com/safevoice-app/safevoice-api/pkg/cache"
	"github.com/safevoice-app/safevoice-api/pkg/config"
	"github.com/safevoice-app/safevoice-api/pkg/database"
	"github.com/safevoice-app/safevoice-api/pkg/evidence"
	"github.com/safevoice-app/safevoice-api/pkg/logger"
	corsmiddleware "github.com/safevoice-app/safevoice-api/pkg/middleware/cors"
	reqidmiddleware "github.com/safevoice-app/safevoice-api/pkg/middleware/requestid"
	"github.com/safevoice-app/safevoice-api/pkg/storage"
)

// @title SafeVoice API
// @version 1.0.0
// @description Anonymous incident reporting backend
// @BasePath /api/v1
// @schemes http https

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
	sugar := logr.Sugar()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := rediscache.NewRedis(cfg.Redis)
		if err != nil {
			sugar.Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	fileStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		sugar.Fatalw("failed to init export storage", "error", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	reportRepo := repository.NewReportRepository(db)
	userRepo := repository.NewUserRepository(db)
	inviteRepo := repository.NewInviteRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	auditSvc := service.NewAuditService(auditRepo, logr)
	userCache := service.NewCacheService(cacheRepo, metrics, cfg.Cache.UserTTL, logr, cacheRepo != nil)
	statsCache := service.NewCacheService(cacheRepo, metrics, cfg.Cache.StatsTTL, logr, cacheRepo != nil)

	authSvc := service.NewAuthService(userRepo, auditSvc, userCache, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})

	encoder := evidence.NewEncoder(cfg.Evidence.MaxFiles, cfg.Evidence.MaxFileSizeBytes, cfg.Evidence.AllowedMIMEs)
	reportSvc := service.NewReportService(reportRepo, encoder, auditSvc, statsCache, metrics, logr, cfg.Cache.StatsTTL)

	adminSvc := service.NewAdminService(userRepo, inviteRepo, auditSvc, authSvc, validate, logr, service.AdminConfig{
		InviteTTL: cfg.Invites.TTL,
		ResetTTL:  cfg.Resets.TTL,
	})

	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(reportRepo, fileStorage, signer, auditSvc, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Reports: handler.NewReportHandler(reportSvc, exportSvc),
		Auth:    handler.NewAuthHandler(authSvc),
		Admin:   handler.NewAdminHandler(adminSvc, auditSvc),
	}, authSvc)

	addr := fmt.Sprintf(":%d", cfg.Port)
	sugar.Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		sugar.Fatalw("server failed", "error", err)
	}
}
