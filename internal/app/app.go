package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/notedeck/core/internal/config"
	"github.com/notedeck/core/internal/database"
	"github.com/notedeck/core/internal/middleware"
	"github.com/notedeck/core/internal/pkg/blob"
	"github.com/notedeck/core/internal/pkg/jwt"
	pkgredis "github.com/notedeck/core/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App wires configuration, storage, and the HTTP router together.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	redis  *pkgredis.Client
	store  blob.Store
	logger *zap.Logger
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	jwt.SetSecret(cfg.JWTSecret)

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	rdb, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	a := &App{
		cfg:    cfg,
		router: router,
		db:     db,
		redis:  rdb,
		store:  store,
		logger: logger,
	}
	a.registerRoutes()
	return a, nil
}

func buildStore(ctx context.Context, cfg *config.AppConfig) (blob.Store, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverS3:
		return blob.NewS3Store(ctx, cfg.Storage.S3.Region, cfg.Storage.S3.Bucket, cfg.Storage.S3.Prefix)
	default:
		return blob.NewLocalStore(cfg.Storage.Dir)
	}
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.DefaultConfig()
	c.AllowCredentials = true
	c.AddAllowHeaders("Authorization")

	if len(cfg.AllowedOrigins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
		return c
	}

	patterns := cfg.AllowedOrigins
	c.AllowOriginFunc = func(origin string) bool {
		host := extractOriginHost(origin)
		for _, pattern := range patterns {
			if matchOriginPattern(extractOriginHost(pattern), host) {
				return true
			}
		}
		return false
	}
	return c
}

// Addr is the listen address derived from the configured port.
func (a *App) Addr() string {
	return ":" + strconv.Itoa(a.cfg.Port)
}

// Router exposes the gin engine for the HTTP server and tests.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Shutdown releases external connections.
func (a *App) Shutdown() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.redis.Raw().Close()
}
