package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/isavelev/yatube/internal/cache"
	"github.com/isavelev/yatube/internal/config"
	"github.com/isavelev/yatube/internal/domain"
	"github.com/isavelev/yatube/internal/events"
	"github.com/isavelev/yatube/internal/handler"
	"github.com/isavelev/yatube/internal/media"
	"github.com/isavelev/yatube/internal/repository"
	"github.com/isavelev/yatube/internal/service"
	"github.com/isavelev/yatube/pkg/auth"
	"github.com/isavelev/yatube/pkg/database"
	pkglog "github.com/isavelev/yatube/pkg/log"
	"github.com/isavelev/yatube/pkg/storage"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "yatube",
	})
	logger := pkglog.L()

	// 3. Init DB (GORM, auto-migrate models)
	dbConfig := &database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	db, err := database.New(dbConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get underlying sql.DB")
	}
	defer sqlDB.Close()

	if err := database.AutoMigrate(db,
		&domain.User{},
		&domain.Group{},
		&domain.Post{},
		&domain.Comment{},
		&domain.Follow{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	// 4. Init media storage
	var mediaStore storage.Storage
	var localStore *storage.LocalStorage
	switch cfg.Storage.Backend {
	case "s3":
		mediaStore, err = storage.NewS3Storage(context.Background(), cfg.Storage.S3)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init s3 storage")
		}
		logger.Info().Str("bucket", cfg.Storage.S3.Bucket).Msg("s3 media storage ready")
	default:
		localStore, err = storage.NewLocalStorage(cfg.Storage.Local)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init local storage")
		}
		mediaStore = localStore
		logger.Info().Str("path", localStore.BasePath()).Msg("local media storage ready")
	}

	// 5. Init page cache for the global feed
	var pageCache cache.PageCache
	switch cfg.Cache.Backend {
	case "redis":
		pageCache, err = cache.NewRedisPageCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis page cache connected")
	case "memory":
		pageCache = cache.NewMemoryPageCache()
	case "none":
		logger.Warn().Msg("global feed page cache disabled")
	default:
		logger.Fatal().Str("backend", cfg.Cache.Backend).Msg("unknown cache backend")
	}

	// 6. Init event publisher
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Brokers != "" {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka publisher, domain events disabled")
		} else {
			publisher = kp
			logger.Info().Str("topic", cfg.Kafka.Topic).Msg("kafka event publisher ready")
		}
	} else {
		logger.Warn().Msg("KAFKA_BROKERS not configured; domain events disabled")
	}
	defer publisher.Close()

	// 7. Sessions, repos, services
	sessions := auth.NewSessions(cfg.Session)

	userRepo := repository.NewGormUserRepository(db)
	groupRepo := repository.NewGormGroupRepository(db)
	postRepo := repository.NewGormPostRepository(db)
	commentRepo := repository.NewGormCommentRepository(db)
	followRepo := repository.NewGormFollowRepository(db)

	processor := media.NewProcessor(mediaStore)
	feedSvc := service.NewFeedService(userRepo, groupRepo, postRepo, commentRepo, followRepo, processor, publisher)
	authSvc := service.NewAuthService(userRepo)

	// 8. Setup Gin router + HTTP server
	httpHandler := handler.NewHandler(feedSvc, authSvc, sessions, mediaStore, pageCache, cfg.Cache.TTL)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	r.Use(sessions.Identify())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if localStore != nil {
		r.Static(localStore.URLPrefix(), localStore.BasePath())
	}
	httpHandler.RegisterRoutes(r)

	// 9. Start server goroutine
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Msg("yatube starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 10. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
	}

	if pageCache != nil {
		if err := pageCache.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing page cache")
		}
	}

	logger.Info().Msg("yatube stopped")
}
