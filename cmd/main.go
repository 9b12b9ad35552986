package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-messenger/internal/config"
	"github.com/weiawesome/wes-io-messenger/internal/domain"
	"github.com/weiawesome/wes-io-messenger/internal/handler"
	"github.com/weiawesome/wes-io-messenger/internal/hub"
	"github.com/weiawesome/wes-io-messenger/internal/idgen"
	"github.com/weiawesome/wes-io-messenger/internal/media"
	"github.com/weiawesome/wes-io-messenger/internal/persist"
	"github.com/weiawesome/wes-io-messenger/internal/presence"
	"github.com/weiawesome/wes-io-messenger/internal/repository"
	"github.com/weiawesome/wes-io-messenger/internal/service"
	"github.com/weiawesome/wes-io-messenger/pkg/database"
	"github.com/weiawesome/wes-io-messenger/pkg/log"
	"github.com/weiawesome/wes-io-messenger/pkg/pubsub"
	"github.com/weiawesome/wes-io-messenger/pkg/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := log.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Init(cfg.Log)
	l := log.L()

	err = config.Watch(func(next *config.Config) {
		log.SetLevel(next.Log.Level)
		l.Info().Str("level", next.Log.Level).Msg("config reloaded")
	})
	if err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		l.Warn().Err(err).Msg("config hot reload disabled")
	}
	if cfg.Log.Level == "debug" || cfg.Log.Level == "trace" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := database.New(&cfg.Database)
	if err != nil {
		l.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		l.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	repo := repository.NewGormRepository(db)
	if err := repo.EnsureGeneralChat(ctx); err != nil {
		l.Fatal().Err(err).Msg("failed to create general chat")
	}
	l.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	// Object storage
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		l.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to initialize storage")
	}

	// Presence mirror. Entries left by a previous run are stale.
	var mirror presence.Mirror = presence.NopMirror{}
	if cfg.Redis.Address != "" {
		mirror, err = presence.NewRedisMirror(presence.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			KeyTTL:   cfg.Redis.KeyTTL,
		})
		if err != nil {
			l.Fatal().Err(err).Str("address", cfg.Redis.Address).Msg("failed to connect presence mirror")
		}
		if err := mirror.Reset(ctx); err != nil {
			l.Warn().Err(err).Msg("failed to reset presence mirror")
		}
		l.Info().Str("address", cfg.Redis.Address).Msg("presence mirror enabled")
	}

	// Domain event stream
	publisher, err := pubsub.NewPublisher(cfg.Events)
	if err != nil {
		l.Fatal().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to initialize event publisher")
	}

	writer := persist.NewWriter(persist.Config{
		Workers:   cfg.Persist.Workers,
		QueueSize: cfg.Persist.QueueSize,
		Timeout:   cfg.Persist.Timeout,
	})

	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run(ctx)

	svc := service.NewMessengerService(service.Options{
		Hub:                    wsHub,
		Repo:                   repo,
		Writer:                 writer,
		Publisher:              publisher,
		EventPrefix:            cfg.Events.Prefix,
		Mirror:                 mirror,
		MessageIDs:             idgen.NewULIDGenerator(),
		IDs:                    idgen.NewUUIDGenerator(),
		VerifyCallParticipants: cfg.Calls.VerifyParticipants,
	})

	httpOpts := handler.HTTPOptions{MaxUploadSize: cfg.Server.MaxUploadSize}
	if cfg.Media.Enabled {
		httpOpts.Thumbnails = media.NewThumbnailer(store, cfg.Media)
	}
	if local, ok := store.(*storage.LocalStorage); ok {
		httpOpts.StaticPrefix = cfg.Storage.Local.URLPrefix
		httpOpts.StaticDir = local.BasePath()
	}
	api := handler.NewHandler(svc, repo, store, httpOpts)
	ws := handler.NewWSHandler(wsHub, svc, cfg.WebSocket, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler.NewRouter(wsHub, api, ws),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		l.Info().Str("addr", server.Addr).Msg("messenger listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info().Msg("shutting down messenger")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("server forced to shutdown")
	}

	// Stored online flags are not trusted across restarts; the live registry
	// is the source of presence, so late offline writes may be dropped here.
	wsHub.Stop()
	cancel()

	if err := writer.Close(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("persist queue not fully drained")
	}
	if err := publisher.Close(); err != nil {
		l.Warn().Err(err).Msg("failed to close event publisher")
	}
	if err := mirror.Close(); err != nil {
		l.Warn().Err(err).Msg("failed to close presence mirror")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	l.Info().Msg("messenger stopped")
}
