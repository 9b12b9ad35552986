package handler

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/weiawesome/wes-io-messenger/internal/config"
	"github.com/weiawesome/wes-io-messenger/internal/domain"
	"github.com/weiawesome/wes-io-messenger/internal/hub"
	"github.com/weiawesome/wes-io-messenger/internal/media"
	"github.com/weiawesome/wes-io-messenger/internal/persist"
	"github.com/weiawesome/wes-io-messenger/internal/repository"
	"github.com/weiawesome/wes-io-messenger/internal/service"
	"github.com/weiawesome/wes-io-messenger/pkg/storage"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   5 * time.Second,
		PongWait:       10 * time.Second,
		WriteWait:      2 * time.Second,
		MaxMessageSize: 64 << 10,
		SendBuffer:     32,
		OverflowPolicy: config.OverflowDisconnect,
	}
}

type testServer struct {
	router *gin.Engine
	repo   *repository.GormRepository
	hub    *hub.Hub
	writer *persist.Writer
	dir    string
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	repo := repository.NewGormRepository(db)
	if err := repo.EnsureGeneralChat(context.Background()); err != nil {
		t.Fatalf("ensure general: %v", err)
	}

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: dir, URLPrefix: "/uploads"})
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}

	w := persist.NewWriter(persist.Config{Workers: 2, QueueSize: 128})
	h := hub.NewHub(testWSConfig())
	t.Cleanup(func() {
		h.Stop()
		w.Close(context.Background())
		sqlDB.Close()
	})

	now := func() time.Time { return testNow }
	svc := service.NewMessengerService(service.Options{
		Hub:                    h,
		Repo:                   repo,
		Writer:                 w,
		VerifyCallParticipants: true,
	})
	api := NewHandler(svc, repo, store, HTTPOptions{
		MaxUploadSize: maxUpload,
		StaticPrefix:  "/uploads",
		StaticDir:     store.BasePath(),
		Thumbnails:    media.NewThumbnailer(store, media.Config{Width: 64, Height: 64}),
		Now:           now,
	})
	ws := NewWSHandler(h, svc, testWSConfig(), nil)

	return &testServer{router: NewRouter(h, api, ws), repo: repo, hub: h, writer: w, dir: dir}
}

func (s *testServer) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.writer.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}
