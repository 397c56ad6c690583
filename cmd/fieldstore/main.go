package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"fieldtrack-go/internal/logging"
	"fieldtrack-go/internal/store/config"
	"fieldtrack-go/internal/store/handlers"
	httpapi "fieldtrack-go/internal/store/http"
	"fieldtrack-go/internal/store/photos"
	"fieldtrack-go/internal/store/repos"
	"fieldtrack-go/internal/store/services"
)

func main() {
	_ = godotenv.Load(".env.local")
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := sql.Open("sqlite", cfg.DatabaseURL)
	if err != nil {
		logger.Errorf("open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := repos.Migrate(db); err != nil {
		logger.Errorf("migrate: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store    photos.Store
		photoDir string
	)
	if cfg.UseS3() {
		s3s, err := photos.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region)
		if err != nil {
			logger.Errorf("photo storage: %v", err)
			os.Exit(1)
		}
		store = s3s
		logger.Infof("photos stored in s3://%s", cfg.S3Bucket)
	} else {
		ds, err := photos.NewDirStore(cfg.PhotoDir, cfg.PublicURL)
		if err != nil {
			logger.Errorf("photo storage: %v", err)
			os.Exit(1)
		}
		store, photoDir = ds, ds.Dir()
		logger.Infof("photos stored in %s", photoDir)
	}

	svc := services.NewStoreService(repos.NewLocationRepo(db), store)
	h := handlers.NewStoreHandler(svc)
	r := httpapi.NewRouter(cfg, h, logger.Named("http"), photoDir)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("fieldstore listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("serve: %v", err)
		os.Exit(1)
	}
}
