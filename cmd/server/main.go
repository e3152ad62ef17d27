package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/veltrane/chatvault/internal/chat"
	"github.com/veltrane/chatvault/internal/config"
	"github.com/veltrane/chatvault/internal/coordinator"
	"github.com/veltrane/chatvault/internal/db"
	"github.com/veltrane/chatvault/internal/events"
	"github.com/veltrane/chatvault/internal/files"
	"github.com/veltrane/chatvault/internal/httpapi"
	"github.com/veltrane/chatvault/internal/store/kvstore"
	"github.com/veltrane/chatvault/internal/store/objectstore"
)

func buildKV(cfg config.StorageConfig) (*kvstore.Store, error) {
	var (
		backend kvstore.Backend
		err     error
	)
	switch cfg.KVBackend {
	case config.KVRedis:
		backend = kvstore.NewRedisBackend(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		backend, err = kvstore.NewBadgerBackend(cfg.BadgerPath)
	}
	if err != nil {
		return nil, err
	}
	return kvstore.New(backend), nil
}

func buildObjects(ctx context.Context, cfg config.StorageConfig) (*objectstore.Store, error) {
	var (
		backend objectstore.Backend
		err     error
	)
	switch cfg.ObjectBackend {
	case config.ObjectGCS:
		backend, err = objectstore.NewGCSBackend(ctx, cfg.GCSBucket, cfg.GCSCredentials)
	default:
		backend = objectstore.NewFSBackend(cfg.FSRoot)
	}
	if err != nil {
		return nil, err
	}
	return objectstore.New(backend, cfg.ObjectPrefix), nil
}

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo})))

	cfg := config.Load()
	if err := cfg.Storage.Validate(); err != nil {
		slog.Error("invalid storage configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		slog.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	repo := chat.NewRepo(gdb)

	kv, err := buildKV(cfg.Storage)
	if err != nil {
		slog.Error("kv store open failed", "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	objects, err := buildObjects(ctx, cfg.Storage)
	if err != nil {
		slog.Error("object store open failed", "error", err)
		os.Exit(1)
	}

	var pub *events.Publisher
	if cfg.RabbitURL != "" {
		pub, err = events.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			slog.Error("rabbit connect failed", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
	}

	fm := files.NewManager(objects, repo, pub)
	coord := coordinator.New(repo, kv, objects, fm)
	if err := coord.Initialize(ctx); err != nil {
		slog.Error("schema initialization failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(coord),
	}

	go func() {
		slog.Info("server started", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}
