// The sweeper reconciles orphan blobs: objects written to the store whose
// metadata row insert failed. It consumes orphan events and deletes the blob
// once it confirms no row exists for the id.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/veltrane/chatvault/internal/chat"
	"github.com/veltrane/chatvault/internal/config"
	"github.com/veltrane/chatvault/internal/db"
	"github.com/veltrane/chatvault/internal/events"
	"github.com/veltrane/chatvault/internal/store/objectstore"
)

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
	// Events carry fully composed keys, so no instance prefix here.
	return objectstore.New(backend, ""), nil
}

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo})))

	cfg := config.Load()
	if err := cfg.Storage.Validate(); err != nil {
		slog.Error("invalid storage configuration", "error", err)
		os.Exit(1)
	}
	if cfg.RabbitURL == "" {
		slog.Error("RABBIT_URL is required for the sweeper")
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

	objects, err := buildObjects(ctx, cfg.Storage)
	if err != nil {
		slog.Error("object store open failed", "error", err)
		os.Exit(1)
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		slog.Error("rabbit dial failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		slog.Error("rabbit channel failed", "error", err)
		os.Exit(1)
	}
	defer ch.Close()

	if err := events.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		slog.Error("queue declare failed", "error", err)
		os.Exit(1)
	}

	concurrency := cfg.SweeperConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		slog.Error("qos failed", "error", err)
		os.Exit(1)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		slog.Error("consume failed", "error", err)
		os.Exit(1)
	}

	slog.Info("sweeper started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				var o events.OrphanBlob
				if err := json.Unmarshal(d.Body, &o); err != nil || o.FileID == "" {
					slog.Error("bad orphan message", "worker", workerID, "error", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := sweep(ctx, repo, objects, o); err != nil {
					slog.Error("sweep failed", "worker", workerID, "id", o.FileID, "error", err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				slog.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			deliveries <- d
		}
	}
}

// sweep deletes the blob only when no metadata row exists for the id. A row
// means a retry got the insert through after the event fired; the blob is no
// orphan then.
func sweep(ctx context.Context, repo *chat.Repo, objects *objectstore.Store, o events.OrphanBlob) error {
	row, err := repo.GetFile(ctx, o.FileID)
	if err != nil {
		return err
	}
	if row != nil {
		slog.Info("row exists, keeping blob", "id", o.FileID)
		return nil
	}
	if err := objects.DeleteFile(ctx, o.Key); err != nil {
		return err
	}
	slog.Info("orphan blob removed", "id", o.FileID, "key", o.Key)
	return nil
}
