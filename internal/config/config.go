package config

import (
	"fmt"
	"os"
	"strconv"
)

// Backend selectors for the key-value and object stores.
const (
	KVBadger = "badger"
	KVRedis  = "redis"

	ObjectFS  = "fs"
	ObjectGCS = "gcs"
)

type Config struct {
	HTTPAddr string
	DBDSN    string

	Storage StorageConfig

	// RabbitMQ (orphan-blob reconciliation). Empty URL disables publishing.
	RabbitURL   string
	RabbitQueue string

	SweeperConcurrency int
}

// StorageConfig is resolved once at startup. Either all three backends are
// usable or Validate reports a configuration error; nothing probes backend
// presence at request time.
type StorageConfig struct {
	KVBackend  string
	BadgerPath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ObjectBackend string
	ObjectPrefix  string
	FSRoot        string

	GCSBucket      string
	GCSCredentials string
}

func Load() Config {
	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	// DSN demo:
	// app:apppass@tcp(127.0.0.1:3306)/chatvault?charset=utf8mb4&parseTime=true&loc=Local
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "file:chatvault.db?_pragma=foreign_keys(1)"
	}

	kvBackend := os.Getenv("KV_BACKEND")
	if kvBackend == "" {
		kvBackend = KVBadger
	}

	badgerPath := os.Getenv("BADGER_PATH")
	if badgerPath == "" {
		badgerPath = "data/kv"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	objectBackend := os.Getenv("OBJECT_BACKEND")
	if objectBackend == "" {
		objectBackend = ObjectFS
	}

	fsRoot := os.Getenv("OBJECT_FS_ROOT")
	if fsRoot == "" {
		fsRoot = "data/objects"
	}

	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "chatvault_orphans"
	}

	sweeperConcurrency := 2
	if v := os.Getenv("SWEEPER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			sweeperConcurrency = n
		}
	}

	return Config{
		HTTPAddr: httpAddr,
		DBDSN:    dsn,

		Storage: StorageConfig{
			KVBackend:  kvBackend,
			BadgerPath: badgerPath,

			RedisAddr:     redisAddr,
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       redisDB,

			ObjectBackend: objectBackend,
			ObjectPrefix:  os.Getenv("OBJECT_PREFIX"),
			FSRoot:        fsRoot,

			GCSBucket:      os.Getenv("GCS_BUCKET"),
			GCSCredentials: os.Getenv("GCS_CREDENTIALS"),
		},

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: rabbitQueue,

		SweeperConcurrency: sweeperConcurrency,
	}
}

// Validate checks that the selected backends have what they need to start.
func (s StorageConfig) Validate() error {
	switch s.KVBackend {
	case KVBadger:
		if s.BadgerPath == "" {
			return fmt.Errorf("KV_BACKEND=badger requires BADGER_PATH")
		}
	case KVRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("KV_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unsupported KV_BACKEND=%q", s.KVBackend)
	}

	switch s.ObjectBackend {
	case ObjectFS:
		if s.FSRoot == "" {
			return fmt.Errorf("OBJECT_BACKEND=fs requires OBJECT_FS_ROOT")
		}
	case ObjectGCS:
		if s.GCSBucket == "" {
			return fmt.Errorf("OBJECT_BACKEND=gcs requires GCS_BUCKET")
		}
	default:
		return fmt.Errorf("unsupported OBJECT_BACKEND=%q", s.ObjectBackend)
	}
	return nil
}
