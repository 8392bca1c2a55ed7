package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// QueueConfig carries the queue-level settings shared by the API and the
// worker binaries.
type QueueConfig struct {
	MaxRetries      int           `env:"QUEUE_MAX_RETRIES,default=3"`
	LockTimeout     time.Duration `env:"QUEUE_LOCK_TIMEOUT,default=5m"`
	BatchLimit      int           `env:"QUEUE_BATCH_LIMIT,default=10"`
	DeleteOnSuccess bool          `env:"QUEUE_DELETE_ON_SUCCESS,default=false"`
	LockFile        string        `env:"QUEUE_LOCK_FILE,default=/tmp/taskqueue/worker.lock"`
	WorkerCount     int           `env:"WORKER_COUNT,default=4"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadQueueConfig(ctx context.Context) (*QueueConfig, error) {
	var cfg QueueConfig
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateQueueConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateQueueConfig(cfg *QueueConfig) error {
	var errors []string

	if cfg.MaxRetries < 0 {
		errors = append(errors, "QUEUE_MAX_RETRIES must be non-negative")
	}

	if cfg.LockTimeout <= 0 {
		errors = append(errors, "QUEUE_LOCK_TIMEOUT must be positive")
	}

	if cfg.BatchLimit < 1 {
		errors = append(errors, "QUEUE_BATCH_LIMIT must be at least 1")
	}

	if strings.TrimSpace(cfg.LockFile) == "" {
		errors = append(errors, "QUEUE_LOCK_FILE is required")
	}

	if cfg.WorkerCount < 1 {
		errors = append(errors, "WORKER_COUNT must be at least 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}
