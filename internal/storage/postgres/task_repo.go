package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solophp/taskqueue/internal/config"
	"github.com/solophp/taskqueue/internal/models"
	"github.com/solophp/taskqueue/internal/task"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Options tunes the claim/retry behaviour of a TaskRepository.
type Options struct {
	// MaxRetries is the number of failures after which a task becomes
	// terminally failed. A task failed with retry_count already at this
	// value stays failed.
	MaxRetries int

	// LockTimeout is how long a claim may go unreleased before the row is
	// considered abandoned and becomes claimable again.
	LockTimeout time.Duration

	// DeleteOnSuccess removes completed rows instead of keeping them with
	// status completed.
	DeleteOnSuccess bool

	// RetryPolicy classifies failures and schedules retries. Zero value
	// falls back to DefaultRetryPolicy.
	RetryPolicy RetryPolicy
}

const (
	defaultMaxRetries  = 3
	defaultLockTimeout = 5 * time.Minute
)

type TaskRepository struct {
	db   *gorm.DB
	opts Options
}

func NewTaskRepository(db *gorm.DB, opts Options) *TaskRepository {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.RetryPolicy.Retryable == nil {
		opts.RetryPolicy.Retryable = DefaultRetryPolicy().Retryable
	}
	if opts.RetryPolicy.Delay == nil {
		opts.RetryPolicy.Delay = DefaultRetryPolicy().Delay
	}
	return &TaskRepository{db: db, opts: opts}
}

var _ task.TaskRepoInterface = (*TaskRepository)(nil)

// Create inserts a new task record into the database. It uses the provided
// context for cancellation and timeout propagation. Returns an error if the
// database operation fails.
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Get retrieves a single task record by its ID.
func (r *TaskRepository) Get(ctx context.Context, id uint) (*models.Task, error) {
	var t models.Task
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task not found: %w", err)
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

// ClaimDue atomically claims up to limit due tasks, optionally filtered by
// payload type. Eligible rows are pending tasks whose scheduled time has
// passed, plus in_progress tasks whose lock is older than the configured
// timeout (the previous claimant is presumed dead). Expired tasks are
// silently skipped. Selected rows are marked in_progress with locked_at set
// before the surrounding transaction commits, so no two concurrent claims
// can return the same task. On Postgres the select additionally uses
// FOR UPDATE SKIP LOCKED so concurrent claimants never block on each other.
//
// Results come back in ascending scheduled_at order. An empty slice is not
// an error.
func (r *TaskRepository) ClaimDue(ctx context.Context, limit int, payloadType string) ([]models.Task, error) {
	if limit < 1 {
		return nil, nil
	}

	now := time.Now().UTC()
	staleBefore := now.Add(-r.opts.LockTimeout)

	var claimed []models.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Task{}).
			Where("scheduled_at <= ?", now).
			Where("expires_at IS NULL OR expires_at > ?", now).
			Where("status = ? OR (status = ? AND locked_at <= ?)",
				config.TaskStatusPending, config.TaskStatusInProgress, staleBefore)

		if payloadType != "" {
			q = q.Where("payload_type = ?", payloadType)
		}

		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		if err := q.Order("scheduled_at asc").Limit(limit).Find(&claimed).Error; err != nil {
			return fmt.Errorf("select due tasks: %w", err)
		}

		if len(claimed) == 0 {
			return nil
		}

		ids := make([]uint, len(claimed))
		for i := range claimed {
			ids[i] = claimed[i].ID
		}

		res := tx.Model(&models.Task{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":    config.TaskStatusInProgress,
				"locked_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("lock claimed tasks: %w", res.Error)
		}

		lockedAt := now
		for i := range claimed {
			claimed[i].Status = config.TaskStatusInProgress
			claimed[i].LockedAt = &lockedAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// MarkCompleted releases a finished task: the row is deleted when the
// repository is configured with DeleteOnSuccess, otherwise it moves to
// completed with the lock cleared. Calling it again for an already
// completed or deleted task is a no-op.
func (r *TaskRepository) MarkCompleted(ctx context.Context, id uint) error {
	if r.opts.DeleteOnSuccess {
		if err := r.db.WithContext(ctx).Delete(&models.Task{}, id).Error; err != nil {
			return fmt.Errorf("delete completed task: %w", err)
		}
		return nil
	}

	res := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND status <> ?", id, config.TaskStatusCompleted).
		Updates(map[string]any{
			"status":    config.TaskStatusCompleted,
			"locked_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("mark task completed: %w", res.Error)
	}
	return nil
}

// MarkFailed records a failed attempt for a claimed task. The retry count
// always increments and the lock is cleared. The task returns to pending
// (with its next attempt pushed out by the policy's delay) unless the
// failure is classified non-retryable or the retry budget is exhausted, in
// which case it becomes terminally failed. The row is re-read under a row
// lock and updated inside one transaction so a concurrent reclaim cannot
// lose the failure.
func (r *TaskRepository) MarkFailed(ctx context.Context, id uint, taskErr error) error {
	msg := ""
	if taskErr != nil {
		msg = taskErr.Error()
	}
	retryable := r.opts.RetryPolicy.Retryable(taskErr)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var t models.Task
		if err := q.First(&t, "id = ?", id).Error; err != nil {
			return fmt.Errorf("load failed task: %w", err)
		}

		updates := map[string]any{
			"retry_count": t.RetryCount + 1,
			"error":       msg,
			"locked_at":   nil,
		}

		if !retryable || t.RetryCount >= r.opts.MaxRetries {
			updates["status"] = config.TaskStatusFailed
		} else {
			updates["status"] = config.TaskStatusPending
			if delay := r.opts.RetryPolicy.Delay(t.RetryCount + 1); delay > 0 {
				updates["scheduled_at"] = time.Now().UTC().Add(delay)
			}
		}

		if err := tx.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("mark task failed: %w", err)
		}
		return nil
	})
}

// ReleaseStale returns abandoned in_progress tasks to pending so they can
// be claimed again. Returns the number of rows released.
func (r *TaskRepository) ReleaseStale(ctx context.Context) (int64, error) {
	staleBefore := time.Now().UTC().Add(-r.opts.LockTimeout)

	res := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("status = ? AND locked_at <= ?", config.TaskStatusInProgress, staleBefore).
		Updates(map[string]any{
			"status":    config.TaskStatusPending,
			"locked_at": nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("release stale tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteExpired purges pending tasks whose expiry has passed. They would
// never be claimed anyway; this keeps the table from accumulating them.
func (r *TaskRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?",
			config.TaskStatusPending, time.Now().UTC()).
		Delete(&models.Task{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListByStatus retrieves all tasks with the given status.
func (r *TaskRepository) ListByStatus(ctx context.Context, status config.TaskStatus) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("scheduled_at asc").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}
