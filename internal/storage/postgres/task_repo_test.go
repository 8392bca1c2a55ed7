package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/solophp/taskqueue/internal/config"
	"github.com/solophp/taskqueue/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T, opts Options) (*TaskRepository, *gorm.DB) {
	db := SetupTestDB(t)
	return NewTaskRepository(db, opts), db
}

func seedTask(t *testing.T, db *gorm.DB, task models.Task) models.Task {
	if task.Status == "" {
		task.Status = config.TaskStatusPending
	}
	if task.ScheduledAt.IsZero() {
		task.ScheduledAt = time.Now().UTC().Add(-time.Second)
	}
	require.NoError(t, db.Create(&task).Error)
	return task
}

func TestTaskRepository_Create(t *testing.T) {
	tests := []struct {
		name    string
		task    *models.Task
		wantErr bool
		setup   func(db *gorm.DB)
	}{
		{
			name: "success case",
			task: &models.Task{
				ID:          1,
				Name:        "send_email",
				Payload:     datatypes.JSON([]byte(`{"type":"email","to":"a@b.com"}`)),
				PayloadType: "email",
				ScheduledAt: time.Now().UTC(),
				Status:      config.TaskStatusPending,
			},
			wantErr: false,
		},
		{
			name: "db error on duplicate primary key",
			task: &models.Task{
				ID:   2,
				Name: "t",
			},
			setup: func(db *gorm.DB) {
				_ = db.Create(&models.Task{
					ID:   2,
					Name: "existing",
				}).Error
			},
			wantErr: true,
		},
		{
			name: "error when db connection is closed",
			task: &models.Task{
				ID:   3,
				Name: "t",
			},
			setup: func(db *gorm.DB) {
				sqlDB, _ := db.DB()
				sqlDB.Close()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, db := newTestRepo(t, Options{})

			if tt.setup != nil {
				tt.setup(db)
			}

			err := repo.Create(context.Background(), tt.task)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "create task")
				return
			}

			require.NoError(t, err)

			var saved models.Task
			require.NoError(t, db.First(&saved, tt.task.ID).Error)
			assert.Equal(t, tt.task.Name, saved.Name)
			assert.Equal(t, tt.task.PayloadType, saved.PayloadType)
			assert.Equal(t, config.TaskStatusPending, saved.Status)

			var payload map[string]any
			require.NoError(t, json.Unmarshal(saved.Payload, &payload))
			assert.Equal(t, "a@b.com", payload["to"])
		})
	}
}

func TestTaskRepository_ClaimDue_Visibility(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		task      models.Task
		wantClaim bool
	}{
		{
			name:      "due pending task is claimed",
			task:      models.Task{Name: "due", ScheduledAt: now.Add(-time.Second)},
			wantClaim: true,
		},
		{
			name:      "future scheduled task is invisible",
			task:      models.Task{Name: "future", ScheduledAt: future},
			wantClaim: false,
		},
		{
			name:      "expired task is silently skipped",
			task:      models.Task{Name: "expired", ScheduledAt: past, ExpiresAt: &past},
			wantClaim: false,
		},
		{
			name: "task expiring in the future is claimed",
			task: models.Task{
				Name: "expiring-later", ScheduledAt: past, ExpiresAt: &future,
			},
			wantClaim: true,
		},
		{
			name: "completed task is never claimed",
			task: models.Task{
				Name: "done", ScheduledAt: past, Status: config.TaskStatusCompleted,
			},
			wantClaim: false,
		},
		{
			name: "failed task is never claimed",
			task: models.Task{
				Name: "dead", ScheduledAt: past, Status: config.TaskStatusFailed,
			},
			wantClaim: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, db := newTestRepo(t, Options{})
			seedTask(t, db, tt.task)

			claimed, err := repo.ClaimDue(context.Background(), 10, "")
			require.NoError(t, err)

			if !tt.wantClaim {
				assert.Empty(t, claimed)
				return
			}

			require.Len(t, claimed, 1)
			assert.Equal(t, tt.task.Name, claimed[0].Name)
			assert.Equal(t, config.TaskStatusInProgress, claimed[0].Status)
			require.NotNil(t, claimed[0].LockedAt)

			// The lock must be visible in the database, not just on the
			// returned struct.
			var saved models.Task
			require.NoError(t, db.First(&saved, claimed[0].ID).Error)
			assert.Equal(t, config.TaskStatusInProgress, saved.Status)
			assert.NotNil(t, saved.LockedAt)
		})
	}
}

func TestTaskRepository_ClaimDue_OrderingAndLimit(t *testing.T) {
	repo, db := newTestRepo(t, Options{})
	now := time.Now().UTC()

	seedTask(t, db, models.Task{Name: "third", ScheduledAt: now.Add(-1 * time.Second)})
	seedTask(t, db, models.Task{Name: "first", ScheduledAt: now.Add(-3 * time.Second)})
	seedTask(t, db, models.Task{Name: "second", ScheduledAt: now.Add(-2 * time.Second)})

	claimed, err := repo.ClaimDue(context.Background(), 2, "")
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "first", claimed[0].Name)
	assert.Equal(t, "second", claimed[1].Name)

	// The remaining task is still claimable.
	rest, err := repo.ClaimDue(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "third", rest[0].Name)
}

func TestTaskRepository_ClaimDue_NoDoubleClaim(t *testing.T) {
	repo, db := newTestRepo(t, Options{})
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		seedTask(t, db, models.Task{Name: "push-task", PayloadType: "push", ScheduledAt: now.Add(-time.Minute)})
	}
	seedTask(t, db, models.Task{Name: "other", PayloadType: "email", ScheduledAt: now.Add(-time.Minute)})

	first, err := repo.ClaimDue(context.Background(), 3, "push")
	require.NoError(t, err)
	second, err := repo.ClaimDue(context.Background(), 5, "push")
	require.NoError(t, err)

	assert.Len(t, first, 3)
	assert.Len(t, second, 2)

	seen := map[uint]bool{}
	for _, tk := range append(first, second...) {
		assert.Equal(t, "push", tk.PayloadType)
		assert.False(t, seen[tk.ID], "task %d claimed twice", tk.ID)
		seen[tk.ID] = true
	}

	// Everything of the type is taken now.
	third, err := repo.ClaimDue(context.Background(), 5, "push")
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestTaskRepository_ClaimDue_StaleLockReclaim(t *testing.T) {
	repo, db := newTestRepo(t, Options{LockTimeout: 5 * time.Minute})
	now := time.Now().UTC()

	staleLock := now.Add(-10 * time.Minute)
	freshLock := now.Add(-1 * time.Minute)
	seedTask(t, db, models.Task{
		Name: "abandoned", ScheduledAt: now.Add(-time.Hour),
		Status: config.TaskStatusInProgress, LockedAt: &staleLock,
	})
	seedTask(t, db, models.Task{
		Name: "actively-held", ScheduledAt: now.Add(-time.Hour),
		Status: config.TaskStatusInProgress, LockedAt: &freshLock,
	})

	claimed, err := repo.ClaimDue(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "abandoned", claimed[0].Name)
}

func TestTaskRepository_ClaimDue_ZeroLimit(t *testing.T) {
	repo, db := newTestRepo(t, Options{})
	seedTask(t, db, models.Task{Name: "due"})

	claimed, err := repo.ClaimDue(context.Background(), 0, "")
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestTaskRepository_MarkCompleted(t *testing.T) {
	t.Run("sets completed and clears the lock", func(t *testing.T) {
		repo, db := newTestRepo(t, Options{})
		task := seedTask(t, db, models.Task{Name: "work"})

		claimed, err := repo.ClaimDue(context.Background(), 1, "")
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		require.NoError(t, repo.MarkCompleted(context.Background(), task.ID))

		var saved models.Task
		require.NoError(t, db.First(&saved, task.ID).Error)
		assert.Equal(t, config.TaskStatusCompleted, saved.Status)
		assert.Nil(t, saved.LockedAt)
	})

	t.Run("second call is a no-op", func(t *testing.T) {
		repo, db := newTestRepo(t, Options{})
		task := seedTask(t, db, models.Task{Name: "work"})

		require.NoError(t, repo.MarkCompleted(context.Background(), task.ID))
		require.NoError(t, repo.MarkCompleted(context.Background(), task.ID))
	})

	t.Run("deletes the row when configured", func(t *testing.T) {
		repo, db := newTestRepo(t, Options{DeleteOnSuccess: true})
		task := seedTask(t, db, models.Task{Name: "work"})

		require.NoError(t, repo.MarkCompleted(context.Background(), task.ID))

		var count int64
		require.NoError(t, db.Model(&models.Task{}).Where("id = ?", task.ID).Count(&count).Error)
		assert.Zero(t, count)

		// Deleting an already-deleted row is still fine.
		require.NoError(t, repo.MarkCompleted(context.Background(), task.ID))
	})
}

func TestTaskRepository_MarkFailed_RetryBound(t *testing.T) {
	repo, db := newTestRepo(t, Options{MaxRetries: 2})
	task := seedTask(t, db, models.Task{Name: "flaky"})
	ctx := context.Background()

	steps := []struct {
		wantStatus config.TaskStatus
		wantRetry  int
	}{
		{config.TaskStatusPending, 1},
		{config.TaskStatusPending, 2},
		{config.TaskStatusFailed, 3},
	}

	for i, step := range steps {
		require.NoError(t, repo.MarkFailed(ctx, task.ID, errors.New("boom")))

		var saved models.Task
		require.NoError(t, db.First(&saved, task.ID).Error)
		assert.Equal(t, step.wantStatus, saved.Status, "after failure %d", i+1)
		assert.Equal(t, step.wantRetry, saved.RetryCount, "after failure %d", i+1)
		assert.Equal(t, "boom", saved.Error)
		assert.Nil(t, saved.LockedAt)
	}
}

func TestTaskRepository_MarkFailed_ImmediatelyReclaimable(t *testing.T) {
	repo, db := newTestRepo(t, Options{MaxRetries: 3})
	task := seedTask(t, db, models.Task{Name: "flaky", ScheduledAt: time.Now().UTC().Add(-time.Minute)})
	ctx := context.Background()

	claimed, err := repo.ClaimDue(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, repo.MarkFailed(ctx, task.ID, errors.New("transient")))

	// Default policy has no backoff: the task is claimable right away.
	reclaimed, err := repo.ClaimDue(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, task.ID, reclaimed[0].ID)
	assert.Equal(t, 1, reclaimed[0].RetryCount)
}

func TestTaskRepository_MarkFailed_Backoff(t *testing.T) {
	repo, db := newTestRepo(t, Options{
		MaxRetries: 5,
		RetryPolicy: RetryPolicy{
			Delay: TieredBackoff(time.Minute, 10*time.Minute),
		},
	})
	task := seedTask(t, db, models.Task{Name: "flaky"})
	ctx := context.Background()

	before := time.Now().UTC()
	require.NoError(t, repo.MarkFailed(ctx, task.ID, errors.New("boom")))

	var saved models.Task
	require.NoError(t, db.First(&saved, task.ID).Error)
	assert.Equal(t, config.TaskStatusPending, saved.Status)
	assert.True(t, saved.ScheduledAt.After(before.Add(30*time.Second)),
		"first retry should be pushed out by the first tier, got %v", saved.ScheduledAt)

	require.NoError(t, repo.MarkFailed(ctx, task.ID, errors.New("boom")))
	require.NoError(t, db.First(&saved, task.ID).Error)
	assert.True(t, saved.ScheduledAt.After(before.Add(5*time.Minute)),
		"second retry should use the second tier, got %v", saved.ScheduledAt)
}

func TestTaskRepository_MarkFailed_NonRetryable(t *testing.T) {
	repo, db := newTestRepo(t, Options{
		MaxRetries:  5,
		RetryPolicy: RetryPolicy{Retryable: TransientOnly},
	})
	task := seedTask(t, db, models.Task{Name: "broken"})

	require.NoError(t, repo.MarkFailed(context.Background(), task.ID, errors.New("invalid payload shape")))

	var saved models.Task
	require.NoError(t, db.First(&saved, task.ID).Error)
	assert.Equal(t, config.TaskStatusFailed, saved.Status)
	assert.Equal(t, 1, saved.RetryCount)
}

func TestTaskRepository_MarkFailed_TransientStillRetries(t *testing.T) {
	repo, db := newTestRepo(t, Options{
		MaxRetries:  5,
		RetryPolicy: RetryPolicy{Retryable: TransientOnly},
	})
	task := seedTask(t, db, models.Task{Name: "slow-upstream"})

	require.NoError(t, repo.MarkFailed(context.Background(), task.ID, errors.New("request timed out")))

	var saved models.Task
	require.NoError(t, db.First(&saved, task.ID).Error)
	assert.Equal(t, config.TaskStatusPending, saved.Status)
}

func TestTaskRepository_ReleaseStale(t *testing.T) {
	repo, db := newTestRepo(t, Options{LockTimeout: 5 * time.Minute})
	now := time.Now().UTC()

	staleLock := now.Add(-10 * time.Minute)
	freshLock := now.Add(-time.Minute)
	stale := seedTask(t, db, models.Task{
		Name: "stale", Status: config.TaskStatusInProgress, LockedAt: &staleLock,
	})
	held := seedTask(t, db, models.Task{
		Name: "held", Status: config.TaskStatusInProgress, LockedAt: &freshLock,
	})

	n, err := repo.ReleaseStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var saved models.Task
	require.NoError(t, db.First(&saved, stale.ID).Error)
	assert.Equal(t, config.TaskStatusPending, saved.Status)
	assert.Nil(t, saved.LockedAt)

	var savedHeld models.Task
	require.NoError(t, db.First(&savedHeld, held.ID).Error)
	assert.Equal(t, config.TaskStatusInProgress, savedHeld.Status)
}

func TestTaskRepository_DeleteExpired(t *testing.T) {
	repo, db := newTestRepo(t, Options{})
	now := time.Now().UTC()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	expired := seedTask(t, db, models.Task{Name: "expired", ExpiresAt: &past})
	seedTask(t, db, models.Task{Name: "alive", ExpiresAt: &future})
	seedTask(t, db, models.Task{Name: "no-expiry"})

	n, err := repo.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var count int64
	require.NoError(t, db.Model(&models.Task{}).Where("id = ?", expired.ID).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, db.Model(&models.Task{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestTaskRepository_ListByStatus(t *testing.T) {
	repo, db := newTestRepo(t, Options{})

	seedTask(t, db, models.Task{Name: "a"})
	seedTask(t, db, models.Task{Name: "b", Status: config.TaskStatusFailed})

	pending, err := repo.ListByStatus(context.Background(), config.TaskStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a", pending[0].Name)

	failed, err := repo.ListByStatus(context.Background(), config.TaskStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].Name)
}

func TestTaskRepository_Get(t *testing.T) {
	repo, db := newTestRepo(t, Options{})
	task := seedTask(t, db, models.Task{Name: "lookup"})

	got, err := repo.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "lookup", got.Name)

	_, err = repo.Get(context.Background(), 9999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task not found")
}
