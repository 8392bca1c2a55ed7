package mocks

import (
	"context"

	"github.com/solophp/taskqueue/internal/config"
	"github.com/solophp/taskqueue/internal/models"
	"github.com/stretchr/testify/mock"
)

type TaskRepoMock struct {
	mock.Mock
}

func (m *TaskRepoMock) Create(ctx context.Context, t *models.Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *TaskRepoMock) Get(ctx context.Context, id uint) (*models.Task, error) {
	args := m.Called(ctx, id)

	t, _ := args.Get(0).(*models.Task)
	return t, args.Error(1)
}

func (m *TaskRepoMock) ClaimDue(ctx context.Context, limit int, payloadType string) ([]models.Task, error) {
	args := m.Called(ctx, limit, payloadType)

	tasks, _ := args.Get(0).([]models.Task)
	return tasks, args.Error(1)
}

func (m *TaskRepoMock) MarkCompleted(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *TaskRepoMock) MarkFailed(ctx context.Context, id uint, taskErr error) error {
	args := m.Called(ctx, id, taskErr)
	return args.Error(0)
}

func (m *TaskRepoMock) ReleaseStale(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TaskRepoMock) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TaskRepoMock) ListByStatus(ctx context.Context, status config.TaskStatus) ([]models.Task, error) {
	args := m.Called(ctx, status)

	tasks, _ := args.Get(0).([]models.Task)
	return tasks, args.Error(1)
}
