package mocks

import (
	"context"

	"github.com/solophp/taskqueue/internal/config"
	"github.com/solophp/taskqueue/internal/dto"
	"github.com/stretchr/testify/mock"
)

type TaskServiceMock struct {
	mock.Mock
}

func (m *TaskServiceMock) Enqueue(ctx context.Context, d *dto.TaskCreateDTO) (uint, error) {
	args := m.Called(ctx, d)
	return args.Get(0).(uint), args.Error(1)
}

func (m *TaskServiceMock) GetTask(ctx context.Context, id uint) (*dto.TaskResponseDTO, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TaskResponseDTO), args.Error(1)
}

func (m *TaskServiceMock) ListTasks(ctx context.Context, status config.TaskStatus) ([]dto.TaskResponseDTO, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.TaskResponseDTO), args.Error(1)
}
