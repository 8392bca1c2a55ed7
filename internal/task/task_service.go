package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solophp/taskqueue/internal/config"
	"github.com/solophp/taskqueue/internal/dto"
	"github.com/solophp/taskqueue/internal/models"
	"gorm.io/datatypes"
)

type TaskService struct {
	repo TaskRepoInterface
}

func NewTaskService(repo TaskRepoInterface) *TaskService {
	return &TaskService{repo: repo}
}

var _ TaskServiceInterface = (*TaskService)(nil)

// Enqueue validates the payload, fills in defaults and persists a new
// pending task. The scheduled time defaults to now; the payload type is
// taken from the payload's reserved "type" field when present. Returns the
// assigned task id. Payload problems surface as ErrEncoding, backend
// failures as ErrStore.
func (s *TaskService) Enqueue(ctx context.Context, d *dto.TaskCreateDTO) (uint, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}

	if d.Name == "" {
		return 0, fmt.Errorf("%w: task name is required", ErrEncoding)
	}

	if len(d.Payload) == 0 || !json.Valid(d.Payload) {
		return 0, fmt.Errorf("%w: payload must be valid JSON", ErrEncoding)
	}

	scheduledAt := time.Now().UTC()
	if d.ScheduledAt != nil {
		scheduledAt = d.ScheduledAt.UTC()
	}

	t := models.Task{
		Name:        d.Name,
		Payload:     datatypes.JSON(d.Payload),
		PayloadType: extractPayloadType(d.Payload),
		ScheduledAt: scheduledAt,
		ExpiresAt:   d.ExpiresAt,
		Status:      config.TaskStatusPending,
	}

	if err := s.repo.Create(ctx, &t); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}

	return t.ID, nil
}

// GetTask retrieves a task by its ID.
func (s *TaskService) GetTask(ctx context.Context, id uint) (*dto.TaskResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := toResponseDTO(t)
	return &resp, nil
}

// ListTasks retrieves all tasks with the given status.
func (s *TaskService) ListTasks(ctx context.Context, status config.TaskStatus) ([]dto.TaskResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	tasks, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	dtos := make([]dto.TaskResponseDTO, len(tasks))
	for i := range tasks {
		dtos[i] = toResponseDTO(&tasks[i])
	}
	return dtos, nil
}

// extractPayloadType pulls the reserved "type" field out of the payload.
// Payloads that are not JSON objects, or objects without a string "type",
// get the default type.
func extractPayloadType(raw json.RawMessage) string {
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tagged); err != nil || tagged.Type == "" {
		return config.DefaultPayloadType
	}
	return tagged.Type
}

func toResponseDTO(t *models.Task) dto.TaskResponseDTO {
	return dto.TaskResponseDTO{
		ID:          t.ID,
		Name:        t.Name,
		Payload:     json.RawMessage(t.Payload),
		PayloadType: t.PayloadType,
		Status:      string(t.Status),
		RetryCount:  t.RetryCount,
		Error:       t.Error,
		ScheduledAt: t.ScheduledAt,
		ExpiresAt:   t.ExpiresAt,
		LockedAt:    t.LockedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
