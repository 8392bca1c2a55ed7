package task

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/solophp/taskqueue/internal/config"
	"github.com/solophp/taskqueue/internal/dto"
	"github.com/solophp/taskqueue/internal/models"
)

// TaskRepoInterface defines the contract for task repository operations.
type TaskRepoInterface interface {
	Create(ctx context.Context, t *models.Task) error
	Get(ctx context.Context, id uint) (*models.Task, error)
	ClaimDue(ctx context.Context, limit int, payloadType string) ([]models.Task, error)
	MarkCompleted(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, id uint, taskErr error) error
	ReleaseStale(ctx context.Context) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
	ListByStatus(ctx context.Context, status config.TaskStatus) ([]models.Task, error)
}

// TaskServiceInterface defines the contract for task business logic operations.
type TaskServiceInterface interface {
	Enqueue(ctx context.Context, d *dto.TaskCreateDTO) (uint, error)
	GetTask(ctx context.Context, id uint) (*dto.TaskResponseDTO, error)
	ListTasks(ctx context.Context, status config.TaskStatus) ([]dto.TaskResponseDTO, error)
}

// TaskHandlerInterface defines the contract for HTTP request handlers.
type TaskHandlerInterface interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
}
