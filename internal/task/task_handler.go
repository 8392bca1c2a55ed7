package task

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/solophp/taskqueue/common"
	"github.com/solophp/taskqueue/internal/config"
	"github.com/solophp/taskqueue/internal/dto"
	"github.com/solophp/taskqueue/middleware"
)

type TaskHandler struct {
	service TaskServiceInterface
}

func NewTaskHandler(s TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: s}
}

var _ TaskHandlerInterface = (*TaskHandler)(nil)

// Create handles HTTP requests for enqueueing a new task.
// It validates and binds the request body, delegates to the TaskService,
// and returns HTTP 201 with the assigned id on success.
func (h *TaskHandler) Create(c *gin.Context) {
	var req dto.TaskCreateDTO

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	id, err := h.service.Enqueue(c.Request.Context(), &req)
	if err != nil {
		c.Error(mapServiceError(err))
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Get handles HTTP requests to fetch a task by its ID.
func (h *TaskHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, common.APIError{Message: "Invalid ID"})
		return
	}

	resp, err := h.service.GetTask(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, common.APIError{Message: "Task not found"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List handles HTTP requests to retrieve all tasks with a given status.
func (h *TaskHandler) List(c *gin.Context) {
	status := config.TaskStatus(c.Query("status"))
	if status == "" {
		status = config.TaskStatusPending
	}

	if !slices.Contains(config.AllowedStatuses, status) {
		c.JSON(http.StatusBadRequest, common.APIError{Message: "invalid status"})
		return
	}

	tasks, err := h.service.ListTasks(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.APIError{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, tasks)
}

func mapServiceError(err error) common.APIError {
	switch {
	case errors.Is(err, ErrEncoding):
		return common.Errf(http.StatusBadRequest, "%s", err.Error())
	case strings.Contains(err.Error(), "not found"):
		return common.Errf(http.StatusNotFound, "task not found")
	default:
		return common.Errf(http.StatusInternalServerError, "failed to enqueue task")
	}
}
