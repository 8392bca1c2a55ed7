package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/solophp/taskqueue/internal/models"
	"github.com/solophp/taskqueue/internal/task"
)

// TaskHandler executes one claimed task. The queue never interprets the
// name; unrecognized names are the handler's to reject by returning an
// error.
type TaskHandler interface {
	Handle(ctx context.Context, name string, payload map[string]any) error
}

// TaskHandlerFunc adapts a plain function to TaskHandler.
type TaskHandlerFunc func(ctx context.Context, name string, payload map[string]any) error

func (f TaskHandlerFunc) Handle(ctx context.Context, name string, payload map[string]any) error {
	return f(ctx, name, payload)
}

const defaultBatchLimit = 10

// Processor drives the claim → handle → complete/fail cycle. The claim
// transaction commits the locks up front, and each task's outcome is
// recorded with its own statement afterwards, so no transaction stays open
// across handler execution.
type Processor struct {
	repo       task.TaskRepoInterface
	handler    TaskHandler
	batchLimit int
}

func NewProcessor(repo task.TaskRepoInterface, handler TaskHandler, batchLimit int) *Processor {
	if batchLimit < 1 {
		batchLimit = defaultBatchLimit
	}
	return &Processor{repo: repo, handler: handler, batchLimit: batchLimit}
}

// ProcessBatch claims one batch of due tasks, optionally filtered by
// payload type, and runs the handler on each. A failing task is recorded
// via MarkFailed and never aborts the rest of the batch. Returns the
// number of tasks claimed so callers can tell when the queue is drained.
func (p *Processor) ProcessBatch(ctx context.Context, payloadType string) (int, error) {
	tasks, err := p.repo.ClaimDue(ctx, p.batchLimit, payloadType)
	if err != nil {
		return 0, fmt.Errorf("claim due tasks: %w", err)
	}

	for i := range tasks {
		p.processOne(ctx, &tasks[i])
	}

	return len(tasks), nil
}

// RunUntilDrained repeats ProcessBatch until a batch comes back empty or
// the context is cancelled. Returns the total number of tasks processed.
func (p *Processor) RunUntilDrained(ctx context.Context, payloadType string) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := p.ProcessBatch(ctx, payloadType)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
	}
}

func (p *Processor) processOne(ctx context.Context, t *models.Task) {
	var payload map[string]any
	if len(t.Payload) > 0 {
		if err := json.Unmarshal(t.Payload, &payload); err != nil {
			// A corrupt stored payload counts as a handler failure, not a crash.
			p.fail(ctx, t.ID, fmt.Errorf("decode payload: %w", err))
			return
		}
	}

	if err := p.handler.Handle(ctx, t.Name, payload); err != nil {
		p.fail(ctx, t.ID, err)
		return
	}

	if err := p.repo.MarkCompleted(ctx, t.ID); err != nil {
		log.Printf("[worker] mark task %d completed: %v", t.ID, err)
	}
}

func (p *Processor) fail(ctx context.Context, id uint, taskErr error) {
	if err := p.repo.MarkFailed(ctx, id, taskErr); err != nil {
		log.Printf("[worker] mark task %d failed: %v", id, err)
	}
}
