package pool

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/solophp/taskqueue/internal/task"
	"github.com/solophp/taskqueue/internal/worker"
)

type WorkerPool struct {
	workers []*worker.Worker
	repo    task.TaskRepoInterface
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewWorkerPool(count int, repo task.TaskRepoInterface, processor *worker.Processor, payloadType string) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{repo: repo, ctx: ctx, cancel: cancel}

	for i := 1; i <= count; i++ {
		p.workers = append(p.workers, worker.NewWorker(i, processor, payloadType))
	}
	return p
}

func (p *WorkerPool) Start() {
	for _, w := range p.workers {
		w.Start(p.ctx)
	}

	p.wg.Add(1)
	go p.janitor()
}

// janitor returns abandoned claims to pending and purges expired tasks.
func (p *WorkerPool) janitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n, err := p.repo.ReleaseStale(p.ctx); err != nil {
				log.Printf("[janitor] release stale tasks: %v", err)
			} else if n > 0 {
				log.Printf("[janitor] released %d stale tasks", n)
			}

			if n, err := p.repo.DeleteExpired(p.ctx); err != nil {
				log.Printf("[janitor] delete expired tasks: %v", err)
			} else if n > 0 {
				log.Printf("[janitor] deleted %d expired tasks", n)
			}
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *WorkerPool) Stop() {
	p.cancel()
	for _, w := range p.workers {
		w.Stop()
	}
	p.wg.Wait()
}
