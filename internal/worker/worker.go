package worker

import (
	"context"
	"log"
	"time"
)

// Worker polls the queue, backing off exponentially while it is empty.
type Worker struct {
	ID          int
	processor   *Processor
	payloadType string
	quit        chan struct{}
}

func NewWorker(id int, processor *Processor, payloadType string) *Worker {
	return &Worker{ID: id, processor: processor, payloadType: payloadType, quit: make(chan struct{})}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		currentDelay := 1 * time.Second
		maxDelay := 60 * time.Second

		for {
			n, err := w.processor.ProcessBatch(ctx, w.payloadType)
			if err != nil {
				log.Printf("[worker %d] process batch: %v", w.ID, err)
			}

			if n > 0 {
				currentDelay = 1 * time.Second
			} else {
				currentDelay = min(currentDelay*2, maxDelay)
			}

			select {
			case <-time.After(currentDelay):
			case <-w.quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (w *Worker) Stop() { close(w.quit) }
