// Package worker runs ingestion batches on a fixed pool so overlapping
// trigger firings proceed concurrently. Serialization, where needed, is the
// store's job, not the pool's.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/saviour-labs/alertfeed/internal/models"
)

// Batch is one trigger's worth of raw alerts for one subscriber.
type Batch struct {
	SubscriberID string
	Trigger      string // "foreground", "periodic", "location"
	Raws         []models.RawAlert
}

type ProcessFunc func(ctx context.Context, batch Batch) error

type Pool struct {
	numWorkers int
	batches    chan Batch
	processor  ProcessFunc
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewPool(numWorkers int, bufferSize int, processor ProcessFunc) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		batches:    make(chan Batch, bufferSize),
		processor:  processor,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-p.batches:
			if !ok {
				return
			}
			if err := p.processor(ctx, batch); err != nil {
				slog.Error("batch processing failed",
					"subscriber", batch.SubscriberID, "trigger", batch.Trigger, "error", err)
			}
		}
	}
}

// Submit queues a batch for processing. Batches submitted after Stop are
// dropped; triggers racing a shutdown must not panic the pipeline.
func (p *Pool) Submit(batch Batch) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		slog.Warn("batch dropped, pool stopped",
			"subscriber", batch.SubscriberID, "trigger", batch.Trigger)
		return
	}
	p.batches <- batch
}

func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.batches)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
