// Package processing runs document post-processing on a pool of goroutines
// when the backend has no Redis queue.
package processing

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/queue"
)

// ErrQueueFull is returned by Dispatch when the buffer is full.
var ErrQueueFull = errors.New("processing queue full")

// Handler processes one job.
type Handler interface {
	Process(ctx context.Context, payload queue.ProcessPayload) error
}

// Pool consumes jobs with a fixed number of workers.
type Pool struct {
	handler Handler
	queue   chan queue.ProcessPayload
	workers int
	log     *zap.Logger
	once    sync.Once
	wg      sync.WaitGroup
}

// New builds a Pool with queue capacity tied to worker count.
func New(handler Handler, workers int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		handler: handler,
		queue:   make(chan queue.ProcessPayload, workers*4),
		workers: workers,
		log:     log.With(zap.String("component", "processing")),
	}
}

// Start launches the workers once. They exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(ctx)
		}
	})
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() { p.wg.Wait() }

// Dispatch queues a job without blocking.
func (p *Pool) Dispatch(_ context.Context, payload queue.ProcessPayload) error {
	select {
	case p.queue <- payload:
		return nil
	default:
		p.log.Warn("queue full, dropping job", zap.String("documentId", payload.DocumentID))
		return ErrQueueFull
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			if err := p.handler.Process(ctx, job); err != nil {
				p.log.Warn("job failed", zap.String("documentId", job.DocumentID), zap.Error(err))
			}
		}
	}
}
