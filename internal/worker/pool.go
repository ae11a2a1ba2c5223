package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrClosed is returned by Send after the pool has been closed.
var ErrClosed = errors.New("worker pool closed")

// PoolConfig sizes a Pool.
type PoolConfig struct {
	Workers   int
	QueueSize int
}

// workerContext is one worker: a goroutine draining its own inbox in order.
type workerContext struct {
	inbox   chan Request
	handler *Handler
	logger  *zap.Logger
}

func (w *workerContext) run(ctx context.Context, out chan<- Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.inbox:
			res, ok := w.handler.Handle(req)
			w.logger.Debug("[WORKER] handled",
				zap.String("operation", string(req.Operation)),
				zap.String("requestId", req.RequestID),
				zap.Bool("reply", ok))
			if !ok {
				continue
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Pool runs a fixed number of worker contexts. Requests are spread over
// them round-robin and all results come out of a single channel, in
// completion order.
type Pool struct {
	workers []*workerContext
	results chan Result
	next    uint64

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewPool starts cfg.Workers worker contexts that use handler.
func NewPool(handler *Handler, cfg PoolConfig, logger *zap.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		workers: make([]*workerContext, cfg.Workers),
		results: make(chan Result, cfg.QueueSize*cfg.Workers),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}

	for i := range p.workers {
		w := &workerContext{
			inbox:   make(chan Request, cfg.QueueSize),
			handler: handler,
			logger:  logger.With(zap.Int("worker", i)),
		}
		p.workers[i] = w
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run(ctx, p.results)
		}()
	}

	logger.Debug("[POOL] started", zap.Int("workers", cfg.Workers), zap.Int("queue", cfg.QueueSize))
	return p
}

// Send queues req on the next worker context. The payload is copied, so the
// caller may reuse its buffer. Send blocks while that worker's queue is full.
func (p *Pool) Send(ctx context.Context, req Request) error {
	if p.ctx.Err() != nil {
		return ErrClosed
	}
	req.Payload = append([]byte(nil), req.Payload...)

	n := atomic.AddUint64(&p.next, 1) - 1
	w := p.workers[n%uint64(len(p.workers))]

	select {
	case w.inbox <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrClosed
	}
}

// Results returns the channel on which all replies are delivered. It is
// closed by Close.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Close stops all worker contexts. Queued requests are abandoned.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		close(p.results)
		p.logger.Debug("[POOL] stopped")
	})
	return nil
}
