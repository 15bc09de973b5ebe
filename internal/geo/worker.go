package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/radar-feed/internal/observability"
	"github.com/google/uuid"
)

// ErrWorkerStopped is returned for requests that cannot be served because the
// worker has shut down.
var ErrWorkerStopped = errors.New("transform worker stopped")

type request struct {
	id    uuid.UUID
	grid  Grid
	reply chan response
}

type response struct {
	id     uuid.UUID
	result Result
	err    error
}

// Worker runs grid transforms on a single background goroutine. Requests are
// queued and served one at a time in arrival order; each caller receives
// exactly one reply.
type Worker struct {
	model   Model
	queue   chan request
	done    chan struct{}
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWorker creates a worker with a bounded request queue. Call Run to start it.
func NewWorker(model Model, queueSize int, logger *slog.Logger, metrics *observability.Metrics) *Worker {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Worker{
		model:   model,
		queue:   make(chan request, queueSize),
		done:    make(chan struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Run serves requests until the context is cancelled. Requests still queued
// at shutdown are answered with ErrWorkerStopped.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("transform worker started", "queue_size", cap(w.queue))
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.logger.Info("transform worker stopped", "reason", ctx.Err())
			return
		case req := <-w.queue:
			w.metrics.TransformQueueDepth.Set(float64(len(w.queue)))
			req.reply <- w.serve(req)
		}
	}
}

// Done is closed once Run has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) serve(req request) response {
	start := time.Now()
	result, err := Transform(req.grid, w.model)
	if err != nil {
		w.logger.Warn("transform rejected", "request_id", req.id, "error", err)
		return response{id: req.id, err: err}
	}
	w.metrics.TransformDuration.Observe(time.Since(start).Seconds())
	w.logger.Debug("transform complete",
		"request_id", req.id,
		"points", req.grid.Points(),
		"duration", time.Since(start),
	)
	return response{id: req.id, result: result}
}

func (w *Worker) drain() {
	for {
		select {
		case req := <-w.queue:
			req.reply <- response{id: req.id, err: ErrWorkerStopped}
		default:
			w.metrics.TransformQueueDepth.Set(0)
			return
		}
	}
}

// Submit queues a grid and waits for its transform. It blocks while the queue
// is full.
func (w *Worker) Submit(ctx context.Context, g Grid) (Result, error) {
	req := request{id: uuid.New(), grid: g, reply: make(chan response, 1)}

	select {
	case w.queue <- req:
		w.metrics.TransformQueueDepth.Set(float64(len(w.queue)))
	case <-w.done:
		return Result{}, ErrWorkerStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		return unwrapReply(req.id, resp)
	case <-w.done:
		// The worker may have answered just before exiting.
		select {
		case resp := <-req.reply:
			return unwrapReply(req.id, resp)
		default:
			return Result{}, ErrWorkerStopped
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func unwrapReply(id uuid.UUID, resp response) (Result, error) {
	if resp.id != id {
		return Result{}, fmt.Errorf("transform reply %s does not match request %s", resp.id, id)
	}
	return resp.result, resp.err
}
