package dispatch

import (
	"context"

	"github.com/rs/zerolog/log"

	"couponflow/internal/domain"
)

// Runtime is the execution context jobs are handed into. The scheduler's
// timer goroutine (and the HTTP trigger) only enqueue; all business logic
// runs on the runtime's own goroutine, keeping the hand-off boundary a
// single bounded channel.
type Runtime struct {
	engine *Engine
	jobs   chan domain.Job
}

func NewRuntime(engine *Engine, queueSize int) *Runtime {
	if queueSize <= 0 {
		queueSize = 8
	}
	return &Runtime{engine: engine, jobs: make(chan domain.Job, queueSize)}
}

// Submit enqueues a job without blocking. A full queue drops the job and
// reports false; the daily scheduler will not re-fire the slot, so drops are
// logged loudly.
func (r *Runtime) Submit(job domain.Job) bool {
	select {
	case r.jobs <- job:
		return true
	default:
		log.Error().Str("job", string(job.Kind)).Msg("job queue full, dropping job")
		return false
	}
}

// Run consumes jobs until ctx is canceled. Jobs run one at a time; the
// per-tenant fan-out inside a run provides the concurrency.
func (r *Runtime) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-r.jobs:
			r.engine.Run(ctx, job)
		}
	}
}
