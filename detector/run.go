package detector

import (
	"context"

	"imagedup/types"
)

// Callbacks notify the presentation collaborator about a run in flight. All
// callbacks are invoked from the run's goroutine; nil callbacks are skipped.
type Callbacks struct {
	Progress  ProgressFunc
	Completed func(result *Result)
	Error     func(message string)
}

// Run is a handle on a detection run executing in the background.
type Run struct {
	pipeline *Pipeline
	cancel   context.CancelFunc
	done     chan struct{}
	result   *Result
	err      error
}

// Start launches the pipeline on its own goroutine and returns a cancellable
// handle. The Error callback fires only for whole-run failures; a cancelled
// run completes normally with Result.State set to StateCancelled.
func Start(ctx context.Context, p *Pipeline, records []types.ImageRecord, cb Callbacks) *Run {
	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{pipeline: p, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(r.done)
		defer cancel()

		r.result, r.err = p.Run(runCtx, records, cb.Progress)
		if r.err != nil {
			if cb.Error != nil {
				cb.Error(r.err.Error())
			}
			return
		}
		if cb.Completed != nil {
			cb.Completed(r.result)
		}
	}()

	return r
}

// Cancel requests cooperative cancellation. The run keeps whatever groups
// were finalized before the request.
func (r *Run) Cancel() {
	r.cancel()
}

// Wait blocks until the run finishes and returns its outcome.
func (r *Run) Wait() (*Result, error) {
	<-r.done
	return r.result, r.err
}

// State reports the underlying pipeline state.
func (r *Run) State() types.RunState {
	return r.pipeline.State()
}
