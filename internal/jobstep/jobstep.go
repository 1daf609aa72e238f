// Package jobstep provides a step-able, cancellable job abstraction
// for the two operations in the buffer core that can take measurable
// wall-clock time: executing a save recipe and scanning a large file
// for line boundaries.
//
// A Job never blocks its caller for more than one unit of work: the
// editor's event loop calls Step repeatedly, the same incremental
// pattern the search engine's resumable iterator uses to keep
// returning control to the caller between chunks instead of running
// a query to completion in one call.
package jobstep

import (
	"context"

	"piecebuf/internal/bufferr"
)

// Status reports a Job's progress after a Step call.
type Status int

const (
	// Running means Step should be called again.
	Running Status = iota
	// Done means the job finished successfully; no further Step calls
	// are needed.
	Done
	// Canceled means the job stopped early because Cancel was called
	// and the job had not yet passed its point of no return.
	Canceled
	// Failed means Step returned an error; the job will not make
	// further progress.
	Failed
)

// Job is a unit of incremental, cancellable work.
type Job interface {
	// Step performs one bounded unit of work and reports the
	// resulting status. Calling Step after Done, Canceled, or Failed
	// is a no-op returning the same status.
	Step(ctx context.Context) (Status, error)

	// Cancel requests early termination. It has no effect once the
	// job has passed its point of no return (see the implementation's
	// documentation for where that point falls); Step's returned
	// status reflects whether cancellation actually took effect.
	Cancel()

	// Progress returns a 0..1 estimate of completion, for a progress
	// bar. Implementations that cannot estimate return -1.
	Progress() float64
}

// RunToCompletion drives job with Step until it reports Done,
// Canceled, or Failed, ignoring Progress. Intended for tests and
// non-interactive callers (a CLI command) that have no event loop to
// interleave with.
func RunToCompletion(ctx context.Context, job Job) error {
	for {
		status, err := job.Step(ctx)
		switch status {
		case Done:
			return nil
		case Canceled:
			return bufferr.ErrCanceled
		case Failed:
			return err
		}
		if ctx.Err() != nil {
			job.Cancel()
		}
	}
}
