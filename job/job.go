// Copyright (c) 2023 BVK Chaitanya

// Package job runs long lived activities, like the batch reconciliation
// loops, that can be paused, resumed or canceled through the
// context.Context argument.
package job

import (
	"context"
	"errors"
	"sync"
)

type Func func(ctx context.Context) error

var (
	errPause  = errors.New("job is paused")
	errCancel = errors.New("job is canceled")
)

type Job struct {
	cancel context.CancelCauseFunc

	done chan struct{}

	mu sync.Mutex

	state State

	err error
}

// Run starts a job in the background. Job is stopped when fctx is canceled,
// in which case it is considered as paused.
func Run(fn Func, fctx context.Context) *Job {
	ctx, cancel := context.WithCancelCause(fctx)
	j := &Job{
		cancel: cancel,
		done:   make(chan struct{}),
		state:  RUNNING,
	}
	go j.goRun(ctx, fn)
	return j
}

func (j *Job) goRun(ctx context.Context, fn Func) {
	defer close(j.done)

	err := fn(ctx)

	j.mu.Lock()
	defer j.mu.Unlock()

	j.err = err
	switch {
	case err == nil:
		j.state = COMPLETED
	case errors.Is(err, errCancel):
		j.state = CANCELED
	case ctx.Err() != nil && errors.Is(err, context.Cause(ctx)):
		j.state = PAUSED
	default:
		j.state = FAILED
	}
}

// Pause stops the job. Job can be run again.
func (j *Job) Pause() {
	j.cancel(errPause)
}

// Cancel stops the job permanently.
func (j *Job) Cancel() {
	j.cancel(errCancel)
}

// Wait blocks till the job function returns.
func (j *Job) Wait() {
	<-j.done
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the error returned by the job function.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}
