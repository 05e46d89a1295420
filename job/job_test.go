// Copyright (c) 2023 BVK Chaitanya

package job

import (
	"context"
	"errors"
	"testing"
)

func TestPause(t *testing.T) {
	ctx := context.Background()
	jobf := func(ctx context.Context) error {
		<-ctx.Done()
		return context.Cause(ctx)
	}
	j1 := Run(jobf, ctx)
	if s := j1.State(); s != RUNNING {
		t.Fatalf("wanted %s, got %s", RUNNING, s)
	}
	j1.Pause()
	j1.Wait()
	if s := j1.State(); s != PAUSED {
		t.Fatalf("wanted %s, got %s", PAUSED, s)
	}
	if !errors.Is(j1.Err(), errPause) {
		t.Fatalf("wanted errPause, got %v", j1.Err())
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	jobf := func(ctx context.Context) error {
		<-ctx.Done()
		return context.Cause(ctx)
	}
	j1 := Run(jobf, ctx)
	j1.Cancel()
	j1.Wait()
	if s := j1.State(); s != CANCELED {
		t.Fatalf("wanted %s, got %s", CANCELED, s)
	}
	if !errors.Is(j1.Err(), errCancel) {
		t.Fatalf("wanted errCancel, got %v", j1.Err())
	}
}

func TestParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	jobf := func(ctx context.Context) error {
		<-ctx.Done()
		return context.Cause(ctx)
	}
	j1 := Run(jobf, ctx)
	cancel()
	j1.Wait()
	if s := j1.State(); s != PAUSED {
		t.Fatalf("wanted %s, got %s", PAUSED, s)
	}
}

func TestFailed(t *testing.T) {
	ctx := context.Background()
	ch := make(chan error)
	jobf := func(ctx context.Context) error {
		return <-ch
	}
	j1 := Run(jobf, ctx)
	errFailure := errors.New("operation failed")
	go func() { ch <- errFailure; close(ch) }()
	j1.Wait()
	if s := j1.State(); s != FAILED {
		t.Fatalf("wanted %s, got %s", FAILED, s)
	}
	if !errors.Is(j1.Err(), errFailure) {
		t.Fatalf("wanted errFailure, got %v", j1.Err())
	}
}

func TestComplete(t *testing.T) {
	ctx := context.Background()
	ch := make(chan struct{})
	jobf := func(ctx context.Context) error {
		<-ch
		return nil
	}
	j1 := Run(jobf, ctx)
	go func() { close(ch) }()
	j1.Wait()
	if s := j1.State(); s != COMPLETED {
		t.Fatalf("wanted %s, got %s (%v)", COMPLETED, s, j1.Err())
	}
	if err := j1.Err(); err != nil {
		t.Fatal(err)
	}
}
