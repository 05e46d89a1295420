// Copyright (c) 2023 BVK Chaitanya

package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/kvutil"
	"github.com/bvkgo/kv"
)

const Keyspace = "/jobs/"

type State string

const (
	PAUSED    State = "PAUSED"
	RUNNING   State = "RUNNING"
	COMPLETED State = "COMPLETED"
	CANCELED  State = "CANCELED"
	FAILED    State = "FAILED"
)

func IsDone(s State) bool {
	return s == COMPLETED || s == CANCELED || s == FAILED
}

type JobData struct {
	UID      string
	Typename string

	State State
}

func toGob(v *JobData) *gobs.JobData {
	if v.State == "" {
		v.State = PAUSED
	}
	return &gobs.JobData{
		ID:       v.UID,
		Typename: v.Typename,
		State:    string(v.State),
	}
}

func fromGob(v *gobs.JobData) *JobData {
	if v.State == "" {
		v.State = string(PAUSED)
	}
	return &JobData{
		UID:      v.ID,
		Typename: v.Typename,
		State:    State(v.State),
	}
}

// Runner keeps the job states in the database so that running jobs can be
// resumed after a restart.
type Runner struct {
	db kv.Database

	mu sync.Mutex

	// jobMap holds all running jobs.
	jobMap map[string]*Job
}

func NewRunner(db kv.Database) *Runner {
	return &Runner{
		db:     db,
		jobMap: make(map[string]*Job),
	}
}

func (r *Runner) withReader(ctx context.Context, reader kv.Reader, fn func(context.Context, kv.Reader) error) error {
	if reader != nil {
		return fn(ctx, reader)
	}
	return kv.WithReader(ctx, r.db, fn)
}

func (r *Runner) withReadWriter(ctx context.Context, rw kv.ReadWriter, fn func(context.Context, kv.ReadWriter) error) error {
	if rw != nil {
		return fn(ctx, rw)
	}
	return kv.WithReadWriter(ctx, r.db, fn)
}

func (r *Runner) load(ctx context.Context, reader kv.Reader, uid string) (*JobData, error) {
	key := path.Join(Keyspace, uid)
	gv, err := kvutil.Get[gobs.JobData](ctx, reader, key)
	if err != nil {
		return nil, fmt.Errorf("could not read job data from db: %w", err)
	}
	return fromGob(gv), nil
}

func (r *Runner) save(ctx context.Context, rw kv.ReadWriter, jd *JobData) error {
	key := path.Join(Keyspace, jd.UID)
	if err := kvutil.Set(ctx, rw, key, toGob(jd)); err != nil {
		return fmt.Errorf("could not update metadata for job %q: %w", jd.UID, err)
	}
	return nil
}

func (r *Runner) setState(ctx context.Context, uid string, state State) error {
	return kv.WithReadWriter(ctx, r.db, func(ctx context.Context, rw kv.ReadWriter) error {
		jd, err := r.load(ctx, rw, uid)
		if err != nil {
			return err
		}
		if IsDone(jd.State) {
			return nil
		}
		jd.State = state
		return r.save(ctx, rw, jd)
	})
}

// Add creates a new job in the database. Jobs are created in PAUSED state and
// must be resumed to begin execution. Database is used directly when rw is
// nil.
func (r *Runner) Add(ctx context.Context, rw kv.ReadWriter, uid, typename string) error {
	return r.withReadWriter(ctx, rw, func(ctx context.Context, rw kv.ReadWriter) error {
		if _, err := r.load(ctx, rw, uid); err == nil || !errors.Is(err, os.ErrNotExist) {
			if err == nil {
				return fmt.Errorf("job with uid already exists: %w", os.ErrExist)
			}
			return fmt.Errorf("could not check if uid already exists: %w", err)
		}
		jd := &JobData{
			UID:      uid,
			Typename: typename,
			State:    PAUSED,
		}
		if err := r.save(ctx, rw, jd); err != nil {
			return fmt.Errorf("could not save new job entry: %w", err)
		}
		return nil
	})
}

// Get returns a job's information.
func (r *Runner) Get(ctx context.Context, reader kv.Reader, uid string) (jd *JobData, err error) {
	err = r.withReader(ctx, reader, func(ctx context.Context, reader kv.Reader) error {
		jd, err = r.load(ctx, reader, uid)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobMap[uid]; ok {
		jd.State = job.State()
	}
	return jd, nil
}

// Remove deletes a job from the database. Running jobs cannot be removed.
func (r *Runner) Remove(ctx context.Context, rw kv.ReadWriter, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobMap[uid]; ok {
		return fmt.Errorf("running job %q cannot be removed: %w", uid, os.ErrExist)
	}
	key := path.Join(Keyspace, uid)
	return r.withReadWriter(ctx, rw, func(ctx context.Context, rw kv.ReadWriter) error {
		if err := rw.Delete(ctx, key); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("could not delete key %q: %w", key, err)
		}
		return nil
	})
}

// Scan invokes the callback function with all jobs defined in the database.
func (r *Runner) Scan(ctx context.Context, fn func(ctx context.Context, jd *JobData) error) error {
	begin, end := kvutil.PathRange(Keyspace)
	cb := func(ctx context.Context, _ kv.Reader, key string, value *gobs.JobData) error {
		jd := fromGob(value)
		jd.UID = strings.TrimPrefix(key, Keyspace)

		r.mu.Lock()
		if job, ok := r.jobMap[jd.UID]; ok {
			jd.State = job.State()
		}
		r.mu.Unlock()

		return fn(ctx, jd)
	}
	return kvutil.AscendDB(ctx, r.db, begin, end, cb)
}

func (r *Runner) wrapJobFunc(uid string, fn Func) Func {
	return func(ctx context.Context) error {
		status := fn(ctx)

		r.mu.Lock()
		job := r.jobMap[uid]
		delete(r.jobMap, uid)
		r.mu.Unlock()

		// Pause and cancel update the database themselves.
		if ctx.Err() == nil && job != nil {
			state := COMPLETED
			if status != nil {
				state = FAILED
			}
			slog.Info("job has returned", "uid", uid, "state", state, "err", status)
			if err := r.setState(context.Background(), uid, state); err != nil {
				slog.Error("could not save final job state", "uid", uid, "state", state, "err", err)
			}
		}
		return status
	}
}

// Resume runs a job in the background with fctx as the parent context. Job
// must not be completed or canceled.
func (r *Runner) Resume(ctx context.Context, uid string, fn Func, fctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobMap[uid]; ok {
		return fmt.Errorf("job %q is already resumed: %w", uid, os.ErrExist)
	}

	jd, err := kvutil.GetDB[gobs.JobData](ctx, r.db, path.Join(Keyspace, uid))
	if err != nil {
		return fmt.Errorf("could not load job data for %q: %w", uid, err)
	}
	if s := State(jd.State); IsDone(s) {
		return fmt.Errorf("job %q is already %s: %w", uid, s, os.ErrClosed)
	}

	if err := r.setState(ctx, uid, RUNNING); err != nil {
		return fmt.Errorf("could not mark job %q as running: %w", uid, err)
	}
	r.jobMap[uid] = Run(r.wrapJobFunc(uid, fn), fctx)
	return nil
}

// stop stops a running job, if any, and waits for it to return.
func (r *Runner) stop(uid string, cancel bool) {
	r.mu.Lock()
	job, ok := r.jobMap[uid]
	r.mu.Unlock()

	if !ok {
		return
	}
	if cancel {
		job.Cancel()
	} else {
		job.Pause()
	}
	job.Wait()
}

// Pause stops a running job. Job can be resumed later.
func (r *Runner) Pause(ctx context.Context, uid string) error {
	r.stop(uid, false /* cancel */)
	if err := r.setState(ctx, uid, PAUSED); err != nil {
		return fmt.Errorf("could not mark job %q as paused: %w", uid, err)
	}
	return nil
}

// Cancel stops the job if it is running and marks it as canceled. Job cannot
// be resumed after it is canceled.
func (r *Runner) Cancel(ctx context.Context, uid string) (State, error) {
	r.stop(uid, true /* cancel */)
	if err := r.setState(ctx, uid, CANCELED); err != nil {
		return "", fmt.Errorf("could not mark job %q as canceled: %w", uid, err)
	}
	jd, err := r.Get(ctx, nil, uid)
	if err != nil {
		return "", err
	}
	return jd.State, nil
}

// StopAll stops all running jobs without changing their state in the
// database, so that they are resumed on the next start.
func (r *Runner) StopAll(ctx context.Context) {
	r.mu.Lock()
	jobs := make([]*Job, 0, len(r.jobMap))
	for uid, job := range r.jobMap {
		jobs = append(jobs, job)
		delete(r.jobMap, uid)
	}
	r.mu.Unlock()

	for _, job := range jobs {
		job.Pause()
	}
	for _, job := range jobs {
		job.Wait()
	}
}

// PauseAll pauses all running jobs and saves their state as paused.
func (r *Runner) PauseAll(ctx context.Context) error {
	r.mu.Lock()
	var uids []string
	for uid := range r.jobMap {
		uids = append(uids, uid)
	}
	r.mu.Unlock()

	var errs []error
	for _, uid := range uids {
		if err := r.Pause(ctx, uid); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
