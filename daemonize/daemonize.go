// Copyright (c) 2023 BVK Chaitanya

// Package daemonize turns a program started from the shell into a background
// daemon process.
package daemonize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"log/syslog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// CheckFunc reports true when the background process has initialized
// successfully. A non-nil error indicates that the background process cannot
// become ready and the parent should stop waiting.
type CheckFunc func(ctx context.Context, child *os.Process) (bool, error)

// Daemonize respawns the current program in the background with the same
// command-line arguments. It *must* be called during the program startup
// before opening databases, starting servers, etc.
//
// The envKey environment variable identifies the parent and the child
// processes; it must be unique and not used by any other process. In the
// child, its value is the parent process pid.
//
// Standard input and standard outputs in the background process are replaced
// with /dev/null and standard library log is redirected to syslog with tag as
// the syslog identifier.
//
// When successful, Daemonize returns nil to the background process and exits
// the parent process (i.e., never returns). When unsuccessful, Daemonize
// returns non-nil error to the parent process and exits the background process
// (i.e., never returns).
func Daemonize(ctx context.Context, envKey, tag string, check CheckFunc) error {
	if len(envKey) == 0 {
		return fmt.Errorf("daemonize env key cannot be empty: %w", os.ErrInvalid)
	}
	if v := os.Getenv(envKey); len(v) == 0 {
		if err := daemonizeParent(ctx, envKey, check); err != nil {
			return err
		}
		os.Exit(0)
	}
	if err := daemonizeChild(tag); err != nil {
		os.Exit(1)
	}
	return nil
}

func daemonizeParent(ctx context.Context, envKey string, check CheckFunc) error {
	binary, err := exec.LookPath(os.Args[0])
	if err != nil {
		return fmt.Errorf("failed to lookup binary: %w", err)
	}
	binaryPath, err := filepath.Abs(binary)
	if err != nil {
		return fmt.Errorf("could not determine absolute path for binary: %w", err)
	}

	file, err := os.OpenFile("/dev/null", os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open /dev/null: %w", err)
	}
	defer file.Close()

	// Receive signal when child-process dies.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGCHLD, os.Interrupt)
	defer stop()

	env := append(os.Environ(), fmt.Sprintf("%s=%d", envKey, os.Getpid()))
	attr := &os.ProcAttr{
		Dir:   "/",
		Env:   env,
		Files: []*os.File{file, file, file},
	}
	child, err := os.StartProcess(binaryPath, os.Args, attr)
	if err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	if check == nil {
		return nil
	}
	for ctx.Err() == nil {
		time.Sleep(time.Second)
		ok, err := check(ctx, child)
		if err != nil {
			return fmt.Errorf("background process failed to initialize: %w", err)
		}
		if ok {
			return nil
		}
		slog.WarnContext(ctx, "daemon process not yet initialized", "pid", child.Pid)
	}
	if err := context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("could not initialize the background process: %w", err)
	}
	return fmt.Errorf("background process died or was interrupted before initialization")
}

func daemonizeChild(tag string) error {
	syslogger, err := syslog.New(syslog.LOG_INFO, tag)
	if err != nil {
		return fmt.Errorf("could not create syslog: %w", err)
	}
	log.SetOutput(syslogger)

	if _, err := unix.Setsid(); err != nil {
		return fmt.Errorf("could not set session id: %w", err)
	}
	return nil
}
